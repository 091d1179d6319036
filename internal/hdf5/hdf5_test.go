// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hdf5

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testListing = `HDF5 "weights.h5" {
FILE_CONTENTS {
 group      /
 group      /block1_conv1
 dataset    /block1_conv1/block1_conv1_W_1:0
 dataset    /block1_conv1/block1_conv1_b_1:0
 dataset    /block1_conv1/layer_name
 }
}
`
	testHeaders = `HDF5 "weights.h5" {
DATASET "/block1_conv1/block1_conv1_W_1:0" {
   DATATYPE  H5T_IEEE_F32LE
   DATASPACE  SIMPLE { ( 3, 3, 3, 64 ) / ( 3, 3, 3, 64 ) }
}
DATASET "/block1_conv1/block1_conv1_b_1:0" {
   DATATYPE  H5T_IEEE_F32LE
   DATASPACE  SIMPLE { ( 64 ) / ( 64 ) }
}
DATASET "/block1_conv1/layer_name" {
   DATATYPE  H5T_STRING {
      STRSIZE 12;
   }
   DATASPACE  SCALAR
}
}
`
)

func TestParse(t *testing.T) {
	contents, err := parseContents("weights.h5", testListing)
	require.NoError(t, err)
	require.Len(t, contents, 3)
	require.NoError(t, contents.parseHeaders(testHeaders))

	kernel := contents["/block1_conv1/block1_conv1_W_1:0"]
	require.NotNil(t, kernel)
	assert.Equal(t, "weights.h5", kernel.FilePath)
	assert.True(t, kernel.Shape.Equal(shapes.Make(dtypes.Float32, 3, 3, 3, 64)), "got shape %s", kernel.Shape)

	bias := contents["/block1_conv1/block1_conv1_b_1:0"]
	require.NotNil(t, bias)
	assert.True(t, bias.Shape.Equal(shapes.Make(dtypes.Float32, 64)), "got shape %s", bias.Shape)

	name := contents["/block1_conv1/layer_name"]
	require.NotNil(t, name)
	assert.False(t, name.Shape.Ok(), "strings can't be converted to tensors")
	assert.Contains(t, name.RawHeader, "H5T_STRING")
}

func TestParseErrors(t *testing.T) {
	contents, err := parseContents("weights.h5", testListing)
	require.NoError(t, err)
	delete(contents, "/block1_conv1/layer_name")
	require.Error(t, contents.parseHeaders(testHeaders), "number of headers doesn't match")
}

func TestDTypeForH5T(t *testing.T) {
	assert.Equal(t, dtypes.Float32, DTypeForH5T("H5T_IEEE_F32LE"))
	assert.Equal(t, dtypes.Float64, DTypeForH5T("H5T_IEEE_F64BE"))
	assert.Equal(t, dtypes.Int32, DTypeForH5T("H5T_STD_I32LE"))
	assert.Equal(t, dtypes.Int64, DTypeForH5T("H5T_STD_I64LE"))
	assert.Equal(t, dtypes.InvalidDType, DTypeForH5T("H5T_STRING"))
}

func TestRawToTensor(t *testing.T) {
	values := []float32{1, -2, 0.5}
	raw := make([]byte, 4*len(values))
	for ii, v := range values {
		binary.NativeEndian.PutUint32(raw[4*ii:], math.Float32bits(v))
	}
	tensor, err := rawToTensor(shapes.Make(dtypes.Float32, 3), raw)
	require.NoError(t, err)
	assert.Equal(t, values, tensor.Value())

	_, err = rawToTensor(shapes.Make(dtypes.Float32, 4), raw)
	require.Error(t, err)
}
