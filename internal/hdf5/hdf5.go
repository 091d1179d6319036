// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hdf5 lists and extracts the datasets of HDF5 files (Keras ".h5" weights) into GoMLX tensors.
//
// It requires the `h5dump` binary (from the `hdf5-tools` deb package) to be installed in the system.
package hdf5

import (
	"bytes"
	"os"
	"os/exec"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// H5DumpBinary is the name of the binary used to read HDF5 files.
const H5DumpBinary = "h5dump"

// Contents maps the full path of each dataset ("/<group>/<dataset>") to its metadata.
type Contents map[string]*Dataset

// Dataset metadata (not the data itself). DType and Shape are only set if the HDF5 type and
// dataspace could be converted to a tensor.
type Dataset struct {
	FilePath, GroupPath, RawHeader string
	DType                          dtypes.DType
	Shape                          shapes.Shape
}

var (
	regexpDatasets        = regexp.MustCompile(`\s+dataset\s+(/.*)\n`)
	regexpHeaderName      = regexp.MustCompile(`\s+"(.*?)" \{\n`)
	regexpHeaderDataType  = regexp.MustCompile(`\s+DATATYPE\s+(\w.*?)\n`)
	regexpHeaderDataSpace = regexp.MustCompile(`\s+DATASPACE\s+(\w+)(\s+\{\s+\((.*?)\).*?)?\n`)
)

// ParseFile lists the datasets of the HDF5 file and reads their headers.
func ParseFile(filePath string) (Contents, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, errors.Wrapf(err, "cannot access HDF5 file in path %q", filePath)
	}
	listing, err := execH5Dump("--contents", filePath)
	if err != nil {
		return nil, err
	}
	contents, err := parseContents(filePath, string(listing))
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return contents, nil
	}

	args := make([]string, 0, len(contents)+2)
	args = append(args, "--header")
	for key := range contents {
		args = append(args, "--dataset="+key)
	}
	args = append(args, filePath)
	headers, err := execH5Dump(args...)
	if err != nil {
		return nil, err
	}
	if err = contents.parseHeaders(string(headers)); err != nil {
		return nil, errors.WithMessagef(err, "parsing headers of %q", filePath)
	}
	return contents, nil
}

// parseContents parses the output of `h5dump --contents`.
func parseContents(filePath, listing string) (Contents, error) {
	matches := regexpDatasets.FindAllStringSubmatch(listing, -1)
	contents := make(Contents, len(matches))
	for _, match := range matches {
		groupPath := match[1]
		// It would be interpreted as a flag by h5dump.
		if strings.HasPrefix(groupPath, "-") {
			return nil, errors.Errorf("invalid dataset name starting with '-': %q", groupPath)
		}
		contents[groupPath] = &Dataset{FilePath: filePath, GroupPath: groupPath}
	}
	return contents, nil
}

// parseHeaders parses the output of `h5dump --header`, filling in DType and Shape of the datasets.
// Datasets whose type or dataspace are not supported are left with an invalid shape.
func (contents Contents) parseHeaders(headers string) error {
	parts := strings.Split(headers, "DATASET")
	if len(parts)-1 != len(contents) {
		return errors.Errorf("expected %d DATASET headers, got %d", len(contents), len(parts)-1)
	}
	for _, part := range parts[1:] {
		matches := regexpHeaderName.FindStringSubmatch(part)
		if len(matches) != 2 {
			return errors.Errorf("failed to parse dataset header %q", part)
		}
		ds, found := contents[matches[1]]
		if !found {
			return errors.Errorf("header for unknown dataset %q", matches[1])
		}
		ds.RawHeader = "DATASET" + part

		matches = regexpHeaderDataType.FindStringSubmatch(part)
		if len(matches) != 2 {
			continue
		}
		ds.DType = DTypeForH5T(matches[1])
		if ds.DType == dtypes.InvalidDType {
			klog.V(1).Infof("dataset %q: HDF5 type %q not supported", ds.GroupPath, matches[1])
			continue
		}
		shape, err := parseDataSpace(ds.DType, part)
		if err != nil {
			klog.V(1).Infof("dataset %q: %v", ds.GroupPath, err)
			continue
		}
		ds.Shape = shape
	}
	return nil
}

func parseDataSpace(dtype dtypes.DType, header string) (shapes.Shape, error) {
	matches := regexpHeaderDataSpace.FindStringSubmatch(header)
	if len(matches) != 4 {
		return shapes.Shape{}, errors.New("DATASPACE not found")
	}
	switch matches[1] {
	case "SCALAR":
		return shapes.Make(dtype), nil
	case "SIMPLE":
		dimsParts := strings.Split(matches[3], ",")
		dims := make([]int, 0, len(dimsParts))
		for _, dimStr := range dimsParts {
			dim, err := strconv.Atoi(strings.TrimSpace(dimStr))
			if err != nil {
				return shapes.Shape{}, errors.Wrapf(err, "failed to parse DATASPACE dimensions %q", matches[3])
			}
			dims = append(dims, dim)
		}
		return shapes.Make(dtype, dims...), nil
	}
	return shapes.Shape{}, errors.Errorf("DATASPACE type %q not supported", matches[1])
}

// DTypeForH5T returns the DType corresponding to the HDF5 type, or dtypes.InvalidDType if not supported.
func DTypeForH5T(h5type string) dtypes.DType {
	switch h5type {
	case "H5T_IEEE_F32LE", "H5T_IEEE_F32BE":
		return dtypes.Float32
	case "H5T_IEEE_F64LE", "H5T_IEEE_F64BE":
		return dtypes.Float64
	case "H5T_STD_I32LE", "H5T_STD_I32BE":
		return dtypes.Int32
	case "H5T_STD_I64LE", "H5T_STD_I64BE":
		return dtypes.Int64
	}
	return dtypes.InvalidDType
}

func execH5Dump(args ...string) ([]byte, error) {
	binPath, err := exec.LookPath(H5DumpBinary)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot find %q binary in PATH, needed to read HDF5 files "+
			"(extension \".h5\"): please install the package hdf5-tools", H5DumpBinary)
	}
	klog.V(2).Infof("using %s from %q", H5DumpBinary, binPath)
	cmd := exec.Command(binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err = cmd.Run(); err != nil {
		err = errors.Wrapf(err, "failed executing %q to access HDF5 file", cmd)
		return nil, errors.WithMessagef(err, "STDERR captured:\n%s\n", stderr.String())
	}
	return stdout.Bytes(), nil
}

// Load the raw (native endianness) bytes of the dataset.
func (ds *Dataset) Load() ([]byte, error) {
	tmpFile, err := os.CreateTemp("", "hdf5_dataset")
	if err == nil {
		err = tmpFile.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create temporary file to extract HDF5 dataset")
	}
	defer func() {
		if err := os.Remove(tmpFile.Name()); err != nil {
			klog.Warningf("Failed to remove temporary file %q used to extract HDF5 dataset: %+v", tmpFile.Name(), err)
		}
	}()
	if _, err = execH5Dump("--dataset="+ds.GroupPath, "--binary=NATIVE", "--output="+tmpFile.Name(), ds.FilePath); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read extracted HDF5 dataset from %q", tmpFile.Name())
	}
	return raw, nil
}

// ToTensor reads the dataset into a tensor.
func (ds *Dataset) ToTensor() (*tensors.Tensor, error) {
	if !ds.Shape.Ok() {
		return nil, errors.Errorf("dataset %q has no shape information, can't convert to tensor", ds.GroupPath)
	}
	raw, err := ds.Load()
	if err != nil {
		return nil, err
	}
	return rawToTensor(ds.Shape, raw)
}

func rawToTensor(shape shapes.Shape, raw []byte) (*tensors.Tensor, error) {
	tensor := tensors.FromShape(shape)
	var err error
	tensor.MutableBytes(func(data []byte) {
		if len(raw) != len(data) {
			err = errors.Errorf("for shape %s: loaded %d bytes, but tensor uses %d bytes", shape, len(raw), len(data))
			return
		}
		copy(data, raw)
	})
	if err != nil {
		return nil, err
	}
	return tensor, nil
}

// UnpackConfig is created by Unpack, and configures the unpacking of an HDF5 file into a directory
// of tensors saved in GoMLX format, one file per dataset.
type UnpackConfig struct {
	h5Path, targetDir string
	showProgressBar   bool
	dirPermissions    os.FileMode
}

// Unpack the datasets of the HDF5 file h5Path into targetDir, which must not yet exist. Each dataset is
// saved with tensors.Tensor.Save under a path mirroring its group path, and can be read back
// with tensors.Load.
//
// Call Done to do the unpacking:
//
//	err := hdf5.Unpack("/my/weights", "weights.h5").ProgressBar().Done()
func Unpack(targetDir, h5Path string) *UnpackConfig {
	return &UnpackConfig{h5Path: h5Path, targetDir: targetDir, dirPermissions: 0755}
}

// ProgressBar displays a progress bar while unpacking.
func (c *UnpackConfig) ProgressBar() *UnpackConfig {
	c.showProgressBar = true
	return c
}

// Done unpacks to a temporary directory, renamed to the target directory at the very end. On error the
// temporary directory is removed.
func (c *UnpackConfig) Done() (err error) {
	exists, err := fsutil.FileExists(c.targetDir)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("target directory %q already exists, remove it or move it away first", c.targetDir)
	}
	contents, err := ParseFile(c.h5Path)
	if err != nil {
		return err
	}

	baseDir := path.Dir(c.targetDir)
	if err = os.MkdirAll(baseDir, c.dirPermissions); err != nil {
		return errors.Wrapf(err, "can't create directory %q to unpack HDF5 file to", baseDir)
	}
	tmpDir, err := os.MkdirTemp(baseDir, path.Base(c.targetDir)+".")
	if err != nil {
		return errors.Wrapf(err, "can't create temporary directory under %q to unpack HDF5 file to", baseDir)
	}
	defer func() {
		if tmpDir == "" {
			return
		}
		if newErr := os.RemoveAll(tmpDir); newErr != nil {
			klog.Errorf("Unpack(%q, %q): failed to clean up temporary directory %q: %v", c.targetDir, c.h5Path, tmpDir, newErr)
		}
	}()

	var bar *progressbar.ProgressBar
	if c.showProgressBar {
		var totalSize uintptr
		for _, ds := range contents {
			if ds.Shape.Ok() {
				totalSize += ds.Shape.Memory()
			}
		}
		bar = progressbar.DefaultBytes(int64(totalSize), "unpacking")
		defer func() { _ = bar.Finish() }()
	}

	for key, ds := range contents {
		if !ds.Shape.Ok() {
			klog.Infof("Unpack(%q, %q): skipping dataset %q not convertible to a tensor", c.targetDir, c.h5Path, key)
			continue
		}
		tensor, err := ds.ToTensor()
		if err != nil {
			return err
		}
		dsPath := path.Join(tmpDir, key)
		if err = os.MkdirAll(path.Dir(dsPath), c.dirPermissions); err != nil {
			return errors.Wrapf(err, "Unpack(%q, %q): can't create sub-directory for %q", c.targetDir, c.h5Path, key)
		}
		if err = tensor.Save(dsPath); err != nil {
			return errors.WithMessagef(err, "Unpack(%q, %q)", c.targetDir, c.h5Path)
		}
		if bar != nil {
			_ = bar.Add64(int64(ds.Shape.Memory()))
		}
	}

	if err = os.Rename(tmpDir, c.targetDir); err != nil {
		return errors.Wrapf(err, "Unpack(%q, %q): failed to rename temporary directory %q", c.targetDir, c.h5Path, tmpDir)
	}
	tmpDir = ""
	return nil
}
