// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vgg19

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/support/xslices"
)

// ImageNetMeanBGR is the per channel mean, in BGR order and in the [0, 255] range, subtracted from the images
// the pre-trained weights were trained with.
var ImageNetMeanBGR = []float64{103.939, 116.779, 123.68}

// PreprocessImage converts RGB images to what the pre-trained weights expect ("caffe" mode in Keras): values
// scaled to [0, 255], channels reordered to BGR and centered on ImageNetMeanBGR.
//
// The images are shaped `[batch, height, width, channels]` or `[batch, channels, height, width]`, according to
// channelsConfig, and the output keeps the same layout. Images with 1 channel (grayscale) are repeated into
// 3 channels, and an alpha channel (4 channels) is dropped.
//
// If maxValue <= 0, images are assumed to be in the range [-1, 1], as it is common for frame prediction
// generators. Otherwise, they are assumed to be in the range [0, maxValue].
func PreprocessImage(image *Node, maxValue float64, channelsConfig images.ChannelsAxisConfig) *Node {
	image.AssertRank(4)
	channelsAxis := images.GetChannelsAxis(image, channelsConfig)
	switch numChannels := image.Shape().Dimensions[channelsAxis]; numChannels {
	case 1:
		image = Concatenate([]*Node{image, image, image}, channelsAxis)
	case 3:
	case 4:
		image = SliceAxis(image, channelsAxis, AxisRange(0, 3))
	default:
		exceptions.Panicf("vgg19.PreprocessImage requires 1, 3 or 4 channels, got image shaped %s with channels on axis %d",
			image.Shape(), channelsAxis)
	}

	if maxValue <= 0 {
		image = MulScalar(AddScalar(image, 1.0), 127.5)
	} else if maxValue != 255 {
		image = MulScalar(image, 255.0/maxValue)
	}

	image = rgbToBGR(image, channelsAxis)
	meanDims := xslices.SliceWithValue(image.Rank(), 1)
	meanDims[channelsAxis] = 3
	mean := Reshape(ConstAsDType(image.Graph(), image.DType(), ImageNetMeanBGR), meanDims...)
	return Sub(image, mean)
}

// rgbToBGR reverses the order of the 3 channels. Not all backends implement Reverse.
func rgbToBGR(image *Node, channelsAxis int) *Node {
	return Concatenate([]*Node{
		SliceAxis(image, channelsAxis, AxisElem(2)),
		SliceAxis(image, channelsAxis, AxisElem(1)),
		SliceAxis(image, channelsAxis, AxisElem(0)),
	}, channelsAxis)
}
