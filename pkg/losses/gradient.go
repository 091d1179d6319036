// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	trainlosses "github.com/gomlx/gomlx/pkg/ml/train/losses"
)

// GradientKernels holds the fixed convolution kernels used by the GradientLoss.
//
// Both kernels are derived from the `channels x channels` identity matrix and use the kernel layout
// `[kernelHeight, kernelWidth, inputChannels, outputChannels]`:
//
//   - X is shaped `[1, 2, channels, channels]`, with X[0][0][c][c] = -1 and X[0][1][c][c] = +1:
//     it computes `x[h, w+1] - x[h, w]`.
//   - Y is shaped `[2, 1, channels, channels]`, with Y[0][0][c][c] = +1 and Y[1][0][c][c] = -1:
//     it computes `x[h, w] - x[h+1, w]`.
//
// Off-diagonal entries are 0, so each output channel only sees its matching input channel.
// The tensors must not be modified after construction.
type GradientKernels struct {
	Channels int
	X, Y     *tensors.Tensor
}

// NewGradientKernels creates the fixed kernels for frames with the given number of channels.
func NewGradientKernels(channels int) *GradientKernels {
	if channels <= 0 {
		exceptions.Panicf("NewGradientKernels requires channels > 0, got %d", channels)
	}
	x := [][][][]float32{{identityMatrix(channels, -1), identityMatrix(channels, 1)}}
	y := [][][][]float32{{identityMatrix(channels, 1)}, {identityMatrix(channels, -1)}}
	return &GradientKernels{
		Channels: channels,
		X:        tensors.FromValue(x),
		Y:        tensors.FromValue(y),
	}
}

// identityMatrix returns a `n x n` matrix with value in the diagonal.
func identityMatrix(n int, value float32) [][]float32 {
	m := make([][]float32, n)
	for ii := range m {
		m[ii] = make([]float32, n)
		m[ii][ii] = value
	}
	return m
}

// GradientLoss compares the spatial gradients (one pixel forward differences along the width and height)
// of the generated frames with the ones of the ground truth frames.
//
// The kernels are created once by NewGradientLoss and shared (read-only) by every graph the loss is used in.
type GradientLoss struct {
	kernels *GradientKernels
}

// NewGradientLoss creates a GradientLoss for frames with the given number of channels.
func NewGradientLoss(channels int) *GradientLoss {
	return &GradientLoss{kernels: NewGradientKernels(channels)}
}

// Kernels used by the loss. They must not be modified.
func (l *GradientLoss) Kernels() *GradientKernels {
	return l.kernels
}

// Maps returns the absolute value of the horizontal (dx) and vertical (dy) gradients of the frames,
// shaped `[batch, channels, height, width]`.
//
// Before the convolution, frames are padded with zeros with one extra column at the end of the width
// axis (for dx), or one extra row at the end of the height axis (for dy), so the maps have the same shape
// as the frames. The pixels in the last column (row) are compared to 0.
func (l *GradientLoss) Maps(frames *Node) (dx, dy *Node) {
	frames.AssertRank(4)
	channels := frames.Shape().Dimensions[1]
	if channels != l.kernels.Channels {
		exceptions.Panicf("Gradient loss configured for %d channels, but frames are shaped %s (channels-first)",
			l.kernels.Channels, frames.Shape())
	}
	dx = Abs(convolveChannelsFirst(padEndWithZeros(frames, 3), l.kernels.X))
	dy = Abs(convolveChannelsFirst(padEndWithZeros(frames, 2), l.kernels.Y))
	return
}

// padEndWithZeros appends one slice of zeros at the end of the axis.
// It uses Concatenate, which every backend implements, instead of Pad.
func padEndWithZeros(frames *Node, axis int) *Node {
	zeros := ZerosLike(SliceAxis(frames, axis, AxisRange(0, 1)))
	return Concatenate([]*Node{frames, zeros}, axis)
}

// convolveChannelsFirst convolves the frames (channels-first) with the kernel, with stride 1 and no padding.
func convolveChannelsFirst(frames *Node, kernelT *tensors.Tensor) *Node {
	g := frames.Graph()
	kernel := ConstCachedTensor(g, kernelT)
	if kernel.DType() != frames.DType() {
		kernel = ConvertDType(kernel, frames.DType())
	}
	x := TransposeAllDims(frames, 0, 2, 3, 1)
	x = Convolve(x, kernel).ChannelsAxis(images.ChannelsLast).Strides(1).NoPadding().Done()
	return TransposeAllDims(x, 0, 3, 1, 2)
}

// Loss returns `mean(|gt_dx - gen_dx| + |gt_dy - gen_dy|)`, where dx and dy are the gradient maps
// returned by Maps.
func (l *GradientLoss) Loss(genFrames, gtFrames *Node) *Node {
	genDx, genDy := l.Maps(genFrames)
	gtDx, gtDy := l.Maps(gtFrames)
	gradDiffX := Abs(Sub(gtDx, genDx))
	gradDiffY := Abs(Sub(gtDy, genDy))
	return ReduceAllMean(Add(gradDiffX, gradDiffY))
}

// LossFn returns the loss adapted to the train.Trainer loss signature: it compares labels[0] (ground truth
// frames) with predictions[0] (generated frames).
func (l *GradientLoss) LossFn() trainlosses.LossFn {
	return func(labels, predictions []*Node) *Node {
		return l.Loss(predictions[0], labels[0])
	}
}
