// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Flow returns the mean absolute difference between the generated and the ground truth optical flows.
//
// Both are expected to have the same shape, usually `[batch, 2, height, width]`.
func Flow(genFlows, gtFlows *Node) *Node {
	return ReduceAllMean(Abs(Sub(genFlows, gtFlows)))
}

// Intensity returns the mean squared difference between the generated and the ground truth frames.
//
// Both are expected to have the same shape, `[batch, channels, height, width]`.
func Intensity(genFrames, gtFrames *Node) *Node {
	return ReduceAllMean(Square(Abs(Sub(genFrames, gtFrames))))
}
