// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"fmt"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// DistanceKind is the elementwise distance used by the perceptual losses.
type DistanceKind int

const (
	// L1 is the absolute difference.
	L1 DistanceKind = iota

	// L2 is the squared difference.
	L2
)

// String implements fmt.Stringer.
func (k DistanceKind) String() string {
	switch k {
	case L1:
		return "L1"
	case L2:
		return "L2"
	}
	return fmt.Sprintf("DistanceKind(%d)", int(k))
}

// Reduction of the elementwise distances to a scalar.
type Reduction int

const (
	// MeanReduction takes the mean over all elements. This is the default.
	MeanReduction Reduction = iota

	// SumReduction takes the sum over all elements.
	SumReduction
)

// Distance configures an elementwise distance between two tensors of the same shape, reduced to a scalar.
type Distance struct {
	Kind      DistanceKind
	Reduction Reduction
}

var (
	// L1Mean is the mean absolute error.
	L1Mean = Distance{Kind: L1, Reduction: MeanReduction}

	// L2Mean is the mean squared error.
	L2Mean = Distance{Kind: L2, Reduction: MeanReduction}
)

// String implements fmt.Stringer.
func (d Distance) String() string {
	if d.Reduction == SumReduction {
		return d.Kind.String() + "/sum"
	}
	return d.Kind.String() + "/mean"
}

// Done returns the scalar distance between predictions and targets.
func (d Distance) Done(predictions, targets *Node) *Node {
	diff := Sub(predictions, targets)
	switch d.Kind {
	case L1:
		diff = Abs(diff)
	case L2:
		diff = Square(diff)
	default:
		exceptions.Panicf("unknown distance kind %s", d.Kind)
	}
	switch d.Reduction {
	case MeanReduction:
		return ReduceAllMean(diff)
	case SumReduction:
		return ReduceAllSum(diff)
	}
	exceptions.Panicf("unknown reduction %d for distance %s", int(d.Reduction), d.Kind)
	return nil
}
