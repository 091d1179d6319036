// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// GramMatrix returns the normalized Gram matrix of the feature maps, shaped `[batch, channels, height, width]`.
//
// The features are reshaped to `[batch*channels, height*width]` and multiplied by their own transpose. The
// result, shaped `[batch*channels, batch*channels]`, is divided by `batch*channels*height*width`.
// It is symmetric by construction.
func GramMatrix(features *Node) *Node {
	features.AssertRank(4)
	dims := features.Shape().Dimensions
	rows := dims[0] * dims[1]
	cols := dims[2] * dims[3]
	flat := Reshape(features, rows, cols)
	gram := EinsumAxes(flat, flat, [][2]int{{1, 1}}, nil)
	return DivScalar(gram, float64(rows*cols))
}

// Style loss compares the Gram matrices of feature maps: it captures texture statistics independent
// of the spatial layout.
//
// It doesn't own a feature extractor: the features are expected to be computed upstream, see
// vgg19.Extractor.
type Style struct {
	distance Distance
}

// NewStyle creates a Style loss with the given distance between Gram matrices.
func NewStyle(distance Distance) *Style {
	return &Style{distance: distance}
}

// Loss returns the distance between the Gram matrices of the predicted and of the target features.
func (s *Style) Loss(predictedFeatures, targetFeatures *Node) *Node {
	return s.distance.Done(GramMatrix(predictedFeatures), GramMatrix(targetFeatures))
}
