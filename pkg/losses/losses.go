// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package losses implements the loss terms used to train future-frame prediction models (and use them
// for anomaly detection): pixel intensity, spatial gradient, optical flow, least-squares adversarial and
// discriminator, and perceptual (content and style) losses.
//
// All losses are graph building functions: they take frames as `*Node` shaped
// `[batch, channels, height, width]` and return a scalar `*Node`, differentiable with graph.Gradient.
//
// The losses don't validate that the pairs of tensors have matching shapes: the graph operations will
// panic during graph building if they don't, and the panic is propagated to the caller.
package losses

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	trainlosses "github.com/gomlx/gomlx/pkg/ml/train/losses"
)

const (
	// ParamIntensityWeight is the context hyperparameter with the weight of the intensity loss in the
	// generator objective. Default is 1.0.
	ParamIntensityWeight = "intensity_loss_weight"

	// ParamGradientWeight is the context hyperparameter with the weight of the gradient loss in the
	// generator objective. Default is 1.0.
	ParamGradientWeight = "gradient_loss_weight"

	// ParamFlowWeight is the context hyperparameter with the weight of the optical flow loss in the
	// generator objective. Default is 2.0.
	ParamFlowWeight = "flow_loss_weight"

	// ParamAdversarialWeight is the context hyperparameter with the weight of the adversarial loss in the
	// generator objective. Default is 0.05.
	ParamAdversarialWeight = "adversarial_loss_weight"

	// ParamContentWeight is the context hyperparameter with the weight of the perceptual content loss.
	// Default is 0, which disables it.
	ParamContentWeight = "content_loss_weight"

	// ParamStyleWeight is the context hyperparameter with the weight of the perceptual style loss.
	// Default is 0, which disables it.
	ParamStyleWeight = "style_loss_weight"

	// ParamVGG19Dir is the context hyperparameter with the directory where the VGG19 weights are
	// downloaded and unpacked. Default is "~/.cache/framepred/vgg19".
	ParamVGG19Dir = "vgg19_dir"

	// ParamContentLayer is the context hyperparameter with the name of the VGG19 layer used for the
	// perceptual losses. Default is "relu_8".
	ParamContentLayer = "content_layer"
)

// DefaultVGG19Dir is the default value for ParamVGG19Dir.
const DefaultVGG19Dir = "~/.cache/framepred/vgg19"

// CreateDefaultContext returns a context with the default hyperparameters of the generator objective.
//
// The defaults are the weights used to train the future-frame prediction model: intensity 1,
// gradient 1, flow 2 and adversarial 0.05. Perceptual losses are disabled.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamIntensityWeight:   1.0,
		ParamGradientWeight:    1.0,
		ParamFlowWeight:        2.0,
		ParamAdversarialWeight: 0.05,
		ParamContentWeight:     0.0,
		ParamStyleWeight:       0.0,
		ParamVGG19Dir:          DefaultVGG19Dir,
		ParamContentLayer:      "relu_8",
	})
	return ctx
}

var (
	// IntensityLossFn adapts Intensity to the train.Trainer loss signature: it compares labels[0] (ground truth
	// frames) with predictions[0] (generated frames).
	IntensityLossFn trainlosses.LossFn = func(labels, predictions []*Node) *Node {
		return Intensity(predictions[0], labels[0])
	}

	// FlowLossFn adapts Flow to the train.Trainer loss signature: it compares labels[0] (ground truth
	// flows) with predictions[0] (flows of the generated frames).
	FlowLossFn trainlosses.LossFn = func(labels, predictions []*Node) *Node {
		return Flow(predictions[0], labels[0])
	}
)
