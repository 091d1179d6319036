// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// Frames holds the inputs of the generator Objective. GenFrames and GTFrames are required, the others
// are optional: the terms that need them are skipped if they are nil.
type Frames struct {
	// GenFrames are the generated (predicted) frames and GTFrames the ground truth, both shaped
	// `[batch, channels, height, width]`.
	GenFrames, GTFrames *Node

	// GenFlows and GTFlows are the optical flows of the generated and ground truth frames.
	GenFlows, GTFlows *Node

	// FakeScores are the discriminator scores of GenFrames.
	FakeScores *Node
}

// Term is one weighted term of the Objective.
type Term struct {
	Name   string
	Weight float64
	Value  *Node
}

// Objective is the weighted sum of losses used to train a future frame generator.
type Objective struct {
	gradient *GradientLoss
	content  *Content
	style    *Style
}

// NewObjective creates the generator objective for frames with the given number of channels.
//
// Without further configuration it combines the intensity, gradient, flow and adversarial losses.
func NewObjective(channels int) *Objective {
	return &Objective{gradient: NewGradientLoss(channels)}
}

// WithContent adds the perceptual content loss, weighted by ParamContentWeight.
func (o *Objective) WithContent(content *Content) *Objective {
	o.content = content
	return o
}

// WithStyle adds the perceptual style loss, weighted by ParamStyleWeight. It uses the features of the
// extractor configured with WithContent, which is required.
func (o *Objective) WithStyle(style *Style) *Objective {
	o.style = style
	return o
}

// Terms returns the terms of the objective available for the given frames, with their weights read
// from the context hyperparameters.
func (o *Objective) Terms(ctx *context.Context, f Frames) []Term {
	terms := []Term{
		{
			Name:   "intensity",
			Weight: context.GetParamOr(ctx, ParamIntensityWeight, 1.0),
			Value:  Intensity(f.GenFrames, f.GTFrames),
		},
		{
			Name:   "gradient",
			Weight: context.GetParamOr(ctx, ParamGradientWeight, 1.0),
			Value:  o.gradient.Loss(f.GenFrames, f.GTFrames),
		},
	}
	if f.GenFlows != nil && f.GTFlows != nil {
		terms = append(terms, Term{
			Name:   "flow",
			Weight: context.GetParamOr(ctx, ParamFlowWeight, 2.0),
			Value:  Flow(f.GenFlows, f.GTFlows),
		})
	}
	if f.FakeScores != nil {
		terms = append(terms, Term{
			Name:   "adversarial",
			Weight: context.GetParamOr(ctx, ParamAdversarialWeight, 0.05),
			Value:  Adversarial(f.FakeScores),
		})
	}
	if o.style != nil && o.content == nil {
		exceptions.Panicf("losses.Objective: the style loss requires the content loss to be configured (WithContent)")
	}
	if o.content != nil {
		genFeatures := o.content.Features(ctx, f.GenFrames)
		gtFeatures := o.content.Features(ctx, f.GTFrames)
		terms = append(terms, Term{
			Name:   "content",
			Weight: context.GetParamOr(ctx, ParamContentWeight, 0.0),
			Value:  o.content.distance.Done(genFeatures, gtFeatures),
		})
		if o.style != nil {
			terms = append(terms, Term{
				Name:   "style",
				Weight: context.GetParamOr(ctx, ParamStyleWeight, 0.0),
				Value:  o.style.Loss(genFeatures, gtFeatures),
			})
		}
	}
	return terms
}

// Done returns the weighted sum of the terms. Terms with weight 0 are left out.
func (o *Objective) Done(ctx *context.Context, f Frames) *Node {
	var total *Node
	for _, term := range o.Terms(ctx, f) {
		if term.Weight == 0 {
			continue
		}
		weighted := MulScalar(term.Value, term.Weight)
		if total == nil {
			total = weighted
		} else {
			total = Add(total, weighted)
		}
	}
	if total == nil {
		total = ScalarZero(f.GenFrames.Graph(), f.GenFrames.DType())
	}
	return total
}
