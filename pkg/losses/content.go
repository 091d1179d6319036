// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"github.com/gomlx/framepred/pkg/models/vgg19"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// Content is a perceptual loss: it compares the features of the predicted and of the target frames,
// extracted by a frozen VGG19 truncated at some layer.
type Content struct {
	distance  Distance
	extractor *vgg19.Extractor
}

// NewContent creates a Content loss using the given feature extractor and distance.
//
// The extractor should be pre-trained (see vgg19.Config.PreTrained): with randomly initialized weights the
// loss compares meaningless features. NewPretrainedContent and NewContentFromContext take care of that.
func NewContent(distance Distance, extractor *vgg19.Extractor) *Content {
	return &Content{distance: distance, extractor: extractor}
}

// NewPretrainedContent creates a Content loss with the pre-trained VGG19 truncated at vgg19.DefaultTarget
// ("relu_8"). The weights are downloaded to weightsDir if not there yet.
func NewPretrainedContent(distance Distance, weightsDir string) (*Content, error) {
	extractor, err := vgg19.New().UpTo(vgg19.DefaultTarget).PreTrained(weightsDir).Done()
	if err != nil {
		return nil, errors.WithMessage(err, "creating VGG19 extractor for the content loss")
	}
	return NewContent(distance, extractor), nil
}

// NewContentFromContext is like NewPretrainedContent, but the weights directory and the target layer are
// taken from the context hyperparameters ParamVGG19Dir and ParamContentLayer.
func NewContentFromContext(ctx *context.Context, distance Distance) (*Content, error) {
	weightsDir := context.GetParamOr(ctx, ParamVGG19Dir, DefaultVGG19Dir)
	target := context.GetParamOr(ctx, ParamContentLayer, vgg19.DefaultTarget)
	extractor, err := vgg19.New().UpTo(target).PreTrained(weightsDir).Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "creating VGG19 extractor up to %q for the content loss", target)
	}
	return NewContent(distance, extractor), nil
}

// Extractor used by the loss.
func (c *Content) Extractor() *vgg19.Extractor {
	return c.extractor
}

// Features returns the extractor features of the frames, shaped `[batch, channels, height, width]`.
func (c *Content) Features(ctx *context.Context, frames *Node) *Node {
	return c.extractor.BuildGraph(ctx, frames)
}

// Loss returns the distance between the features of the predicted and of the target frames.
//
// Both share the same (frozen) extractor variables, created in ctx on first use.
func (c *Content) Loss(ctx *context.Context, predicted, target *Node) *Node {
	return c.distance.Done(c.Features(ctx, predicted), c.Features(ctx, target))
}
