// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package vgg19 provides a frozen VGG19 feature extractor, truncated at a named layer, for perceptual losses.
//
// The architecture follows the VGG19 convolutional stack (see Features). The pre-trained weights are
// the ones published by Keras, trained on ImageNet, downloaded and unpacked on first use:
//
//	extractor, err := vgg19.New().UpTo("relu_8").PreTrained(weightsDir).Done()
//	...
//	features := extractor.BuildGraph(ctx, frames)  // frames shaped [batch, 3, height, width], in [-1, 1].
//
// The extractor variables are created non-trainable: gradients flow through the extractor to its input,
// but the weights are never updated.
package vgg19

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// DefaultTarget is the layer at which the network is truncated by default: the activation after the
	// 8th convolution.
	DefaultTarget = "relu_8"

	// Scope used for the extractor variables.
	Scope = "vgg19"
)

// Config for the feature extractor, created with New. Once configured, call Done to create the Extractor.
type Config struct {
	layers         []Layer
	target         string
	baseDir        string
	channelsConfig images.ChannelsAxisConfig
	maxValue       float64
}

// New creates a configuration for a VGG19 feature extractor truncated at DefaultTarget, taking
// channels-first images in the range [-1, 1], and with randomly initialized weights (see PreTrained).
func New() *Config {
	return &Config{
		layers:         Features(),
		target:         DefaultTarget,
		channelsConfig: images.ChannelsFirst,
	}
}

// UpTo sets the name of the last layer (included) of the extractor. See Truncate for the naming.
func (cfg *Config) UpTo(target string) *Config {
	cfg.target = target
	return cfg
}

// Layers replaces the architecture to truncate. The default is Features.
func (cfg *Config) Layers(layers []Layer) *Config {
	cfg.layers = layers
	return cfg
}

// PreTrained loads the pre-trained weights from baseDir, downloading and unpacking them there first if needed.
//
// If baseDir is empty (the default), the weights are randomly initialized: only useful for testing.
func (cfg *Config) PreTrained(baseDir string) *Config {
	cfg.baseDir = baseDir
	return cfg
}

// ChannelsAxis configures the layout of the images given to Extractor.BuildGraph. The features returned
// use the same layout. Default is images.ChannelsFirst.
func (cfg *Config) ChannelsAxis(channelsConfig images.ChannelsAxisConfig) *Config {
	cfg.channelsConfig = channelsConfig
	return cfg
}

// MaxValue configures the range of the images given to Extractor.BuildGraph to [0, maxValue]. If maxValue <= 0
// (the default), images are expected to be in the range [-1, 1]. See PreprocessImage.
func (cfg *Config) MaxValue(maxValue float64) *Config {
	cfg.maxValue = maxValue
	return cfg
}

// Done truncates the network and, if pre-trained, makes sure all the weights it needs are available.
func (cfg *Config) Done() (*Extractor, error) {
	layers, err := Truncate(cfg.layers, cfg.target)
	if err != nil {
		return nil, err
	}
	e := &Extractor{
		layers:         layers,
		channelsConfig: cfg.channelsConfig,
		maxValue:       cfg.maxValue,
	}
	if cfg.baseDir == "" {
		klog.Warningf("VGG19 extractor up to %q uses randomly initialized weights: use PreTrained() for meaningful features", cfg.target)
		return e, nil
	}

	if err = DownloadAndUnpackWeights(cfg.baseDir); err != nil {
		return nil, err
	}
	e.weightPaths = make(map[string]string)
	for _, layer := range layers {
		var candidates map[string][]string
		switch l := layer.Layer.(type) {
		case Conv2D:
			candidates = map[string][]string{
				"weights": kerasTensorNames(l.KerasName, []string{"W_1:0", "W:0"}, "kernel"),
				"biases":  kerasTensorNames(l.KerasName, []string{"b_1:0", "b:0"}, "bias"),
			}
		case BatchNorm:
			if l.KerasName == "" {
				continue
			}
			candidates = map[string][]string{
				"mean":     kerasTensorNames(l.KerasName, []string{"running_mean_1:0"}, "moving_mean"),
				"variance": kerasTensorNames(l.KerasName, []string{"running_std_1:0"}, "moving_variance"),
				"offset":   kerasTensorNames(l.KerasName, []string{"beta_1:0"}, "beta"),
				"scale":    kerasTensorNames(l.KerasName, []string{"gamma_1:0"}, "gamma"),
			}
		}
		for varName, names := range candidates {
			tensorPath, err := findTensorPath(cfg.baseDir, names)
			if err != nil {
				return nil, errors.WithMessagef(err, "weights for layer %s (%s)", layer.Name, layer.Layer)
			}
			e.weightPaths[layer.Name+"/"+varName] = tensorPath
		}
	}
	klog.V(1).Infof("VGG19 extractor up to %q: %d layers, %d pre-trained tensors", cfg.target, len(layers), len(e.weightPaths))
	return e, nil
}

// Extractor is a VGG19 feature extractor, truncated at a target layer. Create it with New.
//
// It is immutable and can be used to build any number of graphs: the variables are created in the
// context the first time and reused after that.
type Extractor struct {
	layers         []NamedLayer
	channelsConfig images.ChannelsAxisConfig
	maxValue       float64

	// weightPaths maps "<layer name>/<variable name>" to the file with the pre-trained tensor.
	// It is nil if not pre-trained.
	weightPaths map[string]string
}

// Layers returns the named layers of the truncated network. They must not be modified.
func (e *Extractor) Layers() []NamedLayer {
	return e.layers
}

// PreTrained returns whether the extractor uses pre-trained weights.
func (e *Extractor) PreTrained() bool {
	return e.weightPaths != nil
}

// BuildGraph returns the features of the images at the target layer.
//
// For images shaped `[batch, 3, height, width]` (channels-first) and the default target "relu_8", the
// features are shaped `[batch, 256, height/4, width/4]`.
//
// The variables are created under the Scope sub-scope of ctx, unchecked so the same variables are
// shared by every call.
func (e *Extractor) BuildGraph(ctx *context.Context, image *Node) *Node {
	ctx = ctx.In(Scope).Checked(false)
	x := PreprocessImage(image, e.maxValue, e.channelsConfig)
	if e.channelsConfig == images.ChannelsFirst {
		x = TransposeAllDims(x, 0, 2, 3, 1)
	}
	for _, layer := range e.layers {
		layerCtx := ctx.In(layer.Name)
		switch l := layer.Layer.(type) {
		case Conv2D:
			x = e.conv2D(layerCtx, layer.Name, l, x)
		case ReLU:
			x = activations.Relu(x)
		case MaxPool2D:
			x = MaxPool(x).ChannelsAxis(images.ChannelsLast).Window(l.Window).Strides(l.Stride).NoPadding().Done()
		case BatchNorm:
			x = e.batchNorm(layerCtx, layer.Name, l, x)
		default:
			exceptions.Panicf("vgg19: unrecognized layer %T", layer.Layer)
		}
	}
	if e.channelsConfig == images.ChannelsFirst {
		x = TransposeAllDims(x, 0, 3, 1, 2)
	}
	return x
}

// conv2D with "same" padding and bias, on channels-last x.
func (e *Extractor) conv2D(ctx *context.Context, layerName string, conv Conv2D, x *Node) *Node {
	inputChannels := x.Shape().Dimensions[3]
	kernel := e.frozenVariable(ctx, layerName, "weights",
		shapes.Make(dtypes.Float32, conv.KernelSize, conv.KernelSize, inputChannels, conv.Filters), nil)
	biases := e.frozenVariable(ctx, layerName, "biases", shapes.Make(dtypes.Float32, conv.Filters), nil)
	g := x.Graph()
	x = Convolve(x, castTo(kernel.ValueGraph(g), x.DType())).
		ChannelsAxis(images.ChannelsLast).
		PadSame().
		Done()
	return Add(x, Reshape(castTo(biases.ValueGraph(g), x.DType()), 1, 1, 1, conv.Filters))
}

// batchNorm in inference mode, on channels-last x.
func (e *Extractor) batchNorm(ctx *context.Context, layerName string, bn BatchNorm, x *Node) *Node {
	channels := x.Shape().Dimensions[3]
	shape := shapes.Make(dtypes.Float32, channels)
	zeros, ones := make([]float32, channels), make([]float32, channels)
	for ii := range ones {
		ones[ii] = 1
	}
	g := x.Graph()
	get := func(name string, identity []float32) *Node {
		v := e.frozenVariable(ctx, layerName, name, shape, identity)
		return Reshape(castTo(v.ValueGraph(g), x.DType()), 1, 1, 1, channels)
	}
	mean, variance := get("mean", zeros), get("variance", ones)
	offset, scale := get("offset", zeros), get("scale", ones)
	x = Div(Sub(x, mean), Sqrt(AddScalar(variance, bn.Epsilon)))
	return Add(Mul(x, scale), offset)
}

// frozenVariable returns the non-trainable variable name in ctx, creating it if needed.
//
// If pre-trained, its value is loaded from the unpacked weights. Otherwise, it is set to identity if given,
// or else randomly initialized with the context initializer.
func (e *Extractor) frozenVariable(ctx *context.Context, layerName, name string, shape shapes.Shape, identity []float32) *context.Variable {
	if v := ctx.InspectVariable(ctx.Scope(), name); v != nil {
		return v.SetTrainable(false)
	}
	var v *context.Variable
	if tensorPath, found := e.weightPaths[layerName+"/"+name]; found {
		value, err := tensors.Load(tensorPath)
		if err != nil {
			panic(errors.WithMessagef(err, "loading VGG19 weights for %s/%s", layerName, name))
		}
		if !value.Shape().Equal(shape) {
			exceptions.Panicf("VGG19 weights for %s/%s in %q shaped %s, but expected %s",
				layerName, name, tensorPath, value.Shape(), shape)
		}
		v = ctx.VariableWithValue(name, value)
	} else if identity != nil {
		v = ctx.VariableWithValue(name, identity)
	} else {
		v = ctx.VariableWithShape(name, shape)
	}
	return v.SetTrainable(false)
}

func castTo(x *Node, dtype dtypes.DType) *Node {
	if x.DType() == dtype {
		return x
	}
	return ConvertDType(x, dtype)
}
