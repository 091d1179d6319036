// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vgg19

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind of a layer, as far as truncating the network goes.
//
// Every layer of the feature stack must map to one of these, see KindOf.
type Kind int

const (
	KindConvolution Kind = iota
	KindActivation
	KindPooling
	KindNormalization
)

//go:generate go tool enumer -type Kind -trimprefix=Kind -transform=snake -output=gen_kind_enumer.go layers.go

// Prefix used to name the layers of the kind: "conv", "relu", "pool" or "bn".
func (k Kind) Prefix() string {
	switch k {
	case KindConvolution:
		return "conv"
	case KindActivation:
		return "relu"
	case KindPooling:
		return "pool"
	case KindNormalization:
		return "bn"
	}
	return k.String()
}

// Layer is one of the layer types defined in this package: Conv2D, ReLU, MaxPool2D, BatchNorm, Dense or Dropout.
type Layer interface {
	fmt.Stringer
}

// Conv2D is a 2D convolution with "same" padding, stride 1 and a bias.
type Conv2D struct {
	// KerasName is the name of the layer in the Keras weights file, e.g.: "block1_conv1".
	KerasName string

	Filters, KernelSize int
}

func (l Conv2D) String() string {
	return fmt.Sprintf("Conv2D(%s, filters=%d, kernel=%dx%d)", l.KerasName, l.Filters, l.KernelSize, l.KernelSize)
}

// ReLU activation.
type ReLU struct{}

func (ReLU) String() string { return "ReLU" }

// MaxPool2D is a 2D max-pooling without padding.
type MaxPool2D struct {
	Window, Stride int
}

func (l MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(window=%d, stride=%d)", l.Window, l.Stride)
}

// BatchNorm is a batch normalization in inference mode.
type BatchNorm struct {
	// KerasName is the name of the layer in the Keras weights file. If empty, the normalization
	// is initialized as the identity.
	KerasName string

	Epsilon float64
}

func (l BatchNorm) String() string {
	return fmt.Sprintf("BatchNorm(%s, epsilon=%g)", l.KerasName, l.Epsilon)
}

// Dense is a fully connected layer, only used in the classification top.
type Dense struct {
	Units int
}

func (l Dense) String() string { return fmt.Sprintf("Dense(%d)", l.Units) }

// Dropout is only used in the classification top.
type Dropout struct {
	Rate float64
}

func (l Dropout) String() string { return fmt.Sprintf("Dropout(%g)", l.Rate) }

// KindOf returns the Kind of the layer. Layers that can't be part of the feature stack (Dense, Dropout
// or any unknown implementation of Layer) return an error naming the layer type.
func KindOf(layer Layer) (Kind, error) {
	switch layer.(type) {
	case Conv2D:
		return KindConvolution, nil
	case ReLU:
		return KindActivation, nil
	case MaxPool2D:
		return KindPooling, nil
	case BatchNorm:
		return KindNormalization, nil
	}
	return 0, errors.Errorf("unrecognized layer: %T", layer)
}

var (
	blockNumConvs   = []int{2, 2, 4, 4, 4}
	blockNumFilters = []int{64, 128, 256, 512, 512}
)

// Features returns the layers of the VGG19 convolutional feature stack, in order: 5 blocks of 3x3
// convolutions each followed by a ReLU, and a 2x2 max-pooling closing each block.
func Features() []Layer {
	var layers []Layer
	for block, numConvs := range blockNumConvs {
		for conv := range numConvs {
			layers = append(layers,
				Conv2D{
					KerasName:  fmt.Sprintf("block%d_conv%d", block+1, conv+1),
					Filters:    blockNumFilters[block],
					KernelSize: 3,
				},
				ReLU{})
		}
		layers = append(layers, MaxPool2D{Window: 2, Stride: 2})
	}
	return layers
}

// Classifier returns the layers of the VGG19 classification top. They can't be used for feature extraction.
func Classifier() []Layer {
	return []Layer{
		Dense{Units: 4096}, ReLU{}, Dropout{Rate: 0.5},
		Dense{Units: 4096}, ReLU{}, Dropout{Rate: 0.5},
		Dense{Units: 1000},
	}
}

// NamedLayer is a layer with the name given by Truncate.
type NamedLayer struct {
	Name  string
	Kind  Kind
	Layer Layer
}

// Truncate walks the layers in order, naming each one "<prefix>_<i>" (see Kind.Prefix), where i is the number
// of convolutions seen so far, and returns the layers up to and including the first one named target.
//
// So with Features, "relu_8" is the activation after the 8th convolution ("block3_conv4").
//
// It returns an error if a layer can't be classified by KindOf before the target is reached, or if the target
// is never reached.
func Truncate(layers []Layer, target string) ([]NamedLayer, error) {
	named := make([]NamedLayer, 0, len(layers))
	var numConvs int
	for _, layer := range layers {
		kind, err := KindOf(layer)
		if err != nil {
			return nil, errors.WithMessagef(err, "while truncating network at %q", target)
		}
		if kind == KindConvolution {
			numConvs++
		}
		name := fmt.Sprintf("%s_%d", kind.Prefix(), numConvs)
		named = append(named, NamedLayer{Name: name, Kind: kind, Layer: layer})
		if name == target {
			return named, nil
		}
	}
	return nil, errors.Errorf("layer %q not found while truncating network with %d layers", target, len(layers))
}
