// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"testing"

	"github.com/gomlx/framepred/pkg/models/vgg19"
	_ "github.com/gomlx/gomlx/backends/default"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContent(t *testing.T) *Content {
	extractor, err := vgg19.New().Done()
	require.NoError(t, err)
	return NewContent(L2Mean, extractor)
}

func TestContent(t *testing.T) {
	content := newTestContent(t)
	a := randomFrames(10, 2, 3, 16, 16)
	b := randomFrames(11, 2, 3, 16, 16)
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	outputs := context.MustNewExec(backend, ctx, func(ctx *context.Context, a, b *Node) (same, different, features *Node) {
		same = content.Loss(ctx, a, a)
		different = content.Loss(ctx, a, b)
		features = content.Features(ctx, a)
		return
	}).MustExec(a, b)
	assert.Equal(t, float32(0), outputs[0].Value())
	assert.Greater(t, outputs[1].Value().(float32), float32(0))
	assert.Equal(t, []int{2, 256, 4, 4}, outputs[2].Shape().Dimensions)

	// Predicted and target share the same frozen variables.
	var numVars int
	for v := range ctx.IterVariables() {
		numVars++
		assert.False(t, v.Trainable)
	}
	assert.Equal(t, 16, numVars)
}

func TestObjective(t *testing.T) {
	ctx := CreateDefaultContext()
	ctx.SetParam(ParamIntensityWeight, 3.0)
	objective := NewObjective(1)
	backend := graphtest.BuildTestBackend()

	var names []string
	outputs := context.MustNewExec(backend, ctx, func(ctx *context.Context, gt, fake *Node) (total, withFlows *Node) {
		gen := ZerosLike(gt)
		frames := Frames{GenFrames: gen, GTFrames: gt, FakeScores: fake}
		names = names[:0]
		for _, term := range objective.Terms(ctx, frames) {
			names = append(names, term.Name)
		}
		total = objective.Done(ctx, frames)
		frames.GenFlows, frames.GTFlows = gen, gt
		withFlows = objective.Done(ctx, frames)
		return
	}).MustExec([][][][]float32{{{{1, 2}, {3, 5}}}}, []float32{0, 0})
	assert.Equal(t, []string{"intensity", "gradient", "adversarial"}, names)

	intensity, gradient, flow, adversarial := 39.0/4, 23.0/4, 11.0/4, 0.5
	want := 3*intensity + gradient + 0.05*adversarial
	assert.InDelta(t, want, float64(outputs[0].Value().(float32)), 1e-3)
	assert.InDelta(t, want+2*flow, float64(outputs[1].Value().(float32)), 1e-3)
}

func TestObjectivePerceptual(t *testing.T) {
	ctx := CreateDefaultContext()
	ctx.SetParam(ParamContentWeight, 1.0)
	ctx.SetParam(ParamStyleWeight, 1.0)
	objective := NewObjective(3).WithContent(newTestContent(t)).WithStyle(NewStyle(L1Mean))
	backend := graphtest.BuildTestBackend()

	var names []string
	total := context.MustNewExec(backend, ctx, func(ctx *context.Context, frames *Node) *Node {
		f := Frames{GenFrames: frames, GTFrames: frames}
		names = names[:0]
		for _, term := range objective.Terms(ctx, f) {
			names = append(names, term.Name)
		}
		return objective.Done(ctx, f)
	}).MustExec1(randomFrames(12, 1, 3, 8, 8))
	assert.Equal(t, []string{"intensity", "gradient", "content", "style"}, names)
	assert.Equal(t, float32(0), total.Value())

	styleOnly := NewObjective(3).WithStyle(NewStyle(L1Mean))
	require.Panics(t, func() {
		_ = context.MustNewExec(backend, context.New(), func(ctx *context.Context, frames *Node) *Node {
			return styleOnly.Done(ctx, Frames{GenFrames: frames, GTFrames: frames})
		}).MustExec1(randomFrames(13, 1, 3, 8, 8))
	})
}
