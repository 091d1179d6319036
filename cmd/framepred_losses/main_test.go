// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/framepred/pkg/losses"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFrame saves a width x height PNG filled with c.
func writeFrame(t *testing.T, name string, width, height int, c color.Color) string {
	img := imaging.New(width, height, c)
	framePath := filepath.Join(t.TempDir(), name)
	require.NoError(t, imaging.Save(img, framePath))
	return framePath
}

func TestLoadFrames(t *testing.T) {
	black := writeFrame(t, "black.png", 4, 4, color.NRGBA{A: 255})
	white := writeFrame(t, "white.png", 4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	wide := writeFrame(t, "wide.png", 6, 4, color.NRGBA{A: 255})

	frames, err := loadFrames([]string{black, white}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 4, 3}, frames.Shape().Dimensions)
	values := frames.Value().([][][][]float32)
	assert.Equal(t, []float32{0, 0, 0}, values[0][3][3])
	assert.Equal(t, []float32{1, 1, 1}, values[1][0][0])

	frames, err = loadFrames([]string{black, wide}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 3}, frames.Shape().Dimensions)

	_, err = loadFrames([]string{black, wide}, 0)
	require.ErrorContains(t, err, "use -size")
	_, err = loadFrames([]string{filepath.Join(t.TempDir(), "missing.png")}, 0)
	require.Error(t, err)
}

func TestComputeReport(t *testing.T) {
	predictedPath := writeFrame(t, "predicted.png", 4, 4, color.NRGBA{A: 255})
	targetPath := writeFrame(t, "target.png", 4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	predicted, err := loadFrames([]string{predictedPath}, 0)
	require.NoError(t, err)
	target, err := loadFrames([]string{targetPath}, 0)
	require.NoError(t, err)

	ctx := losses.CreateDefaultContext()
	objective := losses.NewObjective(3)
	r := computeReport(graphtest.BuildTestBackend(), ctx, objective, predicted, target, nil, nil)

	// Frames are -1 and +1 everywhere: the squared difference is 4, the gradient maps match (only the
	// trailing zero padding differs from the frames, by the same amount) and the PSNR with range 2 is 0 dB.
	require.Len(t, r.Terms, 2)
	assert.Equal(t, "intensity", r.Terms[0].Name)
	assert.Equal(t, "gradient", r.Terms[1].Name)
	assert.InDelta(t, 4.0, r.Values[0], 1e-4)
	assert.InDelta(t, 0.0, r.Values[1], 1e-4)
	assert.InDelta(t, 4.0, r.Total, 1e-4)
	require.Len(t, r.PSNR, 1)
	assert.InDelta(t, 0.0, float64(r.PSNR[0]), 1e-3)

	// Same frames: no loss, infinite PSNR.
	r = computeReport(graphtest.BuildTestBackend(), ctx, objective, target, target, nil, nil)
	assert.InDelta(t, 0.0, r.Total, 1e-6)
	assert.True(t, math.IsInf(float64(r.PSNR[0]), 1))
}
