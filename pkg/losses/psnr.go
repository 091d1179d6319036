// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/support/xslices"
)

// PSNR returns the peak signal-to-noise ratio, in dB, of each generated frame against its ground truth,
// shaped `[batch]`: `10 * log10(dataRange^2 / mse)`, where mse is the mean squared error of the example.
//
// dataRange is the difference between the maximum and minimum possible pixel values: 2 for frames in [-1, 1].
// Identical frames have an infinite PSNR.
//
// In anomaly detection, a low PSNR of the predicted frame signals an abnormal event.
func PSNR(genFrames, gtFrames *Node, dataRange float64) *Node {
	if dataRange <= 0 {
		exceptions.Panicf("losses.PSNR requires dataRange > 0, got %g", dataRange)
	}
	diff := Sub(genFrames, gtFrames)
	if diff.Rank() < 2 {
		exceptions.Panicf("losses.PSNR requires frames with a batch axis, got shape %s", diff.Shape())
	}
	mse := ReduceMean(Square(diff), xslices.Iota(1, diff.Rank()-1)...)
	g := diff.Graph()
	logRatio := Sub(Scalar(g, mse.DType(), 2*math.Log(dataRange)), Log(mse))
	return MulScalar(logRatio, 10/math.Ln10)
}

// PSNRMetric returns a metric with the mean PSNR of the predictions (predictions[0]) against the
// labels (labels[0]), to be used with train.Trainer.
func PSNRMetric(dataRange float64) metrics.Interface {
	return metrics.NewMeanMetric("PSNR", "psnr", "psnr",
		func(ctx *context.Context, labels, predictions []*Node) *Node {
			return ReduceAllMean(PSNR(predictions[0], labels[0], dataRange))
		},
		func(value *tensors.Tensor) string {
			return fmt.Sprintf("%.2f dB", value.Value())
		})
}

// RegularityScores min-max normalizes the PSNR of a sequence of frames to [0, 1]: low scores point to
// frames that were hard to predict, i.e. likely abnormal events.
//
// The minimum and maximum are taken over the finite values only. Perfectly predicted frames (PSNR +Inf)
// score 1, and NaN values score 0. If all finite PSNR values are equal (or there is a single frame), they
// all score 1.
func RegularityScores(psnr []float32) []float32 {
	scores := make([]float32, len(psnr))
	minPSNR, maxPSNR := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range psnr {
		if isFinite(v) {
			minPSNR, maxPSNR = min(minPSNR, v), max(maxPSNR, v)
		}
	}
	for ii, v := range psnr {
		switch {
		case math.IsInf(float64(v), 1):
			scores[ii] = 1
		case !isFinite(v):
			scores[ii] = 0
		case maxPSNR == minPSNR:
			scores[ii] = 1
		default:
			scores[ii] = (v - minPSNR) / (maxPSNR - minPSNR)
		}
	}
	return scores
}

func isFinite(v float32) bool {
	return !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v))
}
