// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gomlx/framepred/pkg/losses"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// psnrDataFrame holds one row per frame with its PSNR and regularity score.
func psnrDataFrame(paths []string, psnr []float32) dataframe.DataFrame {
	widen := func(v float32) float64 { return float64(v) }
	return dataframe.New(
		series.New(paths, series.String, "frame"),
		series.New(xslices.Map(psnr, widen), series.Float, "psnr_db"),
		series.New(xslices.Map(losses.RegularityScores(psnr), widen), series.Float, "regularity"),
	)
}

func writeCSV(filePath string, df dataframe.DataFrame) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	if err = df.WriteCSV(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write CSV to %q", filePath)
	}
	return errors.Wrapf(f.Close(), "failed to close %q", filePath)
}

// plotRegularity saves a line plot of the regularity score per frame: dips are candidate anomalies.
func plotRegularity(filePath string, psnr []float32) error {
	scores := losses.RegularityScores(psnr)
	points := make(plotter.XYs, len(scores))
	for ii, score := range scores {
		points[ii].X = float64(ii)
		points[ii].Y = float64(score)
	}
	p := plot.New()
	p.Title.Text = "Regularity score"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "score"
	p.Y.Min = 0
	p.Y.Max = 1.05
	line, err := plotter.NewLine(points)
	if err != nil {
		return errors.Wrap(err, "failed to create regularity plot")
	}
	p.Add(line, plotter.NewGrid())
	return errors.Wrapf(p.Save(10*vg.Inch, 4*vg.Inch, filePath), "failed to save plot to %q", filePath)
}
