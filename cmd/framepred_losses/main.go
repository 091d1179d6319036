// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// framepred_losses compares predicted frames with their ground truth and reports each loss term of the
// generator objective, its weighted total and the PSNR of each frame.
//
// Example:
//
//	framepred_losses -predicted=pred_0.png,pred_1.png -target=gt_0.png,gt_1.png -perceptual \
//		-set="content_loss_weight=1;style_loss_weight=0.1"
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/framepred/pkg/losses"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagPredicted = flag.String("predicted", "", "Comma-separated list of predicted frames (PNG, JPEG, ...).")
	flagTarget    = flag.String("target", "", "Comma-separated list of ground truth frames, one per predicted frame.")
	flagSize      = flag.Int("size", 256, "Frames are resized to size x size before comparing. "+
		"If 0, frames are used as they are and must all have the same dimensions.")
	flagBackend = flag.String("backend", "", "Backend configuration (e.g. \"xla:cuda\"). "+
		"If empty, GOMLX_BACKEND or the default backend is used.")
	flagPerceptual = flag.Bool("perceptual", false, "Include the VGG19 content and style losses. "+
		"The weights are downloaded to the directory set by the vgg19_dir hyperparameter on first use.")
	flagDistance = flag.String("distance", "l2", "Distance used by the perceptual losses: l1 or l2.")

	flagCSV   = flag.String("csv", "", "If set, saves the PSNR and regularity score of each frame to this CSV file.")
	flagPlot  = flag.String("plot", "", "If set, saves a plot of the regularity score per frame to this file (.png, .svg, ...).")
	flagPlain = flag.Bool("plain", false, "Render tables without colors.")

	flagFlowPredicted = flag.String("flow_predicted", "", "Optional GoMLX tensor file with the optical flows "+
		"of the predicted frames, shaped [batch, 2, height, width].")
	flagFlowTarget = flag.String("flow_target", "", "Optional GoMLX tensor file with the optical flows "+
		"of the ground truth frames, shaped [batch, 2, height, width].")
)

func main() {
	ctx := losses.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "set")
	klog.InitFlags(nil)
	flag.Parse()
	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))
	if len(paramsSet) > 0 {
		klog.V(1).Infof("Hyperparameters set: %s", commandline.SprintModifiedContextSettings(ctx, paramsSet))
	}

	if *flagPlain {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	if *flagPredicted == "" || *flagTarget == "" {
		klog.Errorf("Both -predicted and -target must be given. See 'framepred_losses -help'.")
		os.Exit(1)
	}
	predictedPaths := strings.Split(*flagPredicted, ",")
	targetPaths := strings.Split(*flagTarget, ",")
	if len(predictedPaths) != len(targetPaths) {
		klog.Errorf("Got %d predicted frames but %d target frames.", len(predictedPaths), len(targetPaths))
		os.Exit(1)
	}

	var backend backends.Backend
	if *flagBackend != "" {
		backend = must.M1(backends.NewWithConfig(*flagBackend))
	} else {
		backend = backends.MustNew()
	}
	klog.V(1).Infof("Backend: %s", backend.Description())

	predicted, err := loadFrames(predictedPaths, *flagSize)
	if err != nil {
		klog.Fatalf("Failed to load predicted frames: %+v", err)
	}
	target, err := loadFrames(targetPaths, *flagSize)
	if err != nil {
		klog.Fatalf("Failed to load target frames: %+v", err)
	}

	var genFlows, gtFlows *tensors.Tensor
	if *flagFlowPredicted != "" || *flagFlowTarget != "" {
		if *flagFlowPredicted == "" || *flagFlowTarget == "" {
			klog.Fatalf("Both -flow_predicted and -flow_target must be given to include the flow loss.")
		}
		genFlows = must.M1(tensors.Load(*flagFlowPredicted))
		gtFlows = must.M1(tensors.Load(*flagFlowTarget))
	}

	objective := losses.NewObjective(predicted.Shape().Dimensions[3])
	if *flagPerceptual {
		content, err := losses.NewContentFromContext(ctx, parseDistance(*flagDistance))
		if err != nil {
			klog.Fatalf("Failed to create the content loss: %+v", err)
		}
		objective.WithContent(content).WithStyle(losses.NewStyle(parseDistance(*flagDistance)))
	}
	report(backend, ctx, objective, predictedPaths, predicted, target, genFlows, gtFlows)
}

func parseDistance(name string) losses.Distance {
	switch strings.ToLower(name) {
	case "l1":
		return losses.L1Mean
	case "l2":
		return losses.L2Mean
	}
	klog.Fatalf("Unknown -distance=%q, valid values are l1 or l2.", name)
	return losses.Distance{}
}

// loadFrames reads the images and converts them to a tensor shaped [batch, height, width, channels] with values
// in [0, 1].
func loadFrames(paths []string, size int) (*tensors.Tensor, error) {
	frames := make([]image.Image, 0, len(paths))
	for _, framePath := range paths {
		img, err := imaging.Open(framePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read frame %q", framePath)
		}
		if size > 0 {
			img = imaging.Resize(img, size, size, imaging.Lanczos)
		}
		if len(frames) > 0 && img.Bounds().Size() != frames[0].Bounds().Size() {
			return nil, errors.Errorf("frame %q is %s, but %q is %s: use -size to resize them",
				framePath, img.Bounds().Size(), paths[0], frames[0].Bounds().Size())
		}
		frames = append(frames, img)
	}
	return images.ToTensor(dtypes.Float32).Batch(frames), nil
}

// toFrames converts images shaped [batch, height, width, channels] in [0, 1] to frames shaped
// [batch, channels, height, width] in [-1, 1].
func toFrames(x *Node) *Node {
	return AddScalar(MulScalar(TransposeAllDims(x, 0, 3, 1, 2), 2.0), -1.0)
}

// lossReport holds the values of one evaluation of the objective.
type lossReport struct {
	Terms  []losses.Term
	Values []float64 // Values[i] is the unweighted value of Terms[i].
	Total  float64
	PSNR   []float32 // PSNR of each frame, in dB.
}

// computeReport evaluates the objective and the PSNR of the frames, given as images shaped
// [batch, height, width, channels] in [0, 1]. Flows are optional.
func computeReport(backend backends.Backend, ctx *context.Context, objective *losses.Objective,
	predicted, target, genFlows, gtFlows *tensors.Tensor) *lossReport {
	r := &lossReport{}
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, predicted, target *Node) []*Node {
		g := predicted.Graph()
		f := losses.Frames{GenFrames: toFrames(predicted), GTFrames: toFrames(target)}
		if genFlows != nil {
			f.GenFlows, f.GTFlows = ConstTensor(g, genFlows), ConstTensor(g, gtFlows)
		}
		r.Terms = objective.Terms(ctx, f)
		outputs := make([]*Node, 0, len(r.Terms)+2)
		for _, term := range r.Terms {
			outputs = append(outputs, term.Value)
		}
		return append(outputs, objective.Done(ctx, f), losses.PSNR(f.GenFrames, f.GTFrames, 2))
	})
	results := exec.MustExec(predicted, target)
	numTerms := len(r.Terms)
	r.Values = make([]float64, numTerms)
	for ii := range numTerms {
		r.Values[ii] = toFloat64(results[ii])
	}
	r.Total = toFloat64(results[numTerms])
	r.PSNR = results[numTerms+1].Value().([]float32)
	return r
}

func report(backend backends.Backend, ctx *context.Context, objective *losses.Objective, paths []string,
	predicted, target, genFlows, gtFlows *tensors.Tensor) {
	r := computeReport(backend, ctx, objective, predicted, target, genFlows, gtFlows)

	dims := predicted.Shape().Dimensions
	fmt.Println(titleStyle.Render("Frames"))
	table := newPlainTable(false)
	table.Row("# frames", humanize.Comma(int64(dims[0])))
	table.Row("size", fmt.Sprintf("%d x %d x %d", dims[1], dims[2], dims[3]))
	table.Row("# bytes", humanize.Bytes(uint64(predicted.Shape().Memory())))
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("Losses"))
	table = newPlainTable(true)
	table.Row("Term", "Weight", "Value", "Weighted")
	for ii, term := range r.Terms {
		value := r.Values[ii]
		table.Row(term.Name, fmt.Sprintf("%g", term.Weight), fmt.Sprintf("%.6f", value), fmt.Sprintf("%.6f", term.Weight*value))
	}
	table.Row("total", "", "", fmt.Sprintf("%.6f", r.Total))
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("PSNR"))
	table = newPlainTable(true)
	table.Row("Frame", "PSNR (dB)")
	for ii, framePath := range paths {
		table.Row(framePath, fmt.Sprintf("%.2f", r.PSNR[ii]))
	}
	fmt.Println(table.Render())

	if *flagCSV != "" {
		must.M(writeCSV(*flagCSV, psnrDataFrame(paths, r.PSNR)))
		klog.Infof("PSNR per frame saved to %s", *flagCSV)
	}
	if *flagPlot != "" {
		must.M(plotRegularity(*flagPlot, r.PSNR))
		klog.Infof("Regularity plot saved to %s", *flagPlot)
	}
}

func toFloat64(t *tensors.Tensor) float64 {
	switch v := t.Value().(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	klog.Fatalf("unexpected loss value %s", t)
	return 0
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = evenRowStyle
			} else {
				s = oddRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}
