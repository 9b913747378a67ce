package monitor

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot file names written by GeneratePlots.
const (
	TrajectoryPlot  = "trajectory.png"
	UncertaintyPlot = "uncertainty.png"
	WheelsPlot      = "wheels.png"
)

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("no estimates recorded")

var (
	pathColor  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	poseColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	leftColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	rightColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// GeneratePlots writes the trajectory, uncertainty and wheel-speed plots
// into outputDir, creating it if needed.
func (r *Recorder) GeneratePlots(outputDir string) error {
	samples := r.Samples()
	path := r.Path()

	var poses, traces, left, right plotter.XYs
	var start float64
	started := false
	for _, s := range samples {
		if !s.Ready {
			continue
		}
		ts := float64(s.Time.UnixNano()) / 1e9
		if !started {
			start, started = ts, true
		}
		poses = append(poses, plotter.XY{X: s.Pose.X, Y: s.Pose.Y})
		traces = append(traces, plotter.XY{X: ts - start, Y: s.Trace})
		if s.HasCommand {
			left = append(left, plotter.XY{X: ts - start, Y: s.Left})
			right = append(right, plotter.XY{X: ts - start, Y: s.Right})
		}
	}
	if len(poses) == 0 {
		return ErrNoSamples
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	// Trajectory against the reference path.
	pTraj := plot.New()
	pTraj.Title.Text = "Estimated trajectory"
	pTraj.X.Label.Text = "x (m)"
	pTraj.Y.Label.Text = "y (m)"
	pTraj.Add(plotter.NewGrid())

	if len(path) > 0 {
		ref := make(plotter.XYs, len(path))
		for i, wp := range path {
			ref[i] = plotter.XY{X: wp.X, Y: wp.Y}
		}
		refLine, refPoints, err := plotter.NewLinePoints(ref)
		if err != nil {
			return err
		}
		refLine.Color = pathColor
		refLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		refPoints.Color = pathColor
		pTraj.Add(refLine, refPoints)
		pTraj.Legend.Add("path", refLine, refPoints)
	}

	trajLine, err := plotter.NewLine(poses)
	if err != nil {
		return err
	}
	trajLine.Color = poseColor
	trajLine.Width = vg.Points(1.5)
	pTraj.Add(trajLine)
	pTraj.Legend.Add("estimate", trajLine)
	pTraj.Legend.Top = true

	if err := pTraj.Save(8*vg.Inch, 8*vg.Inch, filepath.Join(outputDir, TrajectoryPlot)); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}

	// Covariance trace over time.
	pCov := plot.New()
	pCov.Title.Text = "Pose uncertainty"
	pCov.X.Label.Text = "Time (s)"
	pCov.Y.Label.Text = "trace(P)"
	covLine, err := plotter.NewLine(traces)
	if err != nil {
		return err
	}
	covLine.Color = poseColor
	pCov.Add(plotter.NewGrid(), covLine)

	if err := pCov.Save(10*vg.Inch, 4*vg.Inch, filepath.Join(outputDir, UncertaintyPlot)); err != nil {
		return fmt.Errorf("save uncertainty plot: %w", err)
	}

	// Wheel commands, when any were computed.
	if len(left) == 0 {
		return nil
	}
	pWheels := plot.New()
	pWheels.Title.Text = "Wheel commands"
	pWheels.X.Label.Text = "Time (s)"
	pWheels.Y.Label.Text = "Speed (m/s)"
	pWheels.Add(plotter.NewGrid())
	for _, series := range []struct {
		name string
		xys  plotter.XYs
		c    color.Color
	}{
		{"left", left, leftColor},
		{"right", right, rightColor},
	} {
		line, err := plotter.NewLine(series.xys)
		if err != nil {
			return err
		}
		line.Color = series.c
		line.StepStyle = plotter.PreStep
		pWheels.Add(line)
		pWheels.Legend.Add(series.name, line)
	}
	pWheels.Legend.Top = true
	pWheels.Legend.Left = false
	pWheels.Legend.XOffs = -10
	pWheels.Legend.YOffs = -10

	if err := pWheels.Save(10*vg.Inch, 4*vg.Inch, filepath.Join(outputDir, WheelsPlot)); err != nil {
		return fmt.Errorf("save wheels plot: %w", err)
	}
	return nil
}
