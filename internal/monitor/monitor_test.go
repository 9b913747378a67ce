package monitor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/intnav/internal/estimator"
	"github.com/banshee-data/intnav/internal/geom"
	"github.com/banshee-data/intnav/internal/loop"
	"github.com/banshee-data/intnav/internal/navcore"
	"github.com/banshee-data/intnav/internal/pursuit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var t0 = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func recordRun(t *testing.T) *Recorder {
	t.Helper()
	rec := NewRecorder(geom.Path{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}})
	ctx := context.Background()

	require.NoError(t, rec.Publish(ctx, loop.Tick{Seq: 1, Time: t0, Err: navcore.ErrUninitializedEstimator}))
	for i := 2; i <= 6; i++ {
		x := 0.05 * float64(i)
		cov := mat.NewSymDense(3, []float64{0.01 * float64(i), 0, 0, 0, 0.01, 0, 0, 0, 0.02})
		require.NoError(t, rec.Publish(ctx, loop.Tick{
			Seq:        uint64(i),
			Time:       t0.Add(time.Duration(i) * 100 * time.Millisecond),
			Estimate:   &estimator.Estimate{Pose: geom.Pose{X: x, Y: 0.01}, Covariance: cov},
			Command:    &pursuit.Command{Left: 0.1 + 0.01*float64(i), Right: 0.1},
			Dispatched: i%2 == 0,
		}))
	}
	return rec
}

func TestRecorderPublish(t *testing.T) {
	t.Parallel()
	rec := recordRun(t)
	samples := rec.Samples()
	require.Len(t, samples, 6)

	assert.True(t, samples[0].Refused)
	assert.False(t, samples[0].Ready)

	assert.True(t, samples[1].Ready)
	assert.True(t, samples[1].HasCommand)
	assert.True(t, samples[1].Dispatched)
	assert.InDelta(t, 0.05, samples[1].Trace, 1e-12)
	assert.Equal(t, 0.12, samples[1].Left)
}

func TestGeneratePlots(t *testing.T) {
	t.Parallel()
	rec := recordRun(t)
	dir := filepath.Join(t.TempDir(), "plots")

	require.NoError(t, rec.GeneratePlots(dir))
	for _, name := range []string{TrajectoryPlot, UncertaintyPlot, WheelsPlot} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestGeneratePlotsWithoutEstimates(t *testing.T) {
	t.Parallel()
	rec := NewRecorder(nil)
	require.NoError(t, rec.Publish(context.Background(), loop.Tick{Seq: 1, Err: navcore.ErrUninitializedEstimator}))
	assert.ErrorIs(t, rec.GeneratePlots(t.TempDir()), ErrNoSamples)
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()
	rec := recordRun(t)

	var buf bytes.Buffer
	require.NoError(t, rec.RenderHTML(&buf))
	html := buf.String()
	assert.Contains(t, html, "Trajectory")
	assert.Contains(t, html, "Pose uncertainty")
	assert.Contains(t, html, "estimate")

	assert.ErrorIs(t, NewRecorder(nil).RenderHTML(&buf), ErrNoSamples)
}
