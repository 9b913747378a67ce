package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/intnav/internal/estimator"
	"github.com/banshee-data/intnav/internal/geom"
	"github.com/banshee-data/intnav/internal/loop"
	"github.com/banshee-data/intnav/internal/monitoring"
	"github.com/banshee-data/intnav/internal/navcore"
	"github.com/banshee-data/intnav/internal/pursuit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func init() {
	monitoring.SetLogger(nil)
}

var t0 = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testPath() geom.Path {
	return geom.Path{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
}

func readyTick(seq uint64, pose geom.Pose, cmd *pursuit.Command, dispatched bool) loop.Tick {
	cov := mat.NewSymDense(3, []float64{
		0.01, 0.001, 0,
		0.001, 0.02, 0,
		0, 0, 0.03,
	})
	return loop.Tick{
		Seq:        seq,
		Time:       t0.Add(time.Duration(seq) * 100 * time.Millisecond),
		Report:     estimator.Report{State: estimator.Ready, Predicted: true, Fused: 2},
		Estimate:   &estimator.Estimate{Pose: pose, Covariance: cov, Time: t0},
		Command:    cmd,
		Dispatched: dispatched,
	}
}

func TestOpenMigratesToLatest(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestRunLogRoundTrip(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	params := pursuit.Params{WheelBaseline: 0.1, Speed: 0.1, Lookahead: 0.1, PredictionStep: 0.5, MaxCurvature: 20}
	log, err := db.StartRun(ctx, t0, "replay:test.jsonl", testPath(), params)
	require.NoError(t, err)
	require.NotEmpty(t, log.RunID())

	refused := loop.Tick{
		Seq:    1,
		Time:   t0,
		Report: estimator.Report{State: estimator.Uninitialized, Fused: 1},
		Err:    navcore.ErrUninitializedEstimator,
	}
	require.NoError(t, log.Publish(ctx, refused))

	cmd := &pursuit.Command{Left: 0.05, Right: 0.15, Omega: 1, Curvature: 10, GoalIndex: 1}
	require.NoError(t, log.Publish(ctx, readyTick(2, geom.Pose{X: 0.1, Y: 0.2, Heading: 0.3}, cmd, true)))

	held := &pursuit.Command{Left: 0.1, Right: 0.1, OnPath: true, GoalIndex: 1}
	require.NoError(t, log.Publish(ctx, readyTick(3, geom.Pose{X: 0.2, Y: 0.2}, held, false)))
	require.NoError(t, log.Finish(ctx, t0.Add(time.Second)))

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, log.RunID(), runs[0].ID)
	assert.Equal(t, t0, runs[0].StartedAt)
	assert.Equal(t, t0.Add(time.Second), runs[0].EndedAt)
	assert.Equal(t, testPath(), runs[0].Path)
	assert.Equal(t, params, runs[0].Params)

	traj, err := db.Trajectory(ctx, log.RunID())
	require.NoError(t, err)
	require.Len(t, traj, 2, "refused tick without an estimate is not part of the trajectory")
	assert.Equal(t, uint64(2), traj[0].Seq)
	assert.Equal(t, geom.Pose{X: 0.1, Y: 0.2, Heading: 0.3}, traj[0].Pose)
	assert.InDelta(t, 0.06, traj[0].Trace, 1e-12)

	cmds, err := db.Commands(ctx, log.RunID())
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, CommandRecord{Seq: 2, Left: 0.05, Right: 0.15, Omega: 1, Curvature: 10, GoalIndex: 1, Dispatched: true}, cmds[0])
	assert.True(t, cmds[1].OnPath)
	assert.False(t, cmds[1].Dispatched)
}

func TestRunLogStoresRefusalAndAnomalies(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	log, err := db.StartRun(ctx, t0, "", testPath(), pursuit.Params{})
	require.NoError(t, err)

	tick := readyTick(1, geom.Pose{}, nil, false)
	tick.Report.Anomalies = []error{navcore.ErrTimingAnomaly, navcore.ErrInvalidObservation}
	tick.Err = navcore.ErrInsufficientPath
	require.NoError(t, log.Publish(ctx, tick))

	var anomalies, refusal string
	err = db.QueryRowContext(ctx, `SELECT anomalies, refusal FROM ticks WHERE run_id = ? AND seq = 1`, log.RunID()).
		Scan(&anomalies, &refusal)
	require.NoError(t, err)
	assert.Equal(t, "timing anomaly; invalid observation", anomalies)
	assert.Equal(t, "insufficient path", refusal)
}

func TestRunLogRejectsDuplicateSeq(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	log, err := db.StartRun(ctx, t0, "", testPath(), pursuit.Params{})
	require.NoError(t, err)
	cmd := &pursuit.Command{Left: 0.1, Right: 0.1}
	require.NoError(t, log.Publish(ctx, readyTick(1, geom.Pose{}, cmd, true)))
	assert.Error(t, log.Publish(ctx, readyTick(1, geom.Pose{}, cmd, true)))

	cmds, err := db.Commands(ctx, log.RunID())
	require.NoError(t, err)
	assert.Len(t, cmds, 1)
}

func TestQueriesUnknownRun(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Trajectory(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	_, err = db.Commands(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
