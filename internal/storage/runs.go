package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/intnav/internal/geom"
	"github.com/banshee-data/intnav/internal/loop"
	"github.com/banshee-data/intnav/internal/pursuit"
	"github.com/google/uuid"
)

// Run describes one recorded control-loop run.
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time // zero while the run is open
	Source    string
	Path      geom.Path
	Params    pursuit.Params
}

// CommandRecord is a stored controller output.
type CommandRecord struct {
	Seq        uint64
	Left       float64
	Right      float64
	Omega      float64
	Curvature  float64
	GoalIndex  int
	OnPath     bool
	Dispatched bool
}

// RunLog appends ticks to one run. It implements loop.Sink.
type RunLog struct {
	db    *DB
	runID string
}

// StartRun records a new run and returns a sink that logs its ticks.
func (db *DB) StartRun(ctx context.Context, startedAt time.Time, source string, path geom.Path, params pursuit.Params) (*RunLog, error) {
	pathJSON, err := json.Marshal(path)
	if err != nil {
		return nil, fmt.Errorf("encode path: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_unix_nanos, source, path_json, params_json) VALUES (?, ?, ?, ?, ?)`,
		id, startedAt.UnixNano(), source, string(pathJSON), string(paramsJSON))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &RunLog{db: db, runID: id}, nil
}

// RunID returns the identifier of the run being logged.
func (r *RunLog) RunID() string { return r.runID }

// Publish stores the tick and, when present, its command in one transaction.
func (r *RunLog) Publish(ctx context.Context, tick loop.Tick) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var anomalies []string
	for _, a := range tick.Report.Anomalies {
		anomalies = append(anomalies, a.Error())
	}
	var refusal string
	if tick.Err != nil {
		refusal = tick.Err.Error()
	}

	var x, y, heading, cxx, cxy, cxh, cyy, cyh, chh sql.NullFloat64
	if e := tick.Estimate; e != nil {
		x, y, heading = nullFloat(e.Pose.X), nullFloat(e.Pose.Y), nullFloat(e.Pose.Heading)
		if c := e.Covariance; c != nil {
			cxx, cxy, cxh = nullFloat(c.At(0, 0)), nullFloat(c.At(0, 1)), nullFloat(c.At(0, 2))
			cyy, cyh, chh = nullFloat(c.At(1, 1)), nullFloat(c.At(1, 2)), nullFloat(c.At(2, 2))
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticks (run_id, seq, ts_unix_nanos, state, predicted, fused, dropped, degraded,
			anomalies, refusal, x, y, heading, cov_xx, cov_xy, cov_xh, cov_yy, cov_yh, cov_hh)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, int64(tick.Seq), tick.Time.UnixNano(), tick.Report.State.String(),
		tick.Report.Predicted, tick.Report.Fused, tick.Report.Dropped, tick.Report.Degraded,
		strings.Join(anomalies, "; "), refusal,
		x, y, heading, cxx, cxy, cxh, cyy, cyh, chh)
	if err != nil {
		return fmt.Errorf("insert tick %d: %w", tick.Seq, err)
	}

	if c := tick.Command; c != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO commands (run_id, seq, left_mps, right_mps, omega, curvature,
				anchor_index, goal_index, on_path, saturated, dispatched)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.runID, int64(tick.Seq), c.Left, c.Right, c.Omega, c.Curvature,
			c.AnchorIndex, c.GoalIndex, c.OnPath, c.Saturated, tick.Dispatched)
		if err != nil {
			return fmt.Errorf("insert command %d: %w", tick.Seq, err)
		}
	}

	return tx.Commit()
}

// Finish stamps the run end time.
func (r *RunLog) Finish(ctx context.Context, endedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE runs SET ended_unix_nanos = ? WHERE run_id = ?`, endedAt.UnixNano(), r.runID)
	return err
}

// Runs lists recorded runs, most recent first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, started_unix_nanos, ended_unix_nanos, source, path_json, params_json
		FROM runs ORDER BY started_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                  Run
			started              int64
			ended                sql.NullInt64
			pathJSON, paramsJSON string
		)
		if err := rows.Scan(&run.ID, &started, &ended, &run.Source, &pathJSON, &paramsJSON); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			run.EndedAt = time.Unix(0, ended.Int64).UTC()
		}
		if err := json.Unmarshal([]byte(pathJSON), &run.Path); err != nil {
			return nil, fmt.Errorf("run %s path: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
			return nil, fmt.Errorf("run %s params: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Trajectory returns the estimates recorded for a run in tick order. Ticks
// without an estimate are skipped.
func (db *DB) Trajectory(ctx context.Context, runID string) ([]loop.TrajectoryPoint, error) {
	if err := db.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT seq, ts_unix_nanos, x, y, heading, cov_xx + cov_yy + cov_hh
		FROM ticks WHERE run_id = ? AND x IS NOT NULL ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []loop.TrajectoryPoint
	for rows.Next() {
		var (
			p  loop.TrajectoryPoint
			ts int64
		)
		if err := rows.Scan(&p.Seq, &ts, &p.Pose.X, &p.Pose.Y, &p.Pose.Heading, &p.Trace); err != nil {
			return nil, err
		}
		p.Time = time.Unix(0, ts).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// Commands returns the controller outputs recorded for a run in tick order.
func (db *DB) Commands(ctx context.Context, runID string) ([]CommandRecord, error) {
	if err := db.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT seq, left_mps, right_mps, omega, curvature, goal_index, on_path, dispatched
		FROM commands WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var c CommandRecord
		if err := rows.Scan(&c.Seq, &c.Left, &c.Right, &c.Omega, &c.Curvature, &c.GoalIndex, &c.OnPath, &c.Dispatched); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) requireRun(ctx context.Context, runID string) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return err
}

func nullFloat(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
