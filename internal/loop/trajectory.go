package loop

import (
	"sync"
	"time"

	"github.com/banshee-data/intnav/internal/geom"
)

// TrajectoryPoint is one recorded estimate.
type TrajectoryPoint struct {
	Seq   uint64    `json:"seq"`
	Time  time.Time `json:"time"`
	Pose  geom.Pose `json:"pose"`
	Trace float64   `json:"trace"` // trace of the pose covariance
}

// Trajectory is the growing history of estimates published by the loop. It
// is safe for concurrent use; readers get copies.
type Trajectory struct {
	mu     sync.RWMutex
	points []TrajectoryPoint
	limit  int
}

// NewTrajectory returns an empty trajectory. A positive limit keeps only the
// most recent limit points.
func NewTrajectory(limit int) *Trajectory {
	return &Trajectory{limit: limit}
}

// Append records a point.
func (t *Trajectory) Append(p TrajectoryPoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.points = append(t.points, p)
	if t.limit > 0 && len(t.points) > t.limit {
		t.points = append(t.points[:0], t.points[len(t.points)-t.limit:]...)
	}
}

// Points returns a copy of the recorded points, oldest first.
func (t *Trajectory) Points() []TrajectoryPoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TrajectoryPoint, len(t.points))
	copy(out, t.points)
	return out
}

// Len returns the number of recorded points.
func (t *Trajectory) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.points)
}
