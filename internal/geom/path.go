package geom

import (
	"fmt"

	"github.com/banshee-data/intnav/internal/navcore"
	"gonum.org/v1/gonum/spatial/r2"
)

// MinPathWaypoints is the minimum number of waypoints a path needs to define
// both an anchor and a forward direction.
const MinPathWaypoints = 2

// Path is an ordered sequence of waypoints; the order is the traversal
// direction. Paths are owned by the caller and treated as read-only.
type Path []Point

// Validate checks the path has enough waypoints and that all are finite.
func (p Path) Validate() error {
	if len(p) < MinPathWaypoints {
		return fmt.Errorf("%w: %d waypoint(s), need at least %d", navcore.ErrInsufficientPath, len(p), MinPathWaypoints)
	}
	for i, wp := range p {
		if !wp.IsFinite() {
			return fmt.Errorf("%w: waypoint %d is not finite: (%v, %v)", navcore.ErrInvalidPath, i, wp.X, wp.Y)
		}
	}
	return nil
}

// Nearest returns the index of the waypoint closest to q. Equidistant
// waypoints resolve to the lowest index. Returns -1 for an empty path.
func (p Path) Nearest(q Point) int {
	best := -1
	bestDist := 0.0
	for i, wp := range p {
		d := Distance(wp, q)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// DistanceTo returns the shortest distance from q to the polyline through
// the waypoints. A single waypoint degenerates to point distance.
func (p Path) DistanceTo(q Point) float64 {
	switch len(p) {
	case 0:
		return 0
	case 1:
		return Distance(p[0], q)
	}
	best := -1.0
	for i := 0; i+1 < len(p); i++ {
		d := segmentDistance(p[i].Vec(), p[i+1].Vec(), q.Vec())
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// Length returns the total polyline length.
func (p Path) Length() float64 {
	var total float64
	for i := 1; i < len(p); i++ {
		total += Distance(p[i-1], p[i])
	}
	return total
}

// Clone returns a copy that does not alias p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

func segmentDistance(a, b, q r2.Vec) float64 {
	ab := r2.Sub(b, a)
	den := r2.Dot(ab, ab)
	if den == 0 {
		return r2.Norm(r2.Sub(q, a))
	}
	t := r2.Dot(r2.Sub(q, a), ab) / den
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	closest := r2.Add(a, r2.Scale(t, ab))
	return r2.Norm(r2.Sub(q, closest))
}
