// Package geom provides the planar types shared by the estimator and the
// pursuit controller: points, poses, paths and the rigid-transform helpers
// (angle wrapping, rotation, signed angles) built on gonum's r2 vectors.
//
// All quantities are world-frame metres and radians. Headings are kept in
// (-π, π].
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a world-frame position in metres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec returns the point as an r2 vector.
func (p Point) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// PointOf converts an r2 vector back to a Point.
func PointOf(v r2.Vec) Point { return Point{X: v.X, Y: v.Y} }

// IsFinite reports whether both coordinates are finite.
func (p Point) IsFinite() bool { return finite(p.X) && finite(p.Y) }

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return r2.Norm(r2.Sub(a.Vec(), b.Vec()))
}

// Pose is a planar position plus heading. It is an immutable value; use
// NewPose to get a normalised heading.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// NewPose builds a pose with its heading wrapped into (-π, π].
func NewPose(x, y, heading float64) Pose {
	return Pose{X: x, Y: y, Heading: WrapAngle(heading)}
}

// Position returns the translational part of the pose.
func (p Pose) Position() Point { return Point{X: p.X, Y: p.Y} }

// Direction returns the unit vector along the heading.
func (p Pose) Direction() r2.Vec {
	return r2.Vec{X: math.Cos(p.Heading), Y: math.Sin(p.Heading)}
}

// IsFinite reports whether every component is finite.
func (p Pose) IsFinite() bool {
	return finite(p.X) && finite(p.Y) && finite(p.Heading)
}

// WrapAngle maps an angle into (-π, π]. NaN and ±Inf map to NaN.
func WrapAngle(a float64) float64 {
	if a > -math.Pi && a <= math.Pi {
		return a
	}
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDiff returns a-b wrapped into (-π, π].
func AngleDiff(a, b float64) float64 { return WrapAngle(a - b) }

// Rotate rotates v counter-clockwise by angle radians about the origin.
func Rotate(v r2.Vec, angle float64) r2.Vec {
	s, c := math.Sincos(angle)
	return r2.Vec{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y}
}

// SignedAngle returns the angle from a to b in (-π, π]. The magnitude comes
// from the cross/dot pair and lies in [0, π]; the sign is that of the cross
// product, so a positive result means b lies counter-clockwise (left) of a.
// When b is exactly opposite a the result is +π.
func SignedAngle(a, b r2.Vec) float64 {
	cross := r2.Cross(a, b)
	unsigned := math.Atan2(math.Abs(cross), r2.Dot(a, b))
	if cross < 0 {
		return -unsigned
	}
	return unsigned
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
