package geom

import "gonum.org/v1/gonum/spatial/r2"

// Kinematic is a vehicle snapshot moving along its heading at a constant
// speed. Velocity is derived once at construction.
type Kinematic struct {
	Position Point
	Heading  float64
	Speed    float64
	Velocity r2.Vec
}

// NewKinematic builds a snapshot from a pose and a forward speed (m/s).
func NewKinematic(pose Pose, speed float64) Kinematic {
	return Kinematic{
		Position: pose.Position(),
		Heading:  pose.Heading,
		Speed:    speed,
		Velocity: r2.Scale(speed, pose.Direction()),
	}
}

// Extrapolate returns the straight-line position after dt seconds.
func (k Kinematic) Extrapolate(dt float64) Point {
	return PointOf(r2.Add(k.Position.Vec(), r2.Scale(dt, k.Velocity)))
}
