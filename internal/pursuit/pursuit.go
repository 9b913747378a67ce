// Package pursuit implements a pure-pursuit path follower for a
// differential-drive vehicle. Compute is a pure function of its inputs and
// is safe to call concurrently.
package pursuit

import (
	"fmt"
	"math"

	"github.com/banshee-data/intnav/internal/geom"
	"github.com/banshee-data/intnav/internal/navcore"
	"gonum.org/v1/gonum/floats"
)

// Command is the controller output for one pose. Left and Right are the
// wheel speeds to dispatch; the remaining fields describe how they were
// derived.
type Command struct {
	Left  float64 `json:"left"`  // m/s
	Right float64 `json:"right"` // m/s
	Omega float64 `json:"omega"` // rad/s, positive turns left

	Curvature float64 `json:"curvature"` // 1/m after clamping
	Alpha     float64 `json:"alpha"`     // heading to steering vector, rad
	Chord     float64 `json:"chord"`     // current position to goal, m
	Saturated bool    `json:"saturated"` // curvature hit MaxCurvature

	AnchorIndex int        `json:"anchor_index"`
	GoalIndex   int        `json:"goal_index"`
	Goal        geom.Point `json:"goal"`
	Future      geom.Point `json:"future"`  // straight-line prediction after PredictionStep
	OnPath      bool       `json:"on_path"` // Future within AdmissibleError of the path
}

// Compute returns wheel speeds steering the vehicle at pose toward path.
// It fails with ErrInvalidPose for a non-finite pose and ErrInsufficientPath
// for a path with fewer than two waypoints.
func Compute(pose geom.Pose, path geom.Path, p Params) (Command, error) {
	if err := p.Validate(); err != nil {
		return Command{}, fmt.Errorf("invalid pursuit params: %w", err)
	}
	if !pose.IsFinite() {
		return Command{}, fmt.Errorf("%w: (%v, %v, %v)", navcore.ErrInvalidPose, pose.X, pose.Y, pose.Heading)
	}
	if err := path.Validate(); err != nil {
		return Command{}, err
	}

	pose = geom.NewPose(pose.X, pose.Y, pose.Heading)
	current := pose.Position()
	car := geom.NewKinematic(pose, p.Speed)

	cmd := Command{Future: car.Extrapolate(p.PredictionStep)}
	if p.AdmissibleError > 0 {
		cmd.OnPath = path.DistanceTo(cmd.Future) < p.AdmissibleError
	}

	cmd.AnchorIndex, cmd.GoalIndex = SelectGoal(current, path, p.Lookahead)
	cmd.Goal = path[cmd.GoalIndex]

	sv := cmd.Goal.Vec()
	sv.X -= current.X
	sv.Y -= current.Y
	cmd.Chord = math.Hypot(sv.X, sv.Y)
	if cmd.Chord > 0 {
		cmd.Alpha = geom.SignedAngle(pose.Direction(), sv)
	}

	cmd.Curvature, cmd.Saturated = curvature(cmd.Alpha, cmd.Chord, p.MaxCurvature)
	cmd.Omega = p.Speed * cmd.Curvature
	cmd.Left, cmd.Right = WheelSpeeds(p.Speed, cmd.Omega, p.WheelBaseline)
	return cmd, nil
}

// SelectGoal returns the anchor index (waypoint nearest current) and the goal
// index: the waypoint from the anchor onward whose distance from the anchor
// exceeds lookahead by the least. Waypoints still inside the lookahead are
// never selected directly; when none reaches it the goal is the last
// waypoint. Ties go to the lowest index. The path must be non-empty.
func SelectGoal(current geom.Point, path geom.Path, lookahead float64) (anchor, goal int) {
	dists := make([]float64, len(path))
	for i, wp := range path {
		dists[i] = geom.Distance(wp, current)
	}
	anchor = floats.MinIdx(dists)

	tail := path[anchor:]
	residuals := make([]float64, len(tail))
	for i, wp := range tail {
		residuals[i] = geom.Distance(wp, path[anchor])
	}
	floats.AddConst(-lookahead, residuals)

	for i, r := range residuals {
		if r < 0 {
			residuals[i] = math.Inf(1)
		}
	}
	best := floats.MinIdx(residuals)
	if math.IsInf(residuals[best], 1) {
		return anchor, len(path) - 1
	}
	return anchor, anchor + best
}

// WheelSpeeds maps forward speed v and turn rate omega onto left and right
// wheel speeds for a differential drive with the given baseline.
func WheelSpeeds(v, omega, baseline float64) (left, right float64) {
	half := 0.5 * omega * baseline
	return v - half, v + half
}

// curvature returns the pure-pursuit arc curvature κ = 2·sin α / l, clamped
// to ±maxK. A goal behind the vehicle saturates toward the goal side; a goal
// exactly behind turns left.
func curvature(alpha, chord, maxK float64) (float64, bool) {
	if chord == 0 || alpha == 0 {
		return 0, false
	}
	if math.Cos(alpha) < 0 {
		if alpha < 0 {
			return -maxK, true
		}
		return maxK, true
	}
	k := 2 * math.Sin(alpha) / chord
	switch {
	case k > maxK:
		return maxK, true
	case k < -maxK:
		return -maxK, true
	}
	return k, false
}
