// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/intnav/internal/geom"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertPoseNear fails the test if any component of got differs from want by
// more than tol. Headings are compared on the circle.
func AssertPoseNear(t testing.TB, want, got geom.Pose, tol float64) {
	t.Helper()
	if dx := math.Abs(got.X - want.X); !(dx <= tol) {
		t.Errorf("pose x = %v, want %v (±%v)", got.X, want.X, tol)
	}
	if dy := math.Abs(got.Y - want.Y); !(dy <= tol) {
		t.Errorf("pose y = %v, want %v (±%v)", got.Y, want.Y, tol)
	}
	if dh := math.Abs(geom.AngleDiff(got.Heading, want.Heading)); !(dh <= tol) {
		t.Errorf("pose heading = %v, want %v (±%v)", got.Heading, want.Heading, tol)
	}
}

// Cluster returns n poses spread symmetrically about center: pairs offset by
// ±spread on every axis, plus center itself when n is odd. The mean of the
// result is center.
func Cluster(center geom.Pose, spread float64, n int) []geom.Pose {
	out := make([]geom.Pose, 0, n)
	if n%2 == 1 {
		out = append(out, center)
	}
	for k := 1; len(out) < n; k++ {
		d := spread * float64(k)
		out = append(out,
			geom.NewPose(center.X+d, center.Y+d, center.Heading+d),
			geom.NewPose(center.X-d, center.Y-d, center.Heading-d),
		)
	}
	return out
}

// StraightPath returns n waypoints spaced step apart along +x from the origin.
func StraightPath(n int, step float64) geom.Path {
	path := make(geom.Path, n)
	for i := range path {
		path[i] = geom.Point{X: float64(i) * step}
	}
	return path
}
