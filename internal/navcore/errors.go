// Package navcore holds the error kinds shared by the pose estimator, the
// pursuit controller and the control loop that drives them.
//
// Non-fatal kinds (ErrInvalidObservation, ErrTimingAnomaly,
// ErrNumericalDegradation) are reported alongside a successful tick. Refusal
// kinds (ErrInsufficientPath, ErrInvalidPath, ErrUninitializedEstimator,
// ErrInvalidPose) mean no wheel command may be dispatched for the tick.
package navcore

import "errors"

var (
	// ErrInvalidObservation marks an observation with non-finite components.
	// The observation is dropped, never fused.
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrTimingAnomaly marks a non-positive elapsed time between updates.
	// The predict step is skipped for that tick.
	ErrTimingAnomaly = errors.New("timing anomaly")

	// ErrNumericalDegradation marks a singular innovation covariance. The
	// update falls back to assigning the observation mean.
	ErrNumericalDegradation = errors.New("numerical degradation")

	// ErrInsufficientPath is returned when a path has fewer than two waypoints.
	ErrInsufficientPath = errors.New("insufficient path")

	// ErrInvalidPath is returned when a path has a non-finite waypoint.
	ErrInvalidPath = errors.New("invalid path")

	// ErrUninitializedEstimator is returned when a pose is requested before
	// the estimator has completed its bootstrap.
	ErrUninitializedEstimator = errors.New("estimator not initialized")

	// ErrInvalidPose is returned when a pose handed to the controller has
	// non-finite components.
	ErrInvalidPose = errors.New("invalid pose")
)

// IsRefusal reports whether err means the caller must not dispatch a command.
func IsRefusal(err error) bool {
	return errors.Is(err, ErrInsufficientPath) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrUninitializedEstimator) ||
		errors.Is(err, ErrInvalidPose)
}
