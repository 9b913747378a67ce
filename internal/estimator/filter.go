package estimator

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/intnav/internal/geom"
	"github.com/banshee-data/intnav/internal/navcore"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minInitVariance is the smallest bootstrap variance accepted for an axis.
// Tighter clusters are floored to the measurement noise of that axis.
const minInitVariance = 1e-12

// bootstrap buffers observations and seeds the filter once enough are held.
func (e *Estimator) bootstrap(obs []Observation, rep *Report) {
	e.buffer = append(e.buffer, posesOf(obs)...)
	rep.Fused = len(obs)
	if len(e.buffer) < e.cfg.MinInitObservations {
		return
	}

	mean, variance := poseStatistics(e.buffer)
	cov := mat.NewSymDense(3, nil)
	for i, v := range variance {
		if !(v > minInitVariance) {
			v = e.cfg.Noise.Measurement[i]
		}
		cov.SetSym(i, i, v)
	}

	e.logf("initialized from %d observations: pose=(%.3f, %.3f, %.3f) var=(%.2e, %.2e, %.2e)",
		len(e.buffer), mean.X, mean.Y, mean.Heading, cov.At(0, 0), cov.At(1, 1), cov.At(2, 2))

	e.mean, e.cov = mean, cov
	e.buffer = nil
	e.state = Ready
	rep.Initialized = true
}

// predict advances the mean by the motion model and propagates the
// covariance: P' = F P Fᵀ + dt·Q.
func (e *Estimator) predict(mean geom.Pose, cov *mat.SymDense, dt float64) (geom.Pose, *mat.SymDense) {
	f := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})

	if e.cfg.Motion == MotionCommanded {
		v, w := e.command.unicycle(e.cfg.WheelBaseline)
		s, c := math.Sincos(mean.Heading)
		// Jacobian of the unicycle model with respect to heading.
		f.Set(0, 2, -v*s*dt)
		f.Set(1, 2, v*c*dt)
		mean = geom.NewPose(mean.X+v*c*dt, mean.Y+v*s*dt, mean.Heading+w*dt)
	}

	var fp, fpft mat.Dense
	fp.Mul(f, cov)
	fpft.Mul(&fp, f.T())

	next := symmetrize(&fpft)
	for i := 0; i < 3; i++ {
		next.SetSym(i, i, next.At(i, i)+dt*e.cfg.Noise.Process[i])
	}
	return mean, next
}

// correct fuses all of a tick's observations in one update. Each observation
// measures the full pose directly (H = I) with noise R, so N of them carry
// the same information as their mean innovation with noise R/N. Headings are
// differenced on the circle before averaging.
func (e *Estimator) correct(mean geom.Pose, cov *mat.SymDense, obs []geom.Pose) (geom.Pose, *mat.SymDense, error) {
	n := float64(len(obs))

	var sum [3]float64
	for _, z := range obs {
		sum[0] += z.X - mean.X
		sum[1] += z.Y - mean.Y
		sum[2] += geom.AngleDiff(z.Heading, mean.Heading)
	}
	innovation := mat.NewVecDense(3, []float64{sum[0] / n, sum[1] / n, sum[2] / n})

	r := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		r.SetSym(i, i, e.cfg.Noise.Measurement[i]/n)
	}

	s := mat.NewSymDense(3, nil)
	s.AddSym(cov, r)

	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return geom.Pose{}, nil, fmt.Errorf("%w: innovation covariance not positive definite", navcore.ErrNumericalDegradation)
	}
	if cond := chol.Cond(); cond > e.cfg.MaxConditionNumber {
		return geom.Pose{}, nil, fmt.Errorf("%w: innovation covariance condition %.3g exceeds %.3g",
			navcore.ErrNumericalDegradation, cond, e.cfg.MaxConditionNumber)
	}

	// K = P S⁻¹. Both are symmetric, so solve S Kᵀ = P instead of inverting.
	var kt mat.Dense
	if err := chol.SolveTo(&kt, cov); err != nil {
		return geom.Pose{}, nil, fmt.Errorf("%w: %v", navcore.ErrNumericalDegradation, err)
	}
	k := kt.T()

	var dx mat.VecDense
	dx.MulVec(k, innovation)
	post := geom.NewPose(mean.X+dx.AtVec(0), mean.Y+dx.AtVec(1), mean.Heading+dx.AtVec(2))

	// Joseph form keeps the posterior symmetric positive semi-definite:
	// P' = (I-K) P (I-K)ᵀ + K R Kᵀ.
	var a mat.Dense
	a.Sub(identity3(), k)
	var ap, apat, kr, krkt mat.Dense
	ap.Mul(&a, cov)
	apat.Mul(&ap, a.T())
	kr.Mul(k, r)
	krkt.Mul(&kr, k.T())
	apat.Add(&apat, &krkt)

	return post, symmetrize(&apat), nil
}

// fallback assigns the observation mean directly with the configured
// measurement noise as covariance.
func (e *Estimator) fallback(obs []geom.Pose) (geom.Pose, *mat.SymDense) {
	mean, _ := poseStatistics(obs)
	return mean, diagSym(e.cfg.Noise.Measurement)
}

// unicycle converts differential wheel speeds to forward and angular speed.
func (c wheelCommand) unicycle(baseline float64) (v, w float64) {
	v = 0.5 * (c.left + c.right)
	if baseline > 0 {
		w = (c.right - c.left) / baseline
	}
	return v, w
}

// poseStatistics returns the mean pose and the per-axis population variance.
// Heading uses the circular mean, and its variance is taken over residuals
// wrapped around that mean.
func poseStatistics(poses []geom.Pose) (geom.Pose, [3]float64) {
	xs := make([]float64, len(poses))
	ys := make([]float64, len(poses))
	hs := make([]float64, len(poses))
	for i, p := range poses {
		xs[i], ys[i], hs[i] = p.X, p.Y, p.Heading
	}

	heading := geom.WrapAngle(stat.CircularMean(hs, nil))
	residuals := make([]float64, len(hs))
	for i, h := range hs {
		residuals[i] = geom.AngleDiff(h, heading)
	}

	mean := geom.Pose{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Heading: heading}
	return mean, [3]float64{
		stat.PopVariance(xs, nil),
		stat.PopVariance(ys, nil),
		stat.PopVariance(residuals, nil),
	}
}

func posesOf(obs []Observation) []geom.Pose {
	poses := make([]geom.Pose, len(obs))
	for i, o := range obs {
		poses[i] = o.Pose
	}
	return poses
}

// sortObservations puts observations in a canonical order so floating point
// accumulation is identical whatever order they arrived in.
func sortObservations(obs []Observation) {
	slices.SortFunc(obs, func(a, b Observation) int {
		return cmp.Or(
			cmp.Compare(a.LandmarkID, b.LandmarkID),
			cmp.Compare(a.Pose.X, b.Pose.X),
			cmp.Compare(a.Pose.Y, b.Pose.Y),
			cmp.Compare(a.Pose.Heading, b.Pose.Heading),
		)
	})
}

func identity3() *mat.DiagDense {
	return mat.NewDiagDense(3, []float64{1, 1, 1})
}

func diagSym(d [3]float64) *mat.SymDense {
	s := mat.NewSymDense(3, nil)
	for i, v := range d {
		s.SetSym(i, i, v)
	}
	return s
}

// symmetrize returns (m + mᵀ)/2 as a SymDense.
func symmetrize(m mat.Matrix) *mat.SymDense {
	r, _ := m.Dims()
	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}

func isFiniteSym(s *mat.SymDense) bool {
	if s == nil {
		return false
	}
	r, _ := s.Dims()
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			v := s.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
