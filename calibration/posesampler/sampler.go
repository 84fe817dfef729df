// Package posesampler generates candidate tool poses on a spherical cap around a fiducial so that
// every pose looks at the fiducial while the set of orientations stays well spread.
package posesampler

import (
	"fmt"
	"iter"
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/logging"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// goldenAngle is the azimuth step between consecutive spiral points, π(3 − √5).
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Params describe the reachable region to sample. Angles are in radians.
type Params struct {
	// Target is the look-at point in the base frame, usually the fiducial.
	Target r3.Vector
	// Radius is the distance from Target to every sampled tool origin.
	Radius float64
	// Up is the axis of the cap, pointing from Target toward the robot. Zero means +Z.
	Up r3.Vector
	// MaxTilt is the half-angle of the cap measured from Up.
	MaxTilt float64
	// MaxRoll bounds the deterministic twist applied about each pose's optical axis.
	MaxRoll float64
	// Jitter bounds the random rotation applied to each pose in the tool frame.
	Jitter float64
	Seed   uint64
	Count  int
}

// Validate ensures all parts of the params are valid.
func (p Params) Validate() error {
	if p.Count <= 0 {
		return errors.Errorf("count must be positive, got %d", p.Count)
	}
	if !(p.Radius > 0) || math.IsInf(p.Radius, 0) {
		return errors.Errorf("radius must be positive and finite, got %v", p.Radius)
	}
	if !(p.MaxTilt > 0 && p.MaxTilt <= math.Pi/2) {
		return errors.Errorf("max tilt must be in (0, π/2], got %v", p.MaxTilt)
	}
	if p.MaxRoll < 0 || p.MaxRoll > math.Pi {
		return errors.Errorf("max roll must be in [0, π], got %v", p.MaxRoll)
	}
	if p.Jitter < 0 || p.Jitter > math.Pi/4 {
		return errors.Errorf("jitter must be in [0, π/4], got %v", p.Jitter)
	}
	for _, v := range []r3.Vector{p.Target, p.Up} {
		if math.IsNaN(v.Norm()) || math.IsInf(v.Norm(), 0) {
			return errors.New("target and up must be finite")
		}
	}
	return nil
}

// Diagnostic warns about sample counts that are likely to solve poorly. It never blocks sampling.
type Diagnostic struct {
	Count            int
	BelowMinimum     bool
	BelowRecommended bool
}

// IllConditioned reports whether a solve from this many samples is expected to be unreliable.
func (d Diagnostic) IllConditioned() bool {
	return d.BelowMinimum || d.BelowRecommended
}

func (d Diagnostic) String() string {
	switch {
	case d.BelowMinimum:
		return fmt.Sprintf("%d poses is below the solver minimum of %d", d.Count, calibration.MinimumSamples)
	case d.BelowRecommended:
		return fmt.Sprintf("%d poses is below the recommended %d; the solve may be ill-conditioned",
			d.Count, calibration.RecommendedSamples)
	default:
		return fmt.Sprintf("%d poses", d.Count)
	}
}

// Plan is a validated, restartable pose sequence.
type Plan struct {
	params Params
	up     r3.Vector
	e1, e2 r3.Vector
	diag   Diagnostic
}

// NewPlan validates params and prepares the cap basis. A nil logger discards output.
func NewPlan(params Params, logger logging.Logger) (*Plan, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pose sampler params")
	}
	if logger == nil {
		logger = logging.NewBlankLogger("posesampler")
	}
	up := params.Up
	if up.Norm() == 0 {
		up = r3.Vector{Z: 1}
	}
	up = up.Normalize()
	e1 := up.Ortho()
	e2 := up.Cross(e1)

	diag := Diagnostic{
		Count:            params.Count,
		BelowMinimum:     params.Count < calibration.MinimumSamples,
		BelowRecommended: params.Count < calibration.RecommendedSamples,
	}
	if diag.IllConditioned() {
		logger.Warnw("pose plan is small", "diagnostic", diag.String())
	}
	return &Plan{params: params, up: up, e1: e1, e2: e2, diag: diag}, nil
}

// Len returns the number of poses in the plan.
func (p *Plan) Len() int {
	return p.params.Count
}

// Diagnostic returns the sample count assessment made when the plan was built.
func (p *Plan) Diagnostic() Diagnostic {
	return p.diag
}

// Params returns the params the plan was built from.
func (p *Plan) Params() Params {
	return p.params
}

// Poses yields base→tool poses in order. Every call starts over from the seed, so two iterations
// of the same plan yield identical sequences.
func (p *Plan) Poses() iter.Seq2[int, spatialmath.RigidTransform] {
	return func(yield func(int, spatialmath.RigidTransform) bool) {
		rng := rand.New(rand.NewPCG(p.params.Seed, p.params.Seed^0x9e3779b97f4a7c15))
		for i := 0; i < p.params.Count; i++ {
			if !yield(i, p.pose(i, rng)) {
				return
			}
		}
	}
}

// All collects every pose into a slice.
func (p *Plan) All() []spatialmath.RigidTransform {
	poses := make([]spatialmath.RigidTransform, 0, p.params.Count)
	for _, pose := range p.Poses() {
		poses = append(poses, pose)
	}
	return poses
}

func (p *Plan) pose(i int, rng *rand.Rand) spatialmath.RigidTransform {
	n := float64(p.params.Count)
	cosMin := math.Cos(p.params.MaxTilt)
	cosTilt := 1 - (1-cosMin)*(float64(i)+0.5)/n
	sinTilt := math.Sqrt(math.Max(0, 1-cosTilt*cosTilt))
	sinAz, cosAz := math.Sincos(float64(i) * goldenAngle)

	dir := p.e1.Mul(sinTilt * cosAz).Add(p.e2.Mul(sinTilt * sinAz)).Add(p.up.Mul(cosTilt))
	origin := p.params.Target.Add(dir.Mul(p.params.Radius))

	// optical axis toward the target, x kept as close to e1 as possible
	rot := spatialmath.NewLookAtRotation(dir.Mul(-1), p.e1)

	// twist about the optical axis following a low discrepancy sequence in [-1, 1)
	frac := math.Mod(float64(i)*(math.Sqrt(5)-1)/2, 1)
	rot = rot.Mul(rotationAbout(r3.Vector{Z: p.params.MaxRoll * (2*frac - 1)}))

	if p.params.Jitter > 0 {
		axis := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		angle := p.params.Jitter * rng.Float64()
		if axis.Norm() > 0 {
			rot = rot.Mul(rotationAbout(axis.Normalize().Mul(angle)))
		}
	}
	return spatialmath.NewRigidTransform(rot, origin)
}

// rotationAbout takes a finite rotation vector, which Params.Validate guarantees.
func rotationAbout(v r3.Vector) *spatialmath.RotationMatrix {
	return spatialmath.QuatToRotationMatrix(spatialmath.RotationVectorToQuat(v))
}

// MinPairwiseAngle returns the smallest rotation angle in radians between any two poses, or +Inf for
// fewer than two.
func MinPairwiseAngle(poses []spatialmath.RigidTransform) float64 {
	smallest := math.Inf(1)
	for i := range poses {
		for j := i + 1; j < len(poses); j++ {
			smallest = math.Min(smallest, poses[i].AngularDistance(poses[j]))
		}
	}
	return smallest
}
