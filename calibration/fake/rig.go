// Package fake implements a simulated robot and wrist camera for exercising the calibration pipeline.
package fake

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/kelvinchow23/robot-system-tools/calibration/collector"
	"github.com/kelvinchow23/robot-system-tools/logging"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// Config describes the simulated rig. Noise values are standard deviations; rotation noise is in radians.
type Config struct {
	// BaseToFiducial is where the fiducial sits in the robot base frame.
	BaseToFiducial spatialmath.RigidTransform
	// ToolToCamera is the ground truth the calibration should recover.
	ToolToCamera spatialmath.RigidTransform
	// FieldOfView is the half-angle of the camera cone. Zero means unlimited.
	FieldOfView float64
	// MaxRange is the farthest a fiducial can be detected. Zero means unlimited.
	MaxRange float64
	// FiducialID is reported with every detection.
	FiducialID int

	MotionRotationNoise    float64
	MotionTranslationNoise float64
	DetectRotationNoise    float64
	DetectTranslationNoise float64
	Seed                   uint64
}

// Rig is a fake robot arm with a camera on its wrist. It implements both collector.Mover and
// collector.Detector.
type Rig struct {
	cfg    Config
	logger logging.Logger

	mu   sync.Mutex
	rng  *rand.Rand
	tool spatialmath.RigidTransform

	// MoveFunc, if set, is called before every move; a non-nil error fails the move.
	MoveFunc func(move int, pose spatialmath.RigidTransform) error
	// DetectFunc, if set, is called before every capture; a non-nil error fails the detection.
	DetectFunc func(capture int) error
	// QualityFunc, if set, replaces the view-angle quality model.
	QualityFunc func(capture int, inCamera r3.Vector) float64

	Moves    int
	Captures int
}

// NewRig returns a rig with its tool at the base origin. A nil logger discards output.
func NewRig(cfg Config, logger logging.Logger) *Rig {
	if logger == nil {
		logger = logging.NewBlankLogger("fake")
	}
	return &Rig{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
	}
}

// ToolPose returns the current base→tool pose.
func (r *Rig) ToolPose() spatialmath.RigidTransform {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tool
}

// MoveTo moves the tool, adding motion noise to the reached pose.
func (r *Rig) MoveTo(ctx context.Context, pose spatialmath.RigidTransform) (spatialmath.RigidTransform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	move := r.Moves
	r.Moves++
	if r.MoveFunc != nil {
		if err := r.MoveFunc(move, pose); err != nil {
			return spatialmath.RigidTransform{}, err
		}
	}
	r.tool = pose.Compose(r.noise(r.cfg.MotionRotationNoise, r.cfg.MotionTranslationNoise))
	r.logger.Debugw("moved", "move", move, "translation", r.tool.Translation())
	return r.tool, nil
}

// CaptureAndDetect returns the camera→fiducial pose seen from the current tool pose.
func (r *Rig) CaptureAndDetect(ctx context.Context) (collector.Detection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	capture := r.Captures
	r.Captures++
	if err := ctx.Err(); err != nil {
		return collector.Detection{}, err
	}
	if r.DetectFunc != nil {
		if err := r.DetectFunc(capture); err != nil {
			return collector.Detection{}, err
		}
	}
	truth := r.observe(r.tool)
	p := truth.Translation()
	angle := math.Atan2(math.Hypot(p.X, p.Y), p.Z)
	if p.Z <= 0 || (r.cfg.FieldOfView > 0 && angle > r.cfg.FieldOfView) {
		return collector.Detection{}, errors.Wrapf(collector.ErrNoFiducial, "fiducial is %.1f° off axis", angle*180/math.Pi)
	}
	if r.cfg.MaxRange > 0 && p.Norm() > r.cfg.MaxRange {
		return collector.Detection{}, errors.Wrapf(collector.ErrNoFiducial, "fiducial is %.3f away", p.Norm())
	}

	quality := 1.0
	switch {
	case r.QualityFunc != nil:
		quality = r.QualityFunc(capture, p)
	case r.cfg.FieldOfView > 0:
		quality = 1 - 0.5*math.Pow(angle/r.cfg.FieldOfView, 2)
	}
	return collector.Detection{
		Pose:       truth.Compose(r.noise(r.cfg.DetectRotationNoise, r.cfg.DetectTranslationNoise)),
		FiducialID: r.cfg.FiducialID,
		Quality:    quality,
	}, nil
}

// Observe returns the noise-free camera→fiducial pose for a given base→tool pose.
func (r *Rig) Observe(tool spatialmath.RigidTransform) spatialmath.RigidTransform {
	return r.observe(tool)
}

func (r *Rig) observe(tool spatialmath.RigidTransform) spatialmath.RigidTransform {
	// camera→fiducial = (base→tool ∘ tool→camera)⁻¹ ∘ base→fiducial
	return spatialmath.Compose(tool, r.cfg.ToolToCamera).Inverse().Compose(r.cfg.BaseToFiducial)
}

func (r *Rig) noise(rotSigma, transSigma float64) spatialmath.RigidTransform {
	if rotSigma == 0 && transSigma == 0 {
		return spatialmath.Identity()
	}
	rv := r3.Vector{X: r.rng.NormFloat64(), Y: r.rng.NormFloat64(), Z: r.rng.NormFloat64()}.Mul(rotSigma)
	rot, err := spatialmath.NewRotationFromRotationVector(rv)
	if err != nil {
		rot = spatialmath.IdentityRotation()
	}
	trans := r3.Vector{X: r.rng.NormFloat64(), Y: r.rng.NormFloat64(), Z: r.rng.NormFloat64()}.Mul(transSigma)
	return spatialmath.NewRigidTransform(rot, trans)
}
