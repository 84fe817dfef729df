// Package transformer converts live camera detections into the robot base frame using a solved
// hand-eye calibration.
package transformer

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/logging"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// ErrStaleCalibration is returned in strict mode when the calibration is poor or too old.
var ErrStaleCalibration = errors.New("stale calibration")

// Option configures a Transformer.
type Option func(*Transformer)

// WithStrict makes stale calibrations an error instead of a flag on each Observation.
func WithStrict() Option {
	return func(t *Transformer) { t.strict = true }
}

// WithMaxAge marks calibrations older than maxAge as stale. Zero disables the age check.
func WithMaxAge(maxAge time.Duration) Option {
	return func(t *Transformer) { t.maxAge = maxAge }
}

// WithClock sets the clock used for the age check.
func WithClock(clk clock.Clock) Option {
	return func(t *Transformer) { t.clk = clk }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(t *Transformer) { t.logger = logger }
}

// Observation is a fiducial pose in the base frame together with the state of the calibration that
// produced it.
type Observation struct {
	BaseToFiducial spatialmath.RigidTransform
	Quality        calibration.Quality
	Stale          bool
}

// Transformer applies base→fiducial = base→tool ∘ tool→camera ∘ camera→fiducial. It only reads the
// calibration it was built with, so one Transformer may serve many goroutines.
type Transformer struct {
	result calibration.Result
	strict bool
	maxAge time.Duration
	clk    clock.Clock
	logger logging.Logger
}

// New returns a Transformer for a solved calibration.
func New(result *calibration.Result, opts ...Option) (*Transformer, error) {
	if result == nil {
		return nil, errors.New("transformer needs a calibration result")
	}
	t := &Transformer{result: *result}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxAge < 0 {
		return nil, errors.Errorf("max calibration age cannot be negative, got %v", t.maxAge)
	}
	if t.clk == nil {
		t.clk = clock.New()
	}
	if t.logger == nil {
		t.logger = logging.NewBlankLogger("transformer")
	}
	if t.result.Poor() {
		t.logger.Warnw("calibration quality is poor", "method", t.result.Method, "residual", t.result.Residual.String())
	}
	return t, nil
}

// Load reads a calibration written by calibration.SaveResult.
func Load(path string, opts ...Option) (*Transformer, error) {
	result, err := calibration.LoadResult(path)
	if err != nil {
		return nil, err
	}
	return New(result, opts...)
}

// Calibration returns a copy of the loaded calibration.
func (t *Transformer) Calibration() calibration.Result {
	return t.result
}

// stale reports whether the calibration should not be trusted right now.
func (t *Transformer) stale() (bool, error) {
	if t.result.Poor() {
		return true, errors.Wrapf(ErrStaleCalibration, "calibration quality is %s (%s)", t.result.Quality, t.result.Residual)
	}
	if t.maxAge > 0 {
		if age := t.clk.Since(t.result.CreatedAt); age > t.maxAge {
			return true, errors.Wrapf(ErrStaleCalibration, "calibration is %v old, limit %v", age.Round(time.Second), t.maxAge)
		}
	}
	return false, nil
}

func (t *Transformer) check() (bool, error) {
	stale, err := t.stale()
	if stale && t.strict {
		return stale, err
	}
	return stale, nil
}

// CameraPose returns base→camera for a base→tool pose.
func (t *Transformer) CameraPose(robot spatialmath.RigidTransform) (spatialmath.RigidTransform, error) {
	if _, err := t.check(); err != nil {
		return spatialmath.RigidTransform{}, err
	}
	return robot.Compose(t.result.ToolToCamera), nil
}

// Transform maps one camera→fiducial detection into the base frame.
func (t *Transformer) Transform(robot, detection spatialmath.RigidTransform) (Observation, error) {
	stale, err := t.check()
	if err != nil {
		return Observation{}, err
	}
	return t.observe(robot.Compose(t.result.ToolToCamera), detection, stale), nil
}

// TransformBatch maps several detections taken from one robot pose.
func (t *Transformer) TransformBatch(robot spatialmath.RigidTransform, detections []spatialmath.RigidTransform) ([]Observation, error) {
	stale, err := t.check()
	if err != nil {
		return nil, err
	}
	camera := robot.Compose(t.result.ToolToCamera)
	return lo.Map(detections, func(d spatialmath.RigidTransform, _ int) Observation {
		return t.observe(camera, d, stale)
	}), nil
}

// TransformPoint maps a point in camera coordinates into the base frame.
func (t *Transformer) TransformPoint(robot spatialmath.RigidTransform, point r3.Vector) (r3.Vector, error) {
	camera, err := t.CameraPose(robot)
	if err != nil {
		return r3.Vector{}, err
	}
	return camera.Apply(point), nil
}

func (t *Transformer) observe(camera, detection spatialmath.RigidTransform, stale bool) Observation {
	return Observation{
		BaseToFiducial: camera.Compose(detection),
		Quality:        t.result.Quality,
		Stale:          stale,
	}
}
