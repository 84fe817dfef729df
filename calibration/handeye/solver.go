package handeye

import (
	"context"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/logging"
	"github.com/kelvinchow23/robot-system-tools/utils"
)

// DefaultMaxConditionNumber is the default limit on the condition number of the stacked (Ra − I) system.
const DefaultMaxConditionNumber = 1e5

// Config selects the algorithm and validation limits.
type Config struct {
	Method             string
	MaxConditionNumber float64
	Thresholds         Thresholds
}

// DefaultConfig returns the park method with default limits.
func DefaultConfig() Config {
	return Config{Method: DefaultMethod, MaxConditionNumber: DefaultMaxConditionNumber, Thresholds: DefaultThresholds()}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if _, err := Lookup(cfg.Method); err != nil {
		return errors.Wrap(err, path)
	}
	if !(cfg.MaxConditionNumber > 1) {
		return errors.Errorf("%s: max condition number must be greater than 1, got %v", path, cfg.MaxConditionNumber)
	}
	if cfg.Thresholds.RotationRMSDeg <= 0 || cfg.Thresholds.TranslationRMS <= 0 {
		return errors.Errorf("%s: quality thresholds must be positive", path)
	}
	return nil
}

// Solver computes calibration results. It holds no state between solves and is safe for concurrent use.
type Solver struct {
	cfg    Config
	alg    Algorithm
	clk    clock.Clock
	logger logging.Logger
}

// NewSolver returns a solver for cfg. A nil clock uses the wall clock for result timestamps and a
// nil logger discards output.
func NewSolver(cfg Config, clk clock.Clock, logger logging.Logger) (*Solver, error) {
	if err := cfg.Validate("handeye"); err != nil {
		return nil, err
	}
	alg, err := Lookup(cfg.Method)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.NewBlankLogger("handeye")
	}
	return &Solver{cfg: cfg, alg: alg, clk: clk, logger: logger}, nil
}

// Method returns the name of the configured algorithm.
func (s *Solver) Method() string {
	return s.alg.Name()
}

// Solve calibrates from a collected sample set.
func (s *Solver) Solve(ctx context.Context, set *calibration.SampleSet) (*calibration.Result, error) {
	return s.SolveSamples(ctx, set.Samples())
}

// SolveSamples calibrates from samples in any order. A result that misses its thresholds is still
// returned, with Quality set to QualityPoor. ctx only carries logging state; a solve is not
// interruptible.
func (s *Solver) SolveSamples(ctx context.Context, samples []calibration.PoseSample) (*calibration.Result, error) {
	if len(samples) < s.alg.MinSamples() {
		return nil, NewInsufficientSamplesError(s.alg.Name(), len(samples), s.alg.MinSamples())
	}
	motions := Motions(samples)
	directed := BothWays(motions)
	cond := conditionNumber(rotationSystem(directed))
	if math.IsNaN(cond) || cond > s.cfg.MaxConditionNumber {
		return nil, NewDegenerateGeometryError(cond, s.cfg.MaxConditionNumber)
	}
	s.logger.CDebugw(ctx, "solving hand-eye", "method", s.alg.Name(), "samples", len(samples), "pairs", len(motions), "cond", cond)

	x, err := s.alg.Solve(directed)
	if err != nil {
		return nil, errors.Wrapf(err, "%s solve failed", s.alg.Name())
	}
	t := x.Translation()
	if !utils.IsFinite(t.X, t.Y, t.Z) {
		return nil, errors.Errorf("%s produced a non-finite translation", s.alg.Name())
	}

	residual := Validate(x, samples, motions)
	result := &calibration.Result{
		ToolToCamera: x,
		Method:       s.alg.Name(),
		Residual:     residual,
		Quality:      s.cfg.Thresholds.Judge(residual),
		SampleCount:  len(samples),
		CreatedAt:    s.clk.Now(),
	}
	if result.Poor() {
		s.logger.Warnw("calibration residual exceeds thresholds", "method", result.Method, "residual", residual.String())
	} else {
		s.logger.Infow("calibration solved", "method", result.Method, "residual", residual.String())
	}
	return result, nil
}
