// Package collector drives a robot and a fiducial detector through a sequence of poses and pairs
// each reached tool pose with the fiducial pose seen from it.
package collector

import (
	"context"
	"iter"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/calibration/posesampler"
	"github.com/kelvinchow23/robot-system-tools/logging"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// Mover moves the robot. MoveTo blocks until motion completes and returns the base→tool pose
// actually reached, which may differ slightly from the requested one.
type Mover interface {
	MoveTo(ctx context.Context, pose spatialmath.RigidTransform) (spatialmath.RigidTransform, error)
}

// Detector captures a frame and locates the fiducial in it.
type Detector interface {
	CaptureAndDetect(ctx context.Context) (Detection, error)
}

// Detection is a camera→fiducial pose with a quality score in [0, 1].
type Detection struct {
	Pose       spatialmath.RigidTransform
	FiducialID int
	Quality    float64
	ImageRef   string
}

// Config configures a collection session.
type Config struct {
	// QualityThreshold is the lowest detection quality accepted as a sample.
	QualityThreshold float64
	// TargetSamples stops collection early once reached. Zero visits every pose.
	TargetSamples int
	// MotionSettle is waited after each move before the first capture.
	MotionSettle time.Duration
	Retry        RetryPolicy
	// RawDataPath, if set, is where the sample set is written when collection ends.
	RawDataPath string
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > 1 {
		return errors.Errorf("%s: quality threshold must be in [0, 1], got %v", path, cfg.QualityThreshold)
	}
	if cfg.TargetSamples < 0 {
		return errors.Errorf("%s: target samples cannot be negative", path)
	}
	if cfg.MotionSettle < 0 {
		return errors.Errorf("%s: motion settle cannot be negative", path)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return errors.Wrap(err, path)
	}
	return nil
}

// Collector runs collection sessions. It owns its Mover and Detector for the duration of a session
// and must not be used from more than one goroutine at a time.
type Collector struct {
	mover    Mover
	detector Detector
	cfg      Config
	clk      clock.Clock
	logger   logging.Logger
}

// New returns a Collector. A nil clock uses the wall clock and a nil logger discards output.
func New(mover Mover, detector Detector, cfg Config, clk clock.Clock, logger logging.Logger) (*Collector, error) {
	if mover == nil || detector == nil {
		return nil, errors.New("collector needs both a mover and a detector")
	}
	if err := cfg.Validate("collector"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.NewBlankLogger("collector")
	}
	return &Collector{mover: mover, detector: detector, cfg: cfg, clk: clk, logger: logger}, nil
}

// CollectPlan collects over every pose of a sampler plan.
func (c *Collector) CollectPlan(ctx context.Context, plan *posesampler.Plan) (*calibration.SampleSet, error) {
	return c.Collect(ctx, plan.Poses())
}

// Collect visits poses in order. Motion and detection failures skip the pose and are recorded on
// the returned set. If every pose fails the error wraps ErrCollectionFailed and no set is returned.
//
// Cancellation is checked between poses and during settle waits; a move in progress is allowed to
// finish. On cancellation the samples gathered so far are returned along with the context error.
func (c *Collector) Collect(
	ctx context.Context,
	poses iter.Seq2[int, spatialmath.RigidTransform],
) (*calibration.SampleSet, error) {
	set := calibration.NewSampleSet(c.clk.Now())
	logger := c.logger.Sublogger(set.SessionID.String()[:8])
	logger.Infow("starting collection", "target_samples", c.cfg.TargetSamples)

	var visited int
	var failures error
	var cancelErr error
	for i, requested := range poses {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		visited++

		sample, attempts, err := c.visit(ctx, i, requested)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				cancelErr = ctxErr
				break
			}
			logger.Warnw("skipping pose", "index", i, "error", err)
			set.RecordSkip(calibration.SkippedPose{Index: i, Requested: requested, Reason: err.Error(), Attempts: attempts})
			failures = multierr.Append(failures, err)
			continue
		}
		set.Add(sample)
		logger.CDebugw(ctx, "collected sample", "index", i, "quality", sample.Quality, "attempts", attempts)

		if c.cfg.TargetSamples > 0 && set.Len() >= c.cfg.TargetSamples {
			logger.Infow("reached target sample count", "samples", set.Len())
			break
		}
	}

	if cancelErr != nil {
		logger.Warnw("collection cancelled", "samples", set.Len(), "visited", visited)
		return set, multierr.Combine(cancelErr, c.persist(set))
	}
	if set.Len() == 0 {
		return nil, multierr.Append(errors.Wrapf(ErrCollectionFailed, "none of %d poses produced a sample", visited), failures)
	}
	logger.Infow("collection finished", "samples", set.Len(), "skipped", len(set.Skipped()))
	if err := c.persist(set); err != nil {
		return set, err
	}
	return set, nil
}

func (c *Collector) visit(ctx context.Context, index int, requested spatialmath.RigidTransform) (calibration.PoseSample, int, error) {
	achieved, err := c.mover.MoveTo(context.WithoutCancel(ctx), requested)
	if err != nil {
		return calibration.PoseSample{}, 0, NewMotionError(index, err)
	}
	if err := c.wait(ctx, c.cfg.MotionSettle); err != nil {
		return calibration.PoseSample{}, 0, err
	}

	var attempts int
	var attemptErrs error
	var detection Detection
	op := func() error {
		attempts++
		d, err := c.detector.CaptureAndDetect(ctx)
		switch {
		case err != nil:
		case d.Quality < c.cfg.QualityThreshold:
			err = errors.Wrapf(ErrLowQuality, "quality %.3f < %.3f", d.Quality, c.cfg.QualityThreshold)
		default:
			detection = d
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		attemptErrs = multierr.Append(attemptErrs, err)
		return err
	}
	notify := func(err error, next time.Duration) {
		c.logger.CDebugw(ctx, "retrying detection", "index", index, "attempt", attempts, "wait", next, "error", err)
	}
	err = backoff.RetryNotifyWithTimer(op, c.cfg.Retry.newBackOff(ctx, c.clk), notify, &clockTimer{clk: c.clk})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return calibration.PoseSample{}, attempts, ctxErr
		}
		return calibration.PoseSample{}, attempts, NewDetectionError(index, attempts, attemptErrs)
	}

	return calibration.PoseSample{
		ToolPose:     achieved,
		FiducialPose: detection.Pose,
		FiducialID:   detection.FiducialID,
		Quality:      detection.Quality,
		Timestamp:    c.clk.Now(),
		ImageRef:     detection.ImageRef,
	}, attempts, nil
}

func (c *Collector) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := c.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Collector) persist(set *calibration.SampleSet) error {
	if c.cfg.RawDataPath == "" {
		return nil
	}
	if err := calibration.SaveSampleSet(c.cfg.RawDataPath, set); err != nil {
		return errors.Wrap(err, "failed to persist raw samples")
	}
	c.logger.Infow("saved raw samples", "path", c.cfg.RawDataPath, "samples", set.Len())
	return nil
}
