package collector

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrCollectionFailed is returned when no pose in a session produced a sample.
	ErrCollectionFailed = errors.New("collection failed")
	// ErrNoFiducial is returned by a Detector when the frame contains no fiducial.
	ErrNoFiducial = errors.New("no fiducial detected")
	// ErrLowQuality marks a detection whose quality score is below the configured threshold.
	ErrLowQuality = errors.New("detection quality below threshold")
)

// MotionError is a per-pose failure to reach a requested pose.
type MotionError struct {
	Index int
	Err   error
}

// NewMotionError returns a MotionError for the pose at index.
func NewMotionError(index int, err error) *MotionError {
	return &MotionError{Index: index, Err: err}
}

func (e *MotionError) Error() string {
	return fmt.Sprintf("motion to pose %d failed: %v", e.Index, e.Err)
}

func (e *MotionError) Unwrap() error {
	return e.Err
}

// DetectionError is a per-pose failure to get a usable fiducial detection after all retries.
type DetectionError struct {
	Index    int
	Attempts int
	Err      error
}

// NewDetectionError returns a DetectionError for the pose at index.
func NewDetectionError(index, attempts int, err error) *DetectionError {
	return &DetectionError{Index: index, Attempts: attempts, Err: err}
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection at pose %d failed after %d attempt(s): %v", e.Index, e.Attempts, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}
