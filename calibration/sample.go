// Package calibration holds the data shared by the hand-eye calibration pipeline: pose samples
// collected from a robot and camera, and the solved tool to camera result.
package calibration

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

const (
	// MinimumSamples is the fewest samples any solver accepts.
	MinimumSamples = 3
	// RecommendedSamples is the sample count below which solves tend to be poorly conditioned.
	RecommendedSamples = 10
)

// PoseSample is one paired observation: the tool pose the robot reached and the fiducial pose the
// camera saw from there.
type PoseSample struct {
	// ToolPose is base→tool.
	ToolPose spatialmath.RigidTransform `json:"tool_pose"`
	// FiducialPose is camera→fiducial.
	FiducialPose spatialmath.RigidTransform `json:"fiducial_pose"`
	// FiducialID is the marker id reported by the detector.
	FiducialID int       `json:"fiducial_id"`
	Quality    float64   `json:"quality"`
	Timestamp  time.Time `json:"timestamp"`
	ImageRef   string    `json:"image_ref,omitempty"`
}

// SkippedPose records a candidate pose that produced no sample.
type SkippedPose struct {
	Index     int                        `json:"index"`
	Requested spatialmath.RigidTransform `json:"requested"`
	Reason    string                     `json:"reason"`
	Attempts  int                        `json:"attempts"`
}

// SampleSet is an ordered collection of samples from one collection session.
type SampleSet struct {
	SessionID uuid.UUID
	CreatedAt time.Time

	samples []PoseSample
	skipped []SkippedPose
}

// NewSampleSet returns an empty set with a fresh session id.
func NewSampleSet(createdAt time.Time, samples ...PoseSample) *SampleSet {
	return &SampleSet{
		SessionID: uuid.New(),
		CreatedAt: createdAt,
		samples:   slices.Clone(samples),
	}
}

// Add appends a sample.
func (s *SampleSet) Add(sample PoseSample) {
	s.samples = append(s.samples, sample)
}

// RecordSkip appends a skipped pose diagnostic.
func (s *SampleSet) RecordSkip(skip SkippedPose) {
	s.skipped = append(s.skipped, skip)
}

// Len returns the number of samples.
func (s *SampleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.samples)
}

// At returns the i-th sample in insertion order.
func (s *SampleSet) At(i int) PoseSample {
	return s.samples[i]
}

// Samples returns a copy of the samples in insertion order.
func (s *SampleSet) Samples() []PoseSample {
	if s == nil {
		return nil
	}
	return slices.Clone(s.samples)
}

// Skipped returns a copy of the skipped pose diagnostics.
func (s *SampleSet) Skipped() []SkippedPose {
	if s == nil {
		return nil
	}
	return slices.Clone(s.skipped)
}
