package calibration

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kelvinchow23/robot-system-tools/spatialmath"
	"github.com/kelvinchow23/robot-system-tools/utils"
)

type sampleSetDoc struct {
	SessionID uuid.UUID     `json:"session_id"`
	CreatedAt time.Time     `json:"created_at"`
	Samples   []PoseSample  `json:"samples"`
	Skipped   []SkippedPose `json:"skipped,omitempty"`
}

// MarshalJSON writes the raw collection record.
func (s *SampleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleSetDoc{
		SessionID: s.SessionID,
		CreatedAt: s.CreatedAt,
		Samples:   s.samples,
		Skipped:   s.skipped,
	})
}

// UnmarshalJSON reads a raw collection record.
func (s *SampleSet) UnmarshalJSON(data []byte) error {
	var doc sampleSetDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*s = SampleSet{SessionID: doc.SessionID, CreatedAt: doc.CreatedAt, samples: doc.Samples, skipped: doc.Skipped}
	return nil
}

// SaveSampleSet atomically writes the set as indented JSON.
func SaveSampleSet(path string, set *SampleSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode sample set")
	}
	return utils.WriteFileAtomic(path, data, 0o644)
}

// LoadSampleSet reads a set written by SaveSampleSet.
func LoadSampleSet(path string) (*SampleSet, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sample set")
	}
	var set SampleSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrapf(err, "failed to decode sample set %q", path)
	}
	return &set, nil
}

type axisAngleDegrees struct {
	Theta float64 `yaml:"theta_deg"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Z     float64 `yaml:"z"`
}

// resultDoc is the persisted calibration. Matrix and AxisAngle are informational renderings of
// ToolToCamera; Matrix is only read when ToolToCamera is absent. A document without a quality
// loads as QualityPoor.
type resultDoc struct {
	Method       string                      `yaml:"method"`
	ToolToCamera *spatialmath.RigidTransform `yaml:"tool_to_camera,omitempty"`
	Matrix       *[4][4]float64              `yaml:"matrix,omitempty,flow"`
	AxisAngle    *axisAngleDegrees           `yaml:"axis_angle,omitempty"`
	Residual     Residual                    `yaml:"residual"`
	Quality      Quality                     `yaml:"quality"`
	SampleCount  int                         `yaml:"sample_count"`
	CreatedAt    time.Time                   `yaml:"created_at"`
}

// MarshalYAML implements yaml.Marshaler.
func (r Result) MarshalYAML() (interface{}, error) {
	m := r.ToolToCamera.Mat4()
	var rows [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	aa := r.ToolToCamera.Rotation().AxisAngles()
	tc := r.ToolToCamera
	return resultDoc{
		Method:       r.Method,
		ToolToCamera: &tc,
		Matrix:       &rows,
		AxisAngle:    &axisAngleDegrees{Theta: utils.RadToDeg(aa.Theta), X: aa.RX, Y: aa.RY, Z: aa.RZ},
		Residual:     r.Residual,
		Quality:      r.Quality,
		SampleCount:  r.SampleCount,
		CreatedAt:    r.CreatedAt,
	}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Result) UnmarshalYAML(value *yaml.Node) error {
	var doc resultDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	var tc spatialmath.RigidTransform
	switch {
	case doc.ToolToCamera != nil:
		tc = *doc.ToolToCamera
	case doc.Matrix != nil:
		var m mgl64.Mat4
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				m.Set(i, j, doc.Matrix[i][j])
			}
		}
		var err error
		if tc, err = spatialmath.NewRigidTransformFromMat4(m); err != nil {
			return err
		}
	default:
		return errors.New("calibration has neither tool_to_camera nor matrix")
	}
	switch doc.Quality {
	case QualityGood, QualityPoor:
	case "":
		// an unstated verdict is not trusted
		doc.Quality = QualityPoor
	default:
		return errors.Errorf("unknown calibration quality %q", doc.Quality)
	}
	*r = Result{
		ToolToCamera: tc,
		Method:       doc.Method,
		Residual:     doc.Residual,
		Quality:      doc.Quality,
		SampleCount:  doc.SampleCount,
		CreatedAt:    doc.CreatedAt,
	}
	return nil
}

// SaveResult atomically writes the result as YAML.
func SaveResult(path string, result *Result) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "failed to encode calibration")
	}
	return utils.WriteFileAtomic(path, data, 0o644)
}

// LoadResult reads a result written by SaveResult.
func LoadResult(path string) (*Result, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read calibration")
	}
	var result Result
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrapf(err, "failed to decode calibration %q", path)
	}
	return &result, nil
}
