package calibration

import (
	"fmt"
	"time"

	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// Quality is the verdict attached to a solved calibration.
type Quality string

// Quality values.
const (
	QualityGood = Quality("good")
	QualityPoor = Quality("poor")
)

// Residual summarizes how well a solved transform satisfies A∘X = X∘B over all sample pairs.
type Residual struct {
	RotationRMSDeg float64 `json:"rotation_rms_deg" yaml:"rotation_rms_deg"`
	RotationMaxDeg float64 `json:"rotation_max_deg" yaml:"rotation_max_deg"`
	TranslationRMS float64 `json:"translation_rms" yaml:"translation_rms"`
	TranslationMax float64 `json:"translation_max" yaml:"translation_max"`
	// FiducialSpread is the RMS distance of each sample's base-frame fiducial position from their mean.
	FiducialSpread    float64 `json:"fiducial_spread" yaml:"fiducial_spread"`
	FiducialSpreadStd float64 `json:"fiducial_spread_std" yaml:"fiducial_spread_std"`
	FiducialSpreadMax float64 `json:"fiducial_spread_max" yaml:"fiducial_spread_max"`
	Pairs             int     `json:"pairs" yaml:"pairs"`
}

func (r Residual) String() string {
	return fmt.Sprintf(
		"rotation rms %.4g° (max %.4g°), translation rms %.4g (max %.4g), spread %.4g (std %.4g, max %.4g) over %d pairs",
		r.RotationRMSDeg, r.RotationMaxDeg, r.TranslationRMS, r.TranslationMax,
		r.FiducialSpread, r.FiducialSpreadStd, r.FiducialSpreadMax, r.Pairs)
}

// Grade is a coarse human-facing rating of how well the samples agree on the fiducial position.
type Grade string

// Grade values, from best to worst.
const (
	GradeExcellent = Grade("excellent")
	GradeGood      = Grade("good")
	GradeFair      = Grade("fair")
	GradePoor      = Grade("poor")
)

// Grade rates FiducialSpread, taken to be in metres: under 5mm is excellent, under 10mm good and
// under 20mm fair.
func (r Residual) Grade() Grade {
	switch {
	case r.FiducialSpread < 0.005:
		return GradeExcellent
	case r.FiducialSpread < 0.01:
		return GradeGood
	case r.FiducialSpread < 0.02:
		return GradeFair
	default:
		return GradePoor
	}
}

// Result is a solved tool→camera calibration. It is never modified after creation.
type Result struct {
	ToolToCamera spatialmath.RigidTransform
	Method       string
	Residual     Residual
	Quality      Quality
	SampleCount  int
	CreatedAt    time.Time
}

// Poor reports whether the result failed its validation thresholds.
func (r *Result) Poor() bool {
	return r.Quality == QualityPoor
}
