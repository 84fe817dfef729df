package handeye

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
	"github.com/kelvinchow23/robot-system-tools/utils"
)

// Thresholds decide when a solved result is flagged poor.
type Thresholds struct {
	// RotationRMSDeg is the largest acceptable RMS rotation residual, in degrees.
	RotationRMSDeg float64
	// TranslationRMS is the largest acceptable RMS translation residual, in the samples' length unit.
	TranslationRMS float64
}

// DefaultThresholds are half a degree and five millimetres for translations in metres.
func DefaultThresholds() Thresholds {
	return Thresholds{RotationRMSDeg: 0.5, TranslationRMS: 0.005}
}

// Judge returns QualityPoor if either RMS residual exceeds its threshold.
func (th Thresholds) Judge(r calibration.Residual) calibration.Quality {
	if r.RotationRMSDeg > th.RotationRMSDeg || r.TranslationRMS > th.TranslationRMS {
		return calibration.QualityPoor
	}
	return calibration.QualityGood
}

// Validate measures how well x satisfies A∘X = X∘B for every motion, and how tightly the samples
// agree on where the fiducial is in the base frame. A pair's translation error is the RMS of its
// forward and reverse motion, so the residual does not depend on sample order.
func Validate(x spatialmath.RigidTransform, samples []calibration.PoseSample, motions []Motion) calibration.Residual {
	rotErrs := make([]float64, len(motions))
	transErrs := make([]float64, len(motions))
	for k, m := range motions {
		// the rotation error is the same in both directions, the translation error is not
		fwdRot, fwdTrans := motionError(x, m.A, m.B)
		_, revTrans := motionError(x, m.A.Inverse(), m.B.Inverse())
		rotErrs[k] = utils.RadToDeg(fwdRot)
		transErrs[k] = math.Sqrt((fwdTrans*fwdTrans + revTrans*revTrans) / 2)
	}

	fiducials := lo.Map(samples, func(s calibration.PoseSample, _ int) r3.Vector {
		return spatialmath.Compose(s.ToolPose, x, s.FiducialPose).Translation()
	})
	offsets := centroidDistances(fiducials)

	return calibration.Residual{
		RotationRMSDeg:    rms(rotErrs),
		RotationMaxDeg:    maxOf(rotErrs),
		TranslationRMS:    rms(transErrs),
		TranslationMax:    maxOf(transErrs),
		FiducialSpread:    rms(offsets),
		FiducialSpreadStd: stddev(offsets),
		FiducialSpreadMax: maxOf(offsets),
		Pairs:             len(motions),
	}
}

func motionError(x, a, b spatialmath.RigidTransform) (float64, float64) {
	ax := a.Compose(x)
	xb := x.Compose(b)
	return ax.AngularDistance(xb), ax.Translation().Sub(xb.Translation()).Norm()
}

func rms(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	squares := lo.Map(values, func(v float64, _ int) float64 { return v * v })
	mean, err := stats.Mean(squares)
	if err != nil {
		return math.NaN()
	}
	return math.Sqrt(mean)
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Max(values)
	if err != nil {
		return math.NaN()
	}
	return m
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sd, err := stats.StandardDeviation(values)
	if err != nil {
		return math.NaN()
	}
	return sd
}

// centroidDistances returns each point's distance from the centroid of all of them.
func centroidDistances(points []r3.Vector) []float64 {
	if len(points) == 0 {
		return nil
	}
	var centroid r3.Vector
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(len(points)))
	return lo.Map(points, func(p r3.Vector, _ int) float64 { return p.Distance(centroid) })
}
