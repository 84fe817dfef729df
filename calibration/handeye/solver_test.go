package handeye

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/logging"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
	"github.com/kelvinchow23/robot-system-tools/utils"
)

var (
	truthX   = mustTransform(r3.Vector{X: 0.1, Y: -0.2, Z: 1.4}, r3.Vector{X: 0.03, Y: -0.015, Z: 0.06})
	fiducial = mustTransform(r3.Vector{Z: 0.3}, r3.Vector{X: 0.55, Y: 0.1, Z: 0.02})
)

func mustTransform(rv, trans r3.Vector) spatialmath.RigidTransform {
	rot, err := spatialmath.NewRotationFromRotationVector(rv)
	if err != nil {
		panic(err)
	}
	return spatialmath.NewRigidTransform(rot, trans)
}

func randomUnit(rng *rand.Rand) r3.Vector {
	return r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Normalize()
}

// synthSamples builds samples from random tool poses, with Gaussian noise on the detections.
func synthSamples(n int, seed uint64, rotNoise, transNoise float64) []calibration.PoseSample {
	rng := rand.New(rand.NewPCG(seed, 99))
	samples := make([]calibration.PoseSample, 0, n)
	for i := 0; i < n; i++ {
		tool := mustTransform(
			randomUnit(rng).Mul(0.2+0.8*rng.Float64()),
			r3.Vector{X: 0.3 + 0.2*rng.Float64(), Y: 0.2*rng.Float64() - 0.1, Z: 0.3 + 0.2*rng.Float64()},
		)
		cam := spatialmath.Compose(tool, truthX).Inverse().Compose(fiducial)
		if rotNoise > 0 || transNoise > 0 {
			noise := mustTransform(
				r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Mul(rotNoise),
				r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Mul(transNoise),
			)
			cam = cam.Compose(noise)
		}
		samples = append(samples, calibration.PoseSample{ToolPose: tool, FiducialPose: cam, Quality: 1})
	}
	return samples
}

func newTestSolver(t *testing.T, method string) *Solver {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Method = method
	s, err := NewSolver(cfg, clock.NewMock(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return s
}

func TestRecoverGroundTruth(t *testing.T) {
	samples := synthSamples(10, 1, 0, 0)
	for _, method := range Methods() {
		t.Run(method, func(t *testing.T) {
			result, err := newTestSolver(t, method).SolveSamples(context.Background(), samples)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, result.Method, test.ShouldEqual, method)
			test.That(t, result.SampleCount, test.ShouldEqual, 10)
			test.That(t, result.Quality, test.ShouldEqual, calibration.QualityGood)

			x := result.ToolToCamera
			test.That(t, utils.RadToDeg(x.AngularDistance(truthX)), test.ShouldBeLessThan, 0.01)
			test.That(t, x.Translation().Distance(truthX.Translation()), test.ShouldBeLessThan, 1e-6)

			test.That(t, result.Residual.Pairs, test.ShouldEqual, 45)
			test.That(t, result.Residual.RotationRMSDeg, test.ShouldBeLessThan, 1e-5)
			test.That(t, result.Residual.TranslationRMS, test.ShouldBeLessThan, 1e-5)
			test.That(t, result.Residual.FiducialSpread, test.ShouldBeLessThan, 1e-5)
			test.That(t, result.Residual.FiducialSpreadStd, test.ShouldBeLessThan, 1e-5)
			test.That(t, result.Residual.FiducialSpreadMax, test.ShouldBeLessThan, 1e-5)
			test.That(t, result.Residual.Grade(), test.ShouldEqual, calibration.GradeExcellent)
		})
	}
}

func TestRecoverWithNoise(t *testing.T) {
	samples := synthSamples(15, 2, 0.0005, 0.0002)
	for _, method := range Methods() {
		t.Run(method, func(t *testing.T) {
			result, err := newTestSolver(t, method).SolveSamples(context.Background(), samples)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, result.Quality, test.ShouldEqual, calibration.QualityGood)
			x := result.ToolToCamera
			test.That(t, utils.RadToDeg(x.AngularDistance(truthX)), test.ShouldBeLessThan, 0.5)
			test.That(t, x.Translation().Distance(truthX.Translation()), test.ShouldBeLessThan, 0.005)
			test.That(t, result.Residual.RotationRMSDeg, test.ShouldBeGreaterThan, 0.)
		})
	}
}

func TestInsufficientSamples(t *testing.T) {
	samples := synthSamples(2, 3, 0, 0)
	for _, method := range Methods() {
		_, err := newTestSolver(t, method).SolveSamples(context.Background(), samples)
		test.That(t, errors.Is(err, ErrInsufficientSamples), test.ShouldBeTrue)
	}
	_, err := newTestSolver(t, DefaultMethod).Solve(context.Background(), calibration.NewSampleSet(time.Now()))
	test.That(t, errors.Is(err, ErrInsufficientSamples), test.ShouldBeTrue)
}

func TestDegenerateGeometry(t *testing.T) {
	var parallel []calibration.PoseSample
	for i := 0; i < 8; i++ {
		// every tool rotation shares the z axis
		tool := mustTransform(r3.Vector{Z: 0.3 * float64(i)}, r3.Vector{X: 0.4, Y: 0.05 * float64(i), Z: 0.3})
		cam := spatialmath.Compose(tool, truthX).Inverse().Compose(fiducial)
		parallel = append(parallel, calibration.PoseSample{ToolPose: tool, FiducialPose: cam})
	}
	var translated []calibration.PoseSample
	for i := 0; i < 5; i++ {
		tool := spatialmath.NewTranslation(r3.Vector{X: 0.1 * float64(i), Y: 0.3, Z: 0.4})
		cam := spatialmath.Compose(tool, truthX).Inverse().Compose(fiducial)
		translated = append(translated, calibration.PoseSample{ToolPose: tool, FiducialPose: cam})
	}

	for _, method := range Methods() {
		s := newTestSolver(t, method)
		_, err := s.SolveSamples(context.Background(), parallel)
		test.That(t, errors.Is(err, ErrDegenerateGeometry), test.ShouldBeTrue)
		_, err = s.SolveSamples(context.Background(), translated)
		test.That(t, errors.Is(err, ErrDegenerateGeometry), test.ShouldBeTrue)
	}

	// two samples are checked for count before geometry
	_, err := newTestSolver(t, DefaultMethod).SolveSamples(context.Background(), parallel[:2])
	test.That(t, errors.Is(err, ErrInsufficientSamples), test.ShouldBeTrue)
}

func TestPoorQualityIsReturned(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	cfg := DefaultConfig()
	cfg.Thresholds = Thresholds{RotationRMSDeg: 0.01, TranslationRMS: 1e-5}
	s, err := NewSolver(cfg, nil, logger)
	test.That(t, err, test.ShouldBeNil)

	result, err := s.SolveSamples(context.Background(), synthSamples(12, 4, 0.005, 0.002))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Poor(), test.ShouldBeTrue)
	test.That(t, result.ToolToCamera.AngularDistance(truthX), test.ShouldBeLessThan, utils.DegToRad(2))
	test.That(t, logs.FilterMessage("calibration residual exceeds thresholds").Len(), test.ShouldEqual, 1)
}

func TestSampleOrderInvariance(t *testing.T) {
	samples := synthSamples(10, 5, 0.001, 0.0005)
	reversed := make([]calibration.PoseSample, len(samples))
	for i, s := range samples {
		reversed[len(samples)-1-i] = s
	}
	shuffled := append([]calibration.PoseSample(nil), samples...)
	rand.New(rand.NewPCG(5, 5)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for _, method := range Methods() {
		t.Run(method, func(t *testing.T) {
			s := newTestSolver(t, method)
			want, err := s.SolveSamples(context.Background(), samples)
			test.That(t, err, test.ShouldBeNil)
			for _, order := range [][]calibration.PoseSample{reversed, shuffled} {
				got, err := s.SolveSamples(context.Background(), order)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, got.ToolToCamera.AlmostEqual(want.ToolToCamera, 1e-6), test.ShouldBeTrue)
				test.That(t, got.Residual.Pairs, test.ShouldEqual, want.Residual.Pairs)
				test.That(t, got.Residual.RotationRMSDeg, test.ShouldAlmostEqual, want.Residual.RotationRMSDeg, 1e-9)
				test.That(t, got.Residual.TranslationRMS, test.ShouldAlmostEqual, want.Residual.TranslationRMS, 1e-9)
				test.That(t, got.Residual.FiducialSpread, test.ShouldAlmostEqual, want.Residual.FiducialSpread, 1e-9)
			}
		})
	}
}

func TestBothWays(t *testing.T) {
	motions := Motions(synthSamples(4, 8, 0, 0))
	test.That(t, motions, test.ShouldHaveLength, 6)
	directed := BothWays(motions)
	test.That(t, directed, test.ShouldHaveLength, 12)
	for k, m := range motions {
		back := directed[len(motions)+k]
		test.That(t, back.I, test.ShouldEqual, m.J)
		test.That(t, back.J, test.ShouldEqual, m.I)
		test.That(t, back.A.Compose(m.A).AlmostEqual(spatialmath.Identity(), 1e-9), test.ShouldBeTrue)
		test.That(t, back.B.Compose(m.B).AlmostEqual(spatialmath.Identity(), 1e-9), test.ShouldBeTrue)
	}
}

func TestNilLoggerAndClock(t *testing.T) {
	s, err := NewSolver(DefaultConfig(), nil, nil)
	test.That(t, err, test.ShouldBeNil)
	result, err := s.SolveSamples(context.Background(), synthSamples(5, 6, 0, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Quality, test.ShouldEqual, calibration.QualityGood)
}

func TestSolveDebugLogging(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	logger.SetLevel(logging.WARN)
	s, err := NewSolver(DefaultConfig(), nil, logger)
	test.That(t, err, test.ShouldBeNil)
	samples := synthSamples(5, 6, 0, 0)

	_, err = s.SolveSamples(context.Background(), samples)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("solving hand-eye").Len(), test.ShouldEqual, 0)

	_, err = s.SolveSamples(logging.EnableDebugMode(context.Background(), ""), samples)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("solving hand-eye").Len(), test.ShouldEqual, 1)
}

func TestResultTimestamp(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	s, err := NewSolver(DefaultConfig(), mock, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Method(), test.ShouldEqual, "park")
	result, err := s.SolveSamples(context.Background(), synthSamples(5, 6, 0, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.CreatedAt, test.ShouldEqual, mock.Now())
}

func TestValidateWrongTransform(t *testing.T) {
	samples := synthSamples(6, 7, 0, 0)
	motions := Motions(samples)
	test.That(t, motions, test.ShouldHaveLength, 15)

	good := Validate(truthX, samples, motions)
	test.That(t, good.RotationMaxDeg, test.ShouldBeLessThan, 1e-8)
	test.That(t, good.TranslationMax, test.ShouldBeLessThan, 1e-10)

	off := truthX.Compose(mustTransform(r3.Vector{X: utils.DegToRad(2)}, r3.Vector{Y: 0.01}))
	bad := Validate(off, samples, motions)
	test.That(t, bad.RotationRMSDeg, test.ShouldBeGreaterThan, 0.1)
	test.That(t, bad.RotationMaxDeg, test.ShouldBeGreaterThanOrEqualTo, bad.RotationRMSDeg)
	test.That(t, bad.TranslationRMS, test.ShouldBeGreaterThan, 1e-3)
	test.That(t, bad.FiducialSpread, test.ShouldBeGreaterThan, 1e-3)
	test.That(t, bad.FiducialSpreadMax, test.ShouldBeGreaterThanOrEqualTo, bad.FiducialSpread)
	test.That(t, bad.FiducialSpreadStd, test.ShouldBeGreaterThan, 0.)
	test.That(t, DefaultThresholds().Judge(bad), test.ShouldEqual, calibration.QualityPoor)
}

func TestRegistry(t *testing.T) {
	test.That(t, Methods(), test.ShouldResemble, []string{"andreff", "daniilidis", "horaud", "park", "tsai"})
	alg, err := Lookup("horaud")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, alg.MinSamples(), test.ShouldEqual, calibration.MinimumSamples)

	_, err = Lookup("opencv")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "park")
	test.That(t, func() { Register(park{}) }, test.ShouldPanic)

	cfg := DefaultConfig()
	cfg.Method = "opencv"
	_, err = NewSolver(cfg, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	cfg = DefaultConfig()
	cfg.MaxConditionNumber = math.NaN()
	_, err = NewSolver(cfg, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDualQuatWeights(t *testing.T) {
	// basis (q, q') and (0, q) for q = identity, q' = 0: the real part must come from the first vector
	u1, v1 := []float64{1, 0, 0, 0}, []float64{0, 0, 0, 0}
	u2, v2 := []float64{0, 0, 0, 0}, []float64{1, 0, 0, 0}
	l1, l2, err := dualQuatWeights(u1, v1, u2, v2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(l1), test.ShouldAlmostEqual, 1.)
	test.That(t, l2, test.ShouldAlmostEqual, 0.)

	_, _, err = dualQuatWeights(u2, v2, u2, v2)
	test.That(t, err, test.ShouldNotBeNil)
}
