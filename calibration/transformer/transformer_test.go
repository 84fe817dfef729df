package transformer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/logging"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

func transform(t *testing.T, ea spatialmath.EulerAngles, trans r3.Vector) spatialmath.RigidTransform {
	t.Helper()
	rot, err := spatialmath.NewRotationFromEulerAngles(ea)
	test.That(t, err, test.ShouldBeNil)
	return spatialmath.NewRigidTransform(rot, trans)
}

func TestIdentityChain(t *testing.T) {
	tf, err := New(&calibration.Result{ToolToCamera: spatialmath.Identity(), Quality: calibration.QualityGood})
	test.That(t, err, test.ShouldBeNil)

	obs, err := tf.Transform(spatialmath.Identity(), spatialmath.NewTranslation(r3.Vector{X: 0.1, Y: 0, Z: 0.5}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs.BaseToFiducial.Translation(), test.ShouldResemble, r3.Vector{X: 0.1, Y: 0, Z: 0.5})
	test.That(t, obs.Stale, test.ShouldBeFalse)
	test.That(t, obs.Quality, test.ShouldEqual, calibration.QualityGood)
}

func TestChainOrder(t *testing.T) {
	x := transform(t, spatialmath.EulerAngles{Roll: 0.1, Pitch: -0.2, Yaw: 1.5}, r3.Vector{X: 0.03, Y: 0.01, Z: 0.05})
	robot := transform(t, spatialmath.EulerAngles{Roll: 3.1, Pitch: 0.2, Yaw: -0.4}, r3.Vector{X: 0.4, Y: -0.1, Z: 0.35})
	detection := transform(t, spatialmath.EulerAngles{Roll: 0.05, Yaw: 0.7}, r3.Vector{X: 0.02, Y: -0.04, Z: 0.3})

	tf, err := New(&calibration.Result{ToolToCamera: x, Quality: calibration.QualityGood}, WithLogger(logging.NewTestLogger(t)))
	test.That(t, err, test.ShouldBeNil)

	obs, err := tf.Transform(robot, detection)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs.BaseToFiducial.AlmostEqual(robot.Compose(x.Compose(detection)), 1e-12), test.ShouldBeTrue)

	// the fiducial origin seen by the camera is the detection's translation
	p, err := tf.TransformPoint(robot, detection.Translation())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Sub(obs.BaseToFiducial.Translation()).Norm(), test.ShouldBeLessThan, 1e-12)

	camera, err := tf.CameraPose(robot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, camera.AlmostEqual(robot.Compose(x), 1e-12), test.ShouldBeTrue)

	batch, err := tf.TransformBatch(robot, []spatialmath.RigidTransform{detection, spatialmath.Identity()})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, batch, test.ShouldHaveLength, 2)
	test.That(t, batch[0].BaseToFiducial.AlmostEqual(obs.BaseToFiducial, 1e-12), test.ShouldBeTrue)
	test.That(t, batch[1].BaseToFiducial.AlmostEqual(camera, 1e-12), test.ShouldBeTrue)
}

func TestPoorCalibration(t *testing.T) {
	poor := &calibration.Result{ToolToCamera: spatialmath.Identity(), Quality: calibration.QualityPoor}
	detection := spatialmath.NewTranslation(r3.Vector{Z: 1})

	logger, logs := logging.NewObservedTestLogger(t)
	lenient, err := New(poor, WithLogger(logger))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("calibration quality is poor").Len(), test.ShouldEqual, 1)
	obs, err := lenient.Transform(spatialmath.Identity(), detection)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs.Stale, test.ShouldBeTrue)
	test.That(t, obs.Quality, test.ShouldEqual, calibration.QualityPoor)

	strict, err := New(poor, WithStrict(), WithLogger(logger))
	test.That(t, err, test.ShouldBeNil)
	_, err = strict.Transform(spatialmath.Identity(), detection)
	test.That(t, errors.Is(err, ErrStaleCalibration), test.ShouldBeTrue)
	_, err = strict.TransformBatch(spatialmath.Identity(), []spatialmath.RigidTransform{detection})
	test.That(t, errors.Is(err, ErrStaleCalibration), test.ShouldBeTrue)
	_, err = strict.TransformPoint(spatialmath.Identity(), r3.Vector{})
	test.That(t, errors.Is(err, ErrStaleCalibration), test.ShouldBeTrue)
}

func TestMaxAge(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result := &calibration.Result{ToolToCamera: spatialmath.Identity(), Quality: calibration.QualityGood, CreatedAt: mock.Now()}

	strict, err := New(result, WithStrict(), WithMaxAge(24*time.Hour), WithClock(mock))
	test.That(t, err, test.ShouldBeNil)
	lenient, err := New(result, WithMaxAge(24*time.Hour), WithClock(mock))
	test.That(t, err, test.ShouldBeNil)

	mock.Add(23 * time.Hour)
	_, err = strict.Transform(spatialmath.Identity(), spatialmath.Identity())
	test.That(t, err, test.ShouldBeNil)

	mock.Add(2 * time.Hour)
	_, err = strict.Transform(spatialmath.Identity(), spatialmath.Identity())
	test.That(t, errors.Is(err, ErrStaleCalibration), test.ShouldBeTrue)
	obs, err := lenient.Transform(spatialmath.Identity(), spatialmath.Identity())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs.Stale, test.ShouldBeTrue)

	_, err = New(result, WithMaxAge(-time.Second))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoad(t *testing.T) {
	x := transform(t, spatialmath.EulerAngles{Yaw: 0.3}, r3.Vector{X: 0.05})
	path := filepath.Join(t.TempDir(), "handeye.yaml")
	test.That(t, calibration.SaveResult(path, &calibration.Result{
		ToolToCamera: x,
		Method:       "park",
		Quality:      calibration.QualityGood,
		SampleCount:  12,
		CreatedAt:    time.Now(),
	}), test.ShouldBeNil)

	tf, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.Calibration().ToolToCamera.Equal(x), test.ShouldBeTrue)
	test.That(t, tf.Calibration().Method, test.ShouldEqual, "park")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New(nil)
	test.That(t, err, test.ShouldNotBeNil)
}
