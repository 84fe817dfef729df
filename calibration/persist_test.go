package calibration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

func testTransform(t *testing.T, rv, trans r3.Vector) spatialmath.RigidTransform {
	t.Helper()
	rot, err := spatialmath.NewRotationFromRotationVector(rv)
	test.That(t, err, test.ShouldBeNil)
	return spatialmath.NewRigidTransform(rot, trans)
}

func TestSampleSetCopyOnRead(t *testing.T) {
	set := NewSampleSet(time.Unix(100, 0).UTC())
	set.Add(PoseSample{Quality: 0.9})
	set.Add(PoseSample{Quality: 0.8})
	test.That(t, set.Len(), test.ShouldEqual, 2)

	samples := set.Samples()
	samples[0].Quality = 0
	test.That(t, set.At(0).Quality, test.ShouldEqual, 0.9)

	set.RecordSkip(SkippedPose{Index: 3, Reason: "no fiducial", Attempts: 3})
	skipped := set.Skipped()
	test.That(t, skipped, test.ShouldHaveLength, 1)
	test.That(t, skipped[0].Index, test.ShouldEqual, 3)

	var nilSet *SampleSet
	test.That(t, nilSet.Len(), test.ShouldEqual, 0)
	test.That(t, nilSet.Samples(), test.ShouldBeNil)
}

func TestSampleSetRoundTrip(t *testing.T) {
	set := NewSampleSet(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	for i := 0; i < 4; i++ {
		f := float64(i)
		set.Add(PoseSample{
			ToolPose:     testTransform(t, r3.Vector{X: 0.1 * f, Y: -0.3, Z: 0.2}, r3.Vector{X: 0.4, Y: 0.1 * f, Z: 0.3}),
			FiducialPose: testTransform(t, r3.Vector{X: 3.0, Y: 0.01 * f}, r3.Vector{Z: 0.5 + 0.01*f}),
			FiducialID:   7,
			Quality:      0.95,
			Timestamp:    set.CreatedAt.Add(time.Duration(i) * time.Second),
			ImageRef:     "frame.jpg",
		})
	}
	set.RecordSkip(SkippedPose{Index: 4, Requested: testTransform(t, r3.Vector{Y: 1}, r3.Vector{}), Reason: "unreachable", Attempts: 1})

	path := filepath.Join(t.TempDir(), "raw", "samples.json")
	test.That(t, SaveSampleSet(path, set), test.ShouldBeNil)

	loaded, err := LoadSampleSet(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.SessionID, test.ShouldEqual, set.SessionID)
	test.That(t, loaded.CreatedAt.Equal(set.CreatedAt), test.ShouldBeTrue)
	test.That(t, loaded.Len(), test.ShouldEqual, set.Len())
	for i := 0; i < set.Len(); i++ {
		test.That(t, loaded.At(i).ToolPose.Equal(set.At(i).ToolPose), test.ShouldBeTrue)
		test.That(t, loaded.At(i).FiducialPose.Equal(set.At(i).FiducialPose), test.ShouldBeTrue)
		test.That(t, loaded.At(i).Quality, test.ShouldEqual, set.At(i).Quality)
		test.That(t, loaded.At(i).FiducialID, test.ShouldEqual, 7)
		test.That(t, loaded.At(i).ImageRef, test.ShouldEqual, "frame.jpg")
	}
	test.That(t, loaded.Skipped()[0].Reason, test.ShouldEqual, "unreachable")

	_, err = LoadSampleSet(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestResultRoundTrip(t *testing.T) {
	result := &Result{
		ToolToCamera: testTransform(t, r3.Vector{X: 0.02, Y: -0.01, Z: 1.57}, r3.Vector{X: 0.031, Y: -0.002, Z: 0.045}),
		Method:       "park",
		Residual: Residual{
			RotationRMSDeg:    0.01,
			RotationMaxDeg:    0.03,
			TranslationRMS:    1e-4,
			TranslationMax:    3e-4,
			FiducialSpread:    2e-4,
			FiducialSpreadStd: 1e-4,
			FiducialSpreadMax: 4e-4,
			Pairs:             66,
		},
		Quality:      QualityGood,
		SampleCount:  12,
		CreatedAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	path := filepath.Join(t.TempDir(), "handeye.yaml")
	test.That(t, SaveResult(path, result), test.ShouldBeNil)

	loaded, err := LoadResult(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.ToolToCamera.Equal(result.ToolToCamera), test.ShouldBeTrue)
	test.That(t, cmp.Diff(result.Residual, loaded.Residual), test.ShouldBeEmpty)
	test.That(t, loaded.Method, test.ShouldEqual, "park")
	test.That(t, loaded.Quality, test.ShouldEqual, QualityGood)
	test.That(t, loaded.SampleCount, test.ShouldEqual, 12)
	test.That(t, loaded.CreatedAt.Equal(result.CreatedAt), test.ShouldBeTrue)
	test.That(t, loaded.Poor(), test.ShouldBeFalse)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "matrix:")
	test.That(t, string(data), test.ShouldContainSubstring, "theta_deg:")
}

func TestResultMatrixFallback(t *testing.T) {
	doc := `method: tsai
matrix:
  - [0, -1, 0, 0.1]
  - [1, 0, 0, 0.2]
  - [0, 0, 1, 0.3]
  - [0, 0, 0, 1]
quality: poor
sample_count: 5
`
	path := filepath.Join(t.TempDir(), "legacy.yaml")
	test.That(t, os.WriteFile(path, []byte(doc), 0o600), test.ShouldBeNil)

	loaded, err := LoadResult(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Poor(), test.ShouldBeTrue)
	p := loaded.ToolToCamera.Apply(r3.Vector{X: 1})
	test.That(t, p.X, test.ShouldAlmostEqual, 0.1)
	test.That(t, p.Y, test.ShouldAlmostEqual, 1.2)
	test.That(t, p.Z, test.ShouldAlmostEqual, 0.3)

	test.That(t, os.WriteFile(path, []byte("method: tsai\n"), 0o600), test.ShouldBeNil)
	_, err = LoadResult(path)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, os.WriteFile(path, []byte(strings.ReplaceAll(doc, "quality: poor", "quality: excellent")), 0o600), test.ShouldBeNil)
	_, err = LoadResult(path)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestResultMissingQuality(t *testing.T) {
	doc := `method: park
tool_to_camera:
  rotation: [[1, 0, 0], [0, 1, 0], [0, 0, 1]]
  translation: [0, 0, 0.05]
residual:
  rotation_rms_deg: 12
  translation_rms: 0.2
sample_count: 10
`
	path := filepath.Join(t.TempDir(), "handeye.yaml")
	test.That(t, os.WriteFile(path, []byte(doc), 0o600), test.ShouldBeNil)

	loaded, err := LoadResult(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Quality, test.ShouldEqual, QualityPoor)
	test.That(t, loaded.Poor(), test.ShouldBeTrue)
	test.That(t, loaded.Residual.RotationRMSDeg, test.ShouldEqual, 12.)
}

func TestResidualGrade(t *testing.T) {
	for spread, grade := range map[float64]Grade{
		0:      GradeExcellent,
		0.004:  GradeExcellent,
		0.005:  GradeGood,
		0.0099: GradeGood,
		0.015:  GradeFair,
		0.02:   GradePoor,
		1:      GradePoor,
	} {
		test.That(t, Residual{FiducialSpread: spread}.Grade(), test.ShouldEqual, grade)
	}
	test.That(t, Residual{FiducialSpreadStd: 0.25}.String(), test.ShouldContainSubstring, "std 0.25")
}
