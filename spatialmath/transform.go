package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/kelvinchow23/robot-system-tools/utils"
)

// RigidTransform is a rotation followed by a translation. A transform named a→b is the pose of frame b
// expressed in frame a, so it maps points from b coordinates into a coordinates, and composing
// a→b with b→c gives a→c. The zero value is the identity.
type RigidTransform struct {
	rot   *RotationMatrix
	trans r3.Vector
}

// NewRigidTransform builds a transform from a rotation and translation. A nil rotation is the identity.
func NewRigidTransform(rot *RotationMatrix, trans r3.Vector) RigidTransform {
	return RigidTransform{rot: rot, trans: trans}
}

// NewTranslation builds a pure translation.
func NewTranslation(trans r3.Vector) RigidTransform {
	return RigidTransform{trans: trans}
}

// Identity returns the transform that does nothing.
func Identity() RigidTransform {
	return RigidTransform{}
}

// NewRigidTransformFromMat4 builds a transform from a homogeneous matrix. The bottom row must be 0 0 0 1.
func NewRigidTransformFromMat4(m mgl64.Mat4) (RigidTransform, error) {
	if !utils.Float64AlmostEqual(m.At(3, 0), 0, 1e-9) || !utils.Float64AlmostEqual(m.At(3, 1), 0, 1e-9) ||
		!utils.Float64AlmostEqual(m.At(3, 2), 0, 1e-9) || !utils.Float64AlmostEqual(m.At(3, 3), 1, 1e-9) {
		return RigidTransform{}, NewInvalidRotationError("homogeneous matrix bottom row is not 0 0 0 1")
	}
	rot, err := NewRotationMatrix([]float64{
		m.At(0, 0), m.At(0, 1), m.At(0, 2),
		m.At(1, 0), m.At(1, 1), m.At(1, 2),
		m.At(2, 0), m.At(2, 1), m.At(2, 2),
	})
	if err != nil {
		return RigidTransform{}, err
	}
	trans := r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
	if !utils.IsFinite(trans.X, trans.Y, trans.Z) {
		return RigidTransform{}, NewInvalidRotationError("translation has non-finite values")
	}
	return RigidTransform{rot: rot, trans: trans}, nil
}

// Rotation returns the rotation part.
func (t RigidTransform) Rotation() *RotationMatrix {
	if t.rot == nil {
		return &identityRotation
	}
	return t.rot
}

// Translation returns the translation part.
func (t RigidTransform) Translation() r3.Vector {
	return t.trans
}

// Compose returns t∘other, which applies other first and then t.
func (t RigidTransform) Compose(other RigidTransform) RigidTransform {
	r := t.Rotation()
	return RigidTransform{
		rot:   r.Mul(other.Rotation()),
		trans: r.Apply(other.trans).Add(t.trans),
	}
}

// Compose chains transforms left to right, so Compose(a, b, c) is a∘b∘c.
func Compose(ts ...RigidTransform) RigidTransform {
	out := Identity()
	for _, t := range ts {
		out = out.Compose(t)
	}
	return out
}

// Inverse returns the transform that undoes t: rotation Rᵀ and translation −Rᵀt.
func (t RigidTransform) Inverse() RigidTransform {
	rt := t.Rotation().Transpose()
	return RigidTransform{rot: rt, trans: rt.Apply(t.trans).Mul(-1)}
}

// Apply maps a point through the transform.
func (t RigidTransform) Apply(p r3.Vector) r3.Vector {
	return t.Rotation().Apply(p).Add(t.trans)
}

// Mat4 returns the transform as a homogeneous matrix.
func (t RigidTransform) Mat4() mgl64.Mat4 {
	r := t.Rotation()
	return mgl64.Mat4FromRows(
		mgl64.Vec4{r.At(0, 0), r.At(0, 1), r.At(0, 2), t.trans.X},
		mgl64.Vec4{r.At(1, 0), r.At(1, 1), r.At(1, 2), t.trans.Y},
		mgl64.Vec4{r.At(2, 0), r.At(2, 1), r.At(2, 2), t.trans.Z},
		mgl64.Vec4{0, 0, 0, 1},
	)
}

// AngularDistance returns the angle in radians of the rotation taking t's orientation to other's.
func (t RigidTransform) AngularDistance(other RigidTransform) float64 {
	return t.Rotation().Transpose().Mul(other.Rotation()).Angle()
}

// AlmostEqual reports whether the rotation entries and translation components differ by at most tol.
func (t RigidTransform) AlmostEqual(other RigidTransform, tol float64) bool {
	return t.Rotation().AlmostEqual(other.Rotation(), tol) &&
		math.Abs(t.trans.X-other.trans.X) <= tol &&
		math.Abs(t.trans.Y-other.trans.Y) <= tol &&
		math.Abs(t.trans.Z-other.trans.Z) <= tol
}

// Equal reports bit-exact equality.
func (t RigidTransform) Equal(other RigidTransform) bool {
	return t.Rotation().mat == other.Rotation().mat && t.trans == other.trans
}
