package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// DualQuaternion represents a rigid transform as q + ε·q', where q is the unit rotation quaternion
// and q' = ½·t·q for translation t.
type DualQuaternion struct {
	dualquat.Number
}

// NewDualQuaternion returns the identity dual quaternion. Since the real part of a dual quaternion should be
// a unit quaternion, not all zeroes, this should be used instead of &DualQuaternion{}.
func NewDualQuaternion() *DualQuaternion {
	return &DualQuaternion{dualquat.Number{
		Real: quat.Number{Real: 1},
		Dual: quat.Number{},
	}}
}

// DualQuaternion returns the transform as a dual quaternion whose rotation has a non-negative real part.
func (t RigidTransform) DualQuaternion() *DualQuaternion {
	q := t.Rotation().Quaternion()
	tr := t.trans
	return &DualQuaternion{dualquat.Number{
		Real: q,
		Dual: quat.Scale(0.5, quat.Mul(quat.Number{Imag: tr.X, Jmag: tr.Y, Kmag: tr.Z}, q)),
	}}
}

// Rotation returns the rotation quaternion.
func (q *DualQuaternion) Rotation() quat.Number {
	return q.Real
}

// Translation recovers t = 2·q'·q*.
func (q *DualQuaternion) Translation() r3.Vector {
	t := quat.Mul(quat.Scale(2, q.Dual), quat.Conj(q.Real))
	return r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
}

// Transformation multiplies the dual quat contained in this DualQuaternion by another dual quat.
func (q *DualQuaternion) Transformation(by dualquat.Number) dualquat.Number {
	return dualquat.Mul(q.Number, by)
}

// RigidTransform converts back, normalizing the rotation part.
func (q *DualQuaternion) RigidTransform() RigidTransform {
	n := quat.Abs(q.Real)
	dq := DualQuaternion{dualquat.Scale(1/n, q.Number)}
	return RigidTransform{rot: QuatToRotationMatrix(dq.Real), trans: dq.Translation()}
}
