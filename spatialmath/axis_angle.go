package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kelvinchow23/robot-system-tools/utils"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// An orientation can be expressed by an axis, a line from the origin to a point (rx, ry, rz) on the
// unit sphere, and a rotation theta around that axis. These four numbers can be used as-is (R4), or
// theta can be multiplied into the axis to give a rotation vector whose length is theta (R3).

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th" yaml:"th"`
	RX    float64 `json:"x" yaml:"x"`
	RY    float64 `json:"y" yaml:"y"`
	RZ    float64 `json:"z" yaml:"z"`
}

// NewR4AA creates a zero rotation axis angle about +Z.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// Normalized returns the axis angle with a unit axis and a non-negative angle.
func (r4 R4AA) Normalized() (R4AA, error) {
	if !utils.IsFinite(r4.Theta, r4.RX, r4.RY, r4.RZ) {
		return r4, NewInvalidRotationError("axis angle has non-finite values")
	}
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0 {
		if r4.Theta == 0 {
			return *NewR4AA(), nil
		}
		return r4, NewInvalidRotationError("axis angle of %.6g rad has a zero axis", r4.Theta)
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
	if r4.Theta < 0 {
		r4.Theta *= -1
		r4.RX *= -1
		r4.RY *= -1
		r4.RZ *= -1
	}
	return r4, nil
}

// ToQuat converts an R4 axis angle to a unit quaternion.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 R4AA) ToQuat() (quat.Number, error) {
	n, err := r4.Normalized()
	if err != nil {
		return quat.Number{}, err
	}
	sinA := math.Sin(n.Theta / 2)
	return quat.Number{Real: math.Cos(n.Theta / 2), Imag: n.RX * sinA, Jmag: n.RY * sinA, Kmag: n.RZ * sinA}, nil
}

// NewRotationFromAxisAngle builds a rotation from an axis and angle in radians.
func NewRotationFromAxisAngle(aa R4AA) (*RotationMatrix, error) {
	q, err := aa.ToQuat()
	if err != nil {
		return nil, err
	}
	return QuatToRotationMatrix(q), nil
}

// NewRotationFromRotationVector builds a rotation from an axis scaled by its angle in radians.
func NewRotationFromRotationVector(v r3.Vector) (*RotationMatrix, error) {
	if !utils.IsFinite(v.X, v.Y, v.Z) {
		return nil, NewInvalidRotationError("rotation vector has non-finite values")
	}
	return QuatToRotationMatrix(RotationVectorToQuat(v)), nil
}

// RotationVectorToQuat converts a rotation vector to a unit quaternion. Small angles use a series
// expansion of sin(θ/2)/θ so the result stays accurate near the identity.
func RotationVectorToQuat(v r3.Vector) quat.Number {
	theta := v.Norm()
	var k float64
	if theta < 1e-8 {
		k = 0.5 - theta*theta/48
	} else {
		k = math.Sin(theta/2) / theta
	}
	return quat.Number{Real: math.Cos(theta / 2), Imag: k * v.X, Jmag: k * v.Y, Kmag: k * v.Z}
}

// QuatToRotationVector converts a unit quaternion to a rotation vector with angle in [0, π].
func QuatToRotationVector(q quat.Number) r3.Vector {
	if q.Real < 0 {
		q = Flip(q)
	}
	v := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	s := v.Norm()
	if s < 1e-12 {
		// 2·asin(s)/s → 2 as s → 0, corrected for an unnormalized real part.
		return v.Mul(2 / q.Real)
	}
	theta := 2 * math.Atan2(s, q.Real)
	return v.Mul(theta / s)
}

// QuatToR4AA converts a quat to an R4 axis angle in the same way the C++ Eigen library does.
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToR4AA(q quat.Number) R4AA {
	denom := Norm(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-6 {
		return R4AA{angle, 0, 0, 1}
	}
	return R4AA{angle, q.Imag / denom, q.Jmag / denom, q.Kmag / denom}
}
