package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/kelvinchow23/robot-system-tools/utils"
)

// DefaultOrthonormalTolerance is the largest |RᵀR − I| entry accepted by NewRotationMatrix.
const DefaultOrthonormalTolerance = 1e-3

// Inputs whose orthonormality residual is at or below this are kept bit-for-bit.
const orthonormalEpsilon = 1e-12

// RotationMatrix is a 3x3 proper orthonormal matrix stored in row-major order. It is immutable.
type RotationMatrix struct {
	mat [9]float64
}

var identityRotation = RotationMatrix{[9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}

// IdentityRotation returns the rotation that does nothing.
func IdentityRotation() *RotationMatrix {
	rm := identityRotation
	return &rm
}

// NewRotationMatrix builds a rotation from 9 row-major values using DefaultOrthonormalTolerance.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	return NewRotationMatrixWithTolerance(m, DefaultOrthonormalTolerance)
}

// NewRotationMatrixWithTolerance builds a rotation from 9 row-major values. Input that is orthonormal
// within tolerance but not to machine precision is projected onto the nearest rotation.
func NewRotationMatrixWithTolerance(m []float64, tolerance float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, NewInvalidRotationError("expected 9 values, got %d", len(m))
	}
	var data [9]float64
	copy(data[:], m)
	if !utils.IsFinite(data[:]...) {
		return nil, NewInvalidRotationError("matrix has non-finite entries")
	}
	det := det3(data)
	if det <= 0 {
		return nil, NewInvalidRotationError("determinant %.6g is not positive", det)
	}
	residual := OrthonormalResidual(data)
	if residual > tolerance {
		return nil, NewInvalidRotationError("orthonormality residual %.3g exceeds tolerance %.3g", residual, tolerance)
	}
	if residual > orthonormalEpsilon {
		var err error
		if data, err = orthonormalize(data); err != nil {
			return nil, err
		}
	}
	return &RotationMatrix{data}, nil
}

// NewRotationMatrixFromRows builds a rotation from a nested row array.
func NewRotationMatrixFromRows(rows [3][3]float64) (*RotationMatrix, error) {
	return NewRotationMatrix([]float64{
		rows[0][0], rows[0][1], rows[0][2],
		rows[1][0], rows[1][1], rows[1][2],
		rows[2][0], rows[2][1], rows[2][2],
	})
}

// NewLookAtRotation returns the rotation whose z axis points along dir and whose x axis is as close
// to hint as possible. If hint is parallel to dir any perpendicular x axis is used. dir must be non-zero.
func NewLookAtRotation(dir, hint r3.Vector) *RotationMatrix {
	z := dir.Normalize()
	x := hint.Sub(z.Mul(hint.Dot(z)))
	if x.Norm() < 1e-9 {
		x = z.Ortho()
	}
	x = x.Normalize()
	y := z.Cross(x)
	return &RotationMatrix{[9]float64{
		x.X, y.X, z.X,
		x.Y, y.Y, z.Y,
		x.Z, y.Z, z.Z,
	}}
}

// OrthonormalResidual returns the largest absolute entry of RᵀR − I.
func OrthonormalResidual(m [9]float64) float64 {
	var worst float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += m[k*3+i] * m[k*3+j]
			}
			if i == j {
				dot--
			}
			worst = math.Max(worst, math.Abs(dot))
		}
	}
	return worst
}

func det3(m [9]float64) float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// orthonormalize returns U·Vᵀ from the SVD of m, the closest rotation in the Frobenius sense.
func orthonormalize(m [9]float64) ([9]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(3, 3, m[:]), mat.SVDFull); !ok {
		return m, NewInvalidRotationError("failed to factorize matrix")
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// flip the axis of the smallest singular value
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	var out [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = r.At(i, j)
		}
	}
	return out, nil
}

// At returns the entry at the given row and column.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[row*3+col]
}

// Row returns one row as a vector.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[row*3], Y: rm.mat[row*3+1], Z: rm.mat[row*3+2]}
}

// Col returns one column as a vector. Column i is the i-th axis of the rotated frame.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Mul returns rm·other.
func (rm *RotationMatrix) Mul(other *RotationMatrix) *RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[i*3+j] = rm.mat[i*3]*other.mat[j] + rm.mat[i*3+1]*other.mat[3+j] + rm.mat[i*3+2]*other.mat[6+j]
		}
	}
	return &out
}

// Transpose returns the inverse rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	m := rm.mat
	return &RotationMatrix{[9]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}}
}

// Apply rotates v.
func (rm *RotationMatrix) Apply(v r3.Vector) r3.Vector {
	m := rm.mat
	return r3.Vector{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// Rows returns the matrix as a nested row array.
func (rm *RotationMatrix) Rows() [3][3]float64 {
	m := rm.mat
	return [3][3]float64{{m[0], m[1], m[2]}, {m[3], m[4], m[5]}, {m[6], m[7], m[8]}}
}

// Dense returns a gonum copy of the matrix.
func (rm *RotationMatrix) Dense() *mat.Dense {
	data := rm.mat
	return mat.NewDense(3, 3, data[:])
}

// Angle returns the rotation angle in radians, in [0, π].
func (rm *RotationMatrix) Angle() float64 {
	m := rm.mat
	// atan2 keeps precision near 0 and π where acos of the trace does not.
	s := r3.Vector{X: m[7] - m[5], Y: m[2] - m[6], Z: m[3] - m[1]}.Norm() / 2
	c := (m[0] + m[4] + m[8] - 1) / 2
	return math.Atan2(s, c)
}

// AlmostEqual reports whether every entry differs by at most epsilon.
func (rm *RotationMatrix) AlmostEqual(other *RotationMatrix, epsilon float64) bool {
	for i := range rm.mat {
		if !utils.Float64AlmostEqual(rm.mat[i], other.mat[i], epsilon) {
			return false
		}
	}
	return true
}

// RotationVector returns the axis scaled by the angle, in radians.
func (rm *RotationMatrix) RotationVector() r3.Vector {
	return QuatToRotationVector(rm.Quaternion())
}

// AxisAngles returns the rotation as an R4 axis angle.
func (rm *RotationMatrix) AxisAngles() *R4AA {
	aa := QuatToR4AA(rm.Quaternion())
	return &aa
}

// EulerAngles returns the rotation as ZYX roll, pitch, yaw angles.
func (rm *RotationMatrix) EulerAngles() *EulerAngles {
	return rotationMatrixToEuler(rm)
}

// Skew returns the cross product matrix [v]×, such that Skew(v)·w = v × w.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}
