package handeye

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// rotationSystem stacks (Ra − I) for every motion. It loses rank exactly when every tool rotation
// shares a fixed axis, which is what makes the hand-eye problem unobservable.
func rotationSystem(motions []Motion) *mat.Dense {
	m := mat.NewDense(3*len(motions), 3, nil)
	for k, motion := range motions {
		ra := motion.A.Rotation()
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				v := ra.At(i, j)
				if i == j {
					v--
				}
				m.Set(3*k+i, j, v)
			}
		}
	}
	return m
}

// conditionNumber returns the ratio of the largest to smallest singular value, +Inf when rank deficient.
func conditionNumber(m mat.Matrix) float64 {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return math.Inf(1)
	}
	return svd.Cond()
}

// solveTranslation solves (Ra − I)·tx = Rx·tb − ta in the least squares sense.
func solveTranslation(motions []Motion, rx *spatialmath.RotationMatrix) (r3.Vector, error) {
	c := rotationSystem(motions)
	d := mat.NewVecDense(3*len(motions), nil)
	for k, motion := range motions {
		rhs := rx.Apply(motion.B.Translation()).Sub(motion.A.Translation())
		d.SetVec(3*k, rhs.X)
		d.SetVec(3*k+1, rhs.Y)
		d.SetVec(3*k+2, rhs.Z)
	}
	var t mat.VecDense
	if err := t.SolveVec(c, d); err != nil {
		return r3.Vector{}, errors.Wrap(err, "translation least squares failed")
	}
	return r3.Vector{X: t.AtVec(0), Y: t.AtVec(1), Z: t.AtVec(2)}, nil
}

// nearestRotation projects a 3x3 matrix onto SO(3) as U·diag(1, 1, det(U·Vᵀ))·Vᵀ.
func nearestRotation(m mat.Matrix) (*spatialmath.RotationMatrix, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize rotation estimate")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var ud mat.Dense
		ud.Mul(&u, d)
		r.Mul(&ud, v.T())
	}
	return spatialmath.NewRotationMatrix(flatten(&r))
}

// nullVectors returns the right singular vectors of m for its k smallest singular values, smallest last.
func nullVectors(m mat.Matrix, k int) ([][]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFullV); !ok {
		return nil, errors.New("failed to factorize linear system")
	}
	var v mat.Dense
	svd.VTo(&v)
	_, n := v.Dims()
	out := make([][]float64, 0, k)
	for c := n - k; c < n; c++ {
		out = append(out, mat.Col(nil, c, &v))
	}
	return out, nil
}

func flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func setBlock(dst *mat.Dense, row, col int, src mat.Matrix) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(row+i, col+j, src.At(i, j))
		}
	}
}

func vec(v r3.Vector) *mat.VecDense {
	return mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
}

func quatVec(q quat.Number) r3.Vector {
	return r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}
