package handeye

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// horaud is the Horaud-Dornaika quaternion method. qa⊗qx = qx⊗qb is linear in qx, so qx is the null
// vector of the stacked (L(qa) − R(qb)). Translation is solved afterwards.
type horaud struct{}

func (horaud) Name() string { return "horaud" }

func (horaud) MinSamples() int { return calibration.MinimumSamples }

func (horaud) Solve(motions []Motion) (spatialmath.RigidTransform, error) {
	sys := mat.NewDense(4*len(motions), 4, nil)
	var diff mat.Dense
	for k, m := range motions {
		diff.Sub(leftQuatMatrix(m.A.Rotation().Quaternion()), rightQuatMatrix(m.B.Rotation().Quaternion()))
		setBlock(sys, 4*k, 0, &diff)
	}
	null, err := nullVectors(sys, 1)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	n := null[0]
	rx := spatialmath.QuatToRotationMatrix(quat.Number{Real: n[0], Imag: n[1], Jmag: n[2], Kmag: n[3]})
	tx, err := solveTranslation(motions, rx)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	return spatialmath.NewRigidTransform(rx, tx), nil
}

// leftQuatMatrix returns L(q) such that L(q)·p = q⊗p, with quaternions ordered (w, x, y, z).
func leftQuatMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(4, 4, []float64{
		w, -x, -y, -z,
		x, w, -z, y,
		y, z, w, -x,
		z, -y, x, w,
	})
}

// rightQuatMatrix returns R(q) such that R(q)·p = p⊗q.
func rightQuatMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(4, 4, []float64{
		w, -x, -y, -z,
		x, w, z, -y,
		y, -z, w, x,
		z, y, -x, w,
	})
}
