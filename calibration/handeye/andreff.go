package handeye

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

var eye3 = mat.NewDiagDense(3, []float64{1, 1, 1})

// andreff is the Andreff-Horaud-Espiau linear formulation. With vec() stacking columns,
//
//	(I⊗Ra − Rbᵀ⊗I)·vec(Rx)            = 0
//	−(tbᵀ⊗I)·vec(Rx) + (Ra − I)·tx     = −ta
//
// is solved jointly for the 12 unknowns, then the rotation is projected onto SO(3) and the
// translation re-solved against it.
type andreff struct{}

func (andreff) Name() string { return "andreff" }

func (andreff) MinSamples() int { return calibration.MinimumSamples }

func (andreff) Solve(motions []Motion) (spatialmath.RigidTransform, error) {
	sys := mat.NewDense(12*len(motions), 12, nil)
	rhs := mat.NewVecDense(12*len(motions), nil)

	var left, right, rot, trans, raMinusI mat.Dense
	for k, m := range motions {
		ra := m.A.Rotation().Dense()
		rb := m.B.Rotation().Dense()
		tb := m.B.Translation()
		ta := m.A.Translation()

		left.Kronecker(eye3, ra)
		right.Kronecker(rb.T(), eye3)
		rot.Sub(&left, &right)
		setBlock(sys, 12*k, 0, &rot)

		trans.Kronecker(mat.NewDense(1, 3, []float64{tb.X, tb.Y, tb.Z}), eye3)
		trans.Scale(-1, &trans)
		setBlock(sys, 12*k+9, 0, &trans)
		raMinusI.Sub(ra, eye3)
		setBlock(sys, 12*k+9, 9, &raMinusI)

		rhs.SetVec(12*k+9, -ta.X)
		rhs.SetVec(12*k+10, -ta.Y)
		rhs.SetVec(12*k+11, -ta.Z)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(sys, rhs); err != nil {
		return spatialmath.RigidTransform{}, errors.Wrap(err, "andreff least squares failed")
	}
	raw := mat.NewDense(3, 3, nil)
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			raw.Set(row, col, sol.AtVec(3*col+row))
		}
	}
	rx, err := nearestRotation(raw)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	tx, err := solveTranslation(motions, rx)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	return spatialmath.NewRigidTransform(rx, tx), nil
}
