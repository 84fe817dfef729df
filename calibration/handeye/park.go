package handeye

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// park is the Park-Martin method. Taking the log map of Ra·Rx = Rx·Rb gives α = Rx·β for the rotation
// vectors α and β, so Rx is the orthogonal Procrustes fit of the β onto the α.
type park struct{}

func (park) Name() string { return "park" }

func (park) MinSamples() int { return calibration.MinimumSamples }

func (park) Solve(motions []Motion) (spatialmath.RigidTransform, error) {
	h := mat.NewDense(3, 3, nil)
	var outer mat.Dense
	for _, m := range motions {
		alpha := vec(m.A.Rotation().RotationVector())
		beta := vec(m.B.Rotation().RotationVector())
		outer.Outer(1, beta, alpha)
		h.Add(h, &outer)
	}

	var svd mat.SVD
	if ok := svd.Factorize(h, mat.SVDFull); !ok {
		return spatialmath.RigidTransform{}, errors.New("park rotation factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var vut mat.Dense
	vut.Mul(&v, u.T())
	if mat.Det(&vut) < 0 {
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var vd mat.Dense
		vd.Mul(&v, d)
		vut.Mul(&vd, u.T())
	}
	rx, err := spatialmath.NewRotationMatrix(flatten(&vut))
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	tx, err := solveTranslation(motions, rx)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	return spatialmath.NewRigidTransform(rx, tx), nil
}
