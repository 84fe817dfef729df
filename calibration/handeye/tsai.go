package handeye

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// tsai is the Tsai-Lenz method. Rotations are written as modified Rodrigues vectors
// P = 2·sin(θ/2)·n, which linearizes the rotation equation to [Pa + Pb]×·P'x = Pb − Pa with
// P'x = tan(θx/2)·nx. Translation is solved afterwards.
type tsai struct{}

func (tsai) Name() string { return "tsai" }

func (tsai) MinSamples() int { return calibration.MinimumSamples }

func (tsai) Solve(motions []Motion) (spatialmath.RigidTransform, error) {
	lhs := mat.NewDense(3*len(motions), 3, nil)
	rhs := mat.NewVecDense(3*len(motions), nil)
	for k, m := range motions {
		pa := rodrigues(m.A.Rotation())
		pb := rodrigues(m.B.Rotation())
		setBlock(lhs, 3*k, 0, spatialmath.Skew(pa.Add(pb)))
		d := pb.Sub(pa)
		rhs.SetVec(3*k, d.X)
		rhs.SetVec(3*k+1, d.Y)
		rhs.SetVec(3*k+2, d.Z)
	}
	var sol mat.VecDense
	if err := sol.SolveVec(lhs, rhs); err != nil {
		return spatialmath.RigidTransform{}, errors.Wrap(err, "tsai rotation least squares failed")
	}
	prime := r3.Vector{X: sol.AtVec(0), Y: sol.AtVec(1), Z: sol.AtVec(2)}
	p := prime.Mul(2 / math.Sqrt(1+prime.Norm2()))

	rx, err := rotationFromRodrigues(p)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	tx, err := solveTranslation(motions, rx)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	return spatialmath.NewRigidTransform(rx, tx), nil
}

func rodrigues(r *spatialmath.RotationMatrix) r3.Vector {
	return quatVec(r.Quaternion()).Mul(2)
}

// rotationFromRodrigues inverts rodrigues: R = (1 − |P|²/2)·I + ½·(P·Pᵀ + √(4 − |P|²)·[P]×).
func rotationFromRodrigues(p r3.Vector) (*spatialmath.RotationMatrix, error) {
	n2 := p.Norm2()
	c := 1 - n2/2
	w := math.Sqrt(math.Max(0, 4-n2))
	s := spatialmath.Skew(p)
	pv := []float64{p.X, p.Y, p.Z}
	m := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := 0.5 * (pv[i]*pv[j] + w*s.At(i, j))
			if i == j {
				v += c
			}
			m[3*i+j] = v
		}
	}
	return spatialmath.NewRotationMatrix(m)
}
