package handeye

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/spatialmath"
)

// daniilidis solves rotation and translation together with dual quaternions. Each motion adds six
// rows to a system whose two dimensional null space contains X; the unit and orthogonality
// constraints of a unit dual quaternion then pick X out of that space.
type daniilidis struct{}

func (daniilidis) Name() string { return "daniilidis" }

func (daniilidis) MinSamples() int { return calibration.MinimumSamples }

func (daniilidis) Solve(motions []Motion) (spatialmath.RigidTransform, error) {
	sys := mat.NewDense(6*len(motions), 8, nil)
	for k, m := range motions {
		da := m.A.DualQuaternion()
		db := m.B.DualQuaternion()
		a, ad := quatVec(da.Real), quatVec(da.Dual)
		b, bd := quatVec(db.Real), quatVec(db.Dual)

		setBlock(sys, 6*k, 0, vec(a.Sub(b)))
		setBlock(sys, 6*k, 1, spatialmath.Skew(a.Add(b)))
		setBlock(sys, 6*k+3, 0, vec(ad.Sub(bd)))
		setBlock(sys, 6*k+3, 1, spatialmath.Skew(ad.Add(bd)))
		setBlock(sys, 6*k+3, 4, vec(a.Sub(b)))
		setBlock(sys, 6*k+3, 5, spatialmath.Skew(a.Add(b)))
	}

	null, err := nullVectors(sys, 2)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	u1, v1 := null[0][:4], null[0][4:]
	u2, v2 := null[1][:4], null[1][4:]

	l1, l2, err := dualQuatWeights(u1, v1, u2, v2)
	if err != nil {
		return spatialmath.RigidTransform{}, err
	}
	q := make([]float64, 8)
	for i := range q {
		q[i] = l1*null[0][i] + l2*null[1][i]
	}
	x := spatialmath.DualQuaternion{Number: dualquat.Number{
		Real: quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]},
		Dual: quat.Number{Real: q[4], Imag: q[5], Jmag: q[6], Kmag: q[7]},
	}}
	return x.RigidTransform(), nil
}

// dualQuatWeights finds λ1, λ2 so that λ1·(u1, v1) + λ2·(u2, v2) has a unit real part orthogonal to
// its dual part. Of the two roots of the orthogonality quadratic one gives a zero real part, so the
// root with the larger real part norm is kept.
func dualQuatWeights(u1, v1, u2, v2 []float64) (float64, float64, error) {
	a := dot(u1, v1)
	b := dot(u1, v2) + dot(u2, v1)
	c := dot(u2, v2)
	uu11, uu12, uu22 := dot(u1, u1), dot(u1, u2), dot(u2, u2)

	if a == 0 && c == 0 {
		// roots at λ1 = 0 and λ2 = 0; keep whichever basis vector has a real part
		switch {
		case uu11 == 0 && uu22 == 0:
			return 0, 0, errors.New("dual quaternion constraint is degenerate")
		case uu11 >= uu22:
			return 1 / math.Sqrt(uu11), 0, nil
		default:
			return 0, 1 / math.Sqrt(uu22), nil
		}
	}

	// parametrize by whichever ratio keeps the quadratic's leading coefficient away from zero
	swap := math.Abs(a) < math.Abs(c)
	if swap {
		a, c = c, a
		uu11, uu22 = uu22, uu11
	}
	disc := math.Sqrt(math.Max(0, b*b-4*a*c))
	var bestS, bestVal float64
	for _, s := range []float64{(-b + disc) / (2 * a), (-b - disc) / (2 * a)} {
		if val := s*s*uu11 + 2*s*uu12 + uu22; val > bestVal {
			bestS, bestVal = s, val
		}
	}
	if bestVal <= 0 {
		return 0, 0, errors.New("dual quaternion real part vanished")
	}
	second := 1 / math.Sqrt(bestVal)
	first := bestS * second
	if swap {
		return second, first, nil
	}
	return first, second, nil
}

func dot(a, b []float64) float64 {
	var out float64
	for i := range a {
		out += a[i] * b[i]
	}
	return out
}
