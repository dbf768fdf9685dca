package sourceterm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// NumberOfQuantities is the length of a source's force vector: six stress
// components followed by three velocities
const NumberOfQuantities = 9

// FaultRotation returns the matrix R rotating fault-local coordinates by
// strike, dip and rake (radians) into the global frame
func FaultRotation(strike, dip, rake float64) *mat.Dense {
	cs, ss := math.Cos(strike), math.Sin(strike)
	cd, sd := math.Cos(dip), math.Sin(dip)
	cr, sr := math.Cos(rake), math.Sin(rake)
	return mat.NewDense(3, 3, []float64{
		cs*cr - cd*ss*sr, cd*cs*sr + cr*ss, sd * sr,
		-cs*sr - cd*cr*ss, cd*cs*cr - ss*sr, cr * sd,
		sd * ss, -cs * sd, cd,
	})
}

// TransformMomentTensor computes M = Rᵀ·LM·R and returns its components in
// the order xx, yy, zz, xy, yz, xz, with zero velocity components
func TransformMomentTensor(local [3][3]float64, strike, dip, rake float64) [NumberOfQuantities]float64 {
	LM := mat.NewDense(3, 3, []float64{
		local[0][0], local[0][1], local[0][2],
		local[1][0], local[1][1], local[1][2],
		local[2][0], local[2][1], local[2][2],
	})
	R := FaultRotation(strike, dip, rake)

	var tmp, M mat.Dense
	tmp.Mul(R.T(), LM)
	M.Mul(&tmp, R)

	return [NumberOfQuantities]float64{
		M.At(0, 0), M.At(1, 1), M.At(2, 2),
		M.At(0, 1), M.At(1, 2), M.At(0, 2),
		0, 0, 0,
	}
}
