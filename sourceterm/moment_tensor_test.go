package sourceterm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var doubleCoupleXY = [3][3]float64{
	{0, 1, 0},
	{1, 0, 0},
	{0, 0, 0},
}

func assertTensor(t *testing.T, want, got [NumberOfQuantities]float64) {
	t.Helper()
	for q := range want {
		assert.InDelta(t, want[q], got[q], 1e-14, "component %d", q)
	}
}

func TestFaultRotation_Orthonormal(t *testing.T) {
	for _, angles := range [][3]float64{{0, 0, 0}, {0.3, 1.1, -2.0}, {math.Pi, math.Pi / 3, math.Pi / 7}} {
		R := FaultRotation(angles[0], angles[1], angles[2])
		var RRt mat.Dense
		RRt.Mul(R, R.T())
		assert.True(t, mat.EqualApprox(&RRt, eye3(), 1e-14), "angles %v", angles)
		assert.InDelta(t, 1.0, mat.Det(R), 1e-14)
	}
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func TestTransformMomentTensor(t *testing.T) {
	t.Run("identity rotation", func(t *testing.T) {
		got := TransformMomentTensor(doubleCoupleXY, 0, 0, 0)
		assertTensor(t, [NumberOfQuantities]float64{0, 0, 0, 1, 0, 0, 0, 0, 0}, got)
	})
	t.Run("isotropic is invariant", func(t *testing.T) {
		iso := [3][3]float64{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
		got := TransformMomentTensor(iso, 0.4, 1.2, -0.7)
		assertTensor(t, [NumberOfQuantities]float64{2, 2, 2, 0, 0, 0, 0, 0, 0}, got)
	})
	t.Run("vertical dip", func(t *testing.T) {
		got := TransformMomentTensor(doubleCoupleXY, 0, math.Pi/2, 0)
		assertTensor(t, [NumberOfQuantities]float64{0, 0, 0, 0, 0, 1, 0, 0, 0}, got)
	})
	t.Run("quarter rake", func(t *testing.T) {
		got := TransformMomentTensor(doubleCoupleXY, 0, 0, math.Pi/2)
		assertTensor(t, [NumberOfQuantities]float64{0, 0, 0, -1, 0, 0, 0, 0, 0}, got)
	})
	t.Run("strike and dip", func(t *testing.T) {
		got := TransformMomentTensor(doubleCoupleXY, math.Pi/2, math.Pi/2, 0)
		assertTensor(t, [NumberOfQuantities]float64{0, 0, 0, 0, 1, 0, 0, 0, 0}, got)
	})
}
