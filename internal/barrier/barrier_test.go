package barrier

import (
	"math"
	"testing"

	"github.com/curioloop/optimizer/numdiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierLimits(t *testing.T) {
	shat := 1e-2

	assert.True(t, math.IsInf(Barrier(0, shat), 1))
	assert.True(t, math.IsInf(Barrier(-1, shat), 1))
	assert.Zero(t, Barrier(shat, shat))
	assert.Zero(t, Barrier(2*shat, shat))

	prev := math.Inf(1)
	for _, d := range []float64{1e-8, 1e-6, 1e-4, 1e-3, 5e-3, 9e-3, 9.99e-3} {
		b := Barrier(d, shat)
		assert.Greater(t, b, 0.0, "d=%g", d)
		assert.Less(t, b, prev, "d=%g", d)
		prev = b
	}

	assert.Greater(t, Barrier(1e-300, shat), Barrier(1e-12, shat))
}

func TestBarrierDerivatives(t *testing.T) {
	shat := 0.04
	for _, d := range []float64{1e-3, 0.01, 0.02, 0.035} {
		grad := make([]float64, 1)
		approx := numdiff.ApproxSpec{N: 1, M: 1, Method: numdiff.Central, AbsStep: 1e-7, Object: func(x, y []float64) {
			y[0] = Barrier(x[0], shat)
		}}
		require.NoError(t, approx.Diff([]float64{d}, grad))
		assert.InDelta(t, grad[0], FirstDerivative(d, shat), 1e-5*math.Max(1, math.Abs(grad[0])))

		approx = numdiff.ApproxSpec{N: 1, M: 1, Method: numdiff.Central, AbsStep: 1e-7, Object: func(x, y []float64) {
			y[0] = FirstDerivative(x[0], shat)
		}}
		require.NoError(t, approx.Diff([]float64{d}, grad))
		assert.InDelta(t, grad[0], SecondDerivative(d, shat), 1e-4*math.Max(1, math.Abs(grad[0])))
	}
	assert.Zero(t, FirstDerivative(0.05, shat))
	assert.Zero(t, SecondDerivative(0.05, shat))
}

func TestInitialStiffnessWithinBounds(t *testing.T) {
	tests := []struct {
		name        string
		gradEnergy  []float64
		gradBarrier []float64
		maxCap      float64
	}{
		{"no contact", []float64{1, 2}, []float64{0, 0}, 0},
		{"opposing gradients", []float64{1e6, 0}, []float64{-1, 0}, 0},
		{"aligned gradients", []float64{1, 0}, []float64{1, 0}, 0},
		{"capped", []float64{1e12, 0}, []float64{-1, 0}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kappa, bounds := InitialStiffness(1.5, 0.01, 0, 1, tt.gradEnergy, tt.gradBarrier, tt.maxCap)
			assert.GreaterOrEqual(t, kappa, bounds.Min)
			assert.LessOrEqual(t, kappa, bounds.Max)
			assert.LessOrEqual(t, bounds.Min, bounds.Max)
			if tt.maxCap > 0 {
				assert.LessOrEqual(t, bounds.Max, tt.maxCap)
				assert.LessOrEqual(t, kappa, tt.maxCap)
			}
		})
	}
}

func TestUpdateStiffness(t *testing.T) {
	bounds := Bounds{Min: 10, Max: 100}
	tiny := 1e-30

	assert.Equal(t, 80.0, UpdateStiffness(tiny, tiny, 40, bounds, 1, 0))
	assert.Equal(t, 100.0, UpdateStiffness(tiny, tiny, 80, bounds, 1, 0))
	assert.Equal(t, 100.0, UpdateStiffness(tiny, tiny, 100, bounds, 1, 0))
	assert.Equal(t, 20.0, UpdateStiffness(1e-4, 1e-2, 40, bounds, 1, 0))
	assert.Equal(t, 10.0, UpdateStiffness(1e-4, 1e-2, 12, bounds, 1, 0))
	assert.Equal(t, 40.0, UpdateStiffness(1e-2, 1e-4, 40, bounds, 1, 0))
	assert.Equal(t, 40.0, UpdateStiffness(-1, 1e-2, 40, bounds, 1, 0))
}
