package barrier

import "math"

const (
	// minStiffnessScale scales the lower stiffness bound relative to the average mass.
	minStiffnessScale = 1e11
	// maxStiffnessRatio is the default ratio between the upper and lower bounds.
	maxStiffnessRatio = 100
)

// Bounds are the admissible barrier stiffness range.
type Bounds struct {
	Min float64
	Max float64
}

// Clamp restricts kappa to the bounds.
func (b Bounds) Clamp(kappa float64) float64 {
	return math.Min(math.Max(kappa, b.Min), b.Max)
}

// InitialStiffness picks the barrier stiffness that balances the energy
// gradient against the barrier gradient, clamped into bounds derived from
// the scene scale. maxCap, when positive, caps the upper bound.
func InitialStiffness(bboxDiagonal, dhat, dmin, avgMass float64, gradEnergy, gradBarrier []float64, maxCap float64) (float64, Bounds) {
	shat := Activation(dhat, dmin)

	d0 := 1e-8*bboxDiagonal + dmin
	d0 *= d0
	if d0-dmin*dmin >= shat {
		d0 = dmin*dmin + 0.5*shat
	}
	arg := d0 - dmin*dmin
	curvature := 4 * d0 * SecondDerivative(arg, shat)

	bounds := Bounds{Min: 1, Max: maxStiffnessRatio}
	if curvature > 0 && avgMass > 0 {
		bounds.Min = minStiffnessScale * avgMass / curvature
		bounds.Max = maxStiffnessRatio * bounds.Min
	}
	if maxCap > 0 && bounds.Max > maxCap {
		bounds.Max = maxCap
		bounds.Min = math.Min(bounds.Min, maxCap)
	}

	kappa := 1.0
	gb2, gbge := 0.0, 0.0
	for i := range gradBarrier {
		gb2 += gradBarrier[i] * gradBarrier[i]
		gbge += gradBarrier[i] * gradEnergy[i]
	}
	if gb2 > 0 {
		kappa = -gbge / gb2
	}
	return bounds.Clamp(kappa), bounds
}

// UpdateStiffness adapts kappa after an accepted step from the change in
// minimum squared separation. Separation that stays below the scene
// tolerance doubles the stiffness up to the upper bound; separation that
// grows past the tolerance halves it down to the lower bound.
// A negative prevMinDist marks the first step and only allows growth.
func UpdateStiffness(prevMinDist, minDist, kappa float64, bounds Bounds, bboxDiagonal, dmin float64) float64 {
	eps := 1e-9 * (bboxDiagonal + dmin)
	eps *= eps

	if prevMinDist < eps && minDist < eps {
		if kappa < bounds.Max {
			return math.Min(bounds.Max, 2*kappa)
		}
		return kappa
	}
	if prevMinDist >= 0 && minDist > prevMinDist && minDist >= eps && kappa > bounds.Min {
		return math.Max(bounds.Min, kappa/2)
	}
	return kappa
}
