// Package barrier implements the log barrier on squared distances and the
// adaptive stiffness rules.
//
// All functions take squared distances d and a squared activation distance
// ŝ: b(d) = -(d-ŝ)² ln(d/ŝ) for 0 < d < ŝ, zero for d ≥ ŝ and +Inf for d ≤ 0.
package barrier

import "math"

func Barrier(d, shat float64) float64 {
	if d <= 0 {
		return math.Inf(1)
	}
	if d >= shat {
		return 0
	}
	return -(d - shat) * (d - shat) * math.Log(d/shat)
}

func FirstDerivative(d, shat float64) float64 {
	if d <= 0 || d >= shat {
		return 0
	}
	return (shat - d) * (2*math.Log(d/shat) - shat/d + 1)
}

func SecondDerivative(d, shat float64) float64 {
	if d <= 0 || d >= shat {
		return 0
	}
	return -2*math.Log(d/shat) + (shat-d)*(shat+3*d)/(d*d)
}

// Activation returns the squared activation distance for a barrier active
// within dhat of the minimum separation dmin: the barrier argument is
// d² - dmin² and it switches off at 2·dmin·dhat + dhat².
func Activation(dhat, dmin float64) float64 {
	return 2*dmin*dhat + dhat*dhat
}
