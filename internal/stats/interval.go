package stats

import (
	"fmt"
	"math"
)

// PoissonInterval returns the exact (Garwood) confidence interval for the
// mean of a Poisson count k.
func PoissonInterval(k int, confidence float64) (lower, upper float64, err error) {
	if k < 0 {
		return 0, 0, fmt.Errorf("%w: k=%d", ErrInvalidParameter, k)
	}
	if !(confidence > 0 && confidence < 1) {
		return 0, 0, fmt.Errorf("%w: confidence=%g", ErrInvalidParameter, confidence)
	}
	alpha := 1 - confidence

	if k > 0 {
		lower, err = GammaQuantile(float64(k), alpha/2)
		if err != nil {
			return 0, 0, err
		}
	}
	upper, err = GammaQuantile(float64(k)+1, 1-alpha/2)
	if err != nil {
		return 0, 0, err
	}
	return lower, upper, nil
}

// WilsonInterval calculates the Wilson score confidence interval
// for a binomial proportion.
func WilsonInterval(successes, trials int, confidence float64) (lower, upper float64) {
	if trials == 0 {
		return 0, 0
	}

	z := ZScore(confidence)
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	return math.Max(0, center-spread), math.Min(1, center+spread)
}

// ZScore returns the two-sided critical value for a confidence level,
// e.g. 0.95 -> 1.95996.
//
// Pr[|Z| ≤ z] = P(½, z²/2), so z = √(2·x) with x the half-shape quantile.
func ZScore(confidence float64) float64 {
	x, err := GammaQuantile(0.5, confidence)
	if err != nil {
		return math.NaN()
	}
	return math.Sqrt(2 * x)
}
