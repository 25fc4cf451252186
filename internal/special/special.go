// Package special wraps the scalar functions the incomplete gamma engine
// consumes: log-gamma, the Stirling residual of log-gamma, erfc and
// log1pmx.
package special

import "math"

// LogSqrt2Pi is ½·log(2π).
const LogSqrt2Pi = 0.91893853320467274178032973640562

// LogGamma returns log|Γ(a)|.
func LogGamma(a float64) float64 {
	lg, _ := math.Lgamma(a)
	return lg
}

// Erfc returns the complementary error function of z.
func Erfc(z float64) float64 {
	return math.Erfc(z)
}

// stirlingCoefficients are B₂ₖ/(2k(2k−1)) for k = 1..7.
var stirlingCoefficients = [...]float64{
	1.0 / 12,
	-1.0 / 360,
	1.0 / 1260,
	-1.0 / 1680,
	1.0 / 1188,
	-691.0 / 360360,
	1.0 / 156,
}

// StirlingResidual returns S(a) = log Γ(a) − ((a−½)·log a − a + ½·log 2π).
//
// For a ≥ 10 the asymptotic series is used; its first omitted term is below
// 1e-17 there. Below that the residual is taken from LogGamma directly.
func StirlingResidual(a float64) float64 {
	switch {
	case math.IsNaN(a) || a <= 0:
		return math.NaN()
	case math.IsInf(a, 1):
		return 0
	case a >= 10:
		r := 1 / a
		r2 := r * r
		s := 0.0
		for i := len(stirlingCoefficients) - 1; i >= 0; i-- {
			s = s*r2 + stirlingCoefficients[i]
		}
		return r * s
	}
	return LogGamma(a) - ((a-0.5)*math.Log(a) - a + LogSqrt2Pi)
}

// Log1pmx returns m − log(1+m) for m > −1.
//
// Near zero the two terms cancel, so for |m| < 0.25 the alternating series
// Σ (−1)ᵏ mᵏ/k, k ≥ 2 is summed instead.
func Log1pmx(m float64) float64 {
	if math.Abs(m) >= 0.25 {
		return m - math.Log1p(m)
	}
	s := 0.0
	pow := m * m
	for k := 2; k <= 60; k++ {
		term := pow / float64(k)
		if k%2 == 1 {
			term = -term
		}
		s += term
		if math.Abs(term) <= 1e-17*math.Abs(s) {
			break
		}
		pow *= m
	}
	return s
}
