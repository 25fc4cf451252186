package igamma

import (
	"math"

	"github.com/gkobilansky/gamma-goat/internal/special"
)

const (
	// Below this log value exp(logc) alone may underflow while the product
	// with a fraction factor is still representable.
	foldThreshold = -460.0

	// Below this log value the tail is decided without evaluating a fraction.
	logCutoff = -1000.0

	// |μ| below which the rescaled coefficient uses the log1pmx series.
	rescaledSeriesLimit = 0.25
)

// coefficient computes log(xᵃe⁻ˣ/Γ(a+1)) for a fixed a.
type coefficient struct {
	a      float64
	direct bool
	// lgamma1 is log Γ(a+1) for the direct form.
	lgamma1 float64
	// norm is ½log a + ½log 2π + S(a) for the rescaled form.
	norm float64
}

func newDirectCoefficient(a float64) coefficient {
	return coefficient{a: a, direct: true, lgamma1: special.LogGamma(a + 1)}
}

func newRescaledCoefficient(a float64) coefficient {
	return coefficient{
		a:    a,
		norm: 0.5*math.Log(a) + special.LogSqrt2Pi + special.StirlingResidual(a),
	}
}

// log returns the log coefficient at x. ok is false when the coefficient is
// exactly 0 because a·log x overflowed.
func (c coefficient) log(x float64) (logc float64, ok bool) {
	if math.IsInf(x, 1) {
		return 0, false
	}
	if c.direct {
		t := c.a * math.Log(x)
		if math.IsInf(t, 1) {
			return 0, false
		}
		return t - x - c.lgamma1, true
	}

	a := c.a
	d := x - a
	mu := d / a
	var v float64
	if math.Abs(mu) < rescaledSeriesLimit {
		v = -a*special.Log1pmx(mu) - c.norm
	} else {
		v = a*(math.Log(x)-math.Log(a)) - d - c.norm
	}
	if math.IsInf(v, 1) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// scaled returns exp(logc)·factor, folding the factor into the exponent when
// exp(logc) alone would underflow.
func scaled(logc, factor float64) float64 {
	if logc < foldThreshold {
		return math.Exp(logc + math.Log(factor))
	}
	return math.Exp(logc) * factor
}
