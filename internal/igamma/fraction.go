package igamma

import "math"

const (
	minSteps   = 10
	maxSteps   = 70
	checkEvery = 10

	absTolerance = 1e-30
	relTolerance = 1e-12

	scaleHigh = 1e200
	scaleLow  = 1e-200
)

// convergence describes how a continued fraction evaluation ended.
type convergence struct {
	Steps     int
	Converged bool
}

// continuedFraction evaluates b₀ + a₁/(b₁ + a₂/(b₂ + …)) with the forward
// Wallis recurrence. terms returns the partial numerator aₙ and denominator
// bₙ for n ≥ 1.
//
// If the step budget runs out the last convergent is returned; callers treat
// the value as best effort.
func continuedFraction(b0 float64, terms func(n int) (an, bn float64)) (float64, convergence) {
	aPrev, aCur := 1.0, b0
	bPrev, bCur := 0.0, 1.0
	last := aCur / bCur

	for n := 1; n <= maxSteps; n++ {
		an, bn := terms(n)
		aPrev, aCur = aCur, bn*aCur+an*aPrev
		bPrev, bCur = bCur, bn*bCur+an*bPrev

		// Keep the denominator inside [1e-200, 1e200]. Scaling all four
		// accumulators by one factor leaves every ratio unchanged.
		switch m := math.Abs(bCur); {
		case m > scaleHigh:
			aPrev, aCur, bPrev, bCur = aPrev*scaleLow, aCur*scaleLow, bPrev*scaleLow, bCur*scaleLow
		case m < scaleLow && m != 0:
			aPrev, aCur, bPrev, bCur = aPrev*scaleHigh, aCur*scaleHigh, bPrev*scaleHigh, bCur*scaleHigh
		}

		if n < minSteps || n%checkEvery != 0 {
			continue
		}
		cur := aCur / bCur
		if math.Abs(cur-last) < absTolerance+relTolerance*math.Abs(cur) {
			return cur, convergence{Steps: n, Converged: true}
		}
		last = cur
	}
	return aCur / bCur, convergence{Steps: maxSteps}
}

// lowerFraction returns f(a,x) with γ(a,x) = xᵃe⁻ˣ/a · f(a,x).
//
// Below the mean the J-fraction with positive terms is used; above it the
// Gauss form converges faster and does not lose the tail.
func lowerFraction(a, x float64) (float64, convergence) {
	if x <= a {
		d := a - x
		v, c := continuedFraction(d, func(n int) (float64, float64) {
			fn := float64(n)
			return fn * x, d + fn
		})
		return a / v, c
	}
	v, c := continuedFraction(a, func(n int) (float64, float64) {
		k := float64(n / 2)
		if n%2 == 0 {
			return k * x, a + float64(n)
		}
		return -(a + k) * x, a + float64(n)
	})
	return a / v, c
}

// upperFraction returns F(a,x) with Γ(a,x) = xᵃ⁻¹e⁻ˣ · F(a,x).
func upperFraction(a, x float64) (float64, convergence) {
	d := x - a
	v, c := continuedFraction(d+1, func(n int) (float64, float64) {
		fn := float64(n)
		return fn * (a - fn), d + 2*fn + 1
	})
	return x / v, c
}
