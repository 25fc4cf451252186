package igamma

// shiftedLower evaluates the lower fraction at a+shift and walks it back to a
// with out = out·x/(a+n) + 1 for n = shift..1.
//
// This follows from γ(a,x) = xᵃe⁻ˣ/a·(1 + x/(a+1)·(1 + x/(a+2)·(…))), so the
// normalised factor at a is f(a) = 1 + x/(a+1)·f(a+1).
func shiftedLower(a, x float64, shift int) (float64, convergence) {
	out, c := lowerFraction(a+float64(shift), x)
	for n := shift; n >= 1; n-- {
		out = out*x/(a+float64(n)) + 1
	}
	return out, c
}

// shiftedUpper evaluates the upper fraction at a−shift and walks it forward to
// a with out = out·(a−n)/x + 1 for n = shift..1. Requires a−shift > 0.
//
// From Γ(b+1,x) = b·Γ(b,x) + xᵇe⁻ˣ it follows that F(b+1) = b/x·F(b) + 1.
func shiftedUpper(a, x float64, shift int) (float64, convergence) {
	out, c := upperFraction(a-float64(shift), x)
	for n := shift; n >= 1; n-- {
		out = out*(a-float64(n))/x + 1
	}
	return out, c
}
