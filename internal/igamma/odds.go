package igamma

// lowerOdds converts the lower-tail factor f into P/Q with P = c·f.
func lowerOdds(logc, f float64) float64 {
	p := scaled(logc, f)
	return p / (1 - p)
}

// upperOdds converts the upper-tail factor F into P/Q with Q = c·(a/x)·F.
// Q = 0 gives +Inf.
func upperOdds(logc, a, x, f float64) float64 {
	q := scaled(logc, f*a/x)
	return (1 - q) / q
}

// probabilityFromOdds returns P = 1/(1+1/o). Both ends are exact: o = 0
// gives 0 and o = +Inf gives 1.
func probabilityFromOdds(o float64) float64 {
	return 1 / (1 + 1/o)
}

// complementFromOdds returns Q = 1/(1+o).
func complementFromOdds(o float64) float64 {
	return 1 / (1 + o)
}
