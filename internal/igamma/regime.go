package igamma

import "math"

// Regime is the evaluation strategy chosen from the shape parameter.
type Regime int

const (
	Small Regime = iota
	Medium
	Large
)

func (r Regime) String() string {
	switch r {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Large:
		return "large"
	}
	return "unknown"
}

// Regime boundaries on a.
const (
	SmallMaxShape  = 11.0
	MediumMaxShape = 40000.0
)

// Half-widths of the middle band, in units of √a. The 70-step fraction
// budget sets these: at ±√a the lower fraction stops converging from
// a ≈ 1000 and the upper one from a ≈ 40000. Do not narrow them without
// raising maxSteps.
const (
	shiftedBandWidth = 3.0
	uniformBandWidth = 3.0
	temmeBandWidth   = 5.0

	// Small regime switches from the lower to the upper fraction at
	// max(a, smallSwitchFloor).
	smallSwitchFloor = 7.0
)

// Branch names the computation that produced an odds value.
type Branch int

const (
	BranchInvalid Branch = iota
	BranchBoundary
	BranchLower
	BranchUpper
	BranchShiftedLower
	BranchShiftedUpper
	BranchUniform
)

func (b Branch) String() string {
	switch b {
	case BranchInvalid:
		return "invalid"
	case BranchBoundary:
		return "boundary"
	case BranchLower:
		return "lower"
	case BranchUpper:
		return "upper"
	case BranchShiftedLower:
		return "shifted-lower"
	case BranchShiftedUpper:
		return "shifted-upper"
	case BranchUniform:
		return "uniform"
	}
	return "unknown"
}

func regimeFor(a float64) Regime {
	switch {
	case a <= SmallMaxShape:
		return Small
	case a <= MediumMaxShape:
		return Medium
	}
	return Large
}

// exact marks branches that do not iterate.
var exact = convergence{Converged: true}

// outcome is one pass through a regime's decision tree.
type outcome struct {
	odds   float64
	branch Branch
	conv   convergence
}

func (e *Evaluator) dispatch(x float64) outcome {
	if math.IsNaN(x) || x < 0 {
		return outcome{odds: math.NaN(), branch: BranchInvalid}
	}
	if x == 0 {
		return outcome{odds: 0, branch: BranchBoundary, conv: exact}
	}

	logc, ok := e.coef.log(x)
	if !ok || logc < logCutoff {
		if x < e.a {
			return outcome{odds: 0, branch: BranchBoundary, conv: exact}
		}
		return outcome{odds: math.Inf(1), branch: BranchBoundary, conv: exact}
	}

	switch e.regime {
	case Small:
		return e.small(x, logc)
	case Medium:
		return e.medium(x, logc)
	default:
		return e.large(x, logc)
	}
}

func (e *Evaluator) small(x, logc float64) outcome {
	if x < e.threshold {
		f, c := lowerFraction(e.a, x)
		return outcome{odds: lowerOdds(logc, f), branch: BranchLower, conv: c}
	}
	f, c := upperFraction(e.a, x)
	return outcome{odds: upperOdds(logc, e.a, x, f), branch: BranchUpper, conv: c}
}

func (e *Evaluator) medium(x, logc float64) outcome {
	a := e.a
	switch {
	case x < e.xLow:
		f, c := lowerFraction(a, x)
		return outcome{odds: lowerOdds(logc, f), branch: BranchLower, conv: c}
	case x > e.xHigh:
		f, c := upperFraction(a, x)
		return outcome{odds: upperOdds(logc, a, x, f), branch: BranchUpper, conv: c}
	case x <= a:
		f, c := shiftedLower(a, x, int(math.Floor(x-e.xLow))+1)
		return outcome{odds: lowerOdds(logc, f), branch: BranchShiftedLower, conv: c}
	default:
		f, c := shiftedUpper(a, x, int(math.Floor(e.xHigh-x))+1)
		return outcome{odds: upperOdds(logc, a, x, f), branch: BranchShiftedUpper, conv: c}
	}
}

func (e *Evaluator) large(x, logc float64) outcome {
	a := e.a
	switch {
	case x < e.xLow:
		f, c := lowerFraction(a, x)
		return outcome{odds: lowerOdds(logc, f), branch: BranchLower, conv: c}
	case x > e.xHigh:
		f, c := upperFraction(a, x)
		return outcome{odds: upperOdds(logc, a, x, f), branch: BranchUpper, conv: c}
	}
	return outcome{odds: e.series.odds(x), branch: BranchUniform, conv: exact}
}
