package stats

import (
	"fmt"
	"math"
)

// TestResult is the outcome of a chi-square test.
type TestResult struct {
	Statistic   float64
	DF          int
	PValue      float64
	Significant bool // p < 0.05
}

// ChiSquareTest performs Pearson's test of independence on a contingency
// table of counts. Rows and columns with a zero total are rejected.
func ChiSquareTest(observed [][]int) (TestResult, error) {
	rows := len(observed)
	if rows < 2 {
		return TestResult{}, fmt.Errorf("need at least 2 rows, got %d", rows)
	}
	cols := len(observed[0])
	if cols < 2 {
		return TestResult{}, fmt.Errorf("need at least 2 columns, got %d", cols)
	}

	rowSums := make([]float64, rows)
	colSums := make([]float64, cols)
	total := 0.0
	for i, row := range observed {
		if len(row) != cols {
			return TestResult{}, fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
		}
		for j, n := range row {
			if n < 0 {
				return TestResult{}, fmt.Errorf("negative count at (%d, %d)", i, j)
			}
			rowSums[i] += float64(n)
			colSums[j] += float64(n)
			total += float64(n)
		}
	}
	for i, s := range rowSums {
		if s == 0 {
			return TestResult{}, fmt.Errorf("row %d is empty", i)
		}
	}
	for j, s := range colSums {
		if s == 0 {
			return TestResult{}, fmt.Errorf("column %d is empty", j)
		}
	}

	stat := 0.0
	for i, row := range observed {
		for j, n := range row {
			expected := rowSums[i] * colSums[j] / total
			d := float64(n) - expected
			stat += d * d / expected
		}
	}

	df := (rows - 1) * (cols - 1)
	p, err := ChiSquareSurvival(float64(df), stat)
	if err != nil {
		return TestResult{}, fmt.Errorf("failed to compute p-value: %w", err)
	}

	return TestResult{
		Statistic:   stat,
		DF:          df,
		PValue:      p,
		Significant: p < 0.05,
	}, nil
}

// SignificanceTest performs a two-proportion z-test.
// Returns confidence level (0-1) that variant A beats variant B.
func SignificanceTest(aConv, aViews, bConv, bViews int) float64 {
	if aViews == 0 || bViews == 0 {
		return 0.5 // Need data from both variants
	}

	pA := float64(aConv) / float64(aViews)
	pB := float64(bConv) / float64(bViews)

	// Pooled proportion under null hypothesis (pA = pB)
	pooledP := float64(aConv+bConv) / float64(aViews+bViews)
	se := math.Sqrt(pooledP * (1 - pooledP) * (1/float64(aViews) + 1/float64(bViews)))

	if se == 0 {
		if pA > pB {
			return 1.0
		} else if pA < pB {
			return 0.0
		}
		return 0.5
	}

	return NormalCDF((pA - pB) / se)
}
