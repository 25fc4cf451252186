// Package check compares the engine against trusted values of P and Q and
// records the outcome as a check run.
package check

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	mstats "github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mathext"
	"k8s.io/klog/v2"

	"github.com/gkobilansky/gamma-goat/internal/igamma"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

// Tolerance is the relative error above which a result is a failure.
const Tolerance = 1e-9

// Oracle names where the expected values come from.
type Oracle string

const (
	OracleStore Oracle = "store" // reference cases in the database
	OracleGonum Oracle = "gonum" // gonum's mathext on a grid
)

func ParseOracle(s string) (Oracle, error) {
	switch Oracle(s) {
	case OracleStore, "":
		return OracleStore, nil
	case OracleGonum:
		return OracleGonum, nil
	}
	return "", fmt.Errorf("unknown oracle %q (want store or gonum)", s)
}

var ErrNoCases = errors.New("no reference cases")

// DefaultShapes and DefaultRatios span the gonum grid: x = a·ratio.
var (
	DefaultShapes = []float64{0.01, 0.1, 0.5, 1, 2.5, 7, 11, 15, 40, 90, 250}
	DefaultRatios = []float64{0.1, 0.5, 0.9, 1, 1.1, 1.5, 3}
)

type Options struct {
	Method  igamma.Method
	Oracle  Oracle
	Workers int // parallel evaluations, 0 means 4

	// Grid for the gonum oracle; defaults apply when empty.
	Shapes []float64
	Ratios []float64
}

// Report is a finished run with its results, worst first.
type Report struct {
	Run     *store.CheckRun
	Results []*store.CheckResult
}

// Run evaluates every expected point, stores the run and returns it.
func Run(ctx context.Context, s store.Store, opts Options) (*Report, error) {
	expected, err := expectations(ctx, s, opts)
	if err != nil {
		return nil, err
	}
	if len(expected) == 0 {
		return nil, ErrNoCases
	}

	run := &store.CheckRun{
		ID:     uuid.NewString(),
		Method: opts.Method.String(),
		Oracle: string(opts.Oracle),
	}
	if run.Oracle == "" {
		run.Oracle = string(OracleStore)
	}

	results, err := evaluate(ctx, expected, run.ID, opts)
	if err != nil {
		return nil, err
	}

	if err := summarize(run, results); err != nil {
		return nil, err
	}

	if err := s.SaveRun(ctx, run, results); err != nil {
		return nil, err
	}
	klog.V(2).Infof("check run %s: %d cases, %d failures, max %.3g", run.ID, run.Cases, run.Failures, run.MaxErr)

	sort.SliceStable(results, func(i, j int) bool { return results[i].RelErr > results[j].RelErr })
	return &Report{Run: run, Results: results}, nil
}

func expectations(ctx context.Context, s store.Store, opts Options) ([]*store.ReferenceCase, error) {
	switch opts.Oracle {
	case OracleStore, "":
		cases, err := s.ListCases(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list reference cases: %w", err)
		}
		return cases, nil
	case OracleGonum:
		return GonumGrid(opts.Shapes, opts.Ratios), nil
	}
	return nil, fmt.Errorf("unknown oracle %q", opts.Oracle)
}

// GonumGrid returns expected values from gonum's regularized incomplete
// gamma functions on x = a·ratio.
func GonumGrid(shapes, ratios []float64) []*store.ReferenceCase {
	if len(shapes) == 0 {
		shapes = DefaultShapes
	}
	if len(ratios) == 0 {
		ratios = DefaultRatios
	}
	var out []*store.ReferenceCase
	for _, a := range shapes {
		for _, f := range ratios {
			x := a * f
			out = append(out, &store.ReferenceCase{
				A:      a,
				X:      x,
				P:      mathext.GammaIncReg(a, x),
				Q:      mathext.GammaIncRegComp(a, x),
				Source: string(OracleGonum),
			})
		}
	}
	return out
}

func evaluate(ctx context.Context, expected []*store.ReferenceCase, runID string, opts Options) ([]*store.CheckResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	results := make([]*store.CheckResult, len(expected))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, c := range expected {
		i, c := i, c
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			e, err := igamma.ForShape(c.A, igamma.WithMethod(opts.Method))
			if err != nil {
				return fmt.Errorf("case a=%g x=%g: %w", c.A, c.X, err)
			}
			res := e.Evaluate(c.X)
			if !res.Converged {
				klog.V(4).Infof("a=%g x=%g: %s fraction stopped after %d steps", c.A, c.X, res.Branch, res.Steps)
			}
			results[i] = &store.CheckResult{
				RunID:  runID,
				CaseID: c.ID,
				A:      c.A,
				X:      c.X,
				P:      res.P,
				Q:      res.Q,
				WantP:  c.P,
				WantQ:  c.Q,
				RelErr: math.Max(RelativeError(res.P, c.P), RelativeError(res.Q, c.Q)),
				Branch: res.Branch.String(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// summarize fills the run's error statistics.
func summarize(run *store.CheckRun, results []*store.CheckResult) error {
	errs := make([]float64, len(results))
	for i, r := range results {
		errs[i] = r.RelErr
		if r.RelErr > Tolerance {
			run.Failures++
		}
	}
	run.Cases = len(results)

	var err error
	if run.MeanErr, err = mstats.Mean(errs); err != nil {
		return fmt.Errorf("failed to compute mean error: %w", err)
	}
	if run.P50Err, err = mstats.Percentile(errs, 50); err != nil {
		return fmt.Errorf("failed to compute p50 error: %w", err)
	}
	if run.P99Err, err = mstats.Percentile(errs, 99); err != nil {
		return fmt.Errorf("failed to compute p99 error: %w", err)
	}
	if run.MaxErr, err = mstats.Max(errs); err != nil {
		return fmt.Errorf("failed to compute max error: %w", err)
	}
	return nil
}

// RelativeError is |got−want|/|want|, or |got| when want is zero.
// A NaN anywhere is +Inf.
func RelativeError(got, want float64) float64 {
	if math.IsNaN(got) || math.IsNaN(want) {
		return math.Inf(1)
	}
	if got == want {
		return 0
	}
	if want == 0 {
		return math.Abs(got)
	}
	return math.Abs(got-want) / math.Abs(want)
}
