package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/gamma-goat/internal/check"
	"github.com/gkobilansky/gamma-goat/internal/igamma"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

var (
	checkOracle  string
	checkMethod  string
	checkWorkers int
	checkWorst   int
	checkStrict  bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the engine against reference values",
	Long: fmt.Sprintf(`Evaluate every reference case (or a gonum grid with --oracle gonum),
store the run and print the relative error summary. Results with a relative
error above %g count as failures.

Examples:
  gamma-goat check
  gamma-goat check --oracle gonum --method temme --worst 10`, check.Tolerance),
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkOracle, "oracle", "o", "store", "expected values: store or gonum")
	checkCmd.Flags().StringVarP(&checkMethod, "method", "m", methodFlagDefault(), "large-shape method (polynomial or temme)")
	checkCmd.Flags().IntVarP(&checkWorkers, "workers", "w", 4, "parallel evaluations")
	checkCmd.Flags().IntVar(&checkWorst, "worst", 5, "number of worst results to show")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "exit with an error when any case fails")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	oracle, err := check.ParseOracle(checkOracle)
	if err != nil {
		return err
	}
	method, err := igamma.ParseMethod(checkMethod)
	if err != nil {
		return err
	}

	return withStore(func(s *store.SQLiteStore) error {
		report, err := check.Run(cmd.Context(), s, check.Options{
			Method:  method,
			Oracle:  oracle,
			Workers: checkWorkers,
		})
		if errors.Is(err, check.ErrNoCases) {
			return fmt.Errorf("no reference cases to check. Add some with 'gamma-goat ref add' or use --oracle gonum")
		}
		if err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		printReport(cmd.OutOrStdout(), report, checkWorst)

		if checkStrict && report.Run.Failures > 0 {
			return fmt.Errorf("%d of %d cases above tolerance", report.Run.Failures, report.Run.Cases)
		}
		return nil
	})
}

func printReport(out io.Writer, report *check.Report, worst int) {
	run := report.Run
	fmt.Fprintf(out, "Run %s (%s vs %s)\n", run.ID, run.Method, run.Oracle)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Cases:     %s\n", formatNumber(run.Cases))
	fmt.Fprintf(out, "  Failures:  %d\n", run.Failures)
	fmt.Fprintf(out, "  Mean:      %s\n", formatErr(run.MeanErr))
	fmt.Fprintf(out, "  p50:       %s\n", formatErr(run.P50Err))
	fmt.Fprintf(out, "  p99:       %s\n", formatErr(run.P99Err))
	fmt.Fprintf(out, "  Max:       %s\n", formatErr(run.MaxErr))

	if worst <= 0 || len(report.Results) == 0 {
		return
	}
	if worst > len(report.Results) {
		worst = len(report.Results)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Worst results:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  A\tX\tP\tWANT P\tREL ERR\tBRANCH")
	for _, r := range report.Results[:worst] {
		fmt.Fprintf(w, "  %g\t%g\t%.16g\t%.16g\t%s\t%s\n", r.A, r.X, r.P, r.WantP, formatErr(r.RelErr), r.Branch)
	}
	w.Flush()
}
