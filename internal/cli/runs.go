package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/gamma-goat/internal/check"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List check runs, or show one",
	Long: `List stored check runs, newest first. With an id, show that run's
results, worst first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		if len(args) == 1 {
			return showRun(cmd, s, args[0])
		}

		runs, err := s.ListRuns(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No check runs yet. Run 'gamma-goat check' to create one.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMETHOD\tORACLE\tCASES\tFAILURES\tMAX ERR\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				r.ID, r.Method, r.Oracle, formatNumber(r.Cases), r.Failures, formatErr(r.MaxErr),
				r.CreatedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
		return nil
	})
}

func showRun(cmd *cobra.Command, s *store.SQLiteStore, id string) error {
	run, err := s.GetRun(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("run '%s' not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	results, err := s.GetResults(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get results: %w", err)
	}
	sortWorstFirst(results)

	printReport(cmd.OutOrStdout(), &check.Report{Run: run, Results: results}, len(results))
	return nil
}
