package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/gamma-goat/internal/store"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export cases | export run <id>",
	Short: "Export reference cases or run results",
	Long: `Export reference cases or the results of a check run in CSV or JSON format.

Examples:
  gamma-goat export cases --format csv > cases.csv
  gamma-goat export run 6f1c1e36-3f9b-4f4e-9f57-1c7a3f1f2b10 --format json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *store.SQLiteStore) error {
		out := cmd.OutOrStdout()
		switch {
		case args[0] == "cases" && len(args) == 1:
			cases, err := s.ListCases(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list cases: %w", err)
			}
			if exportFormat == "csv" {
				return exportCasesCSV(out, cases)
			}
			return exportCasesJSON(out, cases)

		case args[0] == "run" && len(args) == 2:
			if _, err := s.GetRun(cmd.Context(), args[1]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("run '%s' not found", args[1])
				}
				return fmt.Errorf("failed to get run: %w", err)
			}
			results, err := s.GetResults(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("failed to get results: %w", err)
			}
			if exportFormat == "csv" {
				return exportResultsCSV(out, results)
			}
			return exportResultsJSON(out, results)
		}
		return fmt.Errorf("usage: export cases | export run <id>")
	})
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func exportCasesCSV(out io.Writer, cases []*store.ReferenceCase) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	// Write header
	if err := w.Write([]string{"id", "label", "a", "x", "p", "q", "source", "created_at"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, c := range cases {
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.Label,
			formatFloat(c.A),
			formatFloat(c.X),
			formatFloat(c.P),
			formatFloat(c.Q),
			c.Source,
			strconv.FormatInt(c.CreatedAt.Unix(), 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

func exportResultsCSV(out io.Writer, results []*store.CheckResult) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write([]string{"case_id", "a", "x", "p", "q", "want_p", "want_q", "rel_err", "branch"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range results {
		row := []string{
			strconv.FormatInt(r.CaseID, 10),
			formatFloat(r.A),
			formatFloat(r.X),
			formatFloat(r.P),
			formatFloat(r.Q),
			formatFloat(r.WantP),
			formatFloat(r.WantQ),
			formatFloat(r.RelErr),
			r.Branch,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

type jsonCase struct {
	ID        int64   `json:"id"`
	Label     string  `json:"label,omitempty"`
	A         float64 `json:"a"`
	X         float64 `json:"x"`
	P         float64 `json:"p"`
	Q         float64 `json:"q"`
	Source    string  `json:"source"`
	Timestamp int64   `json:"timestamp"`
}

type jsonResult struct {
	CaseID int64   `json:"case_id,omitempty"`
	A      float64 `json:"a"`
	X      float64 `json:"x"`
	P      float64 `json:"p"`
	Q      float64 `json:"q"`
	WantP  float64 `json:"want_p"`
	WantQ  float64 `json:"want_q"`
	RelErr float64 `json:"rel_err"`
	Branch string  `json:"branch"`
}

func exportCasesJSON(out io.Writer, cases []*store.ReferenceCase) error {
	export := struct {
		Cases []jsonCase `json:"cases"`
	}{Cases: make([]jsonCase, len(cases))}

	for i, c := range cases {
		export.Cases[i] = jsonCase{
			ID:        c.ID,
			Label:     c.Label,
			A:         c.A,
			X:         c.X,
			P:         c.P,
			Q:         c.Q,
			Source:    c.Source,
			Timestamp: c.CreatedAt.Unix(),
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func exportResultsJSON(out io.Writer, results []*store.CheckResult) error {
	export := struct {
		Results []jsonResult `json:"results"`
	}{Results: make([]jsonResult, len(results))}

	for i, r := range results {
		export.Results[i] = jsonResult{
			CaseID: r.CaseID,
			A:      r.A,
			X:      r.X,
			P:      r.P,
			Q:      r.Q,
			WantP:  r.WantP,
			WantQ:  r.WantQ,
			RelErr: r.RelErr,
			Branch: r.Branch,
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
