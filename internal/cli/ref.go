package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mathext"
	"gopkg.in/yaml.v3"

	"github.com/gkobilansky/gamma-goat/internal/store"
)

// maxImportCases bounds one import file.
const maxImportCases = 100000

var (
	refLabel  string
	refSource string
)

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Manage reference cases",
	Long: `Manage the trusted values of P(a,x) and Q(a,x) that 'check' compares
the engine against.`,
}

var refAddCmd = &cobra.Command{
	Use:   "add <a> <x> [p] [q]",
	Short: "Add a reference case",
	Long: `Add a reference case. Q defaults to 1 - p; give it explicitly when P is
close to 1. Without p and q the values come from gonum's mathext.

Examples:
  gamma-goat ref add 1 1 0.6321205588285577 0.36787944117144233 --label exp
  gamma-goat ref add 3.5 2`,
	Args: cobra.RangeArgs(2, 4),
	RunE: runRefAdd,
}

var refListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reference cases",
	Args:  cobra.NoArgs,
	RunE:  runRefList,
}

var refDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a reference case",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefDelete,
}

var refImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import reference cases from YAML",
	Long: `Import reference cases from a YAML (or JSON) file:

  cases:
    - label: exponential
      a: 1
      x: 1
      p: 0.6321205588285577
      q: 0.36787944117144233

Cases already stored with the same (a, x, source) are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefImport,
}

func init() {
	refAddCmd.Flags().StringVarP(&refLabel, "label", "l", "", "optional label")
	refAddCmd.Flags().StringVar(&refSource, "source", "", "where the value came from (default manual, or gonum)")

	refCmd.AddCommand(refAddCmd, refListCmd, refDeleteCmd, refImportCmd)
	rootCmd.AddCommand(refCmd)
}

func runRefAdd(cmd *cobra.Command, args []string) error {
	vals, err := parseFloatArgs("value", args)
	if err != nil {
		return err
	}

	c := &store.ReferenceCase{Label: refLabel, A: vals[0], X: vals[1], Source: refSource}
	switch len(vals) {
	case 2:
		c.P = mathext.GammaIncReg(c.A, c.X)
		c.Q = mathext.GammaIncRegComp(c.A, c.X)
		if c.Source == "" {
			c.Source = "gonum"
		}
	case 3:
		c.P, c.Q = vals[2], 1-vals[2]
	default:
		c.P, c.Q = vals[2], vals[3]
	}

	return withStore(func(s *store.SQLiteStore) error {
		added, err := s.AddCase(cmd.Context(), c)
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("case a=%g x=%g already exists", c.A, c.X)
		}
		if err != nil {
			return fmt.Errorf("failed to add case: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added case %d: P(%g, %g) = %.17g\n", added.ID, added.A, added.X, added.P)
		return nil
	})
}

func runRefList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		cases, err := s.ListCases(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list cases: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(cases) == 0 {
			fmt.Fprintln(out, "No reference cases yet.")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Add one with 'gamma-goat ref add <a> <x> <p> <q>' or import a file.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tA\tX\tP\tQ\tSOURCE\tCREATED")
		for _, c := range cases {
			fmt.Fprintf(w, "%d\t%s\t%g\t%g\t%.16g\t%.16g\t%s\t%s\n",
				c.ID, c.Label, c.A, c.X, c.P, c.Q, c.Source, c.CreatedAt.Format("2006-01-02"))
		}
		w.Flush()
		fmt.Fprintf(out, "\n%s cases\n", formatNumber(len(cases)))
		return nil
	})
}

func runRefDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}

	return withStore(func(s *store.SQLiteStore) error {
		if err := s.DeleteCase(cmd.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("case %d not found", id)
			}
			return fmt.Errorf("failed to delete case: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted case %d\n", id)
		return nil
	})
}

// caseFile is the import file layout.
type caseFile struct {
	Cases []caseEntry `yaml:"cases"`
}

type caseEntry struct {
	Label  string   `yaml:"label"`
	A      float64  `yaml:"a"`
	X      float64  `yaml:"x"`
	P      float64  `yaml:"p"`
	Q      *float64 `yaml:"q"`
	Source string   `yaml:"source"`
}

func parseCaseFile(data []byte) ([]*store.ReferenceCase, error) {
	var f caseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse case file: %w", err)
	}
	if len(f.Cases) > maxImportCases {
		return nil, fmt.Errorf("too many cases: %d (max %d)", len(f.Cases), maxImportCases)
	}

	cases := make([]*store.ReferenceCase, len(f.Cases))
	for i, e := range f.Cases {
		q := 1 - e.P
		if e.Q != nil {
			q = *e.Q
		}
		cases[i] = &store.ReferenceCase{Label: e.Label, A: e.A, X: e.X, P: e.P, Q: q, Source: e.Source}
	}
	return cases, nil
}

func runRefImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	cases, err := parseCaseFile(data)
	if err != nil {
		return err
	}

	return withStore(func(s *store.SQLiteStore) error {
		n, err := s.ImportCases(cmd.Context(), cases)
		if err != nil {
			return fmt.Errorf("failed to import cases: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d cases (%d already present)\n", n, len(cases), len(cases)-n)
		return nil
	})
}
