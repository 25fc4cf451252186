package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/gkobilansky/gamma-goat/internal/igamma"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Interactively evaluate P and Q",
	Long: `Pick a method and a shape, then evaluate P(a,x) and Q(a,x) at as many
points as you like. An empty x asks for a new shape; Ctrl+C quits.`,
	Args: cobra.NoArgs,
	RunE: runExplore,
}

func init() {
	rootCmd.AddCommand(exploreCmd)
}

func runExplore(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	method, err := promptMethod()
	if err != nil {
		return ignoreInterrupt(err)
	}

	for {
		a, err := promptFloat("Shape a", validShape)
		if err != nil {
			return ignoreInterrupt(err)
		}
		e, err := igamma.ForShape(a, igamma.WithMethod(method))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "a = %g uses the %s regime\n", a, e.Regime())

		for {
			prompt := promptui.Prompt{Label: "x (empty for a new shape)", Validate: validPointOrEmpty}
			input, err := prompt.Run()
			if err != nil {
				return ignoreInterrupt(err)
			}
			if strings.TrimSpace(input) == "" {
				break
			}
			x, _ := strconv.ParseFloat(strings.TrimSpace(input), 64)
			describe(out, e.Evaluate(x))
		}
	}
}

func promptMethod() (igamma.Method, error) {
	methods := []string{
		"Polynomial (normal approximation, narrow band)",
		"Temme (uniform expansion, wide band)",
	}

	prompt := promptui.Select{
		Label: "Large-shape method",
		Items: methods,
		Size:  2,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	if idx == 1 {
		return igamma.MethodTemme, nil
	}
	return igamma.MethodPolynomial, nil
}

func promptFloat(label string, validate promptui.ValidateFunc) (float64, error) {
	prompt := promptui.Prompt{Label: label, Validate: validate}
	input, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(input), 64)
}

func validShape(input string) error {
	a, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return errors.New("not a number")
	}
	if a < igamma.MinShape || a > igamma.MaxShape {
		return fmt.Errorf("must be in [%g, %g]", igamma.MinShape, igamma.MaxShape)
	}
	return nil
}

func validPointOrEmpty(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	x, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return errors.New("not a number")
	}
	if !(x >= 0) {
		return errors.New("must be non-negative")
	}
	return nil
}

// describe prints one evaluation in a readable block.
func describe(out io.Writer, r igamma.Result) {
	fmt.Fprintf(out, "  P(%g, %g) = %.17g\n", r.A, r.X, r.P)
	fmt.Fprintf(out, "  Q(%g, %g) = %.17g\n", r.A, r.X, r.Q)
	fmt.Fprintf(out, "  odds P/Q   = %.6g\n", r.Odds)
	fmt.Fprintf(out, "  via %s/%s", r.Regime, r.Branch)
	if r.Steps > 0 {
		fmt.Fprintf(out, " in %d steps", r.Steps)
	}
	if !r.Converged {
		fmt.Fprint(out, " (step budget exhausted)")
	}
	fmt.Fprintln(out)
}

func ignoreInterrupt(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil
	}
	return err
}
