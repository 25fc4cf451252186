package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/gamma-goat/internal/stats"
)

var (
	distRate       float64
	distConfidence float64
)

var distCmd = &cobra.Command{
	Use:   "dist",
	Short: "Gamma-family distribution helpers",
	Long: `Distribution functions built on P and Q: gamma, chi-square and Poisson
tails, gamma quantiles and exact Poisson intervals.`,
}

var distGammaCmd = &cobra.Command{
	Use:   "gamma <shape> <x>",
	Short: "Gamma(shape, rate) CDF and survival at x",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals, err := parseFloatArgs("value", args)
		if err != nil {
			return err
		}
		cdf, err := stats.GammaCDF(vals[0], distRate, vals[1])
		if err != nil {
			return err
		}
		sf, err := stats.GammaSurvival(vals[0], distRate, vals[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cdf = %.17g\nsurvival = %.17g\n", cdf, sf)
		return nil
	},
}

var distChiSquareCmd = &cobra.Command{
	Use:   "chisq <statistic> <df>",
	Short: "Chi-square p-value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals, err := parseFloatArgs("value", args)
		if err != nil {
			return err
		}
		p, err := stats.ChiSquareSurvival(vals[1], vals[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "p-value = %.17g\n", p)
		return nil
	},
}

var distPoissonCmd = &cobra.Command{
	Use:   "poisson <k> <lambda>",
	Short: "Poisson Pr[N ≤ k] and Pr[N > k]",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid k %q", args[0])
		}
		lambda, err := parseFloatArg("lambda", args[1])
		if err != nil {
			return err
		}
		cdf, err := stats.PoissonCDF(k, lambda)
		if err != nil {
			return err
		}
		sf, err := stats.PoissonSurvival(k, lambda)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cdf = %.17g\nsurvival = %.17g\n", cdf, sf)
		return nil
	},
}

var distQuantileCmd = &cobra.Command{
	Use:   "quantile <shape> <p>",
	Short: "x with P(shape, x) = p",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals, err := parseFloatArgs("value", args)
		if err != nil {
			return err
		}
		x, err := stats.GammaQuantile(vals[0], vals[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "x = %.17g\n", x)
		return nil
	},
}

var distIntervalCmd = &cobra.Command{
	Use:   "interval <k>",
	Short: "Exact confidence interval for a Poisson mean",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid k %q", args[0])
		}
		lower, upper, err := stats.PoissonInterval(k, distConfidence)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%g%% interval = [%.10g, %.10g]\n", distConfidence*100, lower, upper)
		return nil
	},
}

var distTableCmd = &cobra.Command{
	Use:   "table <row>...",
	Short: "Chi-square test of independence",
	Long: `Run Pearson's chi-square test on a contingency table, one comma-separated
row per argument.

Example:
  gamma-goat dist table 10,20 30,40`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := make([][]int, len(args))
		for i, row := range args {
			for _, cell := range strings.Split(row, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(cell))
				if err != nil {
					return fmt.Errorf("invalid count %q in row %d", cell, i+1)
				}
				table[i] = append(table[i], n)
			}
		}
		res, err := stats.ChiSquareTest(table)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "chi-square = %.10g (df %d)\n", res.Statistic, res.DF)
		fmt.Fprintf(out, "p-value = %.10g\n", res.PValue)
		if res.Significant {
			fmt.Fprintln(out, "Significant at the 5% level")
		} else {
			fmt.Fprintln(out, "Not significant at the 5% level")
		}
		return nil
	},
}

func init() {
	distGammaCmd.Flags().Float64Var(&distRate, "rate", 1, "rate parameter")
	distIntervalCmd.Flags().Float64VarP(&distConfidence, "confidence", "c", 0.95, "confidence level")

	distCmd.AddCommand(distGammaCmd, distChiSquareCmd, distPoissonCmd, distQuantileCmd, distIntervalCmd, distTableCmd)
	rootCmd.AddCommand(distCmd)
}
