package cli

import (
	goflag "flag"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "gamma-goat",
	Short: "Gamma Goat - regularized incomplete gamma functions P(a,x) and Q(a,x)",
	Long: `🐐 Gamma Goat evaluates the regularized incomplete gamma functions
P(a,x) and Q(a,x) for shapes from 0.01 up to 1e28, keeps reference values
in an embedded SQLite database and checks the engine against them.

Examples:
  gamma-goat eval 2.5 1 3 10
  gamma-goat check --oracle gonum
  gamma-goat serve`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("GG_DB_PATH", "./gamma-goat.db"), "database path")

	// klog's -v, -logtostderr, ...
	fs := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
