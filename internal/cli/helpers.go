package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gkobilansky/gamma-goat/internal/igamma"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// getTokenFilePath returns the path to the token file, kept alongside the
// database.
func getTokenFilePath() string {
	return filepath.Join(filepath.Dir(dbPath), ".gamma-goat-token")
}

func parseFloatArg(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a number", name, s)
	}
	return v, nil
}

func parseFloatArgs(name string, args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, s := range args {
		v, err := parseFloatArg(name, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// methodFlagDefault is the --method default for every command.
func methodFlagDefault() string {
	return getEnvOrDefault("GG_METHOD", igamma.MethodPolynomial.String())
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}

func formatErr(e float64) string {
	if e == 0 {
		return "0"
	}
	return fmt.Sprintf("%.2e", e)
}

func sortWorstFirst(results []*store.CheckResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].RelErr > results[j].RelErr })
}
