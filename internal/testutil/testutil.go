package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gkobilansky/gamma-goat/internal/store"
)

// SetupTestStore creates a test database that is closed when the test ends.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// SeedCases adds a few exact reference cases: P(1,x) = 1 − e⁻ˣ and
// P(½,x) = erf(√x).
func SeedCases(t *testing.T, s *store.SQLiteStore) []*store.ReferenceCase {
	t.Helper()

	seed := []*store.ReferenceCase{
		{Label: "exponential", A: 1, X: 1, P: 0.63212055882855767, Q: 0.36787944117144233},
		{Label: "median-like", A: 5, X: 5, P: 0.55950671493478754, Q: 0.4404932850652124},
		{Label: "half-shape", A: 0.5, X: 2, P: 0.95449973610364158, Q: 0.045500263896358417},
	}

	var out []*store.ReferenceCase
	for _, c := range seed {
		added, err := s.AddCase(context.Background(), c)
		if err != nil {
			t.Fatalf("failed to seed case %s: %v", c.Label, err)
		}
		out = append(out, added)
	}
	return out
}
