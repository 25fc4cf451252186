package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkobilansky/gamma-goat/internal/igamma"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

// executeCommand runs the root command with args against a fresh flag state.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "gg.db")
}

func TestEval_Table(t *testing.T) {
	out, err := executeCommand(t, "eval", "1", "1", "9", "--db", tempDB(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "REGIME")
	assert.Contains(t, lines[1], "0.63212055882855")
	assert.Contains(t, lines[1], "lower")
	assert.Contains(t, lines[2], "upper")
	assert.Contains(t, lines[2], "small")
}

func TestEval_JSON(t *testing.T) {
	out, err := executeCommand(t, "eval", "50000", "50000", "60000", "--format", "json", "--method", "temme", "--db", tempDB(t))
	require.NoError(t, err)

	var results []struct {
		P      float64 `json:"p"`
		Q      float64 `json:"q"`
		Regime string  `json:"regime"`
		Branch string  `json:"branch"`
		Method string  `json:"method"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	assert.Equal(t, "large", results[0].Regime)
	assert.Equal(t, "uniform", results[0].Branch)
	assert.Equal(t, "temme", results[0].Method)
	assert.InDelta(t, 0.5, results[0].P, 0.01)
	assert.Equal(t, "upper", results[1].Branch)
	assert.Less(t, results[1].Q, 1e-100)
}

func TestEval_Errors(t *testing.T) {
	db := tempDB(t)

	_, err := executeCommand(t, "eval", "0.001", "1", "--db", db)
	assert.ErrorIs(t, err, igamma.ErrInvalidShape)

	_, err = executeCommand(t, "eval", "1", "1", "--format", "xml", "--db", db)
	assert.Error(t, err)

	_, err = executeCommand(t, "eval", "1", "-1", "--db", db)
	assert.Error(t, err)

	_, err = executeCommand(t, "eval", "one", "1", "--db", db)
	assert.Error(t, err)

	_, err = executeCommand(t, "eval", "1", "1", "--method", "simpson", "--db", db)
	assert.Error(t, err)
}

func TestSweep_CrossesBranches(t *testing.T) {
	out, err := executeCommand(t, "sweep", "20", "--steps", "5", "--db", tempDB(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	for _, branch := range []string{"lower", "shifted-lower", "shifted-upper", "upper"} {
		assert.Contains(t, out, branch)
	}
	assert.Contains(t, out, "medium")
}

func TestSweepGrid(t *testing.T) {
	xs, err := sweepGrid(100, 1, 1000, 4, true)
	require.NoError(t, err)
	require.Len(t, xs, 4)
	assert.InDelta(t, 1, xs[0], 1e-12)
	assert.InDelta(t, 10, xs[1], 1e-12)
	assert.InDelta(t, 100, xs[2], 1e-10)
	assert.Equal(t, 1000.0, xs[3])

	// Defaults: a ± 6√a, floored at a/100.
	xs, err = sweepGrid(1, 0, 0, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, 7}, xs)

	_, err = sweepGrid(1, 5, 2, 3, false)
	assert.Error(t, err)
	_, err = sweepGrid(1, 1, 2, 1, false)
	assert.Error(t, err)
}

func TestRef_AddListDelete(t *testing.T) {
	db := tempDB(t)

	out, err := executeCommand(t, "ref", "add", "1", "1", "0.6321205588285577", "0.36787944117144233", "--label", "exp", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Added case 1")

	// Without p and q the values come from gonum.
	_, err = executeCommand(t, "ref", "add", "2", "3", "--db", db)
	require.NoError(t, err)

	_, err = executeCommand(t, "ref", "add", "1", "1", "0.6321205588285577", "0.36787944117144233", "--db", db)
	assert.ErrorContains(t, err, "already exists")

	out, err = executeCommand(t, "ref", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "exp")
	assert.Contains(t, out, "gonum")
	assert.Contains(t, out, "0.80085172652854")
	assert.Contains(t, out, "2 cases")

	out, err = executeCommand(t, "ref", "delete", "1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted case 1")

	_, err = executeCommand(t, "ref", "delete", "1", "--db", db)
	assert.ErrorContains(t, err, "not found")
}

func TestRef_ListEmpty(t *testing.T) {
	out, err := executeCommand(t, "ref", "list", "--db", tempDB(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No reference cases yet.")
}

func TestRef_Import(t *testing.T) {
	db := tempDB(t)
	file := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
cases:
  - label: exponential
    a: 1
    x: 1
    p: 0.6321205588285577
    q: 0.36787944117144233
  - label: half-shape
    a: 0.5
    x: 2
    p: 0.9544997361036416
`), 0644))

	out, err := executeCommand(t, "ref", "import", file, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 2 cases")

	out, err = executeCommand(t, "ref", "import", file, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 of 2 cases (2 already present)")

	_, err = executeCommand(t, "ref", "import", filepath.Join(t.TempDir(), "missing.yaml"), "--db", db)
	assert.Error(t, err)
}

func TestParseCaseFile(t *testing.T) {
	cases, err := parseCaseFile([]byte(`{"cases": [{"a": 2, "x": 1, "p": 0.25, "source": "paper"}]}`))
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, 0.75, cases[0].Q)
	assert.Equal(t, "paper", cases[0].Source)

	_, err = parseCaseFile([]byte("cases: ["))
	assert.Error(t, err)
}

func TestCheck_RunsAndExport(t *testing.T) {
	db := tempDB(t)

	_, err := executeCommand(t, "check", "--db", db)
	assert.ErrorContains(t, err, "no reference cases")

	_, err = executeCommand(t, "ref", "add", "1", "1", "0.6321205588285577", "0.36787944117144233", "--db", db)
	require.NoError(t, err)
	_, err = executeCommand(t, "ref", "add", "5", "5", "--db", db)
	require.NoError(t, err)

	out, err := executeCommand(t, "check", "--strict", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "polynomial vs store")
	assert.Contains(t, out, "Failures:  0")
	assert.Contains(t, out, "Worst results:")

	s, err := store.Open(db)
	require.NoError(t, err)
	runs, err := s.ListRuns(context.Background())
	s.Close()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	id := runs[0].ID

	out, err = executeCommand(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = executeCommand(t, "runs", id, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+id)

	_, err = executeCommand(t, "runs", "missing", "--db", db)
	assert.ErrorContains(t, err, "not found")

	out, err = executeCommand(t, "export", "cases", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,label,a,x,p,q,source,created_at", lines[0])

	out, err = executeCommand(t, "export", "run", id, "--format", "json", "--db", db)
	require.NoError(t, err)
	var export struct {
		Results []struct {
			A      float64 `json:"a"`
			Branch string  `json:"branch"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &export))
	assert.Len(t, export.Results, 2)

	_, err = executeCommand(t, "export", "run", "--db", db)
	assert.Error(t, err)
}

func TestCheck_StrictFailsOnWrongCase(t *testing.T) {
	db := tempDB(t)

	_, err := executeCommand(t, "ref", "add", "1", "1", "0.6", "0.4", "--db", db)
	require.NoError(t, err)

	out, err := executeCommand(t, "check", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Failures:  1")

	_, err = executeCommand(t, "check", "--strict", "--db", db)
	assert.ErrorContains(t, err, "1 of 1 cases above tolerance")
}

func TestCheck_GonumOracle(t *testing.T) {
	out, err := executeCommand(t, "check", "--oracle", "gonum", "--worst", "0", "--db", tempDB(t))
	require.NoError(t, err)
	assert.Contains(t, out, "polynomial vs gonum")
	assert.NotContains(t, out, "Worst results:")

	_, err = executeCommand(t, "check", "--oracle", "mpmath", "--db", tempDB(t))
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	db := tempDB(t)

	_, err := executeCommand(t, "token", "--db", db)
	assert.ErrorContains(t, err, "no server running")

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(db), ".gamma-goat-token"), []byte("deadbeef"), 0600))

	out, err := executeCommand(t, "token", "--raw", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef\n", out)

	out, err = executeCommand(t, "token", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:8080/report?token=deadbeef")
}

func TestDist(t *testing.T) {
	db := tempDB(t)

	// Two degrees of freedom: p = exp(−x/2).
	out, err := executeCommand(t, "dist", "chisq", "1", "2", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "p-value = 0.606530659712633")

	out, err = executeCommand(t, "dist", "quantile", "1", "0.975", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "x = 3.68887945")

	out, err = executeCommand(t, "dist", "interval", "10", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "95% interval = [4.79538")

	out, err = executeCommand(t, "dist", "table", "10,20", "30,40", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "df 1")
	assert.Contains(t, out, "Not significant")

	out, err = executeCommand(t, "dist", "gamma", "1", "0.75", "--rate", "2", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "survival = 0.22313016014842")

	out, err = executeCommand(t, "dist", "poisson", "0", "2", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "cdf = 0.13533528323661")

	_, err = executeCommand(t, "dist", "table", "1,x", "3,4", "--db", db)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	e, err := igamma.ForShape(1e6)
	require.NoError(t, err)

	var buf bytes.Buffer
	describe(&buf, e.Evaluate(1e6))
	assert.Contains(t, buf.String(), "P(1e+06, 1e+06) = 0.5")
	assert.Contains(t, buf.String(), "via large/uniform")
	assert.NotContains(t, buf.String(), "budget")
}

func TestPromptValidators(t *testing.T) {
	assert.NoError(t, validShape("2.5"))
	assert.Error(t, validShape("0.001"))
	assert.Error(t, validShape("abc"))

	assert.NoError(t, validPointOrEmpty(""))
	assert.NoError(t, validPointOrEmpty(" 3 "))
	assert.Error(t, validPointOrEmpty("-1"))
	assert.Error(t, validPointOrEmpty("NaN"))
}
