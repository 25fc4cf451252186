package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkobilansky/gamma-goat/internal/check"
	"github.com/gkobilansky/gamma-goat/internal/igamma"
	"github.com/gkobilansky/gamma-goat/internal/server"
	"github.com/gkobilansky/gamma-goat/internal/store"
	"github.com/gkobilansky/gamma-goat/internal/testutil"
)

func setupTestServer(t *testing.T, cfg server.Config) (*server.Server, *store.SQLiteStore) {
	t.Helper()
	s := testutil.SetupTestStore(t)
	return server.New(s, cfg), s
}

func serve(srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, s := setupTestServer(t, server.Config{})
	testutil.SeedCases(t, s)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.CasesCount)
	assert.Zero(t, resp.RunsCount)
	assert.Positive(t, resp.DBSizeBytes)

	w = serve(srv, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestEvaluate(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=1&x=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		P, Q, Odds     float64
		Regime, Branch string
		Method         string
		Converged      bool
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.InDelta(t, 0.6321205588285577, resp.P, 1e-14)
	assert.InDelta(t, 0.36787944117144233, resp.Q, 1e-14)
	assert.InDelta(t, 1.718281828459045, resp.Odds, 1e-13)
	assert.Equal(t, "small", resp.Regime)
	assert.Equal(t, "lower", resp.Branch)
	assert.Equal(t, "polynomial", resp.Method)
	assert.True(t, resp.Converged)
}

func TestEvaluate_InfiniteOdds(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=2&x=Inf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"odds":"+Inf"`)
	assert.Contains(t, w.Body.String(), `"q":0`)
}

func TestEvaluate_DefaultMethodFromConfig(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{Method: igamma.MethodTemme})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=1e6&x=1e6", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"method":"temme"`)
	assert.Contains(t, w.Body.String(), `"branch":"uniform"`)

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=1e6&x=1e6&method=polynomial", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"method":"polynomial"`)
}

func TestEvaluate_BadRequests(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	for _, query := range []string{
		"a=1",
		"x=1",
		"a=abc&x=1",
		"a=0.001&x=1",
		"a=1e29&x=1",
		"a=1&x=-1",
		"a=1&x=NaN",
		"a=1&x=1&method=simpson",
	} {
		w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}

	w := serve(srv, httptest.NewRequest(http.MethodPost, "/api/igamma?a=1&x=1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestBatch(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	body := `{"points":[{"a":1,"x":1},{"a":50000,"x":50000},{"a":0.001,"x":1},{"a":3,"x":"+Inf"}]}`
	w := serve(srv, httptest.NewRequest(http.MethodPost, "/api/igamma/batch", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []struct {
			P      server.Number `json:"p"`
			Regime string        `json:"regime"`
			Branch string        `json:"branch"`
			Error  string        `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 4)

	assert.InDelta(t, 0.6321205588285577, float64(resp.Results[0].P), 1e-14)
	assert.Equal(t, "large", resp.Results[1].Regime)
	assert.Equal(t, "uniform", resp.Results[1].Branch)
	assert.Contains(t, resp.Results[2].Error, "invalid shape")
	assert.Equal(t, server.Number(1), resp.Results[3].P)
	assert.Equal(t, "boundary", resp.Results[3].Branch)
}

func TestBatch_BadRequests(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	w := serve(srv, httptest.NewRequest(http.MethodPost, "/api/igamma/batch", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(srv, httptest.NewRequest(http.MethodPost, "/api/igamma/batch", strings.NewReader(`{"method":"x","points":[]}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma/batch", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestBatch_LimitsSize(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	points := strings.TrimSuffix(strings.Repeat(`{"a":1,"x":1},`, 10001), ",")
	w := serve(srv, httptest.NewRequest(http.MethodPost, "/api/igamma/batch", strings.NewReader(`{"points":[`+points+`]}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// Oversized bodies are cut off while decoding.
	padded := `{"points":[` + strings.Repeat(" ", 3<<20) + `]}`
	w = serve(srv, httptest.NewRequest(http.MethodPost, "/api/igamma/batch", strings.NewReader(padded)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestEvaluatorCache_Bounded(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{CacheSize: 16})

	for i := 0; i < 200; i++ {
		url := fmt.Sprintf("/api/igamma?a=%d.5&x=1", i)
		w := serve(srv, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.LessOrEqual(t, srv.CachedEvaluators(), 16)
	}
	assert.Equal(t, 16, srv.CachedEvaluators())

	// A batch of distinct shapes is held to the same bound.
	var b strings.Builder
	b.WriteString(`{"points":[`)
	for i := 0; i < 1000; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"a":%d.25,"x":2}`, i+1)
	}
	b.WriteString(`]}`)
	w := serve(srv, httptest.NewRequest(http.MethodPost, "/api/igamma/batch", strings.NewReader(b.String())))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 16, srv.CachedEvaluators())

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health server.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, 16, health.Evaluators)
}

func TestEvaluatorCache_DefaultSize(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	for i := 0; i < 3; i++ {
		w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=2&x=1", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, srv.CachedEvaluators())
}

func TestCases_List(t *testing.T) {
	srv, s := setupTestServer(t, server.Config{})

	// Empty store returns an empty array, not null
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/cases", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	testutil.SeedCases(t, s)
	w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/cases", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var cases []server.CaseResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cases))
	require.Len(t, cases, 3)
	assert.Equal(t, server.Number(0.5), cases[0].A)
	assert.Equal(t, "manual", cases[0].Source)
}

func TestCases_AddRequiresToken(t *testing.T) {
	srv, s := setupTestServer(t, server.Config{})
	body := `{"label":"api","a":2,"x":1,"p":0.26424111765711533,"q":0.7357588823428847}`

	w := serve(srv, httptest.NewRequest(http.MethodPost, "/api/cases", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cases", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(srv, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/cases", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+srv.Token())
	w = serve(srv, req)
	require.Equal(t, http.StatusCreated, w.Code)

	n, err := s.CountCases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Same case again conflicts
	req = httptest.NewRequest(http.MethodPost, "/api/cases", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+srv.Token())
	assert.Equal(t, http.StatusConflict, serve(srv, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/cases", strings.NewReader(`{"a":-1,"x":1,"p":0.5,"q":0.5}`))
	req.AddCookie(&http.Cookie{Name: "gg_token", Value: srv.Token()})
	assert.Equal(t, http.StatusBadRequest, serve(srv, req).Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{RateLimit: 1})

	first := serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=1&x=1", nil))
	second := serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=1&x=1", nil))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Health is not limited
	assert.Equal(t, http.StatusOK, serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestMetrics(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=1&x=1", nil))
	serve(srv, httptest.NewRequest(http.MethodGet, "/api/igamma?a=1&x=9", nil))

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `gamma_goat_evaluations_total{branch="lower",regime="small"} 1`)
	assert.Contains(t, body, `gamma_goat_evaluations_total{branch="upper",regime="small"} 1`)
	assert.Contains(t, body, "gamma_goat_evaluation_duration_seconds_count 2")
}

func TestReport_Unauthorized(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/report", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/report?token=wrong", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReport_TokenSetsCookie(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/report?token="+srv.Token(), nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/report", w.Header().Get("Location"))

	var tokenCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "gg_token" {
			tokenCookie = c
		}
	}
	require.NotNil(t, tokenCookie, "expected gg_token cookie to be set")
	assert.Equal(t, srv.Token(), tokenCookie.Value)
	assert.True(t, tokenCookie.HttpOnly)
}

func TestReport_ListsRuns(t *testing.T) {
	srv, s := setupTestServer(t, server.Config{})
	testutil.SeedCases(t, s)

	report, err := check.Run(context.Background(), s, check.Options{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	req.AddCookie(&http.Cookie{Name: "gg_token", Value: srv.Token()})
	w := serve(srv, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "3 reference cases stored")
	assert.Contains(t, w.Body.String(), "/report/run/"+report.Run.ID)

	req = httptest.NewRequest(http.MethodGet, "/report/run/"+report.Run.ID, nil)
	req.Header.Set("Authorization", "Bearer "+srv.Token())
	w = serve(srv, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "polynomial against store")
	assert.Equal(t, 3, strings.Count(w.Body.String(), "<td>lower</td>")+strings.Count(w.Body.String(), "<td>upper</td>"))

	req = httptest.NewRequest(http.MethodGet, "/report/run/missing", nil)
	req.AddCookie(&http.Cookie{Name: "gg_token", Value: srv.Token()})
	assert.Equal(t, http.StatusNotFound, serve(srv, req).Code)
}

func TestReport_Logout(t *testing.T) {
	srv, _ := setupTestServer(t, server.Config{})

	req := httptest.NewRequest(http.MethodGet, "/report?logout=1", nil)
	req.AddCookie(&http.Cookie{Name: "gg_token", Value: srv.Token()})
	w := serve(srv, req)
	require.Equal(t, http.StatusFound, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestNumber_JSON(t *testing.T) {
	out, err := json.Marshal([]server.Number{1.5, server.Number(math.Inf(1)), 0})
	require.NoError(t, err)
	assert.Equal(t, `[1.5,"+Inf",0]`, string(out))

	var n server.Number
	require.NoError(t, json.Unmarshal([]byte(`"-Inf"`), &n))
	assert.True(t, math.IsInf(float64(n), -1))
}
