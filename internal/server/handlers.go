package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"k8s.io/klog/v2"

	"github.com/gkobilansky/gamma-goat/internal/igamma"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

// maxBatch bounds the points accepted by one batch request.
const maxBatch = 10000

// maxBatchBytes bounds a batch body. A point with long numbers and
// whitespace stays well under 256 bytes.
const maxBatchBytes = maxBatch * 256

type HealthResponse struct {
	Status        string `json:"status"`
	CasesCount    int    `json:"cases_count"`
	RunsCount     int    `json:"runs_count"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Evaluators    int    `json:"cached_evaluators"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	cases, err := s.store.CountCases(ctx)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		klog.V(2).Infof("page count query failed: %v", err)
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		CasesCount:    cases,
		RunsCount:     len(runs),
		DBSizeBytes:   dbSize,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Evaluators:    s.CachedEvaluators(),
	})
}

// Number is a float64 that encodes ±Inf and NaN as the JSON strings "+Inf",
// "-Inf" and "NaN".
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// EvalResponse is one evaluation of P(a,x) and Q(a,x).
type EvalResponse struct {
	A         Number `json:"a"`
	X         Number `json:"x"`
	P         Number `json:"p"`
	Q         Number `json:"q"`
	Odds      Number `json:"odds"`
	Regime    string `json:"regime"`
	Branch    string `json:"branch"`
	Method    string `json:"method"`
	Steps     int    `json:"steps"`
	Converged bool   `json:"converged"`
	Error     string `json:"error,omitempty"`
}

// NewEvalResponse converts an engine result for the wire.
func NewEvalResponse(res igamma.Result, method igamma.Method) EvalResponse {
	return EvalResponse{
		A:         Number(res.A),
		X:         Number(res.X),
		P:         Number(res.P),
		Q:         Number(res.Q),
		Odds:      Number(res.Odds),
		Regime:    res.Regime.String(),
		Branch:    res.Branch.String(),
		Method:    method.String(),
		Steps:     res.Steps,
		Converged: res.Converged,
	}
}

// evaluate runs one evaluation through the cache and records metrics.
func (s *Server) evaluate(a, x float64, method igamma.Method) (igamma.Result, error) {
	if math.IsNaN(x) || x < 0 {
		return igamma.Result{}, errors.New("x must be a non-negative number")
	}
	e, err := s.evaluator(a, method)
	if err != nil {
		return igamma.Result{}, err
	}

	start := time.Now()
	res := e.Evaluate(x)
	s.metrics.observe(res, time.Since(start))

	if !res.Converged {
		klog.V(4).Infof("continued fraction did not converge: a=%g x=%g branch=%s steps=%d", a, x, res.Branch, res.Steps)
	}
	return res, nil
}

func (s *Server) requestMethod(name string) (igamma.Method, error) {
	if name == "" {
		return s.cfg.Method, nil
	}
	return igamma.ParseMethod(name)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	a, err := strconv.ParseFloat(q.Get("a"), 64)
	if err != nil {
		http.Error(w, "a must be a number", http.StatusBadRequest)
		return
	}
	x, err := strconv.ParseFloat(q.Get("x"), 64)
	if err != nil {
		http.Error(w, "x must be a number", http.StatusBadRequest)
		return
	}
	method, err := s.requestMethod(q.Get("method"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.evaluate(a, x, method)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	klog.V(2).Infof("GET /api/igamma a=%g x=%g -> %s/%s", a, x, res.Regime, res.Branch)

	writeJSON(w, http.StatusOK, NewEvalResponse(res, method))
}

// BatchRequest asks for many points in one call.
type BatchRequest struct {
	Method string       `json:"method"`
	Points []BatchPoint `json:"points"`
}

type BatchPoint struct {
	A Number `json:"a"`
	X Number `json:"x"`
}

type BatchResponse struct {
	Results []EvalResponse `json:"results"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BatchRequest
	body := http.MaxBytesReader(w, r.Body, maxBatchBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Points) > maxBatch {
		http.Error(w, "Too many points", http.StatusRequestEntityTooLarge)
		return
	}
	method, err := s.requestMethod(req.Method)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Bad points are reported inline so one typo does not sink the batch.
	results := make([]EvalResponse, len(req.Points))
	for i, pt := range req.Points {
		a, x := float64(pt.A), float64(pt.X)
		res, err := s.evaluate(a, x, method)
		if err != nil {
			results[i] = EvalResponse{A: pt.A, X: pt.X, P: Number(math.NaN()), Q: Number(math.NaN()), Odds: Number(math.NaN()), Method: method.String(), Error: err.Error()}
			continue
		}
		results[i] = NewEvalResponse(res, method)
	}
	klog.V(2).Infof("POST /api/igamma/batch points=%d", len(req.Points))

	writeJSON(w, http.StatusOK, BatchResponse{Results: results})
}

// CaseResponse is a reference case on the wire.
type CaseResponse struct {
	ID        int64  `json:"id"`
	Label     string `json:"label,omitempty"`
	A         Number `json:"a"`
	X         Number `json:"x"`
	P         Number `json:"p"`
	Q         Number `json:"q"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

func newCaseResponse(c *store.ReferenceCase) CaseResponse {
	return CaseResponse{
		ID:        c.ID,
		Label:     c.Label,
		A:         Number(c.A),
		X:         Number(c.X),
		P:         Number(c.P),
		Q:         Number(c.Q),
		Source:    c.Source,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type CaseRequest struct {
	Label  string `json:"label"`
	A      Number `json:"a"`
	X      Number `json:"x"`
	P      Number `json:"p"`
	Q      Number `json:"q"`
	Source string `json:"source"`
}

func (s *Server) handleCases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listCases(w, r)
	case http.MethodPost:
		// Writes need the token.
		s.authorizeAPI(http.HandlerFunc(s.addCase)).ServeHTTP(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.ListCases(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch cases", http.StatusInternalServerError)
		return
	}

	// Return empty array instead of null
	response := make([]CaseResponse, 0, len(cases))
	for _, c := range cases {
		response = append(response, newCaseResponse(c))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) addCase(w http.ResponseWriter, r *http.Request) {
	var req CaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	added, err := s.store.AddCase(r.Context(), &store.ReferenceCase{
		Label:  req.Label,
		A:      float64(req.A),
		X:      float64(req.X),
		P:      float64(req.P),
		Q:      float64(req.Q),
		Source: req.Source,
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		http.Error(w, "Case already exists", http.StatusConflict)
		return
	case errors.Is(err, store.ErrInvalidCase):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Failed to add case", http.StatusInternalServerError)
		return
	}
	klog.V(2).Infof("added reference case %d (a=%g x=%g)", added.ID, added.A, added.X)

	writeJSON(w, http.StatusCreated, newCaseResponse(added))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Errorf("failed to encode response: %v", err)
	}
}
