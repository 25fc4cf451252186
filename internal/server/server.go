package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/gkobilansky/gamma-goat/internal/igamma"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

// Config holds the serve-time settings.
type Config struct {
	Port      int
	TokenFile string
	Method    igamma.Method // default for requests without ?method=
	RateLimit float64       // API requests per second, 0 disables limiting
	CacheSize int           // evaluators kept for reuse, 0 means DefaultCacheSize
}

// DefaultCacheSize bounds the evaluator cache when Config.CacheSize is unset.
const DefaultCacheSize = 4096

type Server struct {
	store     *store.SQLiteStore
	cfg       Config
	token     string
	router    *http.ServeMux
	metrics   *metrics
	limiter   *rate.Limiter
	startTime time.Time

	// evaluators holds recently used *igamma.Evaluator by evaluatorKey.
	// Shapes come from clients, so the cache is LRU-bounded.
	evaluators *lru.Cache
}

type evaluatorKey struct {
	a      float64
	method igamma.Method
}

func New(s *store.SQLiteStore, cfg Config) *Server {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	evaluators, _ := lru.New(cfg.CacheSize)

	srv := &Server{
		store:     s,
		cfg:       cfg,
		token:     generateToken(),
		router:    http.NewServeMux(),
		metrics:   newMetrics(),
		startTime: time.Now(),

		evaluators: evaluators,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		srv.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.handler())
	s.router.Handle("/api/igamma", s.limit(http.HandlerFunc(s.handleEvaluate)))
	s.router.Handle("/api/igamma/batch", s.limit(http.HandlerFunc(s.handleBatch)))
	s.router.Handle("/api/cases", s.limit(http.HandlerFunc(s.handleCases)))

	// Report endpoints (protected)
	s.router.Handle("/report", s.authMiddleware(http.HandlerFunc(s.handleReport)))
	s.router.Handle("/report/run/", s.authMiddleware(http.HandlerFunc(s.handleReportRun)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// Write token to file for the token command
	if s.cfg.TokenFile != "" {
		if err := os.WriteFile(s.cfg.TokenFile, []byte(s.token), 0600); err != nil {
			klog.Warningf("failed to write token file %s: %v", s.cfg.TokenFile, err)
		}
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("gamma-goat listening on :%d (method=%s)", s.cfg.Port, s.cfg.Method)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	klog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if s.cfg.TokenFile != "" {
		os.Remove(s.cfg.TokenFile)
	}
	return nil
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Store() *store.SQLiteStore {
	return s.store
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// CachedEvaluators reports how many evaluators the cache holds.
func (s *Server) CachedEvaluators() int {
	return s.evaluators.Len()
}

// evaluator returns the evaluator for shape a, reusing a cached one.
func (s *Server) evaluator(a float64, method igamma.Method) (*igamma.Evaluator, error) {
	key := evaluatorKey{a: a, method: method}
	if e, ok := s.evaluators.Get(key); ok {
		return e.(*igamma.Evaluator), nil
	}
	e, err := igamma.ForShape(a, igamma.WithMethod(method))
	if err != nil {
		return nil, err
	}
	s.evaluators.Add(key, e)
	return e, nil
}

// limit rejects requests over the configured rate with 429.
func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
