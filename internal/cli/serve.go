package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/gkobilansky/gamma-goat/internal/igamma"
	"github.com/gkobilansky/gamma-goat/internal/server"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

var (
	port        int
	serveMethod string
	rateLimit   float64
	cacheSize   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the gamma-goat HTTP server.

The server provides:
  - GET  /api/igamma?a=&x=   single evaluation
  - POST /api/igamma/batch   many evaluations
  - /api/cases               reference cases (writes need the token)
  - /report                  check run report (needs the token)
  - /metrics                 Prometheus metrics
  - /health                  health check

Example:
  gamma-goat serve --port 8080 --rate-limit 200`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvIntOrDefault("GG_PORT", 8080), "port to listen on")
	serveCmd.Flags().StringVarP(&serveMethod, "method", "m", methodFlagDefault(), "default large-shape method (polynomial or temme)")
	serveCmd.Flags().Float64Var(&rateLimit, "rate-limit", getEnvFloatOrDefault("GG_RATE_LIMIT", 0), "API requests per second (0 = unlimited)")
	serveCmd.Flags().IntVar(&cacheSize, "cache-size", getEnvIntOrDefault("GG_CACHE_SIZE", server.DefaultCacheSize), "evaluators kept in memory for reuse")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	method, err := igamma.ParseMethod(serveMethod)
	if err != nil {
		return err
	}

	return withStore(func(s *store.SQLiteStore) error {
		serverURL := fmt.Sprintf("http://localhost:%d", port)
		if err := s.SetSetting(cmd.Context(), "server_url", serverURL); err != nil {
			klog.Warningf("failed to save server url: %v", err)
		}

		srv := server.New(s, server.Config{
			Port:      port,
			TokenFile: getTokenFilePath(),
			Method:    method,
			RateLimit: rateLimit,
			CacheSize: cacheSize,
		})

		out := cmd.OutOrStdout()
		fmt.Fprintln(out)
		fmt.Fprintf(out, "gamma-goat running on %s\n", serverURL)
		fmt.Fprintf(out, "Report: %s/report?token=%s\n", serverURL, srv.Token())
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Press Ctrl+C to stop")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	})
}
