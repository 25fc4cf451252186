package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/gamma-goat/internal/store"
)

var tokenRaw bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show report URL with access token",
	Long: `Show the report URL with your access token.

Use this when you've scrolled past the startup message or need the token
for API writes (Authorization: Bearer <token>).

Examples:
  gamma-goat token
  gamma-goat token --raw`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenRaw, "raw", false, "print only the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(getTokenFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: gamma-goat serve")
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: gamma-goat serve")
	}

	out := cmd.OutOrStdout()
	if tokenRaw {
		fmt.Fprintln(out, token)
		return nil
	}

	// Try to get the server URL from settings
	serverURL := "http://localhost:8080"
	_ = withStore(func(s *store.SQLiteStore) error {
		if url, err := s.GetSetting(cmd.Context(), "server_url"); err == nil && url != "" {
			serverURL = url
		}
		return nil
	})

	fmt.Fprintf(out, "Report: %s/report?token=%s\n", serverURL, token)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tip: Bookmark this URL or run 'gamma-goat token' anytime.")
	return nil
}
