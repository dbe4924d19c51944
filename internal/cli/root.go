// Package cli implements the dupctl command line client.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"imagededup/internal/apiclient"
	"imagededup/internal/contextutil"
)

const defaultServer = "http://localhost:8000"

var (
	serverURL string
	timeout   time.Duration
	verbose   bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dupctl",
		Short: "Client for the image duplicate detection API",
		Long: `dupctl uploads images to a running duplicate detection server and
queries it for near-duplicates.

Example usage:
  dupctl ingest a.png b.jpg              # Upload local files
  dupctl ingest --url https://x/c.png    # Let the server download an image
  dupctl duplicates <request_id> -k 5    # List duplicates of an ingested batch
  dupctl health                          # Show corpus counters`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(contextutil.WithLogger(cmd.Context(), logger))
		},
	}

	server := os.Getenv("DUPCTL_SERVER")
	if server == "" {
		server = defaultServer
	}
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", server, "API base URL (env DUPCTL_SERVER)")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests to stderr")

	cmd.AddCommand(newIngestCmd(), newDuplicatesCmd(), newResetCmd(), newHealthCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func newClient() *apiclient.Client {
	return apiclient.New(serverURL, timeout)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
