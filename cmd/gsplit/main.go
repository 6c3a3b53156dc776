// Command gsplit scores pint photos and prints the leaderboard from a shell,
// using the same configuration and storage as the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"split-the-g/internal/config"
	"split-the-g/internal/container"
	"split-the-g/internal/logger"
)

type rootOptions struct {
	verbose bool
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gsplit",
		Short: "Score how well a pint splits the G",
		Long: `gsplit runs the Split the G pipeline from the command line.

Configuration comes from the environment (and an optional .env file),
exactly as for the API server.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// keep stdout for command output
			logger.Logger.SetOutput(cmd.ErrOrStderr())
			if opts.verbose {
				logger.SetLevel("debug")
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "Operation timeout")

	rootCmd.AddCommand(newScoreCmd(opts))
	rootCmd.AddCommand(newLeaderboardCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))
	return rootCmd
}

// bootstrap loads the configuration and wires the application. The caller
// must Close the container.
func bootstrap(ctx context.Context, opts *rootOptions) (*container.Container, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !opts.verbose {
		logger.SetLevel(cfg.LogLevel)
	}

	// the router is built but never served here
	gin.SetMode(gin.ReleaseMode)

	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return c, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
