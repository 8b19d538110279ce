package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/webvoca/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "webvoca",
	Short: "webvoca - capture words while reading and review them with spaced repetition",
	Long: `webvoca keeps the words you meet while reading, schedules them for review
with SM-2 and ranks your vocabulary against new pages so the least familiar,
most prominent words can be highlighted.

Example usage:
  webvoca add serendipity --context "Pure serendipity." --url https://example.com
  webvoca due                        # Words due for review
  webvoca review <word-id> 4         # Grade a review
  webvoca rank --html page.html      # Rank saved words against a page
  webvoca serve                      # Telegram bot, reminders and metrics`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger = cfg.Logging.NewLogger(os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "webvoca.yaml", "config file")
}
