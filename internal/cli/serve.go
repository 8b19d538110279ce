package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/webvoca/internal/bot"
	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/internal/quiz"
	"github.com/example/webvoca/internal/scheduler"
	"github.com/example/webvoca/pkg/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot, background jobs and metrics endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			return serve(cmd.Context(), a)
		})
	},
}

func serve(ctx context.Context, a *app) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.metrics != nil {
		g.Go(func() error {
			return a.metrics.Serve(ctx, cfg.Metrics.Address, logger)
		})
	}

	if a.redis != nil {
		g.Go(func() error {
			return a.redis.Subscribe(ctx, func(e models.Event) {
				logger.Debug("Remote change", "type", string(e.Type), "id", e.ID)
			})
		})
	}

	var notifier scheduler.Notifier
	if cfg.Bot.Token != "" {
		q := quiz.NewModule(a.vocab, database.NewQuizSessionRepository(a.db), quiz.Options{
			CardsPerSession: cfg.Bot.CardsPerSession,
			Logger:          logger,
		})
		b, err := bot.New(bot.ConfigFrom(cfg.Bot), a.vocab, q, logger)
		if err != nil {
			return err
		}
		notifier = b
		g.Go(func() error { return b.Run(ctx) })
	} else {
		logger.Warn("Telegram token not set, bot disabled")
	}

	if cfg.Scheduler.Enabled {
		s := scheduler.New(a.vocab, notifier, cfg.Scheduler, scheduler.WithLogger(logger))
		if err := s.Start(ctx); err != nil {
			return err
		}
		defer s.Stop()
	}

	logger.Info("webvoca running, press Ctrl+C to stop")
	<-ctx.Done()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("webvoca stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
