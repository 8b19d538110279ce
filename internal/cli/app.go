package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/example/webvoca/internal/config"
	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/internal/events"
	"github.com/example/webvoca/internal/metrics"
	"github.com/example/webvoca/internal/spaced_repetition"
	"github.com/example/webvoca/internal/vocabulary"
)

// app holds the opened store and the services built on it
type app struct {
	db      *sqlx.DB
	vocab   *vocabulary.Service
	metrics *metrics.Metrics
	redis   *events.RedisPublisher
	client  *redis.Client
}

func engineFrom(c config.ReviewConfig) *spaced_repetition.SM2 {
	sm := spaced_repetition.NewSM2()
	sm.InitialEaseFactor = c.InitialEaseFactor
	return sm
}

// openApp opens the database and wires the vocabulary service. Events go to the
// log and, when configured, to redis.
func openApp(ctx context.Context, c *config.Config) (*app, error) {
	db, err := database.Open(database.Options{
		Driver:       c.Database.Driver,
		DSN:          c.Database.DSN,
		MaxOpenConns: c.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &app{db: db}
	if c.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	publisher := events.Multi{events.NewLogPublisher(logger)}
	if c.Events.RedisAddr != "" {
		client, err := events.Connect(ctx, events.RedisOptions{
			Addr:     c.Events.RedisAddr,
			Password: c.Events.RedisPassword,
			DB:       c.Events.RedisDB,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		a.client = client
		a.redis = events.NewRedisPublisher(client, c.Events.Channel, logger)
		publisher = append(publisher, a.redis)
	}

	a.vocab, err = vocabulary.NewService(db, vocabulary.Options{
		Highlight:   c.Highlight.Settings,
		Rank:        c.Highlight.RankOptions(),
		Familiarity: c.Highlight.Familiarity,
		Engine:      engineFrom(c.Review),
		Publisher:   publisher,
		Metrics:     a.metrics,
		Logger:      logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	if _, err := a.vocab.LoadStoredSettings(ctx); err != nil {
		logger.Warn("Ignoring stored highlight settings", "error", err)
	}
	return a, nil
}

func (a *app) Close() error {
	if a.client != nil {
		a.client.Close()
	}
	return a.db.Close()
}

// withApp opens the app for the duration of a command
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
