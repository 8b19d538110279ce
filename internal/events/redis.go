package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/webvoca/pkg/models"
)

// DefaultChannel is the pub/sub channel shared by every webvoca process
const DefaultChannel = "webvoca-cache"

// RedisOptions configures the redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// Connect opens a redis client and checks it with PING
func Connect(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: timeout,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	if pong != "PONG" {
		client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// RedisPublisher sends events over redis pub/sub
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe calls handle for every event on the channel until ctx is done.
// Malformed messages are logged and skipped.
func (p *RedisPublisher) Subscribe(ctx context.Context, handle func(models.Event)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := DecodeEvent(msg.Payload)
			if err != nil {
				p.logger.Warn("Skipping malformed event", "channel", p.channel, "error", err)
				continue
			}
			handle(event)
		}
	}
}

// DecodeEvent parses an event published by RedisPublisher
func DecodeEvent(payload string) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return models.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if event.Type == "" {
		return models.Event{}, fmt.Errorf("failed to decode event: missing type")
	}
	return event, nil
}
