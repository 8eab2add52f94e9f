// Package events distributes committed lock and unlock records to
// external observers. Publishing is best effort: a failed publish is
// logged and never undoes the committed ledger change.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/lockup-engine/internal/model"
)

// Publisher receives committed events.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

// Multi fans an event out to every publisher.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev model.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes every event as a structured log line.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Publish(_ context.Context, ev model.Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event",
		"id", ev.ID,
		"action", ev.Action,
		"address", ev.Address,
		"idx", ev.PositionID,
		"recipient", ev.Recipient,
	)
	return nil
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for channel.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, data).Err()
}
