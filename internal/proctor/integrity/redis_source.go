package integrity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisSource receives signals published on a Redis Pub/Sub channel, so that
// signals reported to any server instance (e.g. beacons) reach the session.
type RedisSource struct {
	rdb     *redis.Client
	channel string
	log     zerolog.Logger
}

// NewRedisSource creates a RedisSource for channel.
func NewRedisSource(rdb *redis.Client, channel string, log zerolog.Logger) *RedisSource {
	return &RedisSource{
		rdb:     rdb,
		channel: channel,
		log:     log.With().Str("component", "redis_signal_source").Str("channel", channel).Logger(),
	}
}

// Subscribe implements Source. It returns once the subscription is confirmed,
// or with ctx's error if ctx ends first.
func (s *RedisSource) Subscribe(ctx context.Context, fn func(Signal)) (func(), error) {
	pubsub := s.rdb.Subscribe(ctx, s.channel)

	confirmed := make(chan error, 1)
	go func() {
		_, err := pubsub.Receive(ctx)
		confirmed <- err
	}()

	select {
	case err := <-confirmed:
		if err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
		}
	case <-ctx.Done():
		// Closing unblocks the pending Receive.
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, ctx.Err())
	}

	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			var sig Signal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				s.log.Warn().Err(err).Msg("Discarding malformed signal")
				continue
			}
			fn(sig)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = pubsub.Close() })
	}, nil
}

// PublishSignal publishes sig on channel for any RedisSource listening to it.
func PublishSignal(ctx context.Context, rdb *redis.Client, channel string, sig Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, channel, payload).Err()
}
