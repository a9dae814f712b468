package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseLease deletes the lease only when it is still owned by the caller.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeasedDevice wraps a Device with a Redis lease so that only one session can
// hold a candidate's camera and microphone at a time.
type LeasedDevice struct {
	rdb   *redis.Client
	key   string
	ttl   time.Duration
	inner Device
	log   zerolog.Logger
}

// NewLeasedDevice creates a LeasedDevice. ttl bounds how long a crashed
// process can keep the lease.
func NewLeasedDevice(rdb *redis.Client, key string, ttl time.Duration, inner Device, log zerolog.Logger) *LeasedDevice {
	return &LeasedDevice{
		rdb:   rdb,
		key:   key,
		ttl:   ttl,
		inner: inner,
		log:   log.With().Str("component", "media_lease").Str("lease_key", key).Logger(),
	}
}

// Open implements Device.
func (d *LeasedDevice) Open(ctx context.Context) (Stream, error) {
	token := uuid.NewString()

	ok, err := d.rdb.SetNX(ctx, d.key, token, d.ttl).Result()
	if err != nil {
		return nil, &AccessError{Cause: fmt.Errorf("%w: take lease: %v", ErrDeviceUnavailable, err)}
	}
	if !ok {
		return nil, &AccessError{Cause: ErrDeviceBusy}
	}

	stream, err := d.inner.Open(ctx)
	if err != nil {
		d.unlock(token)
		return nil, err
	}

	return &leasedStream{
		Stream:  stream,
		release: func() { d.unlock(token) },
	}, nil
}

func (d *LeasedDevice) unlock(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// The lease still expires after ttl if this fails.
	if err := releaseLease.Run(ctx, d.rdb, []string{d.key}, token).Err(); err != nil {
		d.log.Error().Err(err).Dur("ttl", d.ttl).Msg("Failed to release media lease")
	}
}

type leasedStream struct {
	Stream
	once    sync.Once
	release func()
}

func (s *leasedStream) Stop() {
	s.once.Do(func() {
		s.Stream.Stop()
		s.release()
	})
}
