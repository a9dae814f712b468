package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// storeResult caches ARGV[1] under KEYS[1] unless a result is already there,
// and only then enqueues it on KEYS[2]. ARGV[2] is the cache TTL in
// milliseconds, 0 for none.
var storeResult = redis.NewScript(`
local ok
if tonumber(ARGV[2]) > 0 then
	ok = redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2], "NX")
else
	ok = redis.call("SET", KEYS[1], ARGV[1], "NX")
end
if not ok then
	return 0
end
redis.call("RPUSH", KEYS[2], ARGV[1])
return 1
`)

// RedisQueueStore caches the result for read-back and enqueues it for the
// persistence worker. Both writes happen in one script so neither is observed
// alone. The first result stored for a candidate wins.
type RedisQueueStore struct {
	rdb      *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewRedisQueueStore creates a RedisQueueStore. A zero cacheTTL keeps the cache forever.
func NewRedisQueueStore(rdb *redis.Client, cacheTTL time.Duration, log zerolog.Logger) *RedisQueueStore {
	return &RedisQueueStore{
		rdb:      rdb,
		cacheTTL: cacheTTL,
		log:      log.With().Str("component", "redis_result_store").Logger(),
	}
}

// Save implements proctor.ResultStore.
func (s *RedisQueueStore) Save(ctx context.Context, offerID uuid.UUID, candidateID int, result model.Result) error {
	result.OfferID = offerID
	result.CandidateID = candidateID

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	keys := []string{config.CacheKey.CandidateResultKey(offerID, candidateID), config.WorkerKey.PersistResultsQueue}
	stored, err := storeResult.Run(ctx, s.rdb, keys, data, s.cacheTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}
	if stored == 0 {
		s.log.Warn().
			Str("session_id", result.SessionID.String()).
			Str("offer_id", offerID.String()).
			Int("candidate_id", candidateID).
			Msg("Result already stored, keeping the first")
		return nil
	}

	s.log.Debug().
		Str("session_id", result.SessionID.String()).
		Str("offer_id", offerID.String()).
		Int("candidate_id", candidateID).
		Msg("Result queued for persistence")
	return nil
}

// Get returns the cached result.
func (s *RedisQueueStore) Get(ctx context.Context, offerID uuid.UUID, candidateID int) (model.Result, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.CandidateResultKey(offerID, candidateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Result{}, ErrNotFound
	}
	if err != nil {
		return model.Result{}, err
	}

	var result model.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return model.Result{}, fmt.Errorf("decode cached result: %w", err)
	}
	return result, nil
}
