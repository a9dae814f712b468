package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueStore(t *testing.T) (*miniredis.Miniredis, *RedisQueueStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisQueueStore(rdb, time.Hour, zerolog.Nop())
}

func TestRedisQueueStoreCachesAndEnqueues(t *testing.T) {
	mr, s := newQueueStore(t)
	offer := uuid.New()
	in := sampleResult()

	require.NoError(t, s.Save(t.Context(), offer, 3, in))

	queued, err := mr.List(config.WorkerKey.PersistResultsQueue)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	var payload model.Result
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &payload))
	assert.Equal(t, offer, payload.OfferID)
	assert.Equal(t, 3, payload.CandidateID)
	assert.Equal(t, in.SessionID, payload.SessionID)

	assert.Equal(t, time.Hour, mr.TTL(config.CacheKey.CandidateResultKey(offer, 3)))

	got, err := s.Get(t.Context(), offer, 3)
	require.NoError(t, err)
	assert.Equal(t, 80, got.CompetencyScore)
	assert.Len(t, got.Anomalies, 2)
	assert.True(t, in.CompletedAt.Equal(got.CompletedAt))
}

func TestRedisQueueStoreNotFound(t *testing.T) {
	_, s := newQueueStore(t)
	_, err := s.Get(t.Context(), uuid.New(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisQueueStoreKeepsFirstResult(t *testing.T) {
	mr, s := newQueueStore(t)
	offer := uuid.New()
	first := sampleResult()
	second := sampleResult()
	second.SessionID = uuid.New()
	second.CompetencyScore = 10

	require.NoError(t, s.Save(t.Context(), offer, 3, first))
	require.NoError(t, s.Save(t.Context(), offer, 3, second))

	got, err := s.Get(t.Context(), offer, 3)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, got.SessionID)
	assert.Equal(t, 80, got.CompetencyScore)

	queued, err := mr.List(config.WorkerKey.PersistResultsQueue)
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

func TestRedisQueueStoreWithoutTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewRedisQueueStore(rdb, 0, zerolog.Nop())
	offer := uuid.New()

	require.NoError(t, s.Save(t.Context(), offer, 5, sampleResult()))
	assert.Zero(t, mr.TTL(config.CacheKey.CandidateResultKey(offer, 5)))
}
