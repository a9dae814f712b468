package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
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

type fakeWriter struct {
	mu          sync.Mutex
	bulkErr     error
	failInserts map[uuid.UUID]int
	persisted   map[uuid.UUID]model.Result
	bulkCalls   int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{failInserts: map[uuid.UUID]int{}, persisted: map[uuid.UUID]model.Result{}}
}

func (f *fakeWriter) BulkInsert(_ context.Context, results []model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	if f.bulkErr != nil {
		return f.bulkErr
	}
	for _, r := range results {
		f.persisted[r.SessionID] = r
	}
	return nil
}

func (f *fakeWriter) Insert(_ context.Context, r model.Result) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts[r.SessionID] > 0 {
		f.failInserts[r.SessionID]--
		return false, errors.New("connection reset")
	}
	if _, ok := f.persisted[r.SessionID]; ok {
		return false, nil
	}
	f.persisted[r.SessionID] = r
	return true, nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.persisted)
}

func setup(t *testing.T, writer ResultWriter) (*miniredis.Miniredis, *redis.Client, *ResultWorker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	w := NewResultWorker(writer, rdb, zerolog.Nop())
	w.batchSize = 2
	w.batchTimeout = 10 * time.Millisecond
	w.requeueBackoff = time.Millisecond
	return mr, rdb, w
}

func enqueue(t *testing.T, rdb *redis.Client, results ...model.Result) {
	t.Helper()
	for _, r := range results {
		data, err := json.Marshal(r)
		require.NoError(t, err)
		require.NoError(t, rdb.RPush(t.Context(), config.WorkerKey.PersistResultsQueue, data).Err())
	}
}

func newResult() model.Result {
	return model.Result{
		SessionID:   uuid.New(),
		OfferID:     uuid.New(),
		CandidateID: 5,
		Status:      model.ResultStatusCompleted,
		Reason:      model.ReasonSubmitted,
		Anomalies:   []model.AnomalyEvent{},
		CompletedAt: time.Now().UTC(),
	}
}

func run(w *ResultWorker) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestResultWorkerPersistsQueuedResults(t *testing.T) {
	writer := newFakeWriter()
	mr, rdb, w := setup(t, writer)

	enqueue(t, rdb, newResult(), newResult(), newResult())
	_, err := mr.Lpush(config.WorkerKey.PersistResultsQueue, "{broken")
	require.NoError(t, err)

	stop := run(w)
	assert.Eventually(t, func() bool { return writer.count() == 3 }, 5*time.Second, 10*time.Millisecond)
	stop()

	queued, _ := mr.List(config.WorkerKey.PersistResultsQueue)
	assert.Empty(t, queued)
}

func TestResultWorkerFallsBackAndRequeues(t *testing.T) {
	writer := newFakeWriter()
	writer.bulkErr = errors.New("duplicate key")
	_, rdb, w := setup(t, writer)

	flaky := newResult()
	writer.failInserts[flaky.SessionID] = 1
	enqueue(t, rdb, flaky, newResult())

	stop := run(w)
	assert.Eventually(t, func() bool { return writer.count() == 2 }, 5*time.Second, 10*time.Millisecond)
	stop()
}

func TestResultWorkerFlushesOnShutdown(t *testing.T) {
	writer := newFakeWriter()
	_, rdb, w := setup(t, writer)
	w.batchSize = 100
	w.batchTimeout = time.Hour

	enqueue(t, rdb, newResult())
	stop := run(w)

	assert.Eventually(t, func() bool {
		n, _ := rdb.LLen(context.Background(), config.WorkerKey.PersistResultsQueue).Result()
		return n == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, writer.count())

	stop()
	assert.Equal(t, 1, writer.count())
}
