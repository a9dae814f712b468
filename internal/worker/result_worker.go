package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ResultWriter is the persistence side of the worker. *repository.ResultRepository implements it.
type ResultWriter interface {
	BulkInsert(ctx context.Context, results []model.Result) error
	Insert(ctx context.Context, result model.Result) (bool, error)
}

// ResultWorker drains persist_results_queue into the database in batches.
type ResultWorker struct {
	writer ResultWriter
	rdb    *redis.Client
	log    zerolog.Logger

	batchSize      int
	batchTimeout   time.Duration
	requeueBackoff time.Duration
}

func NewResultWorker(writer ResultWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		writer:         writer,
		rdb:            rdb,
		log:            log.With().Str("component", "result_worker").Logger(),
		batchSize:      BatchSize,
		batchTimeout:   BatchTimeout,
		requeueBackoff: 2 * time.Second,
	}
}

// Start runs until ctx is cancelled, then flushes what it has buffered.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	buffer := make([]model.Result, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 &&
			(len(buffer) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// BLPop blocks for PollTimeout. Returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistResultsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var res model.Result
		if err := json.Unmarshal([]byte(result[1]), &res); err != nil {
			// Malformed payloads can never succeed. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed result")
			continue
		}

		buffer = append(buffer, res)
	}
}

// flushSafe attempts bulk insert, then row-by-row insert, then requeue.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.Result) {
	if err := w.writer.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("Results persisted")
}

func (w *ResultWorker) fallbackInsert(ctx context.Context, batch []model.Result) {
	var requeueList []model.Result

	for _, res := range batch {
		inserted, err := w.writer.Insert(ctx, res)
		if err != nil {
			w.log.Error().Err(err).
				Str("session_id", res.SessionID.String()).
				Int("candidate_id", res.CandidateID).
				Msg("Insert failed, requeueing")
			requeueList = append(requeueList, res)
			continue
		}
		if !inserted {
			w.log.Warn().
				Str("session_id", res.SessionID.String()).
				Str("offer_id", res.OfferID.String()).
				Int("candidate_id", res.CandidateID).
				Msg("Result already persisted for this candidate, skipping")
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ResultWorker) requeue(ctx context.Context, items []model.Result) {
	// The caller's ctx may already be cancelled during shutdown.
	ctx = context.WithoutCancel(ctx)

	pipe := w.rdb.Pipeline()
	for _, res := range items {
		data, _ := json.Marshal(res)
		pipe.RPush(ctx, config.WorkerKey.PersistResultsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue results to Redis. Data loss occurred.")
		return
	}

	w.log.Info().Int("count", len(items)).Msg("Requeued failed results back to Redis")
	// Avoid thrashing while the database is down.
	time.Sleep(w.requeueBackoff)
}

func (w *ResultWorker) shutdown(buffer []model.Result) {
	w.log.Info().Int("buffered", len(buffer)).Msg("ResultWorker stopping, flushing remaining buffer")

	if len(buffer) == 0 {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flushSafe(shutdownCtx, buffer)
}
