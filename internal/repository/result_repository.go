package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrResultNotFound is returned when no persisted result exists.
var ErrResultNotFound = errors.New("result not found")

var resultColumns = []string{
	"session_id", "offer_id", "candidate_id", "status", "reason",
	"competency_score", "credibility_score", "correct_answers", "total_questions",
	"total_elapsed_seconds", "completed_at",
}

var anomalyColumns = []string{"session_id", "seq", "kind", "occurred_at"}

// ResultRepository handles proctored result persistence.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// BulkInsert copies a batch of results and their anomalies in one transaction.
// Any conflict fails the whole batch; callers fall back to Insert.
func (r *ResultRepository) BulkInsert(ctx context.Context, results []model.Result) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	resultRows := make([][]any, 0, len(results))
	var anomalyRows [][]any
	for _, res := range results {
		resultRows = append(resultRows, resultRow(res))
		for i, a := range res.Anomalies {
			anomalyRows = append(anomalyRows, []any{res.SessionID, i + 1, string(a.Kind), a.Timestamp})
		}
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"proctor_results"}, resultColumns, pgx.CopyFromRows(resultRows)); err != nil {
		return fmt.Errorf("copy results: %w", err)
	}
	if len(anomalyRows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"proctor_anomalies"}, anomalyColumns, pgx.CopyFromRows(anomalyRows)); err != nil {
			return fmt.Errorf("copy anomalies: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Insert stores a single result. A result already stored for the same
// (offer, candidate) is left untouched and inserted reports false.
func (r *ResultRepository) Insert(ctx context.Context, res model.Result) (inserted bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO proctor_results (session_id, offer_id, candidate_id, status, reason,
		     competency_score, credibility_score, correct_answers, total_questions,
		     total_elapsed_seconds, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT DO NOTHING`,
		resultRow(res)...,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if len(res.Anomalies) > 0 {
		batch := &pgx.Batch{}
		for i, a := range res.Anomalies {
			batch.Queue(
				`INSERT INTO proctor_anomalies (session_id, seq, kind, occurred_at) VALUES ($1, $2, $3, $4)`,
				res.SessionID, i+1, string(a.Kind), a.Timestamp,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("insert anomalies: %w", err)
		}
	}

	return true, tx.Commit(ctx)
}

// Get returns the persisted result of a candidate on an offer.
func (r *ResultRepository) Get(ctx context.Context, offerID uuid.UUID, candidateID int) (model.Result, error) {
	var res model.Result
	var status, reason string
	err := r.pool.QueryRow(ctx,
		`SELECT session_id, status, reason, competency_score, credibility_score, correct_answers,
		        total_questions, total_elapsed_seconds, completed_at
		 FROM proctor_results WHERE offer_id = $1 AND candidate_id = $2`,
		offerID, candidateID,
	).Scan(&res.SessionID, &status, &reason, &res.CompetencyScore, &res.CredibilityScore,
		&res.CorrectAnswers, &res.TotalQuestions, &res.TotalElapsedSeconds, &res.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Result{}, ErrResultNotFound
	}
	if err != nil {
		return model.Result{}, err
	}
	res.OfferID = offerID
	res.CandidateID = candidateID
	res.Status = model.ResultStatus(status)
	res.Reason = model.CompletionReason(reason)

	rows, err := r.pool.Query(ctx,
		`SELECT kind, occurred_at FROM proctor_anomalies WHERE session_id = $1 ORDER BY seq`,
		res.SessionID,
	)
	if err != nil {
		return model.Result{}, err
	}
	defer rows.Close()

	res.Anomalies = []model.AnomalyEvent{}
	for rows.Next() {
		var a model.AnomalyEvent
		var kind string
		if err := rows.Scan(&kind, &a.Timestamp); err != nil {
			return model.Result{}, err
		}
		a.Kind = model.AnomalyKind(kind)
		res.Anomalies = append(res.Anomalies, a)
	}
	return res, rows.Err()
}

func resultRow(res model.Result) []any {
	return []any{
		res.SessionID, res.OfferID, res.CandidateID, string(res.Status), string(res.Reason),
		res.CompetencyScore, res.CredibilityScore, res.CorrectAnswers, res.TotalQuestions,
		res.TotalElapsedSeconds, res.CompletedAt,
	}
}
