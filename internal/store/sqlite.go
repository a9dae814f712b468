package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS proctor_results (
  session_id TEXT PRIMARY KEY,
  offer_id TEXT NOT NULL,
  candidate_id INTEGER NOT NULL,
  status TEXT NOT NULL,
  reason TEXT NOT NULL,
  competency_score INTEGER NOT NULL,
  credibility_score INTEGER NOT NULL,
  correct_answers INTEGER NOT NULL,
  total_questions INTEGER NOT NULL,
  total_elapsed_seconds INTEGER NOT NULL,
  anomalies_json TEXT NOT NULL,
  completed_at TEXT NOT NULL,
  UNIQUE (offer_id, candidate_id)
);
`

// SQLiteStore keeps results in a local SQLite database. The first result
// saved for an (offer, candidate) pair wins; later saves are ignored.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore ensures the schema exists and returns the store.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, schemaSQLite); err != nil {
		return nil, fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements proctor.ResultStore.
func (s *SQLiteStore) Save(ctx context.Context, offerID uuid.UUID, candidateID int, result model.Result) error {
	anomalies, err := json.Marshal(result.Anomalies)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO proctor_results
		(session_id, offer_id, candidate_id, status, reason, competency_score, credibility_score,
		 correct_answers, total_questions, total_elapsed_seconds, anomalies_json, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT DO NOTHING`,
		result.SessionID.String(), offerID.String(), candidateID, string(result.Status), string(result.Reason),
		result.CompetencyScore, result.CredibilityScore, result.CorrectAnswers, result.TotalQuestions,
		result.TotalElapsedSeconds, string(anomalies), result.CompletedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Get returns the stored result.
func (s *SQLiteStore) Get(ctx context.Context, offerID uuid.UUID, candidateID int) (model.Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT session_id, status, reason, competency_score, credibility_score,
		correct_answers, total_questions, total_elapsed_seconds, anomalies_json, completed_at
		FROM proctor_results WHERE offer_id=$1 AND candidate_id=$2`, offerID.String(), candidateID)

	var (
		r         model.Result
		sessionID string
		status    string
		reason    string
		anomalies string
		completed string
	)
	if err := row.Scan(&sessionID, &status, &reason, &r.CompetencyScore, &r.CredibilityScore,
		&r.CorrectAnswers, &r.TotalQuestions, &r.TotalElapsedSeconds, &anomalies, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Result{}, ErrNotFound
		}
		return model.Result{}, err
	}

	var err error
	if r.SessionID, err = uuid.Parse(sessionID); err != nil {
		return model.Result{}, err
	}
	if r.CompletedAt, err = time.Parse(time.RFC3339Nano, completed); err != nil {
		return model.Result{}, err
	}
	if err := json.Unmarshal([]byte(anomalies), &r.Anomalies); err != nil {
		return model.Result{}, err
	}
	r.OfferID = offerID
	r.CandidateID = candidateID
	r.Status = model.ResultStatus(status)
	r.Reason = model.CompletionReason(reason)
	return r, nil
}
