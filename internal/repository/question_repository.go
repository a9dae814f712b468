package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByOffer retrieves the QCM attached to an offer, ordered by order_num.
func (r *QuestionRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, options, correct_option_index, order_num
		 FROM offer_questions WHERE offer_id = $1
		 ORDER BY order_num`, offerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Options, &q.CorrectOptionIndex, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ReplaceForOffer swaps an offer's whole question bank in one transaction.
// The generated ids are written back into questions.
func (r *QuestionRepository) ReplaceForOffer(ctx context.Context, offerID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM offer_questions WHERE offer_id = $1`, offerID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(
			`INSERT INTO offer_questions (offer_id, question_text, options, correct_option_index, order_num)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			offerID, q.Text, q.Options, q.CorrectOptionIndex, q.OrderNum,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range questions {
		if err := br.QueryRow().Scan(&questions[i].ID); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
