package service

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
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// QuestionLister is the read side of the question repository.
type QuestionLister interface {
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]model.Question, error)
}

// QuestionBankService serves an offer's QCM from Redis, falling back to
// PostgreSQL and re-filling the cache on a miss.
type QuestionBankService struct {
	repo QuestionLister
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewQuestionBankService creates a new QuestionBankService.
func NewQuestionBankService(repo QuestionLister, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *QuestionBankService {
	return &QuestionBankService{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "question_bank_service").Logger(),
	}
}

// Load returns the offer's questions in order. An offer without questions
// yields proctor.ErrNoQuestions.
func (s *QuestionBankService) Load(ctx context.Context, offerID uuid.UUID) ([]model.Question, error) {
	key := config.CacheKey.OfferQuestionsKey(offerID)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var questions []model.Question
		if err := json.Unmarshal(data, &questions); err == nil && len(questions) > 0 {
			return questions, nil
		}
		s.log.Warn().Str("offer_id", offerID.String()).Msg("Corrupt question cache, reloading")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Question cache unavailable, reading from database")
	}

	questions, err := s.repo.ListByOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, proctor.ErrNoQuestions
	}

	if payload, err := json.Marshal(questions); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache question bank")
		}
	}
	return questions, nil
}

// Invalidate drops the cached bank, e.g. after a re-seed.
func (s *QuestionBankService) Invalidate(ctx context.Context, offerID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.OfferQuestionsKey(offerID)).Err()
}
