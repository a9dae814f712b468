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
)

// ErrConsentNotFound is returned when the candidate has not recorded consent.
var ErrConsentNotFound = errors.New("consent not recorded")

// ConsentService stores the candidate's consent gate in Redis for the
// duration of the test window.
type ConsentService struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewConsentService creates a new ConsentService.
func NewConsentService(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *ConsentService {
	return &ConsentService{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "consent_service").Logger(),
	}
}

// Record stores gate, replacing any earlier record.
func (s *ConsentService) Record(ctx context.Context, offerID uuid.UUID, candidateID int, gate model.ConsentGate) (*model.ConsentRecord, error) {
	rec := &model.ConsentRecord{
		OfferID:     offerID,
		CandidateID: candidateID,
		Gate:        gate,
		RecordedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, config.CacheKey.CandidateConsentKey(offerID, candidateID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store consent: %w", err)
	}

	s.log.Info().
		Str("offer_id", offerID.String()).
		Int("candidate_id", candidateID).
		Bool("granted", gate.Granted()).
		Msg("Consent recorded")
	return rec, nil
}

// Get returns the stored consent record.
func (s *ConsentService) Get(ctx context.Context, offerID uuid.UUID, candidateID int) (*model.ConsentRecord, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.CandidateConsentKey(offerID, candidateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrConsentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load consent: %w", err)
	}

	var rec model.ConsentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode consent: %w", err)
	}
	return &rec, nil
}

// Granted reports whether every approval of the stored gate is given.
// A missing record is not granted.
func (s *ConsentService) Granted(ctx context.Context, offerID uuid.UUID, candidateID int) (bool, error) {
	rec, err := s.Get(ctx, offerID, candidateID)
	if errors.Is(err, ErrConsentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Gate.Granted(), nil
}
