package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/store"
)

// ErrResultNotFound is returned when neither the cache nor the database has a result.
var ErrResultNotFound = errors.New("result not found")

// ResultReader looks up a frozen result. Implemented by the result stores and
// *repository.ResultRepository.
type ResultReader interface {
	Get(ctx context.Context, offerID uuid.UUID, candidateID int) (model.Result, error)
}

// ResultService reads results from the fast store first, then the database.
type ResultService struct {
	readers []ResultReader
}

// NewResultService creates a ResultService consulting readers in order. Nil readers are skipped.
func NewResultService(readers ...ResultReader) *ResultService {
	rs := &ResultService{}
	for _, r := range readers {
		if r != nil {
			rs.readers = append(rs.readers, r)
		}
	}
	return rs
}

// Get returns the candidate's result for an offer.
func (s *ResultService) Get(ctx context.Context, offerID uuid.UUID, candidateID int) (model.Result, error) {
	for _, r := range s.readers {
		res, err := r.Get(ctx, offerID, candidateID)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, repository.ErrResultNotFound) {
			continue
		}
		return model.Result{}, err
	}
	return model.Result{}, ErrResultNotFound
}

// Exists reports whether a result has already been emitted.
func (s *ResultService) Exists(ctx context.Context, offerID uuid.UUID, candidateID int) (bool, error) {
	_, err := s.Get(ctx, offerID, candidateID)
	if errors.Is(err, ErrResultNotFound) {
		return false, nil
	}
	return err == nil, err
}
