package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readerFunc func(ctx context.Context, offerID uuid.UUID, candidateID int) (model.Result, error)

func (f readerFunc) Get(ctx context.Context, offerID uuid.UUID, candidateID int) (model.Result, error) {
	return f(ctx, offerID, candidateID)
}

func missing(err error) ResultReader {
	return readerFunc(func(context.Context, uuid.UUID, int) (model.Result, error) { return model.Result{}, err })
}

func TestResultServiceFallsThroughMisses(t *testing.T) {
	want := model.Result{SessionID: uuid.New(), CompetencyScore: 60}
	db := readerFunc(func(context.Context, uuid.UUID, int) (model.Result, error) { return want, nil })

	svc := NewResultService(missing(store.ErrNotFound), nil, db)

	got, err := svc.Get(t.Context(), uuid.New(), 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ok, err := svc.Exists(t.Context(), uuid.New(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResultServiceNotFound(t *testing.T) {
	svc := NewResultService(missing(store.ErrNotFound), missing(repository.ErrResultNotFound))

	_, err := svc.Get(t.Context(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrResultNotFound)

	ok, err := svc.Exists(t.Context(), uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultServiceSurfacesBackendErrors(t *testing.T) {
	boom := errors.New("redis down")
	svc := NewResultService(missing(boom))

	_, err := svc.Get(t.Context(), uuid.New(), 1)
	assert.ErrorIs(t, err, boom)
}
