package service

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type fakeQuestionRepo struct {
	mu        sync.Mutex
	questions map[uuid.UUID][]model.Question
	calls     int
}

func (r *fakeQuestionRepo) ListByOffer(_ context.Context, offerID uuid.UUID) ([]model.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return append([]model.Question(nil), r.questions[offerID]...), nil
}

func makeBank(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:                 uuid.New(),
			Text:               "Quelle est la bonne réponse ?",
			Options:            []string{"A", "B", "C"},
			CorrectOptionIndex: 1,
			OrderNum:           i + 1,
		}
	}
	return qs
}

func allGranted() model.ConsentGate {
	return model.ConsentGate{Camera: true, Microphone: true, BehavioralMonitoring: true, DataProcessing: true, TermsOfUse: true}
}
