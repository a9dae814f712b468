package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/store"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type bankRepo map[uuid.UUID][]model.Question

func (r bankRepo) ListByOffer(_ context.Context, offerID uuid.UUID) ([]model.Question, error) {
	return append([]model.Question(nil), r[offerID]...), nil
}

type testEnv struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	auth     *service.AuthService
	consents *service.ConsentService
	results  *service.ResultService
	store    *store.RedisQueueStore
	proctor  *service.ProctorService
	offerID  uuid.UUID
	engine   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	offer := uuid.New()
	bank := make([]model.Question, 3)
	for i := range bank {
		bank[i] = model.Question{
			ID:                 uuid.New(),
			Text:               "Combien font 2 + 2 ?",
			Options:            []string{"3", "4", "5"},
			CorrectOptionIndex: 1,
			OrderNum:           i + 1,
		}
	}

	resultStore := store.NewRedisQueueStore(rdb, 0, log)
	env := &testEnv{
		mr:       mr,
		rdb:      rdb,
		auth:     service.NewAuthService("test-secret"),
		consents: service.NewConsentService(rdb, time.Hour, log),
		results:  service.NewResultService(resultStore),
		store:    resultStore,
		offerID:  offer,
	}

	questions := service.NewQuestionBankService(bankRepo{offer: bank}, rdb, time.Hour, log)
	env.proctor = service.NewProctorService(rdb, questions, env.consents, env.results, resultStore, nil, service.ProctorConfig{
		Session: proctor.Config{
			DurationSeconds: 60,
			AbandonPolicy:   proctor.AbandonDiscard,
			SaveTimeout:     time.Second,
		},
		PromptTimeout: 5 * time.Second,
		LeaseTTL:      time.Minute,
	}, log)
	t.Cleanup(func() { env.proctor.Shutdown(context.Background()) })

	candidate := NewCandidateHandler(env.consents, env.proctor, env.results, log)
	recruiter := NewRecruiterHandler(env.results, log)
	wsHandler := NewWSHandler(env.proctor, log, nil)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	c := r.Group("/api/v1/candidate/offers/:offer_id", middleware.RequireCandidateJWT(env.auth))
	c.POST("/consent", candidate.RecordConsent)
	c.GET("/consent", candidate.GetConsent)
	c.GET("/session", candidate.GetSession)
	c.GET("/result", candidate.GetResult)
	c.POST("/signals", candidate.PostSignal)
	r.GET("/ws/v1/candidate/offers/:offer_id/stream", middleware.RequireCandidateWSAuth(env.auth), wsHandler.SessionStream)
	r.GET("/api/v1/recruiter/offers/:offer_id/candidates/:candidate_id/result",
		middleware.RequireRecruiterJWT(env.auth),
		middleware.RequirePermission(model.PermissionResultsRead),
		recruiter.GetCandidateResult,
	)
	env.engine = r

	return env
}

func (e *testEnv) token(t *testing.T, tt service.TokenType, userID int, perms ...string) string {
	t.Helper()
	token, err := e.auth.IssueToken(tt, userID, perms, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) candidatePath(suffix string) string {
	return "/api/v1/candidate/offers/" + e.offerID.String() + suffix
}

// envelope decodes the standard response, leaving data raw.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func grantAll() map[string]bool {
	return map[string]bool{
		"camera":                true,
		"microphone":            true,
		"behavioral_monitoring": true,
		"data_processing":       true,
		"terms_of_use":          true,
	}
}
