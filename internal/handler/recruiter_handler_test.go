package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCandidateResult(t *testing.T) {
	env := newTestEnv(t)
	reader := env.token(t, service.TokenTypeRecruiter, 1, string(model.PermissionResultsRead))
	path := func(candidate string) string {
		return "/api/v1/recruiter/offers/" + env.offerID.String() + "/candidates/" + candidate + "/result"
	}

	require.NoError(t, env.store.Save(t.Context(), env.offerID, 5, model.Result{
		SessionID:   uuid.New(),
		OfferID:     env.offerID,
		CandidateID: 5,
		Status:      model.ResultStatusCompleted,
		Reason:      model.ReasonTimeout,
	}))

	tests := []struct {
		name     string
		token    string
		path     string
		wantCode int
		wantErr  response.ErrCode
	}{
		{"found", reader, path("5"), http.StatusOK, ""},
		{"not found", reader, path("6"), http.StatusNotFound, response.ErrResultNotFound},
		{"bad candidate id", reader, path("zero"), http.StatusBadRequest, response.ErrInvalidID},
		{"non-positive candidate id", reader, path("0"), http.StatusBadRequest, response.ErrInvalidID},
		{"missing permission", env.token(t, service.TokenTypeRecruiter, 1, string(model.PermissionProctoringMonitor)), path("5"), http.StatusForbidden, response.ErrPermissionDenied},
		{"candidate token", env.token(t, service.TokenTypeCandidate, 5), path("5"), http.StatusForbidden, response.ErrRecruiterAccessOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				body := decode(t, rec)
				require.NotNil(t, body.Error)
				assert.Equal(t, tt.wantErr, body.Error.Code)
			}
		})
	}
}
