package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// RecruiterHandler exposes the frozen results to recruiters.
type RecruiterHandler struct {
	results *service.ResultService
	log     zerolog.Logger
}

// NewRecruiterHandler creates a new RecruiterHandler.
func NewRecruiterHandler(results *service.ResultService, log zerolog.Logger) *RecruiterHandler {
	return &RecruiterHandler{
		results: results,
		log:     log.With().Str("component", "recruiter_handler").Logger(),
	}
}

// GetCandidateResult godoc
// GET /api/v1/recruiter/offers/:offer_id/candidates/:candidate_id/result
func (h *RecruiterHandler) GetCandidateResult(c *gin.Context) {
	offerID, err := uuid.Parse(c.Param("offer_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	candidateID, err := strconv.Atoi(c.Param("candidate_id"))
	if err != nil || candidateID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.results.Get(c.Request.Context(), offerID, candidateID)
	if err != nil {
		if !errors.Is(err, service.ErrResultNotFound) {
			h.log.Error().Err(err).Msg("Get result failed")
		}
		status, code := classifyError(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": res})
}
