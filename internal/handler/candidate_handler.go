package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor/integrity"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// CandidateHandler handles the candidate-facing REST endpoints around a session.
type CandidateHandler struct {
	consents *service.ConsentService
	proctor  *service.ProctorService
	results  *service.ResultService
	log      zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(
	consents *service.ConsentService,
	proctor *service.ProctorService,
	results *service.ResultService,
	log zerolog.Logger,
) *CandidateHandler {
	return &CandidateHandler{
		consents: consents,
		proctor:  proctor,
		results:  results,
		log:      log.With().Str("component", "candidate_handler").Logger(),
	}
}

// RecordConsent godoc
// POST /api/v1/candidate/offers/:offer_id/consent
// Stores the five approvals of the consent gate.
func (h *CandidateHandler) RecordConsent(c *gin.Context) {
	claims, offerID, ok := candidateScope(c)
	if !ok {
		return
	}

	var req model.RecordConsentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rec, err := h.consents.Record(c.Request.Context(), offerID, claims.UserID, req.Gate())
	if err != nil {
		h.log.Error().Err(err).Msg("Record consent failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"consent": rec, "granted": rec.Gate.Granted()})
}

// GetConsent godoc
// GET /api/v1/candidate/offers/:offer_id/consent
func (h *CandidateHandler) GetConsent(c *gin.Context) {
	claims, offerID, ok := candidateScope(c)
	if !ok {
		return
	}

	rec, err := h.consents.Get(c.Request.Context(), offerID, claims.UserID)
	if err != nil {
		if !errors.Is(err, service.ErrConsentNotFound) {
			h.log.Error().Err(err).Msg("Get consent failed")
		}
		status, code := classifyError(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"consent": rec, "granted": rec.Gate.Granted()})
}

// GetSession godoc
// GET /api/v1/candidate/offers/:offer_id/session
// Returns the snapshot of the candidate's open session.
func (h *CandidateHandler) GetSession(c *gin.Context) {
	claims, offerID, ok := candidateScope(c)
	if !ok {
		return
	}

	sess, found := h.proctor.Get(offerID, claims.UserID)
	if !found {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// GetResult godoc
// GET /api/v1/candidate/offers/:offer_id/result
func (h *CandidateHandler) GetResult(c *gin.Context) {
	claims, offerID, ok := candidateScope(c)
	if !ok {
		return
	}

	res, err := h.results.Get(c.Request.Context(), offerID, claims.UserID)
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

// PostSignal godoc
// POST /api/v1/candidate/offers/:offer_id/signals
// Beacon endpoint: forwards a raw signal to the session's watcher, on
// whichever instance holds the session.
func (h *CandidateHandler) PostSignal(c *gin.Context) {
	claims, offerID, ok := candidateScope(c)
	if !ok {
		return
	}

	var sig integrity.Signal
	if fields := validator.Bind(c, &sig); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.proctor.PublishSignal(c.Request.Context(), offerID, claims.UserID, sig); err != nil {
		h.log.Error().Err(err).Msg("Publish signal failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"status": "accepted"})
}

// candidateScope extracts the candidate claims and the :offer_id param,
// writing the error response itself when either is missing.
func candidateScope(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	offerID, err := uuid.Parse(c.Param("offer_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, offerID, true
}
