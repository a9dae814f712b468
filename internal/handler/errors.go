package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/proctor/media"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// classifyError maps a domain error to an HTTP status and error code.
func classifyError(err error) (int, response.ErrCode) {
	var accessErr *media.AccessError
	if errors.As(err, &accessErr) {
		switch {
		case errors.Is(err, media.ErrPermissionDenied):
			return http.StatusForbidden, response.ErrMediaAccessDenied
		case errors.Is(err, media.ErrDeviceBusy):
			return http.StatusConflict, response.ErrMediaDeviceBusy
		default:
			return http.StatusServiceUnavailable, response.ErrMediaUnavailable
		}
	}

	switch {
	case errors.Is(err, proctor.ErrConsentRequired):
		return http.StatusForbidden, response.ErrConsentRequired
	case errors.Is(err, proctor.ErrAnswerRequired):
		return http.StatusUnprocessableEntity, response.ErrAnswerRequired
	case errors.Is(err, proctor.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion
	case errors.Is(err, proctor.ErrOptionOutOfRange):
		return http.StatusBadRequest, response.ErrOptionOutOfRange
	case errors.Is(err, proctor.ErrNotInProgress):
		return http.StatusConflict, response.ErrNotInProgress
	case errors.Is(err, proctor.ErrAlreadyStarted):
		return http.StatusConflict, response.ErrAlreadyStarted
	case errors.Is(err, proctor.ErrStartPending):
		return http.StatusConflict, response.ErrStartPending
	case errors.Is(err, proctor.ErrSessionClosed):
		return http.StatusGone, response.ErrSessionClosed
	case errors.Is(err, proctor.ErrNoQuestions):
		return http.StatusNotFound, response.ErrNoQuestions
	case errors.Is(err, service.ErrSessionActive):
		return http.StatusConflict, response.ErrSessionActive
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrAlreadyCompleted):
		return http.StatusConflict, response.ErrTestAlreadyDone
	case errors.Is(err, service.ErrResultNotFound):
		return http.StatusNotFound, response.ErrResultNotFound
	case errors.Is(err, service.ErrConsentNotFound):
		return http.StatusNotFound, response.ErrNotFound
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
