package handlers

import (
	"context"
	"errors"
	"net/http"

	"donationledger/internal/domain"
	"donationledger/internal/middleware"
	"donationledger/internal/reconcile"
)

// statusClientClosedRequest is the non-standard status proxies log when the
// caller went away before the answer was ready.
const statusClientClosedRequest = 499

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code string) {
	ctx := r.Context()
	a.json(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   localize(middleware.LocaleFromContext(ctx), code),
		RequestID: middleware.RequestIDFromContext(ctx),
	}})
}

// fail maps a domain error onto the HTTP surface.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	event := a.Logger.Warn()
	if status >= http.StatusInternalServerError {
		event = a.Logger.Error()
	}
	event.Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("code", code).
		Msg("request failed")
	a.error(w, r, status, code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, codeInvalidAmount
	case errors.Is(err, domain.ErrInvalidName):
		return http.StatusBadRequest, codeInvalidName
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusConflict, codeInsufficientBalance
	case errors.Is(err, domain.ErrSubmissionRejected):
		return http.StatusUnprocessableEntity, codeSubmissionRejected
	case errors.Is(err, domain.ErrConnectionUnavailable), errors.Is(err, reconcile.ErrClosed):
		return http.StatusServiceUnavailable, codeConnectionUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, codeCancelled
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
