package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/httputil"
	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/internal/pipeline"
	"github.com/young1lin/flux/internal/storage"
	"github.com/young1lin/flux/internal/telemetry"
	"github.com/young1lin/flux/pkg/logger"
)

// Error codes returned in the code field of error bodies
const (
	CodeMissingQuery          = "MISSING_QUERY"
	CodeQueryTooLong          = "QUERY_TOO_LONG"
	CodeInvalidLimit          = "INVALID_LIMIT"
	CodeInvalidTopic          = "INVALID_TOPIC"
	CodeInvalidDays           = "INVALID_DAYS"
	CodeMissingURLs           = "MISSING_URLS"
	CodeTooManyURLs           = "TOO_MANY_URLS"
	CodeInvalidURLs           = "INVALID_URLS"
	CodeInvalidPagination     = "INVALID_PAGINATION"
	CodeInvalidConversationID = "INVALID_CONVERSATION_ID"
	CodeInvalidBody           = "INVALID_BODY"
	CodeMessageLimit          = "MESSAGE_LIMIT_REACHED"
	CodeConversationNotFound  = "CONVERSATION_NOT_FOUND"
	CodeNoResults             = "NO_RESULTS"
	CodeTavilyError           = "TAVILY_ERROR"
	CodeAnswerFailed          = "ANSWER_FAILED"
	CodePayloadTooLarge       = "PAYLOAD_TOO_LARGE"
	CodeNotFound              = "NOT_FOUND"
	CodeMethodNotAllowed      = "METHOD_NOT_ALLOWED"
	CodeCanceled              = "REQUEST_CANCELED"
	CodeTimeout               = "TIMEOUT"
	CodeInternal              = "INTERNAL"
)

// statusClientClosedRequest is the de facto status for a client that went away
const statusClientClosedRequest = 499

// apiError is a request error with a fixed status and code
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(code, message string) *apiError {
	return &apiError{status: http.StatusBadRequest, code: code, message: message}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// statusForError maps domain errors to an HTTP status and error code
func statusForError(err error) (int, string) {
	var (
		apiErr   *apiError
		synthErr *pipeline.SynthesisError
		maxErr   *http.MaxBytesError
	)
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &apiErr):
		return apiErr.status, apiErr.code
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, CodePayloadTooLarge
	case errors.Is(err, models.ErrInvalidQuery):
		return http.StatusBadRequest, CodeMissingQuery
	case errors.Is(err, models.ErrQueryTooLong):
		return http.StatusBadRequest, CodeQueryTooLong
	case errors.Is(err, storage.ErrMessageLimit):
		return http.StatusBadRequest, CodeMessageLimit
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, CodeConversationNotFound
	case errors.Is(err, models.ErrNoResults):
		return http.StatusNotFound, CodeNoResults
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.As(err, &synthErr):
		return http.StatusBadGateway, CodeAnswerFailed
	}

	var (
		searchErr   *pipeline.SearchError
		cfgErr      *models.ConfigError
		providerErr *models.ProviderError
	)
	if errors.As(err, &searchErr) || errors.As(err, &cfgErr) || errors.As(err, &providerErr) {
		return http.StatusBadGateway, CodeTavilyError
	}
	return http.StatusInternalServerError, CodeInternal
}

// writeError renders err as {error, code}. Provider text is redacted and
// internal errors are never echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	message := httputil.Redact(err.Error())
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	log := logger.FromContext(r.Context())
	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("error", httputil.Redact(err.Error())),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
		telemetry.CaptureError(r.Context(), err)
	} else {
		log.Info("request rejected", fields...)
	}

	writeJSON(w, status, models.ErrorResponse{Error: message, Code: code})
}
