package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/mindcare-directory/internal/api/middleware"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 16

// errorResponse is the body of every non-2xx response
type errorResponse struct {
	Error  string      `json:"error"`
	Code   string      `json:"code"`
	Result interface{} `json:"result,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: message, Code: codeForStatus(statusCode)})
}

// statusFor maps an application error type to its HTTP status
func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict, apperrors.ErrorTypeInvalidSlot:
		return http.StatusConflict
	case apperrors.ErrorTypeIncompleteSelection:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeQuotaExhausted:
		return http.StatusTooManyRequests
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperrors.ErrorTypeValidation)
	case http.StatusUnauthorized:
		return string(apperrors.ErrorTypeUnauthorized)
	case http.StatusNotFound:
		return string(apperrors.ErrorTypeNotFound)
	default:
		return string(apperrors.ErrorTypeInternal)
	}
}

// writeAppError renders err, optionally with the resolved state it left behind.
// Internal details never reach the client.
func writeAppError(w http.ResponseWriter, r *http.Request, err error, state interface{}) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("internal server error", err)
	}

	status := statusFor(appErr.Type)
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("request failed")
		if appErr.Type == apperrors.ErrorTypeInternal {
			message = "internal server error"
		}
	}

	resp := errorResponse{Error: message, Code: string(appErr.Type)}
	if state != nil {
		resp.Result = state
	}
	respondWithJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// requireUser returns the caller's id or answers 401
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		respondWithError(w, http.StatusUnauthorized, middleware.UserIDHeader+" header is required")
		return "", false
	}
	return userID, true
}
