package response

import (
	"encoding/json"
	"net/http"

	"github.com/vadesso/account-service/pkg/logger"
)

// Envelope is the uniform error payload: detail is either a message string
// or a field-keyed map of validation messages.
type Envelope struct {
	Detail     interface{} `json:"detail"`
	StatusCode int         `json:"status_code"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, statusCode int, detail interface{}) {
	WriteJSON(w, statusCode, Envelope{
		Detail:     detail,
		StatusCode: statusCode,
	})
}

func BadRequest(w http.ResponseWriter, detail interface{}) {
	WriteError(w, http.StatusBadRequest, detail)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func Gone(w http.ResponseWriter, detail interface{}) {
	WriteJSON(w, http.StatusGone, detail)
}

func NotImplemented(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotImplemented, message)
}

func TooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
