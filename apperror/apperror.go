// Package apperror defines the error kinds surfaced over the HTTP API.
package apperror

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error carries an HTTP status alongside a user-facing message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Message: message}
}

func Internal(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message}
}

// Write encodes err as a JSON error body. Non-*Error values are reported as
// internal errors so handler code can return wrapped causes directly.
func Write(w http.ResponseWriter, err error) {
	appErr := &Error{}
	if !errors.As(err, &appErr) {
		appErr = Internal(err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": appErr.Message})
}
