package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"skillzone-service/internal/domain"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrLessonNotFound),
		errors.Is(err, domain.ErrCourseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyUnlocked),
		errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrNoOpenAttempt),
		errors.Is(err, domain.ErrAttemptLimitExceeded),
		errors.Is(err, domain.ErrAttemptInProgress),
		errors.Is(err, domain.ErrNotGated),
		errors.Is(err, domain.ErrLessonLocked):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrTimeLimitExceeded):
		return http.StatusGone
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidQuiz),
		errors.Is(err, errInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
