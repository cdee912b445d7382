package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/tracking"
)

// Error codes produced by the HTTP layer itself.
const (
	codeUnauthorized = "UNAUTHORIZED"
	codeRateLimited  = "RATE_LIMITED"
	codeInternal     = "INTERNAL_ERROR"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Error: &errorBody{Code: code, Message: message}})
}

// writeError maps a service error to a status code and a structured body.
func writeError(w http.ResponseWriter, logger logging.Logger, err error) {
	var terr *tracking.Error
	if errors.As(err, &terr) {
		switch {
		case errors.Is(err, tracking.ErrValidation):
			writeFailure(w, http.StatusBadRequest, terr.Code, terr.Message)
			return
		case errors.Is(err, tracking.ErrNotFound):
			writeFailure(w, http.StatusNotFound, terr.Code, terr.Message)
			return
		}
	}

	logger.Error("request failed", "error", err)
	writeFailure(w, http.StatusInternalServerError, codeInternal, "internal server error")
}

func parsePositiveInt(input string) (int, error) {
	value, err := strconv.Atoi(input)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid")
	}
	return value, nil
}
