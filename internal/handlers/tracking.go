package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/models"
	"fleet-tracking/internal/tracking"
)

// PositionWriter accepts position reports.
type PositionWriter interface {
	UpdatePosition(ctx context.Context, in tracking.PositionInput) (models.Position, error)
}

// SessionLifecycle starts and stops tracking sessions.
type SessionLifecycle interface {
	Start(ctx context.Context, in tracking.StartInput) (models.TrackingSession, error)
	Stop(ctx context.Context, workerID string) (models.TrackingSession, error)
}

// Queries answers read-side requests.
type Queries interface {
	AllPositions(ctx context.Context) ([]models.Position, error)
	Position(ctx context.Context, workerID string) (models.Position, error)
	History(ctx context.Context, q models.HistoryQuery) ([]models.Position, error)
	ActiveSessions(ctx context.Context) ([]models.ActiveSession, error)
}

type TrackingHandler struct {
	positions PositionWriter
	sessions  SessionLifecycle
	queries   Queries
	logger    logging.Logger
}

// UpdatePositionRequest is the body of POST /gps-tracking/update-position.
// Coordinates may be numbers or numeric strings.
type UpdatePositionRequest struct {
	Latitude  flexFloat `json:"latitude"`
	Longitude flexFloat `json:"longitude"`
	Accuracy  flexFloat `json:"accuracy"`
	Speed     flexFloat `json:"speed"`
	Heading   flexFloat `json:"heading"`
}

// StartTrackingRequest is the optional body of POST /gps-tracking/start-tracking.
type StartTrackingRequest struct {
	RouteID   *string `json:"routeId"`
	VehicleID *string `json:"vehicleId"`
}

func NewTrackingHandler(positions PositionWriter, sessions SessionLifecycle, queries Queries, logger logging.Logger) *TrackingHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TrackingHandler{positions: positions, sessions: sessions, queries: queries, logger: logger}
}

func (h *TrackingHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	worker, ok := workerFrom(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}

	var req UpdatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, tracking.CodeValidation, "invalid json")
		return
	}
	if req.Latitude.malformed || req.Longitude.malformed {
		writeFailure(w, http.StatusBadRequest, tracking.CodeValidation, "latitude and longitude must be numeric")
		return
	}

	pos, err := h.positions.UpdatePosition(r.Context(), tracking.PositionInput{
		WorkerID:  worker.ID,
		Latitude:  req.Latitude.value,
		Longitude: req.Longitude.value,
		Accuracy:  req.Accuracy.value,
		Speed:     req.Speed.value,
		Heading:   req.Heading.value,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, pos)
}

func (h *TrackingHandler) Positions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.queries.AllPositions(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, positions)
}

func (h *TrackingHandler) WorkerPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.queries.Position(r.Context(), mux.Vars(r)["workerId"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, pos)
}

func (h *TrackingHandler) History(w http.ResponseWriter, r *http.Request) {
	q := models.HistoryQuery{WorkerID: mux.Vars(r)["workerId"]}
	params := r.URL.Query()

	if s := params.Get("startDate"); s != "" {
		start, err := parseDate(s, false)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, tracking.CodeValidation, "startDate must be RFC 3339 or YYYY-MM-DD")
			return
		}
		q.Start = &start
	}
	if s := params.Get("endDate"); s != "" {
		end, err := parseDate(s, true)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, tracking.CodeValidation, "endDate must be RFC 3339 or YYYY-MM-DD")
			return
		}
		q.End = &end
	}
	if s := params.Get("limit"); s != "" {
		limit, err := parsePositiveInt(s)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, tracking.CodeValidation, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}

	positions, err := h.queries.History(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, positions)
}

func (h *TrackingHandler) StartTracking(w http.ResponseWriter, r *http.Request) {
	worker, ok := workerFrom(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}

	var req StartTrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, http.StatusBadRequest, tracking.CodeValidation, "invalid json")
		return
	}

	session, err := h.sessions.Start(r.Context(), tracking.StartInput{
		WorkerID:  worker.ID,
		RouteID:   req.RouteID,
		VehicleID: req.VehicleID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, session)
}

func (h *TrackingHandler) StopTracking(w http.ResponseWriter, r *http.Request) {
	worker, ok := workerFrom(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}

	session, err := h.sessions.Stop(r.Context(), worker.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, session)
}

func (h *TrackingHandler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.queries.ActiveSessions(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, sessions)
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return date.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return date, nil
}
