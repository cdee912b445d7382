package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleet-tracking/internal/models"
	"fleet-tracking/internal/repository"
)

// QueryService answers read-only questions about positions and sessions.
type QueryService struct {
	positions PositionStore
	sessions  *SessionManager
}

func NewQueryService(positions PositionStore, sessions *SessionManager) *QueryService {
	return &QueryService{positions: positions, sessions: sessions}
}

// AllPositions returns the latest position of every worker that has reported.
func (q *QueryService) AllPositions(ctx context.Context) ([]models.Position, error) {
	out, err := q.positions.AllCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("list current positions: %w", err)
	}
	if out == nil {
		out = []models.Position{}
	}
	return out, nil
}

// Position returns the latest position of one worker.
func (q *QueryService) Position(ctx context.Context, workerID string) (models.Position, error) {
	p, err := q.positions.Current(ctx, workerID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Position{}, &Error{
			Code:    CodeWorkerNotFound,
			Message: fmt.Sprintf("no position reported for worker %q", workerID),
			Err:     ErrNotFound,
		}
	}
	if err != nil {
		return models.Position{}, fmt.Errorf("get current position: %w", err)
	}
	return p, nil
}

// History returns a worker's recorded positions, newest first.
// A zero limit selects the default; larger limits are capped.
func (q *QueryService) History(ctx context.Context, hq models.HistoryQuery) ([]models.Position, error) {
	if strings.TrimSpace(hq.WorkerID) == "" {
		return nil, validationError("worker id is required")
	}
	if hq.Limit < 0 {
		return nil, validationError("limit must be positive")
	}
	if hq.Start != nil && hq.End != nil && hq.Start.After(*hq.End) {
		return nil, validationError("startDate must not be after endDate")
	}
	hq.Limit = repository.NormalizeLimit(hq.Limit)

	out, err := q.positions.History(ctx, hq)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	if out == nil {
		out = []models.Position{}
	}
	return out, nil
}

// ActiveSessions lists active tracking sessions with display names.
func (q *QueryService) ActiveSessions(ctx context.Context) ([]models.ActiveSession, error) {
	return q.sessions.ListActive(ctx)
}
