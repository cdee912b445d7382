// Package tracking implements the live position ingest path, the tracking
// session lifecycle and the read-side queries over both.
package tracking

import (
	"context"
	"time"

	"fleet-tracking/internal/models"
)

// PositionStore holds the current position per worker and the history log.
type PositionStore interface {
	SetCurrent(ctx context.Context, p models.Position) error
	Current(ctx context.Context, workerID string) (models.Position, error)
	AllCurrent(ctx context.Context) ([]models.Position, error)
	AppendHistory(ctx context.Context, p models.Position) error
	History(ctx context.Context, q models.HistoryQuery) ([]models.Position, error)
}

// SessionStore persists tracking sessions.
//
// UpsertActive must be atomic: concurrent calls for one worker leave exactly
// one active row. EndActive returns repository.ErrNotFound when there is no
// active row.
type SessionStore interface {
	UpsertActive(ctx context.Context, s models.TrackingSession) (models.TrackingSession, error)
	EndActive(ctx context.Context, workerID string, end time.Time) (models.TrackingSession, error)
	ListActive(ctx context.Context) ([]models.TrackingSession, error)
}

// Directory resolves records owned by other services.
type Directory interface {
	Worker(ctx context.Context, id string) (models.Worker, error)
	Route(ctx context.Context, id string) (models.Route, error)
	Vehicle(ctx context.Context, id string) (models.Vehicle, error)
}
