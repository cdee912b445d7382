package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleet-tracking/internal/broadcast"
	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/metrics"
	"fleet-tracking/internal/models"
	"fleet-tracking/internal/repository"
)

// StartInput opens or refreshes a worker's tracking session.
// Empty route and vehicle ids are treated as absent.
type StartInput struct {
	WorkerID  string
	RouteID   *string
	VehicleID *string
}

// SessionManager owns the tracking session lifecycle.
type SessionManager struct {
	sessions SessionStore
	dir      Directory
	pub      broadcast.Publisher

	opts    options
	logger  logging.Logger
	metrics metrics.Collector
}

func NewSessionManager(sessions SessionStore, dir Directory, pub broadcast.Publisher, opts ...Option) *SessionManager {
	o := buildOptions(opts)
	return &SessionManager{
		sessions: sessions,
		dir:      dir,
		pub:      pub,
		opts:     o,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Start makes in.WorkerID's session active. A worker that already has an
// active session keeps its session id; route, vehicle and start time are
// replaced.
func (m *SessionManager) Start(ctx context.Context, in StartInput) (models.TrackingSession, error) {
	if strings.TrimSpace(in.WorkerID) == "" {
		return models.TrackingSession{}, validationError("worker id is required")
	}

	if _, err := m.dir.Worker(ctx, in.WorkerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TrackingSession{}, workerNotFound(in.WorkerID)
		}
		return models.TrackingSession{}, fmt.Errorf("resolve worker: %w", err)
	}

	s, err := m.sessions.UpsertActive(ctx, models.TrackingSession{
		WorkerID:  in.WorkerID,
		RouteID:   nonEmpty(in.RouteID),
		VehicleID: nonEmpty(in.VehicleID),
		StartTime: m.opts.timestamp(),
		IsActive:  true,
	})
	if err != nil {
		return models.TrackingSession{}, fmt.Errorf("start session: %w", err)
	}
	m.metrics.SessionTransition("started")
	m.logger.Info("tracking started", "worker_id", s.WorkerID, "session_id", s.ID)

	runBestEffort(context.WithoutCancel(ctx), m.logger, m.metrics, "publish", s.WorkerID, func(ctx context.Context) error {
		return m.pub.Publish(ctx, broadcast.Global, broadcast.EventTrackingStarted, s)
	})

	return s, nil
}

// Stop ends workerID's active session. It fails with a NO_ACTIVE_SESSION
// error when there is none.
func (m *SessionManager) Stop(ctx context.Context, workerID string) (models.TrackingSession, error) {
	if strings.TrimSpace(workerID) == "" {
		return models.TrackingSession{}, validationError("worker id is required")
	}

	s, err := m.sessions.EndActive(ctx, workerID, m.opts.timestamp())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TrackingSession{}, noActiveSession(workerID)
		}
		return models.TrackingSession{}, fmt.Errorf("stop session: %w", err)
	}
	m.metrics.SessionTransition("stopped")
	m.logger.Info("tracking stopped", "worker_id", s.WorkerID, "session_id", s.ID)

	runBestEffort(context.WithoutCancel(ctx), m.logger, m.metrics, "publish", s.WorkerID, func(ctx context.Context) error {
		return m.pub.Publish(ctx, broadcast.Global, broadcast.EventTrackingStopped, s)
	})

	return s, nil
}

// ListActive returns every active session with worker, route and vehicle
// names resolved. Names that cannot be resolved are left empty.
func (m *SessionManager) ListActive(ctx context.Context) ([]models.ActiveSession, error) {
	sessions, err := m.sessions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	names := newNameCache(m.dir, m.logger)
	out := make([]models.ActiveSession, 0, len(sessions))
	for _, s := range sessions {
		a := models.ActiveSession{TrackingSession: s}
		a.WorkerName = names.worker(ctx, s.WorkerID)
		if s.RouteID != nil {
			a.RouteName = names.route(ctx, *s.RouteID)
		}
		if s.VehicleID != nil {
			a.VehicleName = names.vehicle(ctx, *s.VehicleID)
		}
		out = append(out, a)
	}
	return out, nil
}

// nameCache memoises directory lookups for the duration of one listing.
type nameCache struct {
	dir      Directory
	logger   logging.Logger
	workers  map[string]string
	routes   map[string]string
	vehicles map[string]string
}

func newNameCache(dir Directory, logger logging.Logger) *nameCache {
	return &nameCache{
		dir:      dir,
		logger:   logger,
		workers:  make(map[string]string),
		routes:   make(map[string]string),
		vehicles: make(map[string]string),
	}
}

func (c *nameCache) worker(ctx context.Context, id string) string {
	return c.lookup(ctx, c.workers, "worker", id, func(ctx context.Context) (string, error) {
		w, err := c.dir.Worker(ctx, id)
		return w.Name, err
	})
}

func (c *nameCache) route(ctx context.Context, id string) string {
	return c.lookup(ctx, c.routes, "route", id, func(ctx context.Context) (string, error) {
		r, err := c.dir.Route(ctx, id)
		return r.Name, err
	})
}

func (c *nameCache) vehicle(ctx context.Context, id string) string {
	return c.lookup(ctx, c.vehicles, "vehicle", id, func(ctx context.Context) (string, error) {
		v, err := c.dir.Vehicle(ctx, id)
		return v.Name, err
	})
}

func (c *nameCache) lookup(ctx context.Context, seen map[string]string, kind, id string, fetch func(context.Context) (string, error)) string {
	if name, ok := seen[id]; ok {
		return name
	}
	name, err := fetch(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		c.logger.Warn("directory lookup failed", "kind", kind, "id", id, "error", err)
	}
	seen[id] = name
	return name
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
