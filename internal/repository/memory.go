package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"fleet-tracking/internal/models"
)

// MemoryPositionStore keeps current positions and history in process memory.
type MemoryPositionStore struct {
	current *xsync.Map[string, models.Position]

	mu      sync.RWMutex
	history map[string][]models.Position
}

func NewMemoryPositionStore() *MemoryPositionStore {
	return &MemoryPositionStore{
		current: xsync.NewMap[string, models.Position](),
		history: make(map[string][]models.Position),
	}
}

func (m *MemoryPositionStore) SetCurrent(_ context.Context, p models.Position) error {
	m.current.Store(p.WorkerID, p)
	return nil
}

func (m *MemoryPositionStore) Current(_ context.Context, workerID string) (models.Position, error) {
	p, ok := m.current.Load(workerID)
	if !ok {
		return models.Position{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryPositionStore) AllCurrent(context.Context) ([]models.Position, error) {
	out := make([]models.Position, 0, m.current.Size())
	m.current.Range(func(_ string, p models.Position) bool {
		out = append(out, p)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

func (m *MemoryPositionStore) AppendHistory(_ context.Context, p models.Position) error {
	m.mu.Lock()
	m.history[p.WorkerID] = append(m.history[p.WorkerID], p)
	m.mu.Unlock()
	return nil
}

func (m *MemoryPositionStore) History(_ context.Context, q models.HistoryQuery) ([]models.Position, error) {
	m.mu.RLock()
	entries := m.history[q.WorkerID]
	limit := NormalizeLimit(q.Limit)

	out := make([]models.Position, 0, min(limit, len(entries)))
	// entries are in append order; walk backwards for newest first
	for i := len(entries) - 1; i >= 0; i-- {
		p := entries[i]
		if q.Start != nil && p.Timestamp.Before(*q.Start) {
			continue
		}
		if q.End != nil && p.Timestamp.After(*q.End) {
			continue
		}
		out = append(out, p)
	}
	m.mu.RUnlock()

	// append order is arrival order, which need not match timestamps
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemorySessionStore keeps tracking sessions in process memory.
type MemorySessionStore struct {
	mu     sync.Mutex
	active map[string]models.TrackingSession
	ended  []models.TrackingSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{active: make(map[string]models.TrackingSession)}
}

func (m *MemorySessionStore) UpsertActive(_ context.Context, s models.TrackingSession) (models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.active[s.WorkerID]; ok {
		cur.RouteID = s.RouteID
		cur.VehicleID = s.VehicleID
		cur.StartTime = s.StartTime
		cur.UpdatedAt = s.StartTime
		m.active[s.WorkerID] = cur
		return cur, nil
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.IsActive = true
	s.EndTime = nil
	s.CreatedAt = s.StartTime
	s.UpdatedAt = s.StartTime
	m.active[s.WorkerID] = s
	return s, nil
}

func (m *MemorySessionStore) EndActive(_ context.Context, workerID string, end time.Time) (models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.active[workerID]
	if !ok {
		return models.TrackingSession{}, ErrNotFound
	}
	delete(m.active, workerID)

	s.IsActive = false
	s.EndTime = &end
	s.UpdatedAt = end
	m.ended = append(m.ended, s)
	return s, nil
}

func (m *MemorySessionStore) ListActive(context.Context) ([]models.TrackingSession, error) {
	m.mu.Lock()
	out := make([]models.TrackingSession, 0, len(m.active))
	for _, s := range m.active {
		out = append(out, s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].WorkerID < out[j].WorkerID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (m *MemorySessionStore) ForWorker(_ context.Context, workerID string) ([]models.TrackingSession, error) {
	m.mu.Lock()
	var out []models.TrackingSession
	if s, ok := m.active[workerID]; ok {
		out = append(out, s)
	}
	for i := len(m.ended) - 1; i >= 0; i-- {
		if m.ended[i].WorkerID == workerID {
			out = append(out, m.ended[i])
		}
	}
	m.mu.Unlock()
	return out, nil
}
