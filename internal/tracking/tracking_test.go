package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"fleet-tracking/internal/broadcast"
	"fleet-tracking/internal/metrics"
	"fleet-tracking/internal/models"
	"fleet-tracking/internal/repository"
)

type published struct {
	scope   broadcast.Scope
	event   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, scope broadcast.Scope, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{scope: scope, event: event, payload: payload})
	return nil
}

func (p *recordingPublisher) byEvent(event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type failingHistory struct {
	*repository.MemoryPositionStore
}

func (failingHistory) AppendHistory(context.Context, models.Position) error {
	return errors.New("history table unavailable")
}

type evaluatorFunc func(ctx context.Context, workerID string, lat, lng float64) ([]models.GeofenceViolation, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, workerID string, lat, lng float64) ([]models.GeofenceViolation, error) {
	return f(ctx, workerID, lat, lng)
}

type sideEffectCounter struct {
	metrics.Nop
	mu       sync.Mutex
	failures map[string]int
	accepted int
	rejected map[string]int
}

func newSideEffectCounter() *sideEffectCounter {
	return &sideEffectCounter{failures: make(map[string]int), rejected: make(map[string]int)}
}

func (c *sideEffectCounter) SideEffectFailed(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[kind]++
}

func (c *sideEffectCounter) PositionAccepted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepted++
}

func (c *sideEffectCounter) PositionRejected(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected[reason]++
}

func (c *sideEffectCounter) failed(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures[kind]
}

// steppingClock returns base, base+step, base+2*step, ...
func steppingClock(base time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := base
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

var testBase = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func testDirectory() *repository.StaticDirectory {
	return repository.NewStaticDirectory(repository.DirectoryFile{
		Workers: []models.Worker{
			{ID: "W1", Name: "Alice Meyer", Role: "driver", APIToken: "token-w1"},
			{ID: "W2", Name: "Bob Schulz", Role: "driver", APIToken: "token-w2"},
		},
		Routes:   []models.Route{{ID: "R1", Name: "Harbour Loop"}},
		Vehicles: []models.Vehicle{{ID: "V1", Name: "Van 1", Plate: "HH-FL 101"}},
	})
}

func ptr[T any](v T) *T { return &v }
