package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-tracking/internal/broadcast"
	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/models"
	"fleet-tracking/internal/repository"
)

func newSessionFixture(t *testing.T) (*SessionManager, *repository.MemorySessionStore, *recordingPublisher) {
	t.Helper()

	store := repository.NewMemorySessionStore()
	pub := &recordingPublisher{}
	m := NewSessionManager(store, testDirectory(), pub,
		WithLogger(logging.NewTest(t)),
		WithClock(steppingClock(testBase, time.Minute)),
	)
	return m, store, pub
}

func activeFor(t *testing.T, store *repository.MemorySessionStore, workerID string) []models.TrackingSession {
	t.Helper()
	all, err := store.ListActive(t.Context())
	require.NoError(t, err)
	var out []models.TrackingSession
	for _, s := range all {
		if s.WorkerID == workerID {
			out = append(out, s)
		}
	}
	return out
}

func TestSessionManager_Start(t *testing.T) {
	m, store, pub := newSessionFixture(t)
	ctx := t.Context()

	s, err := m.Start(ctx, StartInput{WorkerID: "W1", RouteID: ptr("R1")})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.True(t, s.IsActive)
	assert.Nil(t, s.EndTime)
	require.NotNil(t, s.RouteID)
	assert.Equal(t, "R1", *s.RouteID)
	assert.Equal(t, testBase, s.StartTime)

	started := pub.byEvent(broadcast.EventTrackingStarted)
	require.Len(t, started, 1)
	assert.True(t, started[0].scope.IsGlobal())
	assert.Len(t, activeFor(t, store, "W1"), 1)
}

func TestSessionManager_RestartReplacesInPlace(t *testing.T) {
	m, store, _ := newSessionFixture(t)
	ctx := t.Context()

	first, err := m.Start(ctx, StartInput{WorkerID: "W1", RouteID: ptr("R1")})
	require.NoError(t, err)

	inputs := []StartInput{
		{WorkerID: "W1", VehicleID: ptr("V1")},
		{WorkerID: "W1", RouteID: ptr(""), VehicleID: ptr("V1")},
		{WorkerID: "W1", RouteID: ptr("R1")},
	}
	for _, in := range inputs {
		s, err := m.Start(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, first.ID, s.ID)
		assert.True(t, s.StartTime.After(first.StartTime))
		assert.Len(t, activeFor(t, store, "W1"), 1)
	}

	active := activeFor(t, store, "W1")
	require.Len(t, active, 1)
	require.NotNil(t, active[0].RouteID)
	assert.Equal(t, "R1", *active[0].RouteID)
	assert.Nil(t, active[0].VehicleID)
}

func TestSessionManager_ConcurrentStartKeepsOneActive(t *testing.T) {
	m, store, _ := newSessionFixture(t)
	ctx := t.Context()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Start(ctx, StartInput{WorkerID: "W2"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, activeFor(t, store, "W2"), 1)
}

func TestSessionManager_StopWithoutStart(t *testing.T) {
	m, store, pub := newSessionFixture(t)
	ctx := t.Context()

	_, err := m.Stop(ctx, "W1")
	require.ErrorIs(t, err, ErrNotFound)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeNoActiveSession, terr.Code)

	hist, err := store.ForWorker(ctx, "W1")
	require.NoError(t, err)
	assert.Empty(t, hist)
	assert.Empty(t, pub.events)
}

func TestSessionManager_StopEndsSession(t *testing.T) {
	m, store, pub := newSessionFixture(t)
	ctx := t.Context()

	started, err := m.Start(ctx, StartInput{WorkerID: "W1"})
	require.NoError(t, err)

	stopped, err := m.Stop(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, started.ID, stopped.ID)
	assert.False(t, stopped.IsActive)
	require.NotNil(t, stopped.EndTime)
	assert.True(t, stopped.EndTime.After(stopped.StartTime))
	assert.Len(t, pub.byEvent(broadcast.EventTrackingStopped), 1)
	assert.Empty(t, activeFor(t, store, "W1"))

	_, err = m.Stop(ctx, "W1")
	require.ErrorIs(t, err, ErrNotFound)

	again, err := m.Start(ctx, StartInput{WorkerID: "W1"})
	require.NoError(t, err)
	assert.NotEqual(t, started.ID, again.ID)
}

func TestSessionManager_StartUnknownWorker(t *testing.T) {
	m, store, pub := newSessionFixture(t)

	_, err := m.Start(t.Context(), StartInput{WorkerID: "ghost"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, activeFor(t, store, "ghost"))
	assert.Empty(t, pub.events)

	_, err = m.Start(t.Context(), StartInput{WorkerID: "  "})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSessionManager_PublishFailureDoesNotFailStart(t *testing.T) {
	m, store, pub := newSessionFixture(t)
	pub.err = errors.New("broker unavailable")

	_, err := m.Start(t.Context(), StartInput{WorkerID: "W1"})
	require.NoError(t, err)
	assert.Len(t, activeFor(t, store, "W1"), 1)
}

type flakyDirectory struct {
	Directory
}

func (flakyDirectory) Vehicle(context.Context, string) (models.Vehicle, error) {
	return models.Vehicle{}, errors.New("fleet service timeout")
}

func TestSessionManager_ListActiveEnrichesNames(t *testing.T) {
	store := repository.NewMemorySessionStore()
	m := NewSessionManager(store, flakyDirectory{Directory: testDirectory()}, &recordingPublisher{},
		WithLogger(logging.NewTest(t)),
		WithClock(steppingClock(testBase, time.Minute)),
	)
	ctx := t.Context()

	_, err := m.Start(ctx, StartInput{WorkerID: "W1", RouteID: ptr("R1"), VehicleID: ptr("V1")})
	require.NoError(t, err)
	_, err = m.Start(ctx, StartInput{WorkerID: "W2", RouteID: ptr("R-unknown")})
	require.NoError(t, err)

	active, err := m.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	byWorker := map[string]models.ActiveSession{}
	for _, a := range active {
		byWorker[a.WorkerID] = a
	}

	w1 := byWorker["W1"]
	assert.Equal(t, "Alice Meyer", w1.WorkerName)
	assert.Equal(t, "Harbour Loop", w1.RouteName)
	assert.Empty(t, w1.VehicleName)

	w2 := byWorker["W2"]
	assert.Equal(t, "Bob Schulz", w2.WorkerName)
	assert.Empty(t, w2.RouteName)
	assert.Empty(t, w2.VehicleName)
}
