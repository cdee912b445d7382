package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-tracking/internal/broadcast"
	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/models"
	"fleet-tracking/internal/repository"
)

type service struct {
	gw       *Gateway
	sessions *SessionManager
	query    *QueryService
	pub      *recordingPublisher
}

func newService(t *testing.T) service {
	t.Helper()

	positions := repository.NewMemoryPositionStore()
	dir := testDirectory()
	pub := &recordingPublisher{}
	clock := steppingClock(testBase, time.Second)
	opts := []Option{WithLogger(logging.NewTest(t)), WithClock(clock)}

	sessions := NewSessionManager(repository.NewMemorySessionStore(), dir, pub, opts...)
	return service{
		gw:       NewGateway(positions, dir, nil, pub, opts...),
		sessions: sessions,
		query:    NewQueryService(positions, sessions),
		pub:      pub,
	}
}

func TestQueryService_History(t *testing.T) {
	svc := newService(t)
	ctx := t.Context()

	for i := range 5 {
		_, err := svc.gw.UpdatePosition(ctx, PositionInput{
			WorkerID:  "W1",
			Latitude:  ptr(53.55 + float64(i)*0.001),
			Longitude: ptr(9.99),
		})
		require.NoError(t, err)
	}

	all, err := svc.query.History(ctx, models.HistoryQuery{WorkerID: "W1"})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.After(all[i-1].Timestamp))
	}

	limited, err := svc.query.History(ctx, models.HistoryQuery{WorkerID: "W1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	from := testBase.Add(time.Second)
	to := testBase.Add(3 * time.Second)
	window, err := svc.query.History(ctx, models.HistoryQuery{WorkerID: "W1", Start: &from, End: &to})
	require.NoError(t, err)
	require.Len(t, window, 3)
	for _, p := range window {
		assert.False(t, p.Timestamp.Before(from))
		assert.False(t, p.Timestamp.After(to))
	}

	none, err := svc.query.History(ctx, models.HistoryQuery{WorkerID: "W2"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestQueryService_HistoryValidation(t *testing.T) {
	svc := newService(t)
	later := testBase.Add(time.Hour)

	tests := []struct {
		name string
		q    models.HistoryQuery
	}{
		{"missing worker", models.HistoryQuery{}},
		{"negative limit", models.HistoryQuery{WorkerID: "W1", Limit: -1}},
		{"inverted window", models.HistoryQuery{WorkerID: "W1", Start: &later, End: &testBase}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.query.History(t.Context(), tt.q)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestQueryService_Positions(t *testing.T) {
	svc := newService(t)
	ctx := t.Context()

	all, err := svc.query.AllPositions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	_, err = svc.query.Position(ctx, "W1")
	require.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"W2", "W1"} {
		_, err := svc.gw.UpdatePosition(ctx, PositionInput{WorkerID: id, Latitude: ptr(1.0), Longitude: ptr(2.0)})
		require.NoError(t, err)
	}

	all, err = svc.query.AllPositions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "W1", all[0].WorkerID)
	assert.Equal(t, "W2", all[1].WorkerID)

	p, err := svc.query.Position(ctx, "W2")
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Latitude)
}

func TestTrackingLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := t.Context()

	session, err := svc.sessions.Start(ctx, StartInput{WorkerID: "W1", RouteID: ptr("R1")})
	require.NoError(t, err)
	assert.Len(t, svc.pub.byEvent(broadcast.EventTrackingStarted), 1)

	active, err := svc.query.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, session.ID, active[0].ID)
	assert.Equal(t, "Harbour Loop", active[0].RouteName)

	_, err = svc.gw.UpdatePosition(ctx, PositionInput{WorkerID: "W1", Latitude: ptr(53.5511), Longitude: ptr(9.9937)})
	require.NoError(t, err)
	assert.Len(t, svc.pub.byEvent(broadcast.EventPositionUpdate), 1)

	hist, err := svc.query.History(ctx, models.HistoryQuery{WorkerID: "W1"})
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	stopped, err := svc.sessions.Stop(ctx, "W1")
	require.NoError(t, err)
	assert.False(t, stopped.IsActive)
	assert.NotNil(t, stopped.EndTime)
	assert.Len(t, svc.pub.byEvent(broadcast.EventTrackingStopped), 1)

	_, err = svc.sessions.Stop(ctx, "W1")
	require.ErrorIs(t, err, ErrNotFound)

	active, err = svc.query.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
