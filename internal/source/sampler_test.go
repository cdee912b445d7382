package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-tracking/internal/geo"
	"fleet-tracking/internal/logging"
)

type recordingSender struct {
	mu    sync.Mutex
	fixes []Fix
	err   error
}

func (r *recordingSender) Send(_ context.Context, f Fix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.fixes = append(r.fixes, f)
	return nil
}

func (r *recordingSender) sent() []Fix {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fix(nil), r.fixes...)
}

type result struct {
	fix Fix
	err error
}

// scriptedLocator returns results in order and repeats the last one.
type scriptedLocator struct {
	mu      sync.Mutex
	results []result
	calls   int
}

func (s *scriptedLocator) Locate(context.Context, bool) (Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.results[min(s.calls, len(s.results)-1)]
	s.calls++
	return r.fix, r.err
}

func at(lat, lng float64) result {
	return result{fix: Fix{Latitude: lat, Longitude: lng}}
}

func newTestSampler(t *testing.T, loc Locator, snd Sender, opts ...Option) *Sampler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.UpdateInterval = 5 * time.Millisecond
	s, err := NewSampler(cfg, loc, snd, append([]Option{WithLogger(logging.NewTest(t))}, opts...)...)
	require.NoError(t, err)
	return s
}

func TestSampler_SendsFixesBeyondThreshold(t *testing.T) {
	loc := &scriptedLocator{results: []result{at(53.5511, 9.9937), at(53.5501, 9.9901)}}
	snd := &recordingSender{}
	s := newTestSampler(t, loc, snd)

	for range 2 {
		sent, err := s.Sample(t.Context())
		require.NoError(t, err)
		assert.True(t, sent)
	}

	fixes := snd.sent()
	require.Len(t, fixes, 2)
	assert.Equal(t, 53.5501, fixes[1].Latitude)
	assert.Equal(t, 9.9901, fixes[1].Longitude)
}

func TestSampler_SuppressesSmallMovement(t *testing.T) {
	// 0.000027 degrees of latitude is about 3m
	loc := &scriptedLocator{results: []result{at(53.5511, 9.9937), at(53.551127, 9.9937)}}
	snd := &recordingSender{}
	s := newTestSampler(t, loc, snd)

	sent, err := s.Sample(t.Context())
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = s.Sample(t.Context())
	require.NoError(t, err)
	assert.False(t, sent)

	assert.Len(t, snd.sent(), 1)

	last, ok := s.LastKnown()
	require.True(t, ok)
	assert.Equal(t, 53.551127, last.Latitude)
}

func TestSampler_ReferencePointIsLastSent(t *testing.T) {
	// each step is ~6m: the second is suppressed, the third is ~12m from the first
	loc := &scriptedLocator{results: []result{at(53.5511, 9.9937), at(53.551154, 9.9937), at(53.551208, 9.9937)}}
	snd := &recordingSender{}
	s := newTestSampler(t, loc, snd)

	for range 3 {
		_, err := s.Sample(t.Context())
		require.NoError(t, err)
	}

	fixes := snd.sent()
	require.Len(t, fixes, 2)
	assert.Equal(t, 53.551208, fixes[1].Latitude)
}

func TestSampler_FailedSendIsRetried(t *testing.T) {
	loc := &scriptedLocator{results: []result{at(53.5511, 9.9937)}}
	snd := &recordingSender{err: errors.New("connection refused")}
	s := newTestSampler(t, loc, snd)

	sent, err := s.Sample(t.Context())
	require.Error(t, err)
	assert.False(t, sent)

	snd.mu.Lock()
	snd.err = nil
	snd.mu.Unlock()

	sent, err = s.Sample(t.Context())
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, snd.sent(), 1)
}

func TestSampler_ResetForcesNextSend(t *testing.T) {
	loc := &scriptedLocator{results: []result{at(1, 1)}}
	snd := &recordingSender{}
	s := newTestSampler(t, loc, snd)

	_, err := s.Sample(t.Context())
	require.NoError(t, err)
	s.Reset()
	sent, err := s.Sample(t.Context())
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, snd.sent(), 2)
}

func TestSampler_RunSurvivesLocationErrors(t *testing.T) {
	loc := &scriptedLocator{results: []result{
		{err: ErrPermissionDenied},
		{err: context.DeadlineExceeded},
		at(53.5511, 9.9937),
	}}
	snd := &recordingSender{}

	var mu sync.Mutex
	var codes []ErrorCode
	s := newTestSampler(t, loc, snd, WithErrorHandler(func(e *LocationError) {
		mu.Lock()
		defer mu.Unlock()
		codes = append(codes, e.Code)
	}))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(snd.sent()) == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ErrorCode{CodePermissionDenied, CodeTimeout}, codes)
	assert.Len(t, snd.sent(), 1)
}

func TestNewSampler_InvalidConfig(t *testing.T) {
	_, err := NewSampler(Config{UpdateInterval: 0, MinMovementMeters: 10}, &scriptedLocator{}, &recordingSender{})
	require.Error(t, err)

	_, err = NewSampler(Config{UpdateInterval: time.Second, MinMovementMeters: -1}, &scriptedLocator{}, &recordingSender{})
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"permission", ErrPermissionDenied, CodePermissionDenied},
		{"wrapped unavailable", errors.Join(errors.New("gps"), ErrPositionUnavailable), CodePositionUnavailable},
		{"deadline", context.DeadlineExceeded, CodeTimeout},
		{"other", errors.New("driver crashed"), CodeUnknown},
		{"already classified", NewLocationError(CodeTimeout, nil), CodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
			assert.NotEmpty(t, got.Message)
			assert.NotEmpty(t, got.Hint)
		})
	}

	assert.Nil(t, Classify(nil))
}

func TestRouteLocator(t *testing.T) {
	route := []geo.Point{{Lat: 53.55, Lng: 9.99}, {Lat: 53.56, Lng: 9.99}}

	t.Run("holds last waypoint", func(t *testing.T) {
		r := NewRouteLocator(route, false)
		var got []float64
		for range 3 {
			f, err := r.Locate(t.Context(), true)
			require.NoError(t, err)
			got = append(got, f.Latitude)
		}
		assert.Equal(t, []float64{53.55, 53.56, 53.56}, got)
	})

	t.Run("loops", func(t *testing.T) {
		r := NewRouteLocator(route, true)
		var got []float64
		for range 3 {
			f, err := r.Locate(t.Context(), false)
			require.NoError(t, err)
			got = append(got, f.Latitude)
		}
		assert.Equal(t, []float64{53.55, 53.56, 53.55}, got)
	})

	t.Run("heading follows route", func(t *testing.T) {
		r := NewRouteLocator(route, false)
		first, err := r.Locate(t.Context(), true)
		require.NoError(t, err)
		assert.Nil(t, first.Heading)

		second, err := r.Locate(t.Context(), true)
		require.NoError(t, err)
		require.NotNil(t, second.Heading)
		assert.InDelta(t, 0, *second.Heading, 1e-6)
	})

	t.Run("empty route", func(t *testing.T) {
		_, err := NewRouteLocator(nil, true).Locate(t.Context(), true)
		assert.Equal(t, CodePositionUnavailable, Classify(err).Code)
	})
}
