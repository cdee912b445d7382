package tracking

import (
	"time"

	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/metrics"
)

type options struct {
	logger          logging.Logger
	metrics         metrics.Collector
	now             func() time.Time
	geofenceTimeout time.Duration
}

// Option configures a Gateway or SessionManager.
type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now. Returned times are converted to UTC and
// truncated to microseconds so they survive a database round trip.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithGeofenceTimeout bounds each geofence evaluation. Zero disables the bound.
func WithGeofenceTimeout(d time.Duration) Option {
	return func(o *options) { o.geofenceTimeout = d }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:          logging.NewNop(),
		metrics:         metrics.NewNop(),
		now:             time.Now,
		geofenceTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Microsecond)
}
