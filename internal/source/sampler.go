// Package source samples a device's location and reports it to the
// tracking service, skipping fixes that have not moved far enough.
package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"fleet-tracking/internal/geo"
	"fleet-tracking/internal/logging"
)

// Config controls sampling cadence and movement suppression.
type Config struct {
	UpdateInterval    time.Duration `validate:"gt=0"`
	MinMovementMeters float64       `validate:"gte=0"`
	HighAccuracy      bool
}

func DefaultConfig() Config {
	return Config{
		UpdateInterval:    5 * time.Second,
		MinMovementMeters: 10,
		HighAccuracy:      true,
	}
}

// Fix is one location reading from the device.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	Speed     *float64
	Heading   *float64
	Time      time.Time
}

func (f Fix) point() geo.Point {
	return geo.Point{Lat: f.Latitude, Lng: f.Longitude}
}

// Locator returns the device's latest fix.
type Locator interface {
	Locate(ctx context.Context, highAccuracy bool) (Fix, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, highAccuracy bool) (Fix, error)

func (f LocatorFunc) Locate(ctx context.Context, highAccuracy bool) (Fix, error) {
	return f(ctx, highAccuracy)
}

// Sender delivers a fix to the tracking service.
type Sender interface {
	Send(ctx context.Context, f Fix) error
}

// Option configures a Sampler.
type Option func(*Sampler)

func WithLogger(l logging.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// WithErrorHandler registers fn to receive classified location errors.
func WithErrorHandler(fn func(*LocationError)) Option {
	return func(s *Sampler) { s.onError = fn }
}

// Sampler reads the locator on a fixed cadence and sends fixes that moved at
// least MinMovementMeters from the last one sent. The ticker is the only
// sampling trigger.
type Sampler struct {
	cfg     Config
	locator Locator
	sender  Sender
	logger  logging.Logger
	onError func(*LocationError)

	mu        sync.Mutex
	lastSent  *Fix
	lastKnown *Fix
}

func NewSampler(cfg Config, locator Locator, sender Sender, opts ...Option) (*Sampler, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid sampler config: %w", err)
	}

	s := &Sampler{
		cfg:     cfg,
		locator: locator,
		sender:  sender,
		logger:  logging.NewNop(),
		onError: func(*LocationError) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sample takes one fix and sends it when it is the first one or has moved
// far enough. It reports whether a send happened. A failed send keeps the
// previous reference point so the next sample retries.
func (s *Sampler) Sample(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fix, err := s.locator.Locate(ctx, s.cfg.HighAccuracy)
	if err != nil {
		lerr := Classify(err)
		s.onError(lerr)
		return false, lerr
	}
	s.lastKnown = &fix

	if s.lastSent != nil {
		moved := geo.Distance(s.lastSent.point(), fix.point())
		if moved < s.cfg.MinMovementMeters {
			s.logger.Debug("fix suppressed", "moved_m", moved, "threshold_m", s.cfg.MinMovementMeters)
			return false, nil
		}
	}

	if err := s.sender.Send(ctx, fix); err != nil {
		return false, fmt.Errorf("send position: %w", err)
	}
	s.lastSent = &fix
	return true, nil
}

// Run samples immediately and then every UpdateInterval until ctx is done.
// Location and send errors are logged and never stop the loop.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Sample(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("sample failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LastKnown returns the most recent successful fix.
func (s *Sampler) LastKnown() (Fix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastKnown == nil {
		return Fix{}, false
	}
	return *s.lastKnown, true
}

// Reset forgets the last sent fix so the next sample is always sent.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSent = nil
}
