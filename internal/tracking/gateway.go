package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"fleet-tracking/internal/broadcast"
	"fleet-tracking/internal/geofence"
	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/metrics"
	"fleet-tracking/internal/models"
	"fleet-tracking/internal/repository"
)

// PositionInput is one position report from a worker's device.
// Latitude and Longitude are pointers so a missing value is distinguishable
// from zero.
type PositionInput struct {
	WorkerID  string   `validate:"required"`
	Latitude  *float64 `validate:"required,latitude"`
	Longitude *float64 `validate:"required,longitude"`
	Accuracy  *float64
	Speed     *float64
	Heading   *float64
}

// Gateway is the single write path for live worker positions.
type Gateway struct {
	positions PositionStore
	workers   Directory
	fences    geofence.Evaluator
	pub       broadcast.Publisher
	validate  *validator.Validate

	opts    options
	logger  logging.Logger
	metrics metrics.Collector
}

func NewGateway(positions PositionStore, workers Directory, fences geofence.Evaluator, pub broadcast.Publisher, opts ...Option) *Gateway {
	o := buildOptions(opts)
	if fences == nil {
		fences = geofence.Nop{}
	}

	return &Gateway{
		positions: positions,
		workers:   workers,
		fences:    geofence.WithTimeout(fences, o.geofenceTimeout),
		pub:       pub,
		validate:  validator.New(),
		opts:      o,
		logger:    o.logger,
		metrics:   o.metrics,
	}
}

// UpdatePosition validates and stores a position, then records history,
// evaluates geofences and broadcasts the position. Only validation, worker
// lookup and the current-position write can fail the call; the remaining
// steps are best-effort.
func (g *Gateway) UpdatePosition(ctx context.Context, in PositionInput) (models.Position, error) {
	if err := g.check(in); err != nil {
		g.metrics.PositionRejected("validation")
		return models.Position{}, err
	}

	if _, err := g.workers.Worker(ctx, in.WorkerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			g.metrics.PositionRejected("not_found")
			return models.Position{}, workerNotFound(in.WorkerID)
		}
		g.metrics.PositionRejected("directory")
		return models.Position{}, fmt.Errorf("resolve worker: %w", err)
	}

	pos := models.Position{
		WorkerID:  in.WorkerID,
		Latitude:  *in.Latitude,
		Longitude: *in.Longitude,
		Accuracy:  finiteOrNil(in.Accuracy),
		Speed:     finiteOrNil(in.Speed),
		Heading:   finiteOrNil(in.Heading),
		Timestamp: g.opts.timestamp(),
	}

	if err := g.positions.SetCurrent(ctx, pos); err != nil {
		g.metrics.PositionRejected("store")
		return models.Position{}, fmt.Errorf("store current position: %w", err)
	}
	g.metrics.PositionAccepted()

	// the position is accepted; a client hanging up must not cut the side effects short
	sideCtx := context.WithoutCancel(ctx)

	g.bestEffort(sideCtx, "history", pos.WorkerID, func(ctx context.Context) error {
		return g.positions.AppendHistory(ctx, pos)
	})
	g.bestEffort(sideCtx, "geofence", pos.WorkerID, func(ctx context.Context) error {
		return g.checkGeofences(ctx, pos)
	})
	g.bestEffort(sideCtx, "publish", pos.WorkerID, func(ctx context.Context) error {
		return g.pub.Publish(ctx, broadcast.Global, broadcast.EventPositionUpdate, pos)
	})

	g.logger.Debug("position accepted", "worker_id", pos.WorkerID, "lat", pos.Latitude, "lng", pos.Longitude)
	return pos, nil
}

func (g *Gateway) check(in PositionInput) error {
	err := g.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return validationError("invalid position: %v", err)
	}

	fe := verrs[0]
	switch {
	case fe.Field() == "WorkerID":
		return validationError("worker id is required")
	case fe.Tag() == "required":
		return validationError("latitude and longitude are required")
	case fe.Field() == "Latitude":
		return validationError("latitude must be a number between -90 and 90")
	default:
		return validationError("longitude must be a number between -180 and 180")
	}
}

func (g *Gateway) checkGeofences(ctx context.Context, pos models.Position) error {
	violations, err := g.fences.Evaluate(ctx, pos.WorkerID, pos.Latitude, pos.Longitude)
	if err != nil {
		return err
	}
	g.metrics.GeofenceViolations(len(violations))

	var errs []error
	for _, v := range violations {
		alert := models.GeofenceAlert{
			GeofenceViolation: v,
			WorkerID:          pos.WorkerID,
			Latitude:          pos.Latitude,
			Longitude:         pos.Longitude,
			DetectedAt:        pos.Timestamp,
		}
		if err := g.pub.Publish(ctx, broadcast.Global, broadcast.EventGeofenceAlert, alert); err != nil {
			errs = append(errs, err)
		}
		g.logger.Info("geofence violation",
			"worker_id", pos.WorkerID,
			"boundary_id", v.BoundaryID,
			"type", v.ViolationType,
			"distance_m", v.Distance,
		)
	}
	return errors.Join(errs...)
}

// bestEffort runs fn and swallows its error or panic after logging it.
func (g *Gateway) bestEffort(ctx context.Context, kind, workerID string, fn func(context.Context) error) {
	runBestEffort(ctx, g.logger, g.metrics, kind, workerID, fn)
}

func runBestEffort(ctx context.Context, logger logging.Logger, mc metrics.Collector, kind, workerID string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			mc.SideEffectFailed(kind)
			logger.Error("best-effort side effect panicked", "kind", kind, "worker_id", workerID, "panic", r)
		}
	}()

	if err := fn(ctx); err != nil {
		mc.SideEffectFailed(kind)
		logger.Warn("best-effort side effect failed",
			"kind", kind,
			"worker_id", workerID,
			"error", fmt.Errorf("%w: %s: %w", ErrUpstream, kind, err),
		)
	}
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}
