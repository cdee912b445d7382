package geofence

import (
	"context"
	"fmt"
	"time"

	"fleet-tracking/internal/models"
)

type timeoutEvaluator struct {
	next    Evaluator
	timeout time.Duration
}

// WithTimeout bounds every Evaluate call on next to d.
//
// The wrapped call runs in its own goroutine so an evaluator that ignores
// its context still cannot hold the caller past the deadline.
func WithTimeout(next Evaluator, d time.Duration) Evaluator {
	if d <= 0 {
		return next
	}
	return &timeoutEvaluator{next: next, timeout: d}
}

type evalResult struct {
	violations []models.GeofenceViolation
	err        error
}

func (t *timeoutEvaluator) Evaluate(ctx context.Context, workerID string, lat, lng float64) ([]models.GeofenceViolation, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evalResult{err: fmt.Errorf("geofence evaluator panicked: %v", r)}
			}
		}()
		v, err := t.next.Evaluate(ctx, workerID, lat, lng)
		done <- evalResult{violations: v, err: err}
	}()

	select {
	case r := <-done:
		return r.violations, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
