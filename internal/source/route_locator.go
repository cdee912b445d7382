package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleet-tracking/internal/geo"
)

// RouteLocator replays a fixed list of waypoints, one per Locate call.
// It wraps around to the first waypoint when Loop is set and otherwise
// keeps returning the last one.
type RouteLocator struct {
	waypoints []geo.Point
	loop      bool
	accuracy  float64
	now       func() time.Time

	mu   sync.Mutex
	next int
}

func NewRouteLocator(waypoints []geo.Point, loop bool) *RouteLocator {
	return &RouteLocator{
		waypoints: append([]geo.Point(nil), waypoints...),
		loop:      loop,
		accuracy:  5,
		now:       time.Now,
	}
}

func (r *RouteLocator) Locate(ctx context.Context, highAccuracy bool) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	if len(r.waypoints) == 0 {
		return Fix{}, fmt.Errorf("empty route: %w", ErrPositionUnavailable)
	}

	r.mu.Lock()
	i := r.next
	if r.next < len(r.waypoints)-1 {
		r.next++
	} else if r.loop {
		r.next = 0
	}
	r.mu.Unlock()

	accuracy := r.accuracy
	if !highAccuracy {
		accuracy *= 10
	}

	p := r.waypoints[i]
	fix := Fix{
		Latitude:  p.Lat,
		Longitude: p.Lng,
		Accuracy:  &accuracy,
		Time:      r.now().UTC(),
	}
	if i > 0 {
		heading := geo.Bearing(r.waypoints[i-1], p)
		fix.Heading = &heading
	}
	return fix, nil
}
