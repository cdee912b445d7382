// Package geofence evaluates worker positions against configured boundaries.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"fleet-tracking/internal/geo"
	"fleet-tracking/internal/models"
)

// Evaluator checks one position against geofence boundaries.
//
// Implementations may be slow or fail; callers treat the result as advisory.
type Evaluator interface {
	Evaluate(ctx context.Context, workerID string, lat, lng float64) ([]models.GeofenceViolation, error)
}

// Boundary kinds.
const (
	KindRestricted  = "restricted"
	KindServiceArea = "service_area"
)

// Violation types reported in GeofenceViolation.ViolationType.
const (
	ViolationEnteredRestricted = "entered_restricted_area"
	ViolationLeftServiceArea   = "left_service_area"
)

var ErrInvalidBoundary = errors.New("invalid geofence boundary")

// Boundary is a circle (Center + RadiusMeters) or a polygon ring.
type Boundary struct {
	ID           string      `yaml:"id" validate:"required"`
	Name         string      `yaml:"name" validate:"required"`
	Kind         string      `yaml:"kind" validate:"required,oneof=restricted service_area"`
	Center       *geo.Point  `yaml:"center" validate:"omitempty"`
	RadiusMeters float64     `yaml:"radiusMeters" validate:"gte=0"`
	Polygon      []geo.Point `yaml:"polygon" validate:"omitempty,dive"`
}

func (b Boundary) checkShape() error {
	switch {
	case b.Center != nil && len(b.Polygon) > 0:
		return errors.New("both center and polygon set")
	case b.Center != nil && b.RadiusMeters <= 0:
		return errors.New("circle needs a positive radiusMeters")
	case b.Center == nil && len(b.Polygon) < 3:
		return errors.New("polygon needs at least 3 points")
	}
	return nil
}

// inside reports whether p lies within the boundary shape and the distance
// from p to its edge.
func (b Boundary) inside(p geo.Point) (bool, float64) {
	if b.Center != nil {
		d := geo.Distance(*b.Center, p)
		if d <= b.RadiusMeters {
			return true, b.RadiusMeters - d
		}
		return false, d - b.RadiusMeters
	}
	return geo.InPolygon(p, b.Polygon), geo.DistanceToRing(p, b.Polygon)
}

// File is the on-disk boundary configuration.
type File struct {
	Boundaries []Boundary `yaml:"boundaries" validate:"dive"`
}

// StaticEvaluator evaluates positions against an immutable boundary set.
type StaticEvaluator struct {
	boundaries []Boundary
}

var _ Evaluator = (*StaticEvaluator)(nil)

// NewStatic validates the boundaries and returns an evaluator over them.
func NewStatic(boundaries []Boundary) (*StaticEvaluator, error) {
	v := validator.New()
	seen := make(map[string]struct{}, len(boundaries))
	for i, b := range boundaries {
		if err := v.Struct(b); err != nil {
			return nil, fmt.Errorf("%w: boundary %d: %w", ErrInvalidBoundary, i, err)
		}
		if err := b.checkShape(); err != nil {
			return nil, fmt.Errorf("%w: boundary %q: %w", ErrInvalidBoundary, b.ID, err)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidBoundary, b.ID)
		}
		seen[b.ID] = struct{}{}
	}

	return &StaticEvaluator{boundaries: append([]Boundary(nil), boundaries...)}, nil
}

// LoadFile reads a YAML boundary file.
func LoadFile(path string) (*StaticEvaluator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geofence file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse geofence file: %w", err)
	}

	return NewStatic(f.Boundaries)
}

// Evaluate returns one violation per boundary the position breaks.
func (e *StaticEvaluator) Evaluate(ctx context.Context, _ string, lat, lng float64) ([]models.GeofenceViolation, error) {
	p := geo.Point{Lat: lat, Lng: lng}

	var violations []models.GeofenceViolation
	for _, b := range e.boundaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		in, dist := b.inside(p)
		switch {
		case b.Kind == KindRestricted && in:
			violations = append(violations, models.GeofenceViolation{
				BoundaryID:    b.ID,
				BoundaryName:  b.Name,
				ViolationType: ViolationEnteredRestricted,
				Distance:      dist,
			})
		case b.Kind == KindServiceArea && !in:
			violations = append(violations, models.GeofenceViolation{
				BoundaryID:    b.ID,
				BoundaryName:  b.Name,
				ViolationType: ViolationLeftServiceArea,
				Distance:      dist,
			})
		}
	}

	return violations, nil
}

// Len returns the number of configured boundaries.
func (e *StaticEvaluator) Len() int {
	return len(e.boundaries)
}

// Nop never reports a violation. Used when no boundary file is configured.
type Nop struct{}

func (Nop) Evaluate(context.Context, string, float64, float64) ([]models.GeofenceViolation, error) {
	return nil, nil
}
