// Package metrics defines the counters the tracking subsystem reports.
package metrics

// Collector receives tracking subsystem measurements.
type Collector interface {
	// PositionAccepted counts an accepted position update.
	PositionAccepted()
	// PositionRejected counts a rejected update by reason (validation, not_found, store).
	PositionRejected(reason string)
	// SideEffectFailed counts a swallowed best-effort failure (history, geofence, publish).
	SideEffectFailed(kind string)
	// GeofenceViolations counts violations raised for one update.
	GeofenceViolations(n int)
	// SessionTransition counts tracking session starts and stops.
	SessionTransition(kind string)
	// EventPublished records one published event and how many subscribers got it.
	EventPublished(event string, delivered int)
	// EventDropped counts deliveries skipped because a subscriber buffer was full.
	EventDropped(event string)
	// Subscribers sets the number of connected subscribers.
	Subscribers(n int)
}

// Nop discards all measurements.
type Nop struct{}

var _ Collector = Nop{}

func NewNop() Nop { return Nop{} }

func (Nop) PositionAccepted()          {}
func (Nop) PositionRejected(string)    {}
func (Nop) SideEffectFailed(string)    {}
func (Nop) GeofenceViolations(int)     {}
func (Nop) SessionTransition(string)   {}
func (Nop) EventPublished(string, int) {}
func (Nop) EventDropped(string)        {}
func (Nop) Subscribers(int)            {}
