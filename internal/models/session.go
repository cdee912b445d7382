package models

import "time"

// TrackingSession is the interval during which a worker is expected to report.
// At most one row per worker has IsActive set; a partial unique index enforces it.
type TrackingSession struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	WorkerID  string     `gorm:"size:64;not null;uniqueIndex:idx_tracking_active_worker,where:is_active = true" json:"workerId"`
	RouteID   *string    `gorm:"size:64" json:"routeId,omitempty"`
	VehicleID *string    `gorm:"size:64" json:"vehicleId,omitempty"`
	StartTime time.Time  `gorm:"not null" json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	IsActive  bool       `gorm:"not null;index" json:"isActive"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
}

func (TrackingSession) TableName() string {
	return "tracking_sessions"
}

// Normalize returns a copy with times in UTC.
func (s TrackingSession) Normalize() TrackingSession {
	s.StartTime = s.StartTime.UTC()
	if s.EndTime != nil {
		end := s.EndTime.UTC()
		s.EndTime = &end
	}
	return s
}

// ActiveSession is an active TrackingSession with display fields filled in.
type ActiveSession struct {
	TrackingSession
	WorkerName  string `json:"workerName,omitempty"`
	RouteName   string `json:"routeName,omitempty"`
	VehicleName string `json:"vehicleName,omitempty"`
}
