package models

import "time"

// GeofenceViolation is produced per position update and never persisted.
type GeofenceViolation struct {
	BoundaryID    string  `json:"boundaryId"`
	BoundaryName  string  `json:"boundaryName"`
	ViolationType string  `json:"violationType"`
	Distance      float64 `json:"distance"`
}

// GeofenceAlert is the payload of a geofence-alert event.
type GeofenceAlert struct {
	GeofenceViolation
	WorkerID   string    `json:"workerId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DetectedAt time.Time `json:"detectedAt"`
}
