package models

import "time"

// Position is a single accepted location fix for a worker.
type Position struct {
	WorkerID  string    `json:"workerId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidCoordinates reports whether lat/lng lie within WGS84 bounds.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// CurrentPosition stores the latest position of a worker, one row per worker.
type CurrentPosition struct {
	WorkerID  string  `gorm:"primaryKey;size:64"`
	Latitude  float64 `gorm:"not null"`
	Longitude float64 `gorm:"not null"`
	Accuracy  *float64
	Speed     *float64
	Heading   *float64
	Timestamp time.Time `gorm:"column:recorded_at;not null"`
	UpdatedAt time.Time
}

func (CurrentPosition) TableName() string {
	return "current_positions"
}

// PositionHistoryEntry is one append-only history row.
type PositionHistoryEntry struct {
	ID        uint    `gorm:"primaryKey"`
	WorkerID  string  `gorm:"index:idx_history_worker_time,priority:1;size:64;not null"`
	Latitude  float64 `gorm:"not null"`
	Longitude float64 `gorm:"not null"`
	Accuracy  *float64
	Speed     *float64
	Heading   *float64
	Timestamp time.Time `gorm:"column:recorded_at;index:idx_history_worker_time,priority:2;not null"`
}

func (PositionHistoryEntry) TableName() string {
	return "position_history"
}

func NewCurrentPosition(p Position) CurrentPosition {
	return CurrentPosition{
		WorkerID:  p.WorkerID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Accuracy:  p.Accuracy,
		Speed:     p.Speed,
		Heading:   p.Heading,
		Timestamp: p.Timestamp,
	}
}

func (c CurrentPosition) Position() Position {
	return Position{
		WorkerID:  c.WorkerID,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Accuracy:  c.Accuracy,
		Speed:     c.Speed,
		Heading:   c.Heading,
		Timestamp: c.Timestamp.UTC(),
	}
}

func NewPositionHistoryEntry(p Position) PositionHistoryEntry {
	return PositionHistoryEntry{
		WorkerID:  p.WorkerID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Accuracy:  p.Accuracy,
		Speed:     p.Speed,
		Heading:   p.Heading,
		Timestamp: p.Timestamp,
	}
}

func (h PositionHistoryEntry) Position() Position {
	return Position{
		WorkerID:  h.WorkerID,
		Latitude:  h.Latitude,
		Longitude: h.Longitude,
		Accuracy:  h.Accuracy,
		Speed:     h.Speed,
		Heading:   h.Heading,
		Timestamp: h.Timestamp.UTC(),
	}
}

// HistoryQuery selects history rows for one worker.
// Start and End are inclusive bounds; nil means unbounded.
type HistoryQuery struct {
	WorkerID string
	Start    *time.Time
	End      *time.Time
	Limit    int
}
