package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleet-tracking/internal/models"
)

// History limits.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// NormalizeLimit applies the default and cap to a history limit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// SetCurrent overwrites the worker's current position row.
func (r *PositionRepository) SetCurrent(ctx context.Context, p models.Position) error {
	row := models.NewCurrentPosition(p)

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "worker_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"latitude", "longitude", "accuracy", "speed", "heading", "recorded_at", "updated_at",
		}),
	}).Create(&row).Error
}

func (r *PositionRepository) Current(ctx context.Context, workerID string) (models.Position, error) {
	var row models.CurrentPosition
	err := r.db.WithContext(ctx).Where("worker_id = ?", workerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Position{}, ErrNotFound
	}
	if err != nil {
		return models.Position{}, err
	}

	return row.Position(), nil
}

func (r *PositionRepository) AllCurrent(ctx context.Context) ([]models.Position, error) {
	var rows []models.CurrentPosition
	if err := r.db.WithContext(ctx).Order("worker_id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]models.Position, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Position())
	}
	return out, nil
}

func (r *PositionRepository) AppendHistory(ctx context.Context, p models.Position) error {
	row := models.NewPositionHistoryEntry(p)
	return r.db.WithContext(ctx).Create(&row).Error
}

// History returns the newest entries first, bounded by q.Limit.
func (r *PositionRepository) History(ctx context.Context, q models.HistoryQuery) ([]models.Position, error) {
	tx := r.db.WithContext(ctx).Where("worker_id = ?", q.WorkerID)
	if q.Start != nil {
		tx = tx.Where("recorded_at >= ?", q.Start.UTC())
	}
	if q.End != nil {
		tx = tx.Where("recorded_at <= ?", q.End.UTC())
	}

	var rows []models.PositionHistoryEntry
	err := tx.Order("recorded_at DESC").Order("id DESC").
		Limit(NormalizeLimit(q.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.Position, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Position())
	}
	return out, nil
}
