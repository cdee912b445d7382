package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleet-tracking/internal/models"
)

// activeOnly matches the predicate of idx_tracking_active_worker. It must be a
// literal so Postgres can infer the partial index as the conflict target.
var activeOnly = clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_active = true"}}}

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// UpsertActive inserts an active session for s.WorkerID, or replaces route,
// vehicle and start time of the one already active, in a single statement.
func (r *SessionRepository) UpsertActive(ctx context.Context, s models.TrackingSession) (models.TrackingSession, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.IsActive = true
	s.EndTime = nil

	var out models.TrackingSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "worker_id"}},
			TargetWhere: activeOnly,
			DoUpdates:   clause.AssignmentColumns([]string{"route_id", "vehicle_id", "start_time", "updated_at"}),
		}).Create(&s).Error
		if err != nil {
			return err
		}

		return tx.Where("worker_id = ? AND is_active = ?", s.WorkerID, true).First(&out).Error
	})
	if err != nil {
		return models.TrackingSession{}, err
	}

	return out.Normalize(), nil
}

// EndActive finalises the active session of workerID.
// Returns ErrNotFound when the worker has no active session.
func (r *SessionRepository) EndActive(ctx context.Context, workerID string, end time.Time) (models.TrackingSession, error) {
	var s models.TrackingSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("worker_id = ? AND is_active = ?", workerID, true).First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		// compare-and-set on is_active so a concurrent stop cannot end it twice
		res := tx.Model(&models.TrackingSession{}).
			Where("id = ? AND is_active = ?", s.ID, true).
			Updates(map[string]any{"is_active": false, "end_time": end, "updated_at": end})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		s.IsActive = false
		s.EndTime = &end
		return nil
	})
	if err != nil {
		return models.TrackingSession{}, err
	}

	return s.Normalize(), nil
}

func (r *SessionRepository) ListActive(ctx context.Context) ([]models.TrackingSession, error) {
	var rows []models.TrackingSession
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("start_time").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i] = rows[i].Normalize()
	}
	return rows, nil
}

// ForWorker returns every session of workerID, newest first.
func (r *SessionRepository) ForWorker(ctx context.Context, workerID string) ([]models.TrackingSession, error) {
	var rows []models.TrackingSession
	err := r.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("start_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i] = rows[i].Normalize()
	}
	return rows, nil
}
