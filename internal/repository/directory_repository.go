package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fleet-tracking/internal/models"
)

// DirectoryRepository reads worker, route and vehicle records owned by
// other services. The tracking subsystem never writes them.
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) Worker(ctx context.Context, id string) (models.Worker, error) {
	var w models.Worker
	err := first(r.db.WithContext(ctx).Where("id = ?", id), &w)
	return w, err
}

func (r *DirectoryRepository) WorkerByToken(ctx context.Context, token string) (models.Worker, error) {
	var w models.Worker
	if token == "" {
		return w, ErrNotFound
	}
	err := first(r.db.WithContext(ctx).Where("api_token = ?", token), &w)
	return w, err
}

func (r *DirectoryRepository) Route(ctx context.Context, id string) (models.Route, error) {
	var route models.Route
	err := first(r.db.WithContext(ctx).Where("id = ?", id), &route)
	return route, err
}

func (r *DirectoryRepository) Vehicle(ctx context.Context, id string) (models.Vehicle, error) {
	var v models.Vehicle
	err := first(r.db.WithContext(ctx).Where("id = ?", id), &v)
	return v, err
}

func first(tx *gorm.DB, dest any) error {
	err := tx.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
