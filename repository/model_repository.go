package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
)

// ModelRepository handles the models reference table. Name lookups are cached,
// model rows never change after seeding.
type ModelRepository struct {
	DB    *gorm.DB
	cache *cache.Cache
}

// NewModelRepository creates a new instance of ModelRepository
func NewModelRepository(db *gorm.DB) *ModelRepository {
	// no janitor goroutine; entries are tiny and never go stale
	return &ModelRepository{DB: db, cache: cache.New(time.Hour, 0)}
}

// Seed inserts the given names, keeping rows that already exist.
func (r *ModelRepository) Seed(ctx context.Context, names []string) error {
	if err := database.SeedModels(ctx, r.DB, names); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// IDByName returns the id of the named model or ErrUnknownModel.
func (r *ModelRepository) IDByName(ctx context.Context, name string) (uint, error) {
	if id, ok := r.cache.Get(name); ok {
		return id.(uint), nil
	}

	var model models.Model
	err := r.DB.WithContext(ctx).Where("model_name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownModel, name)
		}
		return 0, fmt.Errorf("%w: failed to get model %s: %w", ErrPersistence, name, err)
	}

	r.cache.SetDefault(name, model.ID)
	return model.ID, nil
}

// ListAll retrieves all models ordered by name
func (r *ModelRepository) ListAll(ctx context.Context) ([]models.Model, error) {
	var list []models.Model
	if err := r.DB.WithContext(ctx).Order("model_name ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to list models: %w", ErrPersistence, err)
	}
	return list, nil
}
