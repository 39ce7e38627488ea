package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
)

// FailureRepository handles the per-model failure counters
type FailureRepository struct {
	DB *gorm.DB
}

// NewFailureRepository creates a new instance of FailureRepository
func NewFailureRepository(db *gorm.DB) *FailureRepository {
	return &FailureRepository{DB: db}
}

// Increment adds one to the model's counter, creating it at 1.
func (r *FailureRepository) Increment(ctx context.Context, modelID uint) error {
	row := models.FailedTest{ModelID: modelID, Count: 1, LastUpdated: time.Now()}
	err := r.DB.WithContext(ctx).
		Omit("Model").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "model_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":        gorm.Expr("failed_tests.count + 1"),
				"last_updated": row.LastUpdated,
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: failed to record failure for model %d: %w", ErrPersistence, modelID, err)
	}
	return nil
}

// ListAll returns every model's counter, zero for models that never failed
func (r *FailureRepository) ListAll(ctx context.Context) ([]database.FailureStats, error) {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	stats, err := database.GetFailureStats(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return stats, nil
}
