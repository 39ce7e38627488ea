package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
)

// AggregateStatsRepository handles the one-row-per-model aggregate table
type AggregateStatsRepository struct {
	DB *gorm.DB
}

// NewAggregateStatsRepository creates a new instance of AggregateStatsRepository
func NewAggregateStatsRepository(db *gorm.DB) *AggregateStatsRepository {
	return &AggregateStatsRepository{DB: db}
}

// Upsert writes the rows keyed by model_id, replacing every stored value.
func (r *AggregateStatsRepository) Upsert(ctx context.Context, rows []models.ModelAggregateStats) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.DB.WithContext(ctx).
		Omit("Model").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "model_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"calculation_timestamp",
				"total_tests",
				"overall_recognition_rate",
				"overall_processing_time",
				"overall_confidence",
			}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("%w: failed to upsert aggregate stats: %w", ErrPersistence, err)
	}
	return nil
}

// ListHistorical returns the stored aggregates with model names
func (r *AggregateStatsRepository) ListHistorical(ctx context.Context) ([]database.AggregateStats, error) {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	stats, err := database.GetHistoricalAggregateStats(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return stats, nil
}
