package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
)

const defaultTestListLimit = 50

// TestResultRepository handles the immutable per-session rows
type TestResultRepository struct {
	DB *gorm.DB
}

// NewTestResultRepository creates a new instance of TestResultRepository
func NewTestResultRepository(db *gorm.DB) *TestResultRepository {
	return &TestResultRepository{DB: db}
}

// Create inserts one test result
func (r *TestResultRepository) Create(ctx context.Context, test *models.RecognitionTest) error {
	if err := r.DB.WithContext(ctx).Omit("Model", "Person").Create(test).Error; err != nil {
		return fmt.Errorf("%w: failed to save test result for model %d: %w", ErrPersistence, test.ModelID, err)
	}
	return nil
}

// List returns the newest test results first, with model and person preloaded
func (r *TestResultRepository) List(ctx context.Context, filter TestFilter) ([]models.RecognitionTest, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTestListLimit
	}

	query := r.DB.WithContext(ctx).Preload("Model").Preload("Person")
	if filter.ModelName != "" {
		query = query.Joins("JOIN models ON models.model_id = recognition_tests.model_id").
			Where("models.model_name = ?", filter.ModelName)
	}

	var tests []models.RecognitionTest
	err := query.Order("recognition_tests.timestamp DESC").
		Order("recognition_tests.test_id DESC").
		Limit(limit).
		Find(&tests).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list test results: %w", ErrPersistence, err)
	}
	return tests, nil
}

// ModelStats averages the test results of each model
func (r *TestResultRepository) ModelStats(ctx context.Context) ([]database.ModelStats, error) {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	stats, err := database.GetModelStats(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return stats, nil
}
