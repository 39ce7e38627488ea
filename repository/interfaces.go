package repository

import (
	"context"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
)

// ModelRepositoryInterface defines the methods for model reference data
type ModelRepositoryInterface interface {
	Seed(ctx context.Context, names []string) error
	IDByName(ctx context.Context, name string) (uint, error)
	ListAll(ctx context.Context) ([]models.Model, error)
}

// PersonRepositoryInterface defines the methods for person data operations
type PersonRepositoryInterface interface {
	GetOrCreate(ctx context.Context, name string) (uint, error)
	GetByName(ctx context.Context, name string) (*models.Person, error)
}

// TestResultRepositoryInterface defines the methods for per-session test results
type TestResultRepositoryInterface interface {
	Create(ctx context.Context, test *models.RecognitionTest) error
	List(ctx context.Context, filter TestFilter) ([]models.RecognitionTest, error)
	ModelStats(ctx context.Context) ([]database.ModelStats, error)
}

// AggregateStatsRepositoryInterface defines the methods for cross-session aggregates
type AggregateStatsRepositoryInterface interface {
	Upsert(ctx context.Context, rows []models.ModelAggregateStats) error
	ListHistorical(ctx context.Context) ([]database.AggregateStats, error)
}

// FailureRepositoryInterface defines the methods for failure counters
type FailureRepositoryInterface interface {
	Increment(ctx context.Context, modelID uint) error
	ListAll(ctx context.Context) ([]database.FailureStats, error)
}

// TestFilter narrows List. Zero values mean no restriction; Limit defaults to 50.
type TestFilter struct {
	ModelName string
	Limit     int
}
