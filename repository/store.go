package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
	"github.com/camden-git/facebench/session"
)

// Store is the persistence entry point used by the aggregator, the CLI and the
// HTTP API. Every write is keyed by a natural unique column, so repeating init or
// a failure record never duplicates rows.
type Store struct {
	DB          *gorm.DB
	Models      ModelRepositoryInterface
	People      PersonRepositoryInterface
	Tests       TestResultRepositoryInterface
	Aggregates  AggregateStatsRepositoryInterface
	Failures    FailureRepositoryInterface
	now         func() time.Time
	seededNames []string
}

// NewStore wires the gorm repositories. modelNames are seeded by InitSchema.
func NewStore(db *gorm.DB, modelNames []string) *Store {
	return &Store{
		DB:          db,
		Models:      NewModelRepository(db),
		People:      NewPersonRepository(db),
		Tests:       NewTestResultRepository(db),
		Aggregates:  NewAggregateStatsRepository(db),
		Failures:    NewFailureRepository(db),
		now:         time.Now,
		seededNames: modelNames,
	}
}

// InitSchema creates missing tables and seeds the model rows. Safe to repeat.
func (s *Store) InitSchema(ctx context.Context) error {
	if err := database.AutoMigrateModels(s.DB.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return s.Models.Seed(ctx, s.seededNames)
}

// GetOrCreatePerson returns the person id for name.
func (s *Store) GetOrCreatePerson(ctx context.Context, name string) (uint, error) {
	return s.People.GetOrCreate(ctx, name)
}

// SaveTestResult stores the summary of a successful session for model and person.
func (s *Store) SaveTestResult(ctx context.Context, model, person string, stats session.Stats) (*models.RecognitionTest, error) {
	modelID, err := s.Models.IDByName(ctx, model)
	if err != nil {
		return nil, err
	}
	personID, err := s.GetOrCreatePerson(ctx, person)
	if err != nil {
		return nil, err
	}

	ts := stats.EndedAt
	if ts.IsZero() {
		ts = s.now()
	}
	test := &models.RecognitionTest{
		ModelID:                modelID,
		PersonID:               personID,
		Timestamp:              ts,
		TotalAttempts:          stats.TotalAttempts,
		SuccessfulRecognitions: stats.SuccessfulRecognitions,
		AvgConfidence:          stats.AvgConfidence,
		AvgProcessingTime:      stats.AvgProcessingTime,
		AvgRecognitionRate:     stats.AvgRecognitionRate,
	}
	if err := s.Tests.Create(ctx, test); err != nil {
		return nil, err
	}
	log.Printf("stats: saved test %d (model=%s person=%s rate=%.2f%%)", test.ID, model, person, test.AvgRecognitionRate)
	return test, nil
}

// GetModelStats averages every stored test result per model.
func (s *Store) GetModelStats(ctx context.Context) ([]database.ModelStats, error) {
	return s.Tests.ModelStats(ctx)
}

// SaveAggregateStats recomputes the aggregates of every model from the full test
// history and upserts them. It returns the stats it wrote.
func (s *Store) SaveAggregateStats(ctx context.Context) ([]database.ModelStats, error) {
	stats, err := s.GetModelStats(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]models.ModelAggregateStats, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, models.ModelAggregateStats{
			ModelID:                st.ModelID,
			CalculationTimestamp:   now,
			TotalTests:             st.TotalTests,
			OverallRecognitionRate: st.AvgRecognitionRate,
			OverallProcessingTime:  st.AvgProcessingTime,
			OverallConfidence:      st.AvgConfidence,
		})
	}
	if err := s.Aggregates.Upsert(ctx, rows); err != nil {
		return nil, err
	}
	return stats, nil
}

// RecordFailure increments the failure counter of model.
func (s *Store) RecordFailure(ctx context.Context, model string) error {
	modelID, err := s.Models.IDByName(ctx, model)
	if err != nil {
		return err
	}
	if err := s.Failures.Increment(ctx, modelID); err != nil {
		return err
	}
	log.Printf("stats: recorded failure for model %s", model)
	return nil
}

// GetFailureStats lists the failure counter of every model.
func (s *Store) GetFailureStats(ctx context.Context) ([]database.FailureStats, error) {
	return s.Failures.ListAll(ctx)
}

// GetHistoricalAggregateStats lists the stored aggregates.
func (s *Store) GetHistoricalAggregateStats(ctx context.Context) ([]database.AggregateStats, error) {
	return s.Aggregates.ListHistorical(ctx)
}

// ListTestResults lists recent session rows.
func (s *Store) ListTestResults(ctx context.Context, filter TestFilter) ([]models.RecognitionTest, error) {
	return s.Tests.List(ctx, filter)
}

// ListModels lists the seeded models.
func (s *Store) ListModels(ctx context.Context) ([]models.Model, error) {
	return s.Models.ListAll(ctx)
}
