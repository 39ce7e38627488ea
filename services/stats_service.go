package services

import (
	"context"
	"fmt"
	"log"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
	"github.com/camden-git/facebench/session"
)

// Outcome is how a finished session counts in the persisted statistics.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNoRecognition
	OutcomeMisidentification
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoRecognition:
		return "no_recognition"
	case OutcomeMisidentification:
		return "misidentification"
	default:
		return "unknown"
	}
}

// MarshalText makes outcomes readable in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// StatsStore is the part of repository.Store the aggregator writes through.
type StatsStore interface {
	SaveTestResult(ctx context.Context, model, person string, stats session.Stats) (*models.RecognitionTest, error)
	SaveAggregateStats(ctx context.Context) ([]database.ModelStats, error)
	RecordFailure(ctx context.Context, model string) error
}

// FinalizeResult describes what Finalize decided and wrote.
type FinalizeResult struct {
	Outcome    Outcome                 `json:"outcome"`
	Person     string                  `json:"person,omitempty"`
	Stats      session.Stats           `json:"stats"`
	Test       *models.RecognitionTest `json:"test,omitempty"`
	Aggregates []database.ModelStats   `json:"aggregates,omitempty"`
}

// StatsService turns finished sessions into durable statistics.
type StatsService struct {
	store StatsStore
}

// NewStatsService creates a new stats service
func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

// Classify decides how a session counts without touching storage. A session with
// no successful recognition is a no-recognition failure. In verification mode a
// session whose last identified person is not the expected one is a
// misidentification, even if it had successes.
func Classify(stats session.Stats) Outcome {
	if stats.SuccessfulRecognitions == 0 {
		return OutcomeNoRecognition
	}
	if stats.Expected != "" && stats.LastIdentified != stats.Expected {
		return OutcomeMisidentification
	}
	return OutcomeSuccess
}

// Finalize persists one session. A success writes exactly one test result for the
// last identified person and then recomputes the aggregates of every model;
// anything else increments the model's failure counter. The returned result is
// filled in as far as it got, also when an error is returned.
func (s *StatsService) Finalize(ctx context.Context, stats session.Stats) (FinalizeResult, error) {
	res := FinalizeResult{Outcome: Classify(stats), Stats: stats}
	model := string(stats.Model)

	if res.Outcome != OutcomeSuccess {
		log.Printf("stats: session %s for %s finalized as %s (attempts=%d, successes=%d, last=%q, expected=%q)",
			stats.SessionID, model, res.Outcome, stats.TotalAttempts, stats.SuccessfulRecognitions, stats.LastIdentified, stats.Expected)
		if err := s.store.RecordFailure(ctx, model); err != nil {
			return res, fmt.Errorf("failed to record %s for %s: %w", res.Outcome, model, err)
		}
		return res, nil
	}

	res.Person = stats.LastIdentified
	test, err := s.store.SaveTestResult(ctx, model, res.Person, stats)
	if err != nil {
		return res, fmt.Errorf("failed to save test result: %w", err)
	}
	res.Test = test

	aggregates, err := s.store.SaveAggregateStats(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to update aggregate stats: %w", err)
	}
	res.Aggregates = aggregates
	return res, nil
}
