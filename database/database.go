package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ? placeholders work for both sqlite and mysql
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ModelStats is the per-model average over recognition_tests.
type ModelStats struct {
	ModelID            uint    `json:"model_id"`
	ModelName          string  `json:"model_name"`
	TotalTests         int     `json:"total_tests"`
	AvgRecognitionRate float64 `json:"avg_recognition_rate"`
	AvgProcessingTime  float64 `json:"avg_processing_time"`
	AvgConfidence      float64 `json:"avg_confidence"`
}

// FailureStats is the failure counter of one model; models that never failed
// report zero.
type FailureStats struct {
	ModelName   string     `json:"model_name"`
	Count       int64      `json:"count"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// AggregateStats is a persisted model_aggregate_stats row joined with its model name.
type AggregateStats struct {
	ModelName              string    `json:"model_name"`
	CalculationTimestamp   time.Time `json:"calculation_timestamp"`
	TotalTests             int       `json:"total_tests"`
	OverallRecognitionRate float64   `json:"overall_recognition_rate"`
	OverallProcessingTime  float64   `json:"overall_processing_time"`
	OverallConfidence      float64   `json:"overall_confidence"`
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// GetModelStats groups recognition_tests by model and averages the session stats.
// Models without tests are not returned.
func GetModelStats(ctx context.Context, db Querier) ([]ModelStats, error) {
	queryBuilder := psql.Select(
		"m.model_id",
		"m.model_name",
		"COUNT(rt.test_id)",
		"AVG(rt.avg_recognition_rate)",
		"AVG(rt.avg_processing_time)",
		"AVG(rt.avg_confidence)",
	).
		From("recognition_tests rt").
		Join("models m ON rt.model_id = m.model_id").
		GroupBy("m.model_id", "m.model_name").
		OrderBy("m.model_name ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetModelStats: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query model stats: %w", err)
	}
	defer rows.Close()

	var stats []ModelStats
	for rows.Next() {
		var s ModelStats
		if err := rows.Scan(&s.ModelID, &s.ModelName, &s.TotalTests, &s.AvgRecognitionRate, &s.AvgProcessingTime, &s.AvgConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan model stats row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model stats rows: %w", err)
	}
	return stats, nil
}

// GetFailureStats lists every model with its failure count.
func GetFailureStats(ctx context.Context, db Querier) ([]FailureStats, error) {
	queryBuilder := psql.Select("m.model_name", "COALESCE(ft.count, 0)", "ft.last_updated").
		From("models m").
		LeftJoin("failed_tests ft ON m.model_id = ft.model_id").
		OrderBy("m.model_name ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetFailureStats: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failure stats: %w", err)
	}
	defer rows.Close()

	var stats []FailureStats
	for rows.Next() {
		var s FailureStats
		var lastUpdated sql.NullTime
		if err := rows.Scan(&s.ModelName, &s.Count, &lastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan failure stats row: %w", err)
		}
		if lastUpdated.Valid {
			t := lastUpdated.Time
			s.LastUpdated = &t
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failure stats rows: %w", err)
	}
	return stats, nil
}

// GetHistoricalAggregateStats returns the stored aggregates joined with model names.
func GetHistoricalAggregateStats(ctx context.Context, db Querier) ([]AggregateStats, error) {
	queryBuilder := psql.Select(
		"m.model_name",
		"s.calculation_timestamp",
		"s.total_tests",
		"s.overall_recognition_rate",
		"s.overall_processing_time",
		"s.overall_confidence",
	).
		From("model_aggregate_stats s").
		Join("models m ON s.model_id = m.model_id").
		OrderBy("m.model_name ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetHistoricalAggregateStats: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregate stats: %w", err)
	}
	defer rows.Close()

	var stats []AggregateStats
	for rows.Next() {
		var s AggregateStats
		if err := rows.Scan(&s.ModelName, &s.CalculationTimestamp, &s.TotalTests, &s.OverallRecognitionRate, &s.OverallProcessingTime, &s.OverallConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate stats row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate stats rows: %w", err)
	}
	return stats, nil
}
