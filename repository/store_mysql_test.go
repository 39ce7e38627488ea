//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/camden-git/facebench/database"
)

func newMySQLStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := mysql.Run(ctx, "mysql:8.0.36",
		mysql.WithDatabase("facebench"),
		mysql.WithUsername("facebench"),
		mysql.WithPassword("facebench"),
	)
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	db, err := database.InitGormDB("mysql", dsn, "silent")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := NewStore(db, testModels)
	require.NoError(t, store.InitSchema(ctx))
	return store
}

func TestMySQLUpserts(t *testing.T) {
	ctx := context.Background()
	store := newMySQLStore(t)

	require.NoError(t, store.InitSchema(ctx))
	models, err := store.ListModels(ctx)
	require.NoError(t, err)
	assert.Len(t, models, len(testModels))

	_, err = store.SaveTestResult(ctx, "Facenet", "alice", sessionStats(40, 0.7, 0.2))
	require.NoError(t, err)
	_, err = store.SaveTestResult(ctx, "Facenet", "alice", sessionStats(60, 0.9, 0.4))
	require.NoError(t, err)
	_, err = store.SaveAggregateStats(ctx)
	require.NoError(t, err)
	_, err = store.SaveAggregateStats(ctx)
	require.NoError(t, err)

	hist, err := store.GetHistoricalAggregateStats(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 2, hist[0].TotalTests)
	assert.InDelta(t, 50.0, hist[0].OverallRecognitionRate, 1e-9)
	assert.WithinDuration(t, time.Now(), hist[0].CalculationTimestamp, time.Minute)

	require.NoError(t, store.RecordFailure(ctx, "ArcFace"))
	require.NoError(t, store.RecordFailure(ctx, "ArcFace"))
	failures, err := store.GetFailureStats(ctx)
	require.NoError(t, err)
	for _, f := range failures {
		if f.ModelName == "ArcFace" {
			assert.EqualValues(t, 2, f.Count)
		}
	}
}
