package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/repository"
)

const (
	aggregateCacheKey = "aggregate"
	maxTestsLimit     = 500
)

// StatsReader is the read side of the persistence layer.
type StatsReader interface {
	ListModels(ctx context.Context) ([]models.Model, error)
	GetModelStats(ctx context.Context) ([]database.ModelStats, error)
	GetHistoricalAggregateStats(ctx context.Context) ([]database.AggregateStats, error)
	GetFailureStats(ctx context.Context) ([]database.FailureStats, error)
	ListTestResults(ctx context.Context, filter repository.TestFilter) ([]models.RecognitionTest, error)
}

type StatsHandler struct {
	Store      StatsReader
	Thresholds recognition.Thresholds
	cache      *cache.Cache
}

// ModelResponse is a model with the minimum confidence a match needs.
type ModelResponse struct {
	ID            uint    `json:"model_id"`
	Name          string  `json:"model_name"`
	MinConfidence float64 `json:"min_confidence"`
}

// NewStatsHandler caches historical aggregates for ttl; they only change when a
// session finishes.
func NewStatsHandler(store StatsReader, thresholds recognition.Thresholds, ttl time.Duration) *StatsHandler {
	return &StatsHandler{
		Store:      store,
		Thresholds: thresholds,
		cache:      cache.New(ttl, 2*ttl),
	}
}

func (sh *StatsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	list, err := sh.Store.ListModels(r.Context())
	if err != nil {
		log.Printf("Error listing models: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve models")
		return
	}
	out := make([]ModelResponse, 0, len(list))
	for _, m := range list {
		resp := ModelResponse{ID: m.ID, Name: m.Name, MinConfidence: recognition.DefaultMinConfidence}
		if name, ok := recognition.ParseModel(m.Name); ok {
			resp.MinConfidence = sh.Thresholds.For(name)
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (sh *StatsHandler) ModelStats(w http.ResponseWriter, r *http.Request) {
	stats, err := sh.Store.GetModelStats(r.Context())
	if err != nil {
		log.Printf("Error computing model stats: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to compute model statistics")
		return
	}
	if stats == nil {
		stats = []database.ModelStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (sh *StatsHandler) AggregateStats(w http.ResponseWriter, r *http.Request) {
	if cached, ok := sh.cache.Get(aggregateCacheKey); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, cached)
		return
	}
	stats, err := sh.Store.GetHistoricalAggregateStats(r.Context())
	if err != nil {
		log.Printf("Error loading aggregate stats: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve aggregate statistics")
		return
	}
	if stats == nil {
		stats = []database.AggregateStats{}
	}
	sh.cache.SetDefault(aggregateCacheKey, stats)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, stats)
}

// InvalidateAggregates drops the cached aggregates, called after a session is saved.
func (sh *StatsHandler) InvalidateAggregates() {
	sh.cache.Delete(aggregateCacheKey)
}

func (sh *StatsHandler) FailureStats(w http.ResponseWriter, r *http.Request) {
	stats, err := sh.Store.GetFailureStats(r.Context())
	if err != nil {
		log.Printf("Error loading failure stats: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve failure statistics")
		return
	}
	if stats == nil {
		stats = []database.FailureStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListTests serves recent test rows. Query: model (name), limit (1..500).
func (sh *StatsHandler) ListTests(w http.ResponseWriter, r *http.Request) {
	filter := repository.TestFilter{}

	if raw := strings.TrimSpace(r.URL.Query().Get("model")); raw != "" {
		name, ok := recognition.ParseModel(raw)
		if !ok {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidParameter, "Unknown model: "+raw)
			return
		}
		filter.ModelName = string(name)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxTestsLimit {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidParameter, "limit must be between 1 and 500")
			return
		}
		filter.Limit = limit
	}

	tests, err := sh.Store.ListTestResults(r.Context(), filter)
	if err != nil {
		log.Printf("Error listing tests: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve tests")
		return
	}
	if tests == nil {
		tests = []models.RecognitionTest{}
	}
	writeJSON(w, http.StatusOK, tests)
}
