package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/models"
	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/repository"
	"github.com/camden-git/facebench/workers"
)

type fakeStore struct {
	aggregateCalls int
	lastFilter     repository.TestFilter
	err            error
}

func (f *fakeStore) ListModels(context.Context) ([]models.Model, error) {
	return []models.Model{{ID: 1, Name: "ArcFace"}, {ID: 2, Name: "Facenet"}, {ID: 3, Name: "Dlib"}}, f.err
}

func (f *fakeStore) GetModelStats(context.Context) ([]database.ModelStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakeStore) GetHistoricalAggregateStats(context.Context) ([]database.AggregateStats, error) {
	f.aggregateCalls++
	return []database.AggregateStats{{ModelName: "ArcFace", TotalTests: 3, OverallRecognitionRate: 60}}, f.err
}

func (f *fakeStore) GetFailureStats(context.Context) ([]database.FailureStats, error) {
	return []database.FailureStats{{ModelName: "ArcFace", Count: 2}, {ModelName: "Facenet"}}, f.err
}

func (f *fakeStore) ListTestResults(_ context.Context, filter repository.TestFilter) ([]models.RecognitionTest, error) {
	f.lastFilter = filter
	return nil, f.err
}

func newTestRouter(store StatsReader, live *LiveHandler) http.Handler {
	return NewRouter(Routes{
		Stats: NewStatsHandler(store, recognition.DefaultThresholds(), time.Minute),
		Live:  live,
	})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListModelsIncludesThresholds(t *testing.T) {
	rec := get(t, newTestRouter(&fakeStore{}, nil), "/api/models")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []ModelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, 0.45, out[0].MinConfidence)
	assert.Equal(t, 0.65, out[1].MinConfidence)
	assert.Equal(t, 0.85, out[2].MinConfidence)
}

func TestModelStatsEmptyIsArray(t *testing.T) {
	rec := get(t, newTestRouter(&fakeStore{}, nil), "/api/stats/models")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAggregateStatsCached(t *testing.T) {
	store := &fakeStore{}
	stats := NewStatsHandler(store, nil, time.Minute)
	router := NewRouter(Routes{Stats: stats})

	first := get(t, router, "/api/stats/aggregate")
	second := get(t, router, "/api/stats/aggregate")

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, store.aggregateCalls)

	stats.InvalidateAggregates()
	get(t, router, "/api/stats/aggregate")
	assert.Equal(t, 2, store.aggregateCalls)
}

func TestFailureStats(t *testing.T) {
	rec := get(t, newTestRouter(&fakeStore{}, nil), "/api/stats/failures")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []database.FailureStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.EqualValues(t, 2, out[0].Count)
	assert.Zero(t, out[1].Count)
}

func TestListTestsParameters(t *testing.T) {
	store := &fakeStore{}
	router := newTestRouter(store, nil)

	rec := get(t, router, "/api/tests?model=arcface&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, repository.TestFilter{ModelName: "ArcFace", Limit: 10}, store.lastFilter)

	tests := []struct {
		name   string
		target string
	}{
		{"unknown model", "/api/tests?model=VGG-Face"},
		{"zero limit", "/api/tests?limit=0"},
		{"limit too large", "/api/tests?limit=501"},
		{"limit not a number", "/api/tests?limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, router, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp APIErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, CodeInvalidParameter, resp.Errors[0].Code)
			assert.Equal(t, "400", resp.Errors[0].Status)
		})
	}
}

func TestStoreErrorIs500(t *testing.T) {
	rec := get(t, newTestRouter(&fakeStore{err: errors.New("db down")}, nil), "/api/stats/failures")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type jpegFrame struct {
	closed *int
}

func (f jpegFrame) Clone() recognition.Frame { return f }
func (f jpegFrame) Empty() bool              { return false }

func (f jpegFrame) Close() error {
	*f.closed++
	return nil
}

func TestLiveFrame(t *testing.T) {
	closed := 0
	slot := &workers.FrameSlot{}
	live := &LiveHandler{
		Slot:   slot,
		Encode: func(recognition.Frame) ([]byte, error) { return []byte("jpeg"), nil },
	}
	router := newTestRouter(&fakeStore{}, live)

	rec := get(t, router, "/api/live/frame.jpg")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	slot.Publish(jpegFrame{closed: &closed})
	rec = get(t, router, "/api/live/frame.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Frame-Seq"))
	assert.Equal(t, "jpeg", rec.Body.String())
	assert.Equal(t, 1, closed, "served copy is released")
}

func TestLiveFrameWithoutSession(t *testing.T) {
	rec := get(t, newTestRouter(&fakeStore{}, nil), "/api/live/frame.jpg")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
