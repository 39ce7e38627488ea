package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/session"
)

func sampleStats() session.Stats {
	return session.Stats{
		Model:                  recognition.ArcFace,
		TotalAttempts:          4,
		SuccessfulRecognitions: 3,
		AvgConfidence:          0.8123,
		AvgProcessingTime:      0.21449,
		AvgRecognitionRate:     75,
		LastIdentified:         "alice",
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 3, 7, 9, 5, 2, 0, time.Local)
	assert.Equal(t, "face_records_20250307_090502.csv", FileName(ts))
}

func TestWriteCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	ts := time.Date(2025, 3, 7, 9, 5, 2, 0, time.Local)

	path, err := WriteCSV(dir, "alice", sampleStats(), ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "face_records_20250307_090502.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"2025-03-07 09:05:02", "alice", "ArcFace", "81.23%", "0.214", "75.0%"}, records[1])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is cleaned up")
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, sampleStats())

	out := buf.String()
	assert.Contains(t, out, "Model: ArcFace")
	assert.Contains(t, out, "Total Attempts: 4")
	assert.Contains(t, out, "Successful Recognitions: 3")
	assert.Contains(t, out, "Average Recognition Rate: 75.0%")
	assert.Contains(t, out, "Average Processing Time: 0.214 seconds")
	assert.Contains(t, out, "Average Confidence: 81.23%")
	assert.NotContains(t, out, "False Positives")
	assert.NotContains(t, out, "Session Length", "no length before the session ended")
}

func TestWriteSummarySessionLength(t *testing.T) {
	stats := sampleStats()
	stats.StartedAt = time.Date(2025, 3, 7, 9, 5, 2, 0, time.UTC)
	stats.EndedAt = stats.StartedAt.Add(15*time.Second + 240*time.Millisecond)

	var buf bytes.Buffer
	WriteSummary(&buf, stats)
	assert.Contains(t, buf.String(), "Session Length: 15.2s")
}

func TestWriteSummaryNothingRecognized(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, session.Stats{Model: recognition.Dlib, TotalAttempts: 2, NoFaceFrames: 5})
	assert.Contains(t, buf.String(), "No known faces were recognized (2 attempts, 5 frames without a face)")
}
