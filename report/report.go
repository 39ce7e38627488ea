// Package report writes session results for people: a one-row CSV per successful
// session and the console summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/camden-git/facebench/session"
)

var csvHeader = []string{
	"Time",
	"Name",
	"Model",
	"Average_Confidence",
	"Average_Recognition_Time_Seconds",
	"Average_Recognition_Rate_Percent",
}

// FileName is the export name for a session finished at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("face_records_%s.csv", t.Format("20060102_150405"))
}

// Row formats the stats the way the export presents them.
func Row(name string, stats session.Stats, t time.Time) []string {
	return []string{
		t.Format(time.DateTime),
		name,
		string(stats.Model),
		fmt.Sprintf("%.2f%%", stats.AvgConfidence*100),
		fmt.Sprintf("%.3f", stats.AvgProcessingTime),
		fmt.Sprintf("%.1f%%", stats.AvgRecognitionRate),
	}
}

// WriteCSV exports one session into dir and returns the file path. The file is
// written under a temporary name and renamed once complete.
func WriteCSV(dir, name string, stats session.Stats, t time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to ensure report directory '%s': %w", dir, err)
	}

	finalPath := filepath.Join(dir, FileName(t))
	tmp, err := os.CreateTemp(dir, ".face_records_*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create report file in '%s': %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	w.Write(csvHeader)
	w.Write(Row(name, stats, t))
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write report '%s': %w", finalPath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close report '%s': %w", finalPath, err)
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", fmt.Errorf("failed to move report into place '%s': %w", finalPath, err)
	}

	log.Printf("report: saved %s", finalPath)
	return finalPath, nil
}

// WriteSummary prints the end-of-session summary.
func WriteSummary(w io.Writer, stats session.Stats) {
	if stats.SuccessfulRecognitions == 0 {
		fmt.Fprintf(w, "\nNo known faces were recognized (%d attempts, %d frames without a face)\n",
			stats.TotalAttempts, stats.NoFaceFrames)
		return
	}
	fmt.Fprintf(w, "\nModel: %s\n", stats.Model)
	if stats.LastIdentified != "" {
		fmt.Fprintf(w, "Last Identified: %s\n", stats.LastIdentified)
	}
	fmt.Fprintf(w, "Total Attempts: %d\n", stats.TotalAttempts)
	fmt.Fprintf(w, "Successful Recognitions: %d\n", stats.SuccessfulRecognitions)
	if stats.FalsePositives > 0 {
		fmt.Fprintf(w, "False Positives: %d\n", stats.FalsePositives)
	}
	fmt.Fprintf(w, "Average Recognition Rate: %.1f%%\n", stats.AvgRecognitionRate)
	fmt.Fprintf(w, "Average Processing Time: %.3f seconds\n", stats.AvgProcessingTime)
	fmt.Fprintf(w, "Average Confidence: %.2f%%\n", stats.AvgConfidence*100)
	if d := stats.Duration(); d > 0 {
		fmt.Fprintf(w, "Session Length: %s\n", d.Round(100*time.Millisecond))
	}
	if stats.FramesDropped > 0 {
		fmt.Fprintf(w, "Frames Skipped While Busy: %d of %d\n", stats.FramesDropped, stats.FramesSampled)
	}
}
