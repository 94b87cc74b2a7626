// Package csvlog appends per-frame session history to CSV files, one file
// per monitoring session.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"drowsydetect/internal/models"
)

var header = []string{"timestamp", "ear_value", "mar_value", "eyes_closed", "mouth_open", "alert"}

type Writer struct {
	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
	path string
}

// NewWriter creates session_<id>_<start>.csv under dir and writes the
// header row.
func NewWriter(dir string, sessionID int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create csv log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("session_%d_%s.csv", sessionID, time.Now().Format("20060102_150405")))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv log: %w", err)
	}

	w := &Writer{file: file, csv: csv.NewWriter(file), path: path}
	if err := w.csv.Write(header); err != nil {
		file.Close()
		return nil, err
	}
	w.csv.Flush()
	return w, w.csv.Error()
}

func (w *Writer) Path() string {
	return w.path
}

// Append writes one assessment row and flushes so the file stays usable if
// the process dies mid-session.
func (w *Writer) Append(a models.FrameAssessment) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	record := []string{
		time.UnixMilli(a.Timestamp).UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(a.EAR, 'f', 4, 64),
		strconv.FormatFloat(a.MAR, 'f', 4, 64),
		strconv.FormatBool(a.EyesClosed),
		strconv.FormatBool(a.MouthOpen),
		strconv.FormatBool(a.Alert),
	}
	if err := w.csv.Write(record); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
