package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"datamedic/internal/checks"
)

// FileSink writes the aggregated result set to a file on Close, as either an
// indented JSON array or a CSV report.
type FileSink struct {
	path    string
	format  string
	file    *os.File
	mu      sync.Mutex
	results []checks.Result
}

func NewFileSink(path, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}

	if format == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".json":
			format = "json"
		case ".csv":
			format = "csv"
		default:
			return nil, fmt.Errorf("cannot infer output format from file extension %q", ext)
		}
	}
	if format != "json" && format != "csv" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &FileSink{path: path, format: format, file: f}, nil
}

func (s *FileSink) Write(res checks.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch s.format {
	case "json":
		encoder := json.NewEncoder(s.file)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(s.results)
	case "csv":
		err = s.writeCSV()
	}

	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (s *FileSink) writeCSV() error {
	return writeCSVTo(s.file, s.results)
}

func writeCSVTo(out io.Writer, results []checks.Result) error {
	w := csv.NewWriter(out)
	header := []string{
		"check", "status", "total_tested", "failed_records", "failure_rate",
		"execution_time_seconds", "started_at", "completed_at", "error_message",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, res := range results {
		execTime := ""
		if res.ExecutionTime != nil {
			execTime = strconv.FormatFloat(*res.ExecutionTime, 'f', 3, 64)
		}
		row := []string{
			res.Name,
			string(res.Status),
			strconv.Itoa(res.TotalTested),
			strconv.Itoa(res.FailedRecords),
			strconv.FormatFloat(res.FailureRate, 'f', 2, 64),
			execTime,
			formatTimestamp(res.StartedAt),
			formatTimestamp(res.CompletedAt),
			res.ErrorMessage,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
