package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"datamedic/internal/checks"
	"datamedic/internal/engine"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	passColor  = color.New(color.FgGreen, color.Bold)
	failColor  = color.New(color.FgRed, color.Bold)
	errColor   = color.New(color.FgYellow, color.Bold)
	skipColor  = color.New(color.FgCyan)
	faintColor = color.New(color.Faint)
)

// ConsoleSink buffers results and renders them on Close as a human-readable
// table, an indented JSON array, or CSV rows.
type ConsoleSink struct {
	writer  io.Writer
	format  string // "table", "json" or "csv"
	mu      sync.Mutex
	results []checks.Result
}

func NewConsoleSink(w io.Writer, format string) (*ConsoleSink, error) {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "table"
	}
	switch format {
	case "table", "json", "csv":
	default:
		return nil, fmt.Errorf("unsupported console format: %s", format)
	}
	return &ConsoleSink{writer: w, format: format}, nil
}

func (s *ConsoleSink) Write(res checks.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(s.results)
	case "csv":
		return writeCSVTo(s.writer, s.results)
	}
	return s.renderTable()
}

func (s *ConsoleSink) renderTable() error {
	w := s.writer

	nameWidth := len("CHECK")
	for _, res := range s.results {
		if len(res.Name) > nameWidth {
			nameWidth = len(res.Name)
		}
	}

	fmt.Fprintf(w, "\n%-*s  %-8s  %12s  %12s  %8s  %10s\n",
		nameWidth, "CHECK", "STATUS", "TESTED", "FAILED", "RATE", "TIME")
	fmt.Fprintln(w, strings.Repeat("-", nameWidth+60))

	for _, res := range s.results {
		fmt.Fprintf(w, "%-*s  %-8s  %12s  %12s  %7.1f%%  %10s\n",
			nameWidth, res.Name,
			statusLabel(res.Status),
			humanize.Comma(int64(res.TotalTested)),
			humanize.Comma(int64(res.FailedRecords)),
			res.FailureRate,
			formatDuration(res.ExecutionTime))
	}

	for _, res := range s.results {
		if res.FailureDetails != "" {
			fmt.Fprintf(w, "\n%s details:\n%s\n", res.Name, indent(res.FailureDetails, "  "))
		}
		if res.ErrorMessage != "" {
			fmt.Fprintf(w, "\n%s error: %s\n", res.Name, res.ErrorMessage)
		}
	}

	s.renderSummary(w)
	return nil
}

func (s *ConsoleSink) renderSummary(w io.Writer) {
	summary := engine.Summarize(s.results)

	totalTested := int64(0)
	for _, res := range s.results {
		totalTested += int64(res.TotalTested)
	}

	fmt.Fprintf(w, "\nRan %d checks covering %s data tests: ", summary.Total, humanize.Comma(totalTested))
	parts := []string{passColor.Sprintf("%d passed", summary.Passed)}
	if summary.Failed > 0 {
		parts = append(parts, failColor.Sprintf("%d failed", summary.Failed))
	}
	if summary.Errors > 0 {
		parts = append(parts, errColor.Sprintf("%d errored", summary.Errors))
	}
	if summary.Skipped > 0 {
		parts = append(parts, skipColor.Sprintf("%d skipped", summary.Skipped))
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
}

func statusLabel(st checks.Status) string {
	switch st {
	case checks.StatusPassed:
		return passColor.Sprint("PASSED")
	case checks.StatusFailed:
		return failColor.Sprint("FAILED")
	case checks.StatusError:
		return errColor.Sprint("ERROR")
	case checks.StatusSkipped:
		return skipColor.Sprint("SKIPPED")
	default:
		return strings.ToUpper(string(st))
	}
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return faintColor.Sprint("-")
	}
	if *seconds < 1 {
		return fmt.Sprintf("%.0fms", *seconds*1000)
	}
	return fmt.Sprintf("%.2fs", *seconds)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
