package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"datamedic/internal/engine"

	"github.com/briandowns/spinner"
)

// Snapshotter supplies live run state for the progress display.
type Snapshotter interface {
	Snapshot() engine.Snapshot
}

// ProgressRenderer drives a single-line spinner showing overall completion,
// busy workers, and finished suites while a parallel run is in flight.
type ProgressRenderer struct {
	snap     Snapshotter
	writer   io.Writer
	interval time.Duration

	done chan struct{}
}

func NewProgressRenderer(snap Snapshotter, w io.Writer) *ProgressRenderer {
	return &ProgressRenderer{
		snap:     snap,
		writer:   w,
		interval: 250 * time.Millisecond,
		done:     make(chan struct{}),
	}
}

// Start begins rendering until ctx is cancelled or Stop is called. It
// returns immediately; rendering happens on its own goroutine.
func (p *ProgressRenderer) Start(ctx context.Context) {
	sp := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(p.writer))
	sp.Suffix = " starting checks..."
	sp.Start()

	go func() {
		defer sp.Stop()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			case <-ticker.C:
				sp.Suffix = " " + p.renderLine(p.snap.Snapshot())
			}
		}
	}()
}

// Stop halts rendering and clears the spinner line.
func (p *ProgressRenderer) Stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	// Give the renderer a tick to clear its line before final output.
	time.Sleep(10 * time.Millisecond)
}

func (p *ProgressRenderer) renderLine(snap engine.Snapshot) string {
	busy := 0
	for _, w := range snap.Workers {
		if !w.Idle() {
			busy++
		}
	}

	parts := []string{
		fmt.Sprintf("%.1f%% (%d/%d data tests)", snap.Percent(), snap.CompletedDataTests, snap.TotalDataTests),
		fmt.Sprintf("%d/%d workers busy", busy, len(snap.Workers)),
	}
	if len(snap.Suites) > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d suites done", len(snap.CompletedSuites), len(snap.Suites)))
	}
	return strings.Join(parts, " | ")
}
