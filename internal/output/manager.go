// Package output renders aggregated check results to the console and to
// files, and drives the live progress display for parallel runs.
package output

import (
	"errors"
	"fmt"

	"datamedic/internal/checks"
)

// Sink is a destination for final check results. Results arrive exactly once
// each, already aggregated; Close flushes any buffered rendering.
type Sink interface {
	Write(res checks.Result) error
	Close() error
}

// Manager fans results out to every attached sink, collecting per-sink
// errors rather than stopping at the first.
type Manager struct {
	sinks []Sink
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Write(res checks.Result) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(res); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors writing to sinks: %w", errors.Join(errs...))
	}
	return nil
}

// WriteAll writes results in order, stopping only on fan-out failure.
func (m *Manager) WriteAll(results []checks.Result) error {
	for _, res := range results {
		if err := m.Write(res); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
