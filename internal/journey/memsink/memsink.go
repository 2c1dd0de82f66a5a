// Package memsink provides an in-memory implementation of journey.ReportSink.
package memsink

import (
	"context"
	"sync"

	"github.com/linnemanlabs/fnol/internal/journey"
)

// Sink holds reports in memory. Suitable for dev/testing.
type Sink struct {
	mu      sync.RWMutex
	reports []*journey.Report
}

// New initializes a new in-memory Sink.
func New() *Sink {
	return &Sink{}
}

// Insert appends a copy of the report.
func (s *Sink) Insert(_ context.Context, r *journey.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reports = append(s.reports, &cp)
	return nil
}

// Recent returns up to limit reports, newest first.
func (s *Sink) Recent(_ context.Context, limit int) ([]*journey.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*journey.Report
	for i := len(s.reports) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.reports[i]
		out = append(out, &cp)
	}
	return out, nil
}
