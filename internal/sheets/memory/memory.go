// Package memory keeps exported reports in process, for dry runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"retromoney/internal/core"
	"retromoney/internal/sheets"
)

var _ sheets.ReportWriter = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	reports map[core.Month][][]any
	writes  int
}

func New() *Store {
	return &Store{reports: make(map[core.Month][][]any)}
}

// ExportReport replaces the rows stored for the report's month.
func (s *Store) ExportReport(_ context.Context, report core.BudgetReport) error {
	if _, err := core.ParseMonth(string(report.Month)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.Month] = sheets.Rows(report)
	s.writes++
	return nil
}

// Rows returns the stored rows of month, header first, or nil.
func (s *Store) Rows(month core.Month) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.reports[month]
	if !ok {
		return nil
	}
	return append([][]any{sheets.Header}, rows...)
}

// Months lists the exported months in ascending order.
func (s *Store) Months() []core.Month {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Month, 0, len(s.reports))
	for m := range s.reports {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Writes counts every export, including rewrites of the same month.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
