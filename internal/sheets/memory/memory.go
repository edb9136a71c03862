// Package memory keeps exported projections in process, for development and
// tests.
package memory

import (
	"context"
	"sync"
	"time"

	"proiezioni/internal/services"
	"proiezioni/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	base    string
	tabs    map[string][][]any
	exports int
	now     func() time.Time
}

var _ sheets.SnapshotExporter = (*Exporter)(nil)

func New(base string) *Exporter {
	if base == "" {
		base = "Proiezioni"
	}
	return &Exporter{base: base, tabs: make(map[string][][]any), now: time.Now}
}

// ExportSnapshot replaces the tab for the scenario.
func (e *Exporter) ExportSnapshot(ctx context.Context, proj services.ScenarioProjection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := sheets.BuildRows(proj, e.now())
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tabs[sheets.TabTitle(e.base, proj.Scenario.ID)] = rows
	e.exports++
	return nil
}

// Tab returns the rows last exported under title.
func (e *Exporter) Tab(title string) ([][]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.tabs[title]
	return rows, ok
}

// Exports counts ExportSnapshot calls that succeeded.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
