// Package memory is the default in-process scenario backend.
package memory

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
)

type Store struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]core.Scenario
	snapshots map[int64]core.Snapshot
	now       func() time.Time
}

func New() *Store {
	return &Store{
		nextID:    1,
		items:     make(map[int64]core.Scenario),
		snapshots: make(map[int64]core.Snapshot),
		now:       time.Now,
	}
}

// NewFromDir creates a store seeded with every *.yaml scenario in base.
// Files that fail to parse are logged and skipped.
func NewFromDir(base string) *Store {
	s := New()
	paths, _ := filepath.Glob(filepath.Join(base, "*.yaml"))
	sort.Strings(paths)
	for _, p := range paths {
		sc, err := scenarios.LoadFile(p)
		if err != nil {
			slog.Warn("Skipping seed scenario", "path", p, "error", err)
			continue
		}
		if _, err := s.Save(context.Background(), sc); err != nil {
			slog.Warn("Skipping seed scenario", "path", p, "error", err)
		}
	}
	if len(paths) > 0 {
		slog.Info("Seed scenarios loaded", "dir", base, "count", len(s.items))
	} else if _, err := os.Stat(base); err == nil {
		slog.Debug("No seed scenarios found", "dir", base)
	}
	return s
}

// Save stores the scenario and returns it with ID, version and timestamps set.
func (s *Store) Save(_ context.Context, sc core.Scenario) (core.Scenario, error) {
	if err := sc.Validate(); err != nil {
		return core.Scenario{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if sc.ID == 0 {
		sc.ID = s.nextID
		s.nextID++
		sc.Version = 1
		sc.CreatedAt = now
	} else {
		prev, ok := s.items[sc.ID]
		if !ok {
			return core.Scenario{}, scenarios.ErrNotFound
		}
		sc.Version = prev.Version + 1
		sc.CreatedAt = prev.CreatedAt
	}
	sc.UpdatedAt = now
	s.items[sc.ID] = clone(sc)
	return sc, nil
}

// Delete removes the scenario and its snapshot.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return scenarios.ErrNotFound
	}
	delete(s.items, id)
	delete(s.snapshots, id)
	return nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.items[id]
	if !ok {
		return core.Scenario{}, scenarios.ErrNotFound
	}
	return clone(sc), nil
}

func (s *Store) List(_ context.Context) ([]core.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Scenario, 0, len(s.items))
	for _, sc := range s.items {
		out = append(out, clone(sc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveSnapshot keeps only the newest version per scenario. Snapshots for
// unknown scenarios or older versions are ignored.
func (s *Store) SaveSnapshot(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[snap.ScenarioID]; !ok {
		return scenarios.ErrNotFound
	}
	if prev, ok := s.snapshots[snap.ScenarioID]; ok && prev.Version > snap.Version {
		return nil
	}
	s.snapshots[snap.ScenarioID] = snap
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context, scenarioID int64) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[scenarioID]
	if !ok {
		return core.Snapshot{}, scenarios.ErrSnapshotNotFound
	}
	return snap, nil
}

// clone copies the slices so callers cannot mutate stored scenarios.
func clone(sc core.Scenario) core.Scenario {
	sc.OneTime = append([]core.OneTimeTransaction(nil), sc.OneTime...)
	sc.Recurring = append([]core.RecurringTransaction(nil), sc.Recurring...)
	sc.Loans = append([]core.Loan(nil), sc.Loans...)
	return sc
}
