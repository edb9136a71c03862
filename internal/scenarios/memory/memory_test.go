package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
)

var _ scenarios.Store = (*Store)(nil)

func sample(name string) core.Scenario {
	return core.Scenario{
		Name:           name,
		StartDate:      core.NewDate(2024, 1, 1),
		EndDate:        core.NewDate(2024, 12, 31),
		InitialBalance: core.Money{Cents: 100000},
		Recurring: []core.RecurringTransaction{
			{Amount: core.Money{Cents: -50000}, StartDate: core.NewDate(2024, 1, 5), Every: core.Monthly, Description: "Affitto"},
		},
	}
}

func TestStore_SaveGetList(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.Save(ctx, sample("A"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	b, _ := s.Save(ctx, sample("B"))
	if a.ID != 1 || b.ID != 2 || a.Version != 1 {
		t.Fatalf("unexpected ids/versions: %+v %+v", a, b)
	}

	a.Name = "A2"
	updated, err := s.Save(ctx, a)
	if err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}
	if updated.Version != 2 || !updated.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("update = %+v", updated)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil || got.Name != "A2" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
	got.Recurring[0].Description = "mutated"
	again, _ := s.Get(ctx, a.ID)
	if again.Recurring[0].Description != "Affitto" {
		t.Error("stored scenario was mutated through a returned copy")
	}

	list, _ := s.List(ctx)
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Errorf("List() = %+v", list)
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Save(ctx, core.Scenario{}); err == nil {
		t.Error("expected validation error")
	}
	missing := sample("x")
	missing.ID = 42
	if _, err := s.Save(ctx, missing); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("Save(unknown id) error = %v", err)
	}
	if _, err := s.Get(ctx, 42); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("Get(unknown) error = %v", err)
	}
	if err := s.Delete(ctx, 42); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("Delete(unknown) error = %v", err)
	}
}

func TestStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := New()
	sc, _ := s.Save(ctx, sample("A"))

	if _, err := s.LatestSnapshot(ctx, sc.ID); !errors.Is(err, scenarios.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	_ = s.SaveSnapshot(ctx, core.Snapshot{ScenarioID: sc.ID, Version: 2})
	_ = s.SaveSnapshot(ctx, core.Snapshot{ScenarioID: sc.ID, Version: 1})
	snap, err := s.LatestSnapshot(ctx, sc.ID)
	if err != nil || snap.Version != 2 {
		t.Errorf("LatestSnapshot() = %+v, %v", snap, err)
	}

	if err := s.SaveSnapshot(ctx, core.Snapshot{ScenarioID: 99}); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("SaveSnapshot(unknown) error = %v", err)
	}

	_ = s.Delete(ctx, sc.ID)
	if _, err := s.LatestSnapshot(ctx, sc.ID); !errors.Is(err, scenarios.ErrSnapshotNotFound) {
		t.Errorf("snapshot should be removed with its scenario, got %v", err)
	}
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()
	good := "name: Seed\nstart_date: 2024-01-01\nend_date: 2024-03-01\ninitial_balance: 10\n"
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(good), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("name: [broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewFromDir(dir)
	list, _ := s.List(context.Background())
	if len(list) != 1 || list[0].Name != "Seed" {
		t.Errorf("List() = %+v", list)
	}

	empty := NewFromDir(filepath.Join(dir, "missing"))
	if list, _ := empty.List(context.Background()); len(list) != 0 {
		t.Errorf("expected no scenarios, got %d", len(list))
	}
}
