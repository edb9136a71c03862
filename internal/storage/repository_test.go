package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
)

var _ scenarios.Store = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testScenario() core.Scenario {
	return core.Scenario{
		Name:           "Base",
		StartDate:      core.NewDate(2024, 10, 20),
		EndDate:        core.NewDate(2025, 1, 30),
		InitialBalance: core.Money{Cents: 10000000},
		OneTime: []core.OneTimeTransaction{
			{Amount: core.Money{Cents: 12000000}, Date: core.NewDate(2024, 11, 15), Description: "Bonus"},
		},
		Recurring: []core.RecurringTransaction{
			{Amount: core.Money{Cents: -24000000}, StartDate: core.NewDate(2024, 10, 26), Every: core.Monthly, Description: "Rent"},
			{Amount: core.Money{Cents: 38000000}, StartDate: core.NewDate(2024, 10, 25), EndDate: core.NewDate(2025, 6, 30), Every: core.Monthly, Description: "Salary"},
		},
		Loans: []core.Loan{
			{Principal: core.Money{Cents: 500000}, AnnualRate: 0.05, Payment: core.Money{Cents: 20000}, StartDate: core.NewDate(2024, 1, 1), DurationMonths: 24, Description: "Car"},
		},
	}
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	saved, err := repo.Save(ctx, testScenario())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ID == 0 || saved.Version != 1 {
		t.Fatalf("Save() = id %d version %d", saved.ID, saved.Version)
	}

	got, err := repo.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Base" || !got.StartDate.Equal(core.NewDate(2024, 10, 20)) || got.InitialBalance.Cents != 10000000 {
		t.Errorf("scenario header = %+v", got)
	}
	if len(got.OneTime) != 1 || got.OneTime[0].Description != "Bonus" {
		t.Errorf("OneTime = %+v", got.OneTime)
	}
	if len(got.Recurring) != 2 || got.Recurring[0].Description != "Rent" || !got.Recurring[0].EndDate.IsEmpty() {
		t.Errorf("Recurring = %+v", got.Recurring)
	}
	if !got.Recurring[1].EndDate.Equal(core.NewDate(2025, 6, 30)) {
		t.Errorf("salary end date = %s", got.Recurring[1].EndDate)
	}
	if len(got.Loans) != 1 || got.Loans[0].AnnualRate != 0.05 || got.Loans[0].DurationMonths != 24 {
		t.Errorf("Loans = %+v", got.Loans)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	saved, _ := repo.Save(ctx, testScenario())
	saved.Name = "Base v2"
	saved.OneTime = nil
	saved.Loans = saved.Loans[:0]

	updated, err := repo.Save(ctx, saved)
	if err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}

	got, _ := repo.Get(ctx, saved.ID)
	if got.Name != "Base v2" || len(got.OneTime) != 0 || len(got.Loans) != 0 || len(got.Recurring) != 2 {
		t.Errorf("updated scenario = %+v", got)
	}

	missing := testScenario()
	missing.ID = 999
	if _, err := repo.Save(ctx, missing); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("Save(unknown) error = %v", err)
	}
}

func TestSQLiteRepository_ListDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, _ := repo.Save(ctx, testScenario())
	b, _ := repo.Save(ctx, testScenario())

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID || len(list[1].Recurring) != 2 {
		t.Fatalf("List() = %+v", list)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, a.ID); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v", err)
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("Delete(deleted) error = %v", err)
	}
}

func TestSQLiteRepository_Snapshots(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sc, _ := repo.Save(ctx, testScenario())

	if _, err := repo.LatestSnapshot(ctx, sc.ID); !errors.Is(err, scenarios.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	computed := time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC)
	snap := core.Snapshot{
		ScenarioID: sc.ID,
		Version:    2,
		ComputedAt: computed,
		Summary: core.ProjectionSummary{
			StartDate:     sc.StartDate,
			EndDate:       sc.EndDate,
			Days:          103,
			FinalBalance:  core.Money{Cents: 78000000},
			LowestBalance: core.Money{Cents: 10000000},
			LowestDate:    sc.StartDate,
		},
	}
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	stale := snap
	stale.Version = 1
	stale.Summary.Days = 1
	if err := repo.SaveSnapshot(ctx, stale); err != nil {
		t.Fatalf("SaveSnapshot(stale) error = %v", err)
	}

	got, err := repo.LatestSnapshot(ctx, sc.ID)
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if got.Version != 2 || got.Summary.Days != 103 || got.Summary.FinalBalance.Cents != 78000000 {
		t.Errorf("snapshot = %+v", got)
	}
	if !got.Summary.LowestDate.Equal(sc.StartDate) || !got.Summary.FirstNegative.IsEmpty() {
		t.Errorf("summary dates = %s / %s", got.Summary.LowestDate, got.Summary.FirstNegative)
	}
	if !got.ComputedAt.Equal(computed) {
		t.Errorf("ComputedAt = %v", got.ComputedAt)
	}

	if err := repo.SaveSnapshot(ctx, core.Snapshot{ScenarioID: 999}); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("SaveSnapshot(unknown) error = %v", err)
	}
}
