package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"proiezioni/internal/cache"
	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
	"proiezioni/internal/scenarios/memory"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages [][2]int64
	err      error
}

func (p *fakePublisher) PublishScenarioSaved(_ context.Context, id, version int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, [2]int64{id, version})
	return p.err
}

func baseScenario() core.Scenario {
	p := salaryRentProjection()
	sc := core.Scenario{
		Name:           "Base",
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		InitialBalance: p.InitialBalance,
	}
	for _, t := range p.Transactions {
		switch tx := t.(type) {
		case core.OneTimeTransaction:
			sc.OneTime = append(sc.OneTime, tx)
		case core.RecurringTransaction:
			sc.Recurring = append(sc.Recurring, tx)
		}
	}
	return sc
}

func TestScenarioService_SavePublishes(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewScenarioService(memory.New(), nil, WithPublisher(pub))

	saved, err := svc.SaveScenario(ctx, baseScenario())
	if err != nil {
		t.Fatalf("SaveScenario() error = %v", err)
	}
	saved.Name = "Base 2"
	if _, err := svc.SaveScenario(ctx, saved); err != nil {
		t.Fatalf("SaveScenario(update) error = %v", err)
	}

	if len(pub.messages) != 2 || pub.messages[0] != [2]int64{saved.ID, 1} || pub.messages[1] != [2]int64{saved.ID, 2} {
		t.Errorf("published = %v", pub.messages)
	}

	pub.err = errors.New("broker down")
	if _, err := svc.SaveScenario(ctx, baseScenario()); err != nil {
		t.Errorf("publish failure should not fail the save, got %v", err)
	}

	if _, err := svc.SaveScenario(ctx, core.Scenario{}); err == nil {
		t.Error("expected validation error")
	}
}

func TestScenarioService_ProjectUsesCache(t *testing.T) {
	ctx := context.Background()
	svc := NewScenarioService(memory.New(), nil, WithCache(cache.NewLocalStore(16, time.Minute), 0))

	first, err := svc.Project(ctx, salaryRentProjection())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	second, err := svc.Project(ctx, salaryRentProjection())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	stats := svc.Stats()
	if stats.Runs != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(first) != len(second) || second[len(second)-1].Balance != euros(780000) {
		t.Fatalf("cached result differs")
	}
	if !second[5].Date.Equal(first[5].Date) {
		t.Errorf("cached date %s, want %s", second[5].Date, first[5].Date)
	}

	other := salaryRentProjection()
	other.InitialBalance = euros(1)
	if _, err := svc.Project(ctx, other); err != nil {
		t.Fatal(err)
	}
	if svc.Stats().Runs != 2 {
		t.Errorf("different inputs should not hit the cache")
	}
}

func TestProjectionKey_DistinguishesKinds(t *testing.T) {
	day := core.NewDate(2024, 1, 1)
	a := core.NewProjection(day, day.AddDays(10), core.Money{})
	a.AddTransaction(core.OneTimeTransaction{Amount: euros(1), Date: day})
	b := core.NewProjection(day, day.AddDays(10), core.Money{})
	b.AddTransaction(core.RecurringTransaction{Amount: euros(1), StartDate: day, Every: core.Daily})

	ka, err := projectionKey(a)
	if err != nil {
		t.Fatal(err)
	}
	kb, _ := projectionKey(b)
	if ka == kb {
		t.Error("one-time and recurring inputs produced the same key")
	}
}

func TestScenarioService_ComputeSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewScenarioService(store, nil)

	saved, _ := svc.SaveScenario(ctx, baseScenario())
	proj, err := svc.ComputeSnapshot(ctx, saved.ID, saved.Version)
	if err != nil {
		t.Fatalf("ComputeSnapshot() error = %v", err)
	}
	if proj.Summary.FinalBalance != euros(780000) {
		t.Errorf("FinalBalance = %s", proj.Summary.FinalBalance)
	}

	snap, err := svc.LatestSnapshot(ctx, saved.ID)
	if err != nil || snap.Version != 1 || snap.Summary.Days != 103 {
		t.Fatalf("LatestSnapshot() = %+v, %v", snap, err)
	}

	updated, _ := svc.SaveScenario(ctx, saved)
	if _, err := svc.ComputeSnapshot(ctx, saved.ID, 1); !errors.Is(err, ErrStaleVersion) {
		t.Errorf("expected ErrStaleVersion, got %v", err)
	}
	if _, err := svc.ComputeSnapshot(ctx, updated.ID, updated.Version); err != nil {
		t.Errorf("ComputeSnapshot(latest) error = %v", err)
	}

	if _, err := svc.ComputeSnapshot(ctx, 999, 1); !errors.Is(err, scenarios.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScenarioService_NotInitialized(t *testing.T) {
	svc := NewScenarioService(nil, nil)
	if _, err := svc.ListScenarios(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if err := svc.DeleteScenario(context.Background(), 1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestScenarioService_LoanPaymentsReduceBalance(t *testing.T) {
	ctx := context.Background()
	svc := NewScenarioService(memory.New(), nil)

	sc := core.Scenario{
		Name:           "Con prestito",
		StartDate:      core.NewDate(2024, 1, 1),
		EndDate:        core.NewDate(2024, 12, 31),
		InitialBalance: euros(10000),
		Loans: []core.Loan{{
			Principal:      euros(5000),
			Payment:        euros(200),
			StartDate:      core.NewDate(2024, 1, 1),
			DurationMonths: 24,
			Description:    "Auto",
		}},
	}
	saved, err := svc.SaveScenario(ctx, sc)
	if err != nil {
		t.Fatalf("SaveScenario() error = %v", err)
	}

	proj, err := svc.ComputeSnapshot(ctx, saved.ID, saved.Version)
	if err != nil {
		t.Fatalf("ComputeSnapshot() error = %v", err)
	}
	// Twelve payments fall inside the year.
	if want := euros(10000 - 12*200); proj.Summary.FinalBalance != want {
		t.Errorf("FinalBalance = %s, want %s", proj.Summary.FinalBalance, want)
	}
	first := proj.Points[0]
	if first.Delta != euros(-200) || len(first.Descriptions) != 1 || first.Descriptions[0] != "Auto" {
		t.Errorf("first point = %+v", first)
	}

	snap, err := svc.LatestSnapshot(ctx, saved.ID)
	if err != nil || snap.Summary.FinalBalance != euros(7600) {
		t.Fatalf("LatestSnapshot() = %+v, %v", snap, err)
	}

	// Without the loan the same scenario keeps its balance, and the cache
	// must not return the loan run for it.
	saved.Loans = nil
	plain, err := svc.SaveScenario(ctx, saved)
	if err != nil {
		t.Fatal(err)
	}
	proj, err = svc.ProjectScenario(ctx, plain.ID)
	if err != nil || proj.Summary.FinalBalance != euros(10000) {
		t.Fatalf("ProjectScenario() = %s, %v", proj.Summary.FinalBalance, err)
	}
}

// gateTransaction blocks the first day of a run until released.
type gateTransaction struct {
	started chan struct{}
	release chan struct{}
	once    *sync.Once
}

func (g gateTransaction) ValueOn(core.Date) core.Money {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return core.Money{}
}

func (gateTransaction) DescriptionOn(core.Date) string { return "" }
func (gateTransaction) Validate() error { return nil }

func TestScenarioService_SharedRunSurvivesFirstCallerCancel(t *testing.T) {
	svc := NewScenarioService(memory.New(), nil)
	gate := gateTransaction{started: make(chan struct{}), release: make(chan struct{}), once: &sync.Once{}}
	// The range crosses the first of a month, where the engine checks for cancellation.
	p := core.NewProjection(core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 2), euros(10))
	p.AddTransaction(gate)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Project(firstCtx, p)
		firstErr <- err
	}()
	<-gate.started

	type result struct {
		points []core.ProjectionPoint
		err    error
	}
	second := make(chan result, 1)
	go func() {
		points, err := svc.Project(context.Background(), p)
		second <- result{points, err}
	}()
	for svc.Stats().Misses < 2 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first caller err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(gate.release)
	res := <-second
	if res.err != nil {
		t.Fatalf("joined caller err = %v", res.err)
	}
	if len(res.points) != 3 || res.points[2].Balance != euros(10) {
		t.Errorf("points = %+v", res.points)
	}
	if runs := svc.Stats().Runs; runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}
