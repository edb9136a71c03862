// Package worker precomputes scenario snapshots from scenario.saved messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"proiezioni/internal/amqp"
	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
	"proiezioni/internal/services"
	"proiezioni/internal/sheets"
)

// DefaultConcurrency bounds parallel snapshot computations during catch-up.
const DefaultConcurrency = 4

// SnapshotService is the part of services.ScenarioService the worker uses.
type SnapshotService interface {
	ComputeSnapshot(ctx context.Context, id, version int64) (services.ScenarioProjection, error)
	ListScenarios(ctx context.Context) ([]core.Scenario, error)
	LatestSnapshot(ctx context.Context, id int64) (core.Snapshot, error)
}

// Consumer delivers scenario.saved messages until ctx is cancelled.
type Consumer interface {
	ConsumeScenarioSaved(ctx context.Context, handler amqp.Handler) error
}

// Stats counts handled messages since start.
type Stats struct {
	Processed int64
	Skipped   int64
	Failed    int64
	Exported  int64
}

// SnapshotWorker computes and stores a snapshot for every saved scenario
// version, optionally exporting it to a spreadsheet.
type SnapshotWorker struct {
	snapshots   SnapshotService
	exporter    sheets.SnapshotExporter
	concurrency int
	logger      *slog.Logger

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	exported  atomic.Int64
}

// NewSnapshotWorker creates a worker. exporter may be nil.
func NewSnapshotWorker(snapshots SnapshotService, exporter sheets.SnapshotExporter, concurrency int, logger *slog.Logger) *SnapshotWorker {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotWorker{
		snapshots:   snapshots,
		exporter:    exporter,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (w *SnapshotWorker) Stats() Stats {
	return Stats{
		Processed: w.processed.Load(),
		Skipped:   w.skipped.Load(),
		Failed:    w.failed.Load(),
		Exported:  w.exported.Load(),
	}
}

// HandleScenarioSaved processes one message. Messages for versions that were
// already superseded, or for scenarios deleted since, are acknowledged without
// work; any other error requeues the message.
func (w *SnapshotWorker) HandleScenarioSaved(ctx context.Context, msg *amqp.ScenarioSavedMessage) error {
	w.logger.InfoContext(ctx, "Processing scenario saved message",
		"message_id", msg.MessageID,
		"scenario_id", msg.ScenarioID,
		"version", msg.Version)

	proj, err := w.snapshots.ComputeSnapshot(ctx, msg.ScenarioID, msg.Version)
	switch {
	case errors.Is(err, services.ErrStaleVersion):
		w.skipped.Add(1)
		w.logger.InfoContext(ctx, "Skipping stale scenario version",
			"scenario_id", msg.ScenarioID, "version", msg.Version, "reason", err)
		return nil
	case errors.Is(err, scenarios.ErrNotFound):
		w.skipped.Add(1)
		w.logger.InfoContext(ctx, "Scenario deleted before snapshot, skipping", "scenario_id", msg.ScenarioID)
		return nil
	case err != nil:
		w.failed.Add(1)
		return fmt.Errorf("compute snapshot: %w", err)
	}
	w.processed.Add(1)

	if w.exporter == nil {
		return nil
	}
	if err := w.exporter.ExportSnapshot(ctx, proj); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("export snapshot: %w", err)
	}
	w.exported.Add(1)
	return nil
}

// StartupCatchUp computes snapshots for every scenario whose latest snapshot
// is missing or older than the scenario, recovering from messages lost while
// the worker was down. Individual failures are logged and counted.
func (w *SnapshotWorker) StartupCatchUp(ctx context.Context) error {
	list, err := w.snapshots.ListScenarios(ctx)
	if err != nil {
		return fmt.Errorf("list scenarios: %w", err)
	}

	var pending []core.Scenario
	for _, sc := range list {
		snap, err := w.snapshots.LatestSnapshot(ctx, sc.ID)
		switch {
		case err == nil && snap.Version >= sc.Version:
			continue
		case err != nil && !errors.Is(err, scenarios.ErrSnapshotNotFound):
			w.logger.ErrorContext(ctx, "Failed to read snapshot", "scenario_id", sc.ID, "error", err)
			continue
		}
		pending = append(pending, sc)
	}
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "All snapshots up to date on startup", "scenarios", len(list))
		return nil
	}
	w.logger.InfoContext(ctx, "Computing missing snapshots", "count", len(pending), "concurrency", w.concurrency)

	var errorCount atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, sc := range pending {
		msg := &amqp.ScenarioSavedMessage{ScenarioID: sc.ID, Version: sc.Version}
		g.Go(func() error {
			if err := w.HandleScenarioSaved(gctx, msg); err != nil {
				errorCount.Add(1)
				w.logger.ErrorContext(gctx, "Startup snapshot failed", "scenario_id", msg.ScenarioID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	w.logger.InfoContext(ctx, "Startup catch-up completed",
		"total", len(pending),
		"errors", errorCount.Load())
	return ctx.Err()
}

// Run catches up and then consumes messages until ctx is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context, consumer Consumer) error {
	if err := w.StartupCatchUp(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		w.logger.ErrorContext(ctx, "Startup catch-up failed", "error", err)
	}
	err := consumer.ConsumeScenarioSaved(ctx, w.HandleScenarioSaved)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
