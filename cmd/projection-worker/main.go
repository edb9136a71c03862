package main

import (
	"context"
	"os"
	"time"

	"proiezioni/internal/cli"
	"proiezioni/internal/config"
	applog "proiezioni/internal/log"
	"proiezioni/internal/services"
	"proiezioni/internal/sheets"
	gsheet "proiezioni/internal/sheets/google"
	"proiezioni/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	if err != nil {
		cli.SetupLogger(applog.ComponentWorker, nil).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(applog.ComponentWorker, cfg)
	logger.Info("Starting projection-worker")

	res, err := cli.OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer res.Close()
	if res.AMQP == nil {
		logger.Error("AMQP broker unreachable, worker cannot consume", "url_set", cfg.AMQPURL != "")
		os.Exit(1)
	}

	// Snapshots are recomputed by the worker itself, so nothing is published
	// back and the projection cache is not needed.
	svc := services.NewScenarioService(res.Store,
		services.NewProjectionEngine(cfg.ProjectionMaxDays),
		services.WithLogger(logger.WithComponent(applog.ComponentScenario).Logger))

	var exporter sheets.SnapshotExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	w := worker.NewSnapshotWorker(svc, exporter, cfg.WorkerConcurrency,
		logger.WithComponent(applog.ComponentWorker).Logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	if err := w.Run(ctx, res.AMQP); err != nil {
		logger.Error("Message consumption failed", "error", err)
		_ = res.Close()
		os.Exit(1)
	}

	<-done
	st := w.Stats()
	logger.Info("Worker shutdown complete",
		"processed", st.Processed,
		"skipped", st.Skipped,
		"failed", st.Failed,
		"exported", st.Exported)
}
