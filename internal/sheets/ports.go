// Package sheets exports precomputed scenario projections to spreadsheets.
package sheets

import (
	"context"

	"proiezioni/internal/services"
)

// Ports for outbound adapters.
type (
	// SnapshotExporter publishes a scenario projection, replacing any rows
	// previously exported for the same scenario.
	SnapshotExporter interface {
		ExportSnapshot(ctx context.Context, proj services.ScenarioProjection) error
	}
)
