// Package scenarios defines the persistence ports for saved scenarios and
// their precomputed snapshots, plus the YAML file format used to seed and
// run them from disk.
package scenarios

import (
	"context"
	"errors"

	"proiezioni/internal/core"
)

var (
	ErrNotFound         = errors.New("scenario not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Ports for outbound adapters.
type (
	ScenarioWriter interface {
		// Save creates the scenario when ID is zero, otherwise replaces it.
		// The returned scenario carries the assigned ID and version.
		Save(ctx context.Context, s core.Scenario) (core.Scenario, error)
		Delete(ctx context.Context, id int64) error
	}

	ScenarioReader interface {
		Get(ctx context.Context, id int64) (core.Scenario, error)
		// List returns all scenarios ordered by ID.
		List(ctx context.Context) ([]core.Scenario, error)
	}

	SnapshotWriter interface {
		SaveSnapshot(ctx context.Context, snap core.Snapshot) error
	}

	// SnapshotReader returns the most recent snapshot computed for a scenario.
	SnapshotReader interface {
		LatestSnapshot(ctx context.Context, scenarioID int64) (core.Snapshot, error)
	}

	// Store is the full persistence surface implemented by every backend.
	Store interface {
		ScenarioWriter
		ScenarioReader
		SnapshotWriter
		SnapshotReader
	}
)
