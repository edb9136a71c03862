// Package backend wires the scenario store, the projection cache and the
// snapshot publisher from configuration.
package backend

import (
	"context"
	"errors"
	"time"

	"proiezioni/internal/amqp"
	"proiezioni/internal/cache"
	"proiezioni/internal/scenarios"
	"proiezioni/internal/services"
)

// CleanupFunc releases a resource opened by the factory.
type CleanupFunc func() error

// Check is a named readiness check for one dependency.
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

// BackendResult holds everything a binary needs to build a ScenarioService.
type BackendResult struct {
	Store scenarios.Store
	// Cache is nil when caching is disabled.
	Cache    cache.Store
	CacheTTL time.Duration
	// AMQP is nil when no broker is configured.
	AMQP   *amqp.Client
	Checks []Check

	cleanups []CleanupFunc
}

// Service builds a ScenarioService over the backend. Saves are published
// only when a broker is configured.
func (r *BackendResult) Service(engine *services.ProjectionEngine, opts ...services.ServiceOption) *services.ScenarioService {
	all := make([]services.ServiceOption, 0, len(opts)+2)
	if r.Cache != nil {
		all = append(all, services.WithCache(r.Cache, r.CacheTTL))
	}
	if r.AMQP != nil {
		all = append(all, services.WithPublisher(r.AMQP))
	}
	all = append(all, opts...)
	return services.NewScenarioService(r.Store, engine, all...)
}

// Close runs the cleanups in reverse order of acquisition.
func (r *BackendResult) Close() error {
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.cleanups = nil
	return errors.Join(errs...)
}

func (r *BackendResult) onClose(fn CleanupFunc) {
	r.cleanups = append(r.cleanups, fn)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory backend: scenarios seeded from *.yaml files in this directory
	SeedDir string

	// SQLite specific
	SQLiteDBPath string

	// AMQP is optional for both backends
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Projection cache; Redis when RedisAddr is set, in-process LRU otherwise
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	CacheSize     int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
