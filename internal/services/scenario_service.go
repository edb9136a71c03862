package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"proiezioni/internal/cache"
	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
)

// DefaultCacheTTL is how long projection results stay cached.
const DefaultCacheTTL = 10 * time.Minute

// sharedRunTimeout bounds a projection run once no caller controls it.
const sharedRunTimeout = time.Minute

// Publisher announces saved scenarios to the snapshot worker.
type Publisher interface {
	PublishScenarioSaved(ctx context.Context, scenarioID, version int64) error
}

// ScenarioService orchestrates scenario persistence, projection runs and the
// result cache. Identical concurrent projection requests are computed once.
type ScenarioService struct {
	store     scenarios.Store
	engine    *ProjectionEngine
	cache     cache.Store
	cacheTTL  time.Duration
	publisher Publisher
	logger    *slog.Logger
	group     singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	runs   atomic.Int64
}

// ServiceOption configures a ScenarioService.
type ServiceOption func(*ScenarioService)

// WithCache enables result caching. A non-positive ttl uses DefaultCacheTTL.
func WithCache(store cache.Store, ttl time.Duration) ServiceOption {
	return func(s *ScenarioService) {
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		s.cache = store
		s.cacheTTL = ttl
	}
}

// WithPublisher sends scenario.saved messages after every save.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *ScenarioService) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *ScenarioService) { s.logger = l }
}

func NewScenarioService(store scenarios.Store, engine *ProjectionEngine, opts ...ServiceOption) *ScenarioService {
	if engine == nil {
		engine = NewProjectionEngine(0)
	}
	s := &ScenarioService{store: store, engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheStats reports projection cache counters since start.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Runs   int64 `json:"runs"`
}

func (s *ScenarioService) Stats() CacheStats {
	return CacheStats{Hits: s.hits.Load(), Misses: s.misses.Load(), Runs: s.runs.Load()}
}

// Project runs a daily projection through the cache.
func (s *ScenarioService) Project(ctx context.Context, p *core.Projection) ([]core.ProjectionPoint, error) {
	if p == nil {
		return nil, errors.New("nil projection")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key, err := projectionKey(p)
	if err != nil {
		return nil, err
	}

	if points, ok := s.cached(ctx, key); ok {
		s.hits.Add(1)
		return points, nil
	}
	s.misses.Add(1)

	// The run is detached from the caller that started it: callers joining
	// the same key must not see its cancellation.
	ch := s.group.DoChan(key, func() (any, error) {
		s.runs.Add(1)
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedRunTimeout)
		defer cancel()
		points, err := s.engine.Run(runCtx, p)
		if err != nil {
			return nil, err
		}
		s.storeCached(runCtx, key, points)
		return points, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "Projection result shared between concurrent requests", "key", key)
		}
		return res.Val.([]core.ProjectionPoint), nil
	}
}

func (s *ScenarioService) cached(ctx context.Context, key string) ([]core.ProjectionPoint, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Projection cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var points []core.ProjectionPoint
	if err := json.Unmarshal(data, &points); err != nil {
		s.logger.WarnContext(ctx, "Discarding corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	return points, true
}

func (s *ScenarioService) storeCached(ctx context.Context, key string, points []core.ProjectionPoint) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(points)
	if err != nil {
		s.logger.WarnContext(ctx, "Projection cache encode failed", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "Projection cache write failed", "key", key, "error", err)
	}
}

// projectionKey hashes the projection inputs, tagging every transaction with
// its concrete type so different kinds with equal fields never collide.
func projectionKey(p *core.Projection) (string, error) {
	type taggedTx struct {
		Kind string
		Tx   core.Transaction
	}
	payload := struct {
		Start   string
		End     string
		Initial int64
		Txs     []taggedTx
	}{
		Start:   p.StartDate.String(),
		End:     p.EndDate.String(),
		Initial: p.InitialBalance.Cents,
	}
	for _, t := range p.Transactions {
		payload.Txs = append(payload.Txs, taggedTx{Kind: fmt.Sprintf("%T", t), Tx: t})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	return cache.Key("projection", data), nil
}

// SaveScenario persists the scenario and announces the new version. A failed
// publish is logged; the scenario stays saved.
func (s *ScenarioService) SaveScenario(ctx context.Context, sc core.Scenario) (core.Scenario, error) {
	if s.store == nil {
		return core.Scenario{}, ErrNotInitialized
	}
	saved, err := s.store.Save(ctx, sc)
	if err != nil {
		return core.Scenario{}, fmt.Errorf("save scenario: %w", err)
	}
	s.logger.InfoContext(ctx, "Scenario saved", "scenario_id", saved.ID, "version", saved.Version)

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, snapshot not requested", "scenario_id", saved.ID)
		return saved, nil
	}
	if err := s.publisher.PublishScenarioSaved(ctx, saved.ID, saved.Version); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish scenario saved message",
			"scenario_id", saved.ID, "version", saved.Version, "error", err)
	}
	return saved, nil
}

func (s *ScenarioService) DeleteScenario(ctx context.Context, id int64) error {
	if s.store == nil {
		return ErrNotInitialized
	}
	return s.store.Delete(ctx, id)
}

func (s *ScenarioService) GetScenario(ctx context.Context, id int64) (core.Scenario, error) {
	if s.store == nil {
		return core.Scenario{}, ErrNotInitialized
	}
	return s.store.Get(ctx, id)
}

func (s *ScenarioService) ListScenarios(ctx context.Context) ([]core.Scenario, error) {
	if s.store == nil {
		return nil, ErrNotInitialized
	}
	return s.store.List(ctx)
}

// ScenarioProjection is a scenario together with its daily projection.
type ScenarioProjection struct {
	Scenario core.Scenario
	Points   []core.ProjectionPoint
	Summary  core.ProjectionSummary
}

// ProjectScenario loads a stored scenario and projects it.
func (s *ScenarioService) ProjectScenario(ctx context.Context, id int64) (ScenarioProjection, error) {
	sc, err := s.GetScenario(ctx, id)
	if err != nil {
		return ScenarioProjection{}, err
	}
	p, err := BuildProjection(sc)
	if err != nil {
		return ScenarioProjection{}, fmt.Errorf("project scenario %d: %w", id, err)
	}
	points, err := s.Project(ctx, p)
	if err != nil {
		return ScenarioProjection{}, fmt.Errorf("project scenario %d: %w", id, err)
	}
	return ScenarioProjection{
		Scenario: sc,
		Points:   points,
		Summary:  Summarize(sc.InitialBalance, points),
	}, nil
}

// LatestSnapshot returns the stored snapshot for a scenario.
func (s *ScenarioService) LatestSnapshot(ctx context.Context, id int64) (core.Snapshot, error) {
	if s.store == nil {
		return core.Snapshot{}, ErrNotInitialized
	}
	return s.store.LatestSnapshot(ctx, id)
}

// ErrStaleVersion is returned by ComputeSnapshot when the scenario changed
// after the message was published.
var ErrStaleVersion = errors.New("scenario version is newer than requested")

// ComputeSnapshot projects version of a scenario and stores its summary.
func (s *ScenarioService) ComputeSnapshot(ctx context.Context, id, version int64) (ScenarioProjection, error) {
	proj, err := s.ProjectScenario(ctx, id)
	if err != nil {
		return ScenarioProjection{}, err
	}
	if proj.Scenario.Version > version {
		return ScenarioProjection{}, fmt.Errorf("%w: have %d, message %d", ErrStaleVersion, proj.Scenario.Version, version)
	}

	snap := core.Snapshot{
		ScenarioID: id,
		Version:    proj.Scenario.Version,
		Summary:    proj.Summary,
		ComputedAt: time.Now().UTC(),
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return ScenarioProjection{}, fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "Snapshot stored",
		"scenario_id", id,
		"version", snap.Version,
		"final_balance_cents", snap.Summary.FinalBalance.Cents)
	return proj, nil
}
