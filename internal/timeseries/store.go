package timeseries

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/solatis/gridxlate/internal/core/db"
	"github.com/solatis/gridxlate/internal/metrics"
	"github.com/solatis/gridxlate/internal/types"
)

// Store is a handle on the association tables of one database.
//
// Writers are serialized per Store: Transfer holds the write lock for its
// whole run, so in-process readers see either the state before it or the
// committed state after it. Associations are served from a per-owner cache
// that Transfer reloads on finalize.
type Store struct {
	db      *sqlx.DB
	q       *db.Queries
	cap     Capability
	stager  stager
	logger  *zap.Logger
	metrics *metrics.Collector

	mu    sync.RWMutex
	cache *ownerCache
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	strategy string
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// WithStrategy selects the staging strategy by name (auto, attach, manual).
func WithStrategy(s string) StoreOption {
	return func(c *storeConfig) {
		c.strategy = s
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(c *storeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records transfer outcomes on m.
func WithMetrics(m *metrics.Collector) StoreOption {
	return func(c *storeConfig) {
		c.metrics = m
	}
}

// NewStore wraps an open database. The schema must already be migrated.
func NewStore(database *sqlx.DB, opts ...StoreOption) (*Store, error) {
	cfg := storeConfig{strategy: StrategyAuto, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	capability, err := ResolveCapability(database.DriverName(), cfg.strategy)
	if err != nil {
		return nil, err
	}

	q, err := db.LoadQueries(database)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:      database,
		q:       q,
		cap:     capability,
		stager:  newStager(capability, q),
		logger:  cfg.logger.With(zap.Stringer("strategy", capability)),
		metrics: cfg.metrics,
		cache:   newOwnerCache(),
	}, nil
}

// Capability reports the staging strategy in use.
func (s *Store) Capability() Capability {
	return s.cap
}

// AddAssociation inserts a row and returns its id. Owner and time-series
// identifiers are normalized; the category is required.
func (s *Store) AddAssociation(ctx context.Context, a Association) (int64, error) {
	owner, err := types.ParseOwnerID(string(a.OwnerUUID))
	if err != nil {
		return 0, err
	}
	series, err := types.ParseTimeSeriesID(string(a.TimeSeriesUUID))
	if err != nil {
		return 0, err
	}
	if a.OwnerCategory == "" {
		return 0, types.NewValidationError("owner_category", types.ErrMissingValue, "category is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err = s.q.Get(ctx, &id, "insert-association",
		series, a.TimeSeriesType, a.Name, owner, a.OwnerType, a.OwnerCategory,
		a.Features, a.InitialTimestamp, a.Resolution, a.Length, a.Units, a.MetadataUUID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert association: %w", err)
	}
	s.cache.invalidate(owner)
	return id, nil
}

// AddChild records that child is attached to parent.
func (s *Store) AddChild(ctx context.Context, c ChildAssociation) (int64, error) {
	parent, err := types.ParseOwnerID(string(c.ParentUUID))
	if err != nil {
		return 0, err
	}
	child, err := types.ParseOwnerID(string(c.ChildUUID))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	if err := s.q.Get(ctx, &id, "insert-child", parent, c.ParentType, child, c.ChildType); err != nil {
		return 0, fmt.Errorf("failed to insert child association: %w", err)
	}
	return id, nil
}

// Associations returns every row owned by owner, ordered by id.
func (s *Store) Associations(ctx context.Context, owner string) ([]Association, error) {
	id, err := types.ParseOwnerID(owner)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if rows, ok := s.cache.get(id); ok {
		return rows, nil
	}
	rows, err := s.loadOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.put(id, rows)
	return append([]Association(nil), rows...), nil
}

// AssociationsFor returns the rows linking owner to one time series. Reads
// the database directly.
func (s *Store) AssociationsFor(ctx context.Context, owner, series string) ([]Association, error) {
	ownerID, err := types.ParseOwnerID(owner)
	if err != nil {
		return nil, err
	}
	seriesID, err := types.ParseTimeSeriesID(series)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []Association
	if err := s.q.Select(ctx, &rows, "select-associations-by-owner-and-series", ownerID, seriesID); err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}
	return rows, nil
}

// Children returns the child links of parent.
func (s *Store) Children(ctx context.Context, parent string) ([]ChildAssociation, error) {
	return s.selectChildren(ctx, "select-children", parent)
}

// ChildReferences returns the links naming child as the child component.
func (s *Store) ChildReferences(ctx context.Context, child string) ([]ChildAssociation, error) {
	return s.selectChildren(ctx, "select-child-references", child)
}

func (s *Store) selectChildren(ctx context.Context, query, owner string) ([]ChildAssociation, error) {
	id, err := types.ParseOwnerID(owner)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []ChildAssociation
	if err := s.q.Select(ctx, &rows, query, id); err != nil {
		return nil, fmt.Errorf("failed to query child associations: %w", err)
	}
	return rows, nil
}

func (s *Store) loadOwner(ctx context.Context, owner types.OwnerID) ([]Association, error) {
	var rows []Association
	if err := s.q.Select(ctx, &rows, "select-owner-associations", owner); err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}
	return rows, nil
}

// ownerCache holds the association view per owner. It has its own lock
// because readers fill it while holding only the store's read lock.
type ownerCache struct {
	mu    sync.Mutex
	views map[types.OwnerID][]Association
}

func newOwnerCache() *ownerCache {
	return &ownerCache{views: make(map[types.OwnerID][]Association)}
}

func (c *ownerCache) get(owner types.OwnerID) ([]Association, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.views[owner]
	if !ok {
		return nil, false
	}
	return append([]Association(nil), rows...), true
}

func (c *ownerCache) put(owner types.OwnerID, rows []Association) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[owner] = rows
}

func (c *ownerCache) invalidate(owner types.OwnerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, owner)
}

func (c *ownerCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = make(map[types.OwnerID][]Association)
}
