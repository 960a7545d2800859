package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ogurasousui/personnel-backoffice/internal/core/projection"
	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/metrics"
)

const (
	// DefaultTTL はスナップショットの既定の保持期間です。
	DefaultTTL = 5 * time.Minute
	// DefaultCleanupInterval は期限切れエントリの掃除間隔です。
	DefaultCleanupInterval = 10 * time.Minute

	keyPrefix = "records:v1:"
)

// ErrNilLoader は Loader が指定されていない場合に返却されます。
var ErrNilLoader = errors.New("cache: loader is required")

// Loader はリソース単位で全件 (削除済みを含む) を読み込みます。
type Loader interface {
	Load(ctx context.Context, kind record.Kind) ([]*record.Record, error)
}

// LoaderFunc は関数を Loader として扱うためのアダプタです。
type LoaderFunc func(ctx context.Context, kind record.Kind) ([]*record.Record, error)

// Load は f(ctx, kind) を呼び出します。
func (f LoaderFunc) Load(ctx context.Context, kind record.Kind) ([]*record.Record, error) {
	return f(ctx, kind)
}

// ServiceLoader は record.UseCase から削除済みを含む一覧を読み込む Loader を返します。
func ServiceLoader(uc record.UseCase) Loader {
	return LoaderFunc(func(ctx context.Context, kind record.Kind) ([]*record.Record, error) {
		return uc.ListRecords(ctx, record.ListRecordsInput{Kind: kind, WithDeleted: true})
	})
}

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

type entry struct {
	generation uint64
	records    []*record.Record
	loadedAt   time.Time
}

// Cache はリソースごとの記録コレクションを保持し、無効化と再読み込みを管理します。
// 無効化より前に開始した読み込みの結果は保存しません。
type Cache struct {
	store   *gocache.Cache
	loader  Loader
	graph   *Graph
	clock   Clock
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics

	flight singleflight.Group

	mu          sync.Mutex
	generations map[record.Kind]uint64
}

// Option は Cache の設定です。
type Option func(*Cache)

// WithTTL はスナップショットの保持期間を指定します。
func WithTTL(ttl, cleanup time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
		if cleanup <= 0 {
			cleanup = DefaultCleanupInterval
		}
		c.store = gocache.New(c.ttl, cleanup)
	}
}

// WithGraph は依存グラフを指定します。
func WithGraph(g *Graph) Option {
	return func(c *Cache) {
		if g != nil {
			c.graph = g
		}
	}
}

// WithClock は active 再計算に使う時計を指定します。
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger はロガーを指定します。
func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics はメトリクスを指定します。
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New は Cache を生成します。
func New(loader Loader, opts ...Option) (*Cache, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	c := &Cache{
		loader:      loader,
		graph:       NewGraph(),
		clock:       realClock{},
		ttl:         DefaultTTL,
		logger:      logger.NewNop(),
		generations: make(map[record.Kind]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = gocache.New(c.ttl, DefaultCleanupInterval)
	}
	c.logger = c.logger.Named("cache")
	return c, nil
}

// Graph は依存グラフを返します。
func (c *Cache) Graph() *Graph {
	return c.graph
}

// Snapshot は kind の記録一覧 (削除済みを含む) の複製を返します。
// active は現在時刻で再計算されます。
func (c *Cache) Snapshot(ctx context.Context, kind record.Kind) ([]*record.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("kind %q: %w", kind, record.ErrInvalidKind)
	}

	records, err := c.load(ctx, kind)
	if err != nil {
		return nil, err
	}

	out := record.CloneAll(records)
	record.Refresh(c.clock.Now(), out...)
	return out, nil
}

// Stats は kind の表示対象に対する集計値を返します。
func (c *Cache) Stats(ctx context.Context, kind record.Kind, showDeleted bool) (projection.Stats, error) {
	records, err := c.Snapshot(ctx, kind)
	if err != nil {
		return projection.Stats{}, err
	}
	return projection.Summarize(records, showDeleted), nil
}

// Invalidate は指定したリソースのスナップショットを破棄します。
func (c *Cache) Invalidate(kinds ...record.Kind) {
	for _, kind := range lo.Uniq(kinds) {
		c.mu.Lock()
		c.generations[kind]++
		generation := c.generations[kind]
		c.mu.Unlock()

		c.store.Delete(key(kind))
		c.metrics.IncInvalidation(string(kind))
		c.logger.Debugw("invalidated", "resource", kind, "generation", generation)
	}
}

// InvalidateWithDependents は kind と依存グラフで到達できるリソースをすべて無効化し、その一覧を返します。
func (c *Cache) InvalidateWithDependents(kind record.Kind) []record.Kind {
	kinds := c.graph.Closure(kind)
	c.Invalidate(kinds...)
	return kinds
}

// Refresh は指定したリソースを並行に読み込み直します。順序は保証しません。
func (c *Cache) Refresh(ctx context.Context, kinds ...record.Kind) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range lo.Uniq(kinds) {
		g.Go(func() error {
			_, err := c.Snapshot(gctx, kind)
			return err
		})
	}
	return g.Wait()
}

// Cached は kind のスナップショットが保持されているかを返します。
func (c *Cache) Cached(kind record.Kind) bool {
	_, ok := c.current(kind)
	return ok
}

func (c *Cache) load(ctx context.Context, kind record.Kind) ([]*record.Record, error) {
	if e, ok := c.current(kind); ok {
		return e.records, nil
	}

	generation := c.generation(kind)
	flightKey := fmt.Sprintf("%s#%d", kind, generation)

	// 共有の読み込みは呼び出し元の取り消しから切り離し、各呼び出し元は自身の ctx でのみ待機を打ち切ります
	loadCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		records, err := c.loader.Load(loadCtx, kind)
		if err != nil {
			c.metrics.ObserveCacheLoad(string(kind), "error")
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}

		if c.generation(kind) != generation {
			// 読み込み中に無効化されたため保存しない
			c.metrics.ObserveCacheLoad(string(kind), "stale")
			c.logger.Debugw("discarded stale load", "resource", kind, "generation", generation)
			return records, nil
		}

		c.store.Set(key(kind), &entry{
			generation: generation,
			records:    records,
			loadedAt:   c.clock.Now(),
		}, c.ttl)
		c.metrics.ObserveCacheLoad(string(kind), "success")
		return records, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load %s: %w", kind, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*record.Record), nil
	}
}

func (c *Cache) current(kind record.Kind) (*entry, bool) {
	v, ok := c.store.Get(key(kind))
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	if !ok || e.generation != c.generation(kind) {
		return nil, false
	}
	return e, true
}

func (c *Cache) generation(kind record.Kind) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[kind]
}

func key(kind record.Kind) string {
	return keyPrefix + string(kind)
}
