package solar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/common"
)

// Window margins. A cached window serves t only while it has more than
// MinLookback of data before t and MinLookahead after it.
const (
	MinLookback  = 4 * time.Hour
	MinLookahead = time.Hour
	// FetchSpan is fetched on each side of the query time on refresh.
	FetchSpan = 36 * time.Hour
)

// Source supplies solar wind samples for [start, end) at one cadence.
type Source interface {
	Fetch(ctx context.Context, start, end time.Time, cadence Cadence) (*Table, error)
}

// CacheOptions configures a WindowCache.
type CacheOptions struct {
	// Clock stamps FetchedAt and drives MaxAge. Defaults to time.Now.
	Clock func() time.Time
	// MaxAge forces a refetch of windows older than this. Zero disables it.
	MaxAge time.Duration
	Stats  *common.Stats
	Logger *zap.SugaredLogger
}

// WindowCache holds at most one live Window per cadence. Get checks, refetches
// and returns under a single lock, so the returned window always covers the
// query time.
type WindowCache struct {
	source Source
	clock  func() time.Time
	maxAge time.Duration
	stats  *common.Stats
	logger *zap.SugaredLogger

	mu      sync.Mutex
	windows map[Cadence]*Window
}

// NewWindowCache returns an empty cache over source.
func NewWindowCache(source Source, opts CacheOptions) *WindowCache {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Stats == nil {
		opts.Stats = common.NewStats()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &WindowCache{
		source:  source,
		clock:   opts.Clock,
		maxAge:  opts.MaxAge,
		stats:   opts.Stats,
		logger:  opts.Logger,
		windows: make(map[Cadence]*Window),
	}
}

// Get returns a window at cadence whose margins cover t, fetching
// [t-FetchSpan, t+FetchSpan) when the cached one is missing or stale.
// A failed fetch leaves the previous entry in place.
func (c *WindowCache) Get(ctx context.Context, cadence Cadence, t time.Time) (*Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.windows[cadence]; ok && c.fresh(w, t) {
		c.stats.AddWindowHit()
		return w, nil
	}

	start, end := t.Add(-FetchSpan), t.Add(FetchSpan)
	c.logger.Debugf("Fetching %s solar wind window %s to %s", cadence,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	tbl, err := c.source.Fetch(ctx, start, end, cadence)
	if err != nil {
		return nil, fmt.Errorf("fetch %s solar wind: %w", cadence, err)
	}
	w, err := NewWindow(tbl, cadence, start, end)
	if err != nil {
		return nil, err
	}
	w.FetchedAt = c.clock()
	c.windows[cadence] = w
	c.stats.AddWindowFetch()
	c.logger.Debugf("Cached %d %s samples", w.Len(), cadence)
	return w, nil
}

func (c *WindowCache) fresh(w *Window, t time.Time) bool {
	if !w.Covers(t) {
		return false
	}
	if c.maxAge > 0 && c.clock().Sub(w.FetchedAt) > c.maxAge {
		return false
	}
	return true
}

// Cached returns the live window for cadence without refreshing it.
func (c *WindowCache) Cached(cadence Cadence) (*Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[cadence]
	return w, ok
}

// Invalidate drops the cached window for cadence.
func (c *WindowCache) Invalidate(cadence Cadence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.windows, cadence)
}
