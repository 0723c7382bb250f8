// Package live keeps the catalog views mounted by open boutique pages and
// wakes their event streams when a view changes.
package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"finitefield.org/saro-web/internal/boutique"
	"finitefield.org/saro-web/internal/catalog"
)

const (
	defaultIdleTTL    = 10 * time.Minute
	defaultPendingTTL = time.Minute
	defaultMaxViews   = 10000
	metricNamespace   = "finitefield.org/saro-web/live"
)

// ErrViewNotFound is returned for unknown or already unmounted view ids.
var ErrViewNotFound = errors.New("view not found")

// Config tunes a Registry. Zero values use production defaults.
type Config struct {
	Clock   boutique.Clock
	Delay   time.Duration
	IdleTTL time.Duration
	// PendingTTL applies to views that never had a subscriber, such as pages
	// fetched by crawlers or prefetch. It never exceeds IdleTTL.
	PendingTTL time.Duration
	// MaxViews bounds the registry; mounting beyond it evicts the least
	// recently seen view without subscribers.
	MaxViews int
	Now      func() time.Time
	Logger   *zap.Logger
	Meter    metric.Meter
}

// Registry owns every mounted view.
type Registry struct {
	snapshot *catalog.Snapshot
	cfg      Config

	mu    sync.Mutex
	views map[string]*Mounted

	active     metric.Int64UpDownCounter
	activeOK   bool
	unmounts   metric.Int64Counter
	unmountsOK bool
}

// NewRegistry builds a registry serving views over snapshot.
func NewRegistry(snapshot *catalog.Snapshot, cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = boutique.SystemClock
	}
	if cfg.Delay <= 0 {
		cfg.Delay = boutique.LoadDelay
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultPendingTTL
	}
	cfg.PendingTTL = min(cfg.PendingTTL, cfg.IdleTTL)
	if cfg.MaxViews <= 0 {
		cfg.MaxViews = defaultMaxViews
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Meter == nil {
		cfg.Meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	r := &Registry{
		snapshot: snapshot,
		cfg:      cfg,
		views:    make(map[string]*Mounted),
	}
	var err error
	r.active, err = cfg.Meter.Int64UpDownCounter(
		"boutique.views.active",
		metric.WithDescription("Catalog views currently mounted"),
	)
	if err != nil {
		cfg.Logger.Warn("live: unable to register active views metric", zap.Error(err))
	}
	r.activeOK = err == nil
	r.unmounts, err = cfg.Meter.Int64Counter(
		"boutique.views.unmounted",
		metric.WithDescription("Catalog views torn down, by reason"),
	)
	if err != nil {
		cfg.Logger.Warn("live: unable to register unmount metric", zap.Error(err))
	}
	r.unmountsOK = err == nil
	return r
}

// Mounted is a view registered under an id.
type Mounted struct {
	ID string

	view   *boutique.View
	broker *broker
	now    func() time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	subscribed bool
}

// Mount creates a view in the loading stage and schedules its transition.
func (r *Registry) Mount(selection string) *Mounted {
	m := &Mounted{
		ID:     ulid.Make().String(),
		broker: newBroker(),
		now:    r.cfg.Now,
	}
	logger := r.cfg.Logger.With(zap.String("view_id", m.ID))
	m.view = boutique.NewView(r.snapshot.Products(), boutique.ViewOptions{
		Clock:      r.cfg.Clock,
		Delay:      r.cfg.Delay,
		Selection:  selection,
		Categories: r.snapshot.Categories(),
		OnChange: func(g boutique.Grid) {
			logger.Debug("view changed", zap.Stringer("mode", g.Mode), zap.String("selection", g.Selection))
			m.broker.notify()
		},
	})
	m.Touch()

	r.mu.Lock()
	var evict string
	if len(r.views) >= r.cfg.MaxViews {
		evict = r.oldestUnwatchedLocked()
	}
	r.views[m.ID] = m
	r.mu.Unlock()
	if evict != "" && r.unmount(evict, "evicted") {
		logger.Warn("view limit reached, evicted oldest view", zap.String("evicted_id", evict), zap.Int("max_views", r.cfg.MaxViews))
	}
	if r.activeOK {
		r.active.Add(context.Background(), 1)
	}

	m.view.Mount()
	logger.Debug("view mounted")
	return m
}

// Get returns a mounted view and marks it as active.
func (r *Registry) Get(id string) (*Mounted, error) {
	r.mu.Lock()
	m, ok := r.views[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrViewNotFound
	}
	m.Touch()
	return m, nil
}

// Unmount tears a view down. It reports whether the id was mounted.
func (r *Registry) Unmount(id string) bool {
	return r.unmount(id, "client")
}

func (r *Registry) unmount(id, reason string) bool {
	r.mu.Lock()
	m, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancelled := m.view.Unmount()
	m.broker.close()
	ctx := context.Background()
	if r.activeOK {
		r.active.Add(ctx, -1)
	}
	if r.unmountsOK {
		r.unmounts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
	r.cfg.Logger.Debug("view unmounted", zap.String("view_id", id), zap.Bool("timer_cancelled", cancelled))
	return true
}

// Len returns the number of mounted views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *Registry) oldestUnwatchedLocked() string {
	var (
		id     string
		oldest time.Time
	)
	for vid, m := range r.views {
		if m.Subscribers() > 0 {
			continue
		}
		if seen := m.LastSeen(); id == "" || seen.Before(oldest) {
			id, oldest = vid, seen
		}
	}
	return id
}

// Sweep unmounts views without subscribers that have been idle longer than
// their TTL: IdleTTL once a stream has subscribed, PendingTTL before that.
// It returns the number of views removed.
func (r *Registry) Sweep() int {
	now := r.cfg.Now()
	r.mu.Lock()
	var stale []string
	for id, m := range r.views {
		if m.Subscribers() > 0 {
			continue
		}
		ttl := r.cfg.PendingTTL
		if m.everSubscribed() {
			ttl = r.cfg.IdleTTL
		}
		if m.LastSeen().Before(now.Add(-ttl)) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()
	n := 0
	for _, id := range stale {
		if r.unmount(id, "idle") {
			n++
		}
	}
	return n
}

// Run sweeps idle views until ctx is done, then unmounts everything left.
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.PendingTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.cfg.Logger.Info("idle views unmounted", zap.Int("count", n))
			}
		}
	}
}

// Close unmounts every view.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.unmount(id, "shutdown")
	}
}

// Touch records activity on the view.
func (m *Mounted) Touch() {
	m.mu.Lock()
	m.lastSeen = m.now()
	m.mu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (m *Mounted) LastSeen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

// Grid returns the current grid.
func (m *Mounted) Grid() boutique.Grid { return m.view.Grid() }

// Select changes the selection; subscribers are woken.
func (m *Mounted) Select(category string) boutique.Grid {
	m.Touch()
	return m.view.Select(category)
}

// View exposes the underlying view.
func (m *Mounted) View() *boutique.View { return m.view }

// Subscribers returns the number of open subscriptions.
func (m *Mounted) Subscribers() int { return m.broker.count() }

func (m *Mounted) everSubscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}

// Subscribe returns a channel receiving a value whenever the view changes.
// The channel is closed when the view is unmounted or cancel is called.
// Cancelling leaves the view mounted.
func (m *Mounted) Subscribe() (<-chan struct{}, func()) {
	m.mu.Lock()
	m.subscribed = true
	m.mu.Unlock()
	ch := m.broker.subscribe()
	return ch, func() { m.broker.unsubscribe(ch) }
}
