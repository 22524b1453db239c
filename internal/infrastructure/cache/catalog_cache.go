// Package cache keeps reference-data lookups in process, invalidated through
// PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/catalog"
	"tsdstock/pkg/logger"
)

// ChannelCatalogChanged is the NOTIFY channel fed by the cat_* triggers.
// Payload format: "<kind>:<id>"; an empty payload flushes everything.
const ChannelCatalogChanged = "catalog_changed"

type refKey struct {
	kind catalog.Kind
	id   id.ID
}

// CatalogCache implements catalog.Validator over another validator. Only
// positive answers are cached: a missing entity may be created at any time,
// while updates and deletes of cached rows arrive as notifications.
type CatalogCache struct {
	next catalog.Validator
	pool *pgxpool.Pool

	mu        sync.RWMutex
	exists    map[refKey]struct{}
	baseUnits map[id.ID]id.ID

	hits, misses atomic.Uint64

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

var _ catalog.Validator = (*CatalogCache)(nil)

// NewCatalogCache wraps next. pool may be nil, in which case Start is a no-op
// and entries live until Flush.
func NewCatalogCache(next catalog.Validator, pool *pgxpool.Pool) *CatalogCache {
	return &CatalogCache{
		next:      next,
		pool:      pool,
		exists:    make(map[refKey]struct{}),
		baseUnits: make(map[id.ID]id.ID),
	}
}

// Exists implements catalog.Validator.
func (c *CatalogCache) Exists(ctx context.Context, kind catalog.Kind, refID id.ID) (bool, error) {
	key := refKey{kind: kind, id: refID}
	c.mu.RLock()
	_, ok := c.exists[key]
	c.mu.RUnlock()
	if ok {
		c.count(true)
		return true, nil
	}
	c.count(false)

	found, err := c.next.Exists(ctx, kind, refID)
	if err != nil || !found {
		return found, err
	}
	c.mu.Lock()
	c.exists[key] = struct{}{}
	c.mu.Unlock()
	return true, nil
}

// BaseUnit implements catalog.Validator.
func (c *CatalogCache) BaseUnit(ctx context.Context, nomenclatureID id.ID) (id.ID, error) {
	c.mu.RLock()
	unitID, ok := c.baseUnits[nomenclatureID]
	c.mu.RUnlock()
	if ok {
		c.count(true)
		return unitID, nil
	}
	c.count(false)

	unitID, err := c.next.BaseUnit(ctx, nomenclatureID)
	if err != nil {
		return unitID, err
	}
	c.mu.Lock()
	c.baseUnits[nomenclatureID] = unitID
	c.mu.Unlock()
	return unitID, nil
}

func (c *CatalogCache) count(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

// Invalidate drops the cached answers for one entity.
func (c *CatalogCache) Invalidate(kind catalog.Kind, refID id.ID) {
	c.mu.Lock()
	delete(c.exists, refKey{kind: kind, id: refID})
	if kind == catalog.KindNomenclature {
		delete(c.baseUnits, refID)
	}
	c.mu.Unlock()
}

// Flush drops every cached answer.
func (c *CatalogCache) Flush() {
	c.mu.Lock()
	clear(c.exists)
	clear(c.baseUnits)
	c.mu.Unlock()
}

// Start begins listening for NOTIFY events.
func (c *CatalogCache) Start(ctx context.Context) {
	if c.pool == nil {
		return
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "catalog cache started")
}

// Stop gracefully stops the listener.
func (c *CatalogCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
	logger.Info(context.Background(), "catalog cache stopped")
}

// listenLoop holds a dedicated connection for LISTEN and reconnects on failure.
func (c *CatalogCache) listenLoop() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			c.sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(c.ctx, "LISTEN "+ChannelCatalogChanged); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			c.sleep(time.Second)
			continue
		}

		// Notifications sent while we were not listening are lost.
		c.Flush()
		logger.Info(c.ctx, "listening for catalog notifications", "channel", ChannelCatalogChanged)

		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *CatalogCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		notification, err := conn.Conn().WaitForNotification(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				logger.Warn(c.ctx, "catalog listener lost connection", "error", err)
			}
			return
		}
		logger.Debug(c.ctx, "received notification",
			"channel", notification.Channel,
			"payload", notification.Payload)
		c.handleNotification(notification.Payload)
	}
}

// handleNotification applies a "<kind>:<id>" payload. Anything unparseable
// flushes the whole cache.
func (c *CatalogCache) handleNotification(payload string) {
	kind, raw, ok := strings.Cut(strings.TrimSpace(payload), ":")
	if !ok {
		c.Flush()
		return
	}
	refID, err := id.Parse(raw)
	if err != nil {
		c.Flush()
		return
	}
	c.Invalidate(catalog.Kind(kind), refID)
}

func (c *CatalogCache) sleep(d time.Duration) {
	select {
	case <-c.ctx.Done():
	case <-time.After(d):
	}
}

// CacheStats is a snapshot of cache usage.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// GetStats returns current cache statistics.
func (c *CatalogCache) GetStats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Entries: len(c.exists) + len(c.baseUnits),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
