package cache

import (
	"context"
	"sort"
	"sync"

	"attrack/internal/attendance"
)

// MemoryCache is an in-memory implementation of attendance.Cache. It
// backs the "memory" config type and most engine tests. Safe for
// concurrent use. Nothing survives the process, which is the point.
type MemoryCache struct {
	mu      sync.RWMutex
	byID    map[string]*attendance.Record
	byDay   map[string]string // day -> id
	owner   string
	hub     *watchHub
}

var _ attendance.Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		byID:  make(map[string]*attendance.Record),
		byDay: make(map[string]string),
		hub:   newWatchHub(),
	}
}

func (c *MemoryCache) Get(_ context.Context, id string) (*attendance.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byID[id]
	if !ok {
		return nil, attendance.ErrNotFound
	}
	return rec.Clone(), nil
}

func (c *MemoryCache) GetForDay(_ context.Context, day string) (*attendance.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byDay[day]
	if !ok {
		return nil, attendance.ErrNotFound
	}
	return c.byID[id].Clone(), nil
}

func (c *MemoryCache) ListHistory(_ context.Context, r attendance.HistoryRange) ([]*attendance.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var recs []*attendance.Record
	for _, rec := range c.byID {
		if r.Contains(rec.CreatedAt) {
			recs = append(recs, rec.Clone())
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

func (c *MemoryCache) Put(_ context.Context, rec *attendance.Record) error {
	c.mu.Lock()
	c.putLocked(rec)
	c.mu.Unlock()

	c.hub.publish(rec)
	return nil
}

func (c *MemoryCache) Replace(_ context.Context, oldID string, rec *attendance.Record) error {
	c.mu.Lock()
	if old, ok := c.byID[oldID]; ok {
		delete(c.byID, oldID)
		delete(c.byDay, old.Day())
	}
	c.putLocked(rec)
	c.mu.Unlock()

	c.hub.publish(rec)
	return nil
}

func (c *MemoryCache) ReplaceHistory(_ context.Context, r attendance.HistoryRange, recs []*attendance.Record) error {
	c.mu.Lock()
	for id, rec := range c.byID {
		if r.Contains(rec.CreatedAt) {
			delete(c.byID, id)
			delete(c.byDay, rec.Day())
		}
	}
	for _, rec := range recs {
		c.putLocked(rec)
	}
	c.mu.Unlock()

	for _, rec := range recs {
		c.hub.publish(rec)
	}
	return nil
}

// putLocked upserts by id and evicts any other record on the same day.
// Callers hold c.mu.
func (c *MemoryCache) putLocked(rec *attendance.Record) {
	if existingID, ok := c.byDay[rec.Day()]; ok && existingID != rec.ID {
		delete(c.byID, existingID)
	}
	if old, ok := c.byID[rec.ID]; ok && old.Day() != rec.Day() {
		delete(c.byDay, old.Day())
	}
	c.byID[rec.ID] = rec.Clone()
	c.byDay[rec.Day()] = rec.ID
}

func (c *MemoryCache) Owner(_ context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner, nil
}

func (c *MemoryCache) SetOwner(_ context.Context, user string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = user
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[string]*attendance.Record)
	c.byDay = make(map[string]string)
	c.owner = ""
	return nil
}

func (c *MemoryCache) Watch(ctx context.Context) <-chan *attendance.Record {
	return c.hub.subscribe(ctx)
}

func (c *MemoryCache) Close() error {
	return nil
}
