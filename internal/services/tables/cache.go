package tables

import (
	"sort"
	"sync"
	"time"

	"floor-service/internal/models"
)

// Cache is the read-optimization view of the floor. All mutations go
// through storage first; entries are updated from the mutation's result
// and replaced wholesale by the periodic resynchronization. Entries are
// versioned by the row's updated_at so a late-arriving stale result
// cannot clobber a newer one.
type Cache struct {
	mu      sync.RWMutex
	entries map[int]cacheEntry
}

type cacheEntry struct {
	table   models.Table
	version time.Time
}

// NewCache creates an empty floor cache
func NewCache() *Cache {
	return &Cache{entries: make(map[int]cacheEntry)}
}

// Update stores a mutation result. A write older than the cached entry
// is ignored.
func (c *Cache) Update(table models.Table) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[table.ID]; ok && table.UpdatedAt.Before(existing.version) {
		return false
	}
	c.entries[table.ID] = cacheEntry{table: table, version: table.UpdatedAt}
	return true
}

// ReplaceAll swaps in a fresh view from storage
func (c *Cache) ReplaceAll(tables []models.Table) {
	entries := make(map[int]cacheEntry, len(tables))
	for _, t := range tables {
		entries[t.ID] = cacheEntry{table: t, version: t.UpdatedAt}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Get returns the cached table, if present
func (c *Cache) Get(tableID int) (models.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[tableID]
	return entry.table, ok
}

// Snapshot assembles the per-zone floor view with formatted occupancy
// durations for occupied tables
func (c *Cache) Snapshot(now time.Time) []models.FloorZone {
	c.mu.RLock()
	byZone := make(map[string][]models.FloorTable)
	for _, entry := range c.entries {
		t := entry.table
		byZone[t.Zone] = append(byZone[t.Zone], models.FloorTable{
			Number:      t.Number,
			DisplayName: t.DisplayName,
			State:       t.State,
			WaitstaffID: t.WaitstaffID,
			Occupancy:   models.FormatElapsed(t.Elapsed(now)),
		})
	}
	c.mu.RUnlock()

	zones := make([]models.FloorZone, 0, len(byZone))
	for zone, tables := range byZone {
		sort.Slice(tables, func(i, j int) bool { return tables[i].Number < tables[j].Number })
		zones = append(zones, models.FloorZone{Zone: zone, Tables: tables})
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Zone < zones[j].Zone })

	return zones
}
