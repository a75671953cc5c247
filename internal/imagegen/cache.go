package imagegen

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/lox/gendash/internal/report"
)

type cacheEntry struct {
	fingerprint uint64
	data        []byte
	expiresAt   time.Time
}

// HeatmapCache keeps the last rendered PNG per report date. An entry is reused
// only while its TTL holds and the cells it was drawn from are unchanged.
type HeatmapCache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	cacheTTL time.Duration
}

func NewHeatmapCache(ttl time.Duration) *HeatmapCache {
	return &HeatmapCache{
		entries:  make(map[string]cacheEntry),
		cacheTTL: ttl,
	}
}

// Get returns the cached image for date if it was rendered from cells.
func (c *HeatmapCache) Get(date string, cells []report.HeatmapCell) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[date]
	if !ok || time.Now().After(e.expiresAt) || e.fingerprint != Fingerprint(cells) {
		return nil, false
	}
	return e.data, true
}

func (c *HeatmapCache) Set(date string, cells []report.HeatmapCell, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[date] = cacheEntry{
		fingerprint: Fingerprint(cells),
		data:        data,
		expiresAt:   time.Now().Add(c.cacheTTL),
	}
}

// Invalidate drops the entry of one date.
func (c *HeatmapCache) Invalidate(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, date)
}

// Len is the number of stored entries, expired ones included.
func (c *HeatmapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Render returns the cached PNG for date or renders and stores a fresh one.
func (c *HeatmapCache) Render(date string, cells []report.HeatmapCell) ([]byte, error) {
	if data, ok := c.Get(date, cells); ok {
		return data, nil
	}
	data, err := RenderHeatmap("Deviation heatmap "+date, cells)
	if err != nil {
		return nil, err
	}
	c.Set(date, cells, data)
	return data, nil
}

// Fingerprint hashes the time, deviation and grade of every cell.
func Fingerprint(cells []report.HeatmapCell) uint64 {
	h := fnv.New64a()
	for _, c := range cells {
		fmt.Fprintf(h, "%s|%g|%d;", c.Time, c.Deviation, c.Grade)
	}
	return h.Sum64()
}
