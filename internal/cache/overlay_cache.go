// Package cache stores proxied NDVI overlay tiles on disk so revisiting a
// district does not re-download its raster layer. Tiles are laid out in
// ZXY structure under a per-layer directory and evicted LRU when the
// cache outgrows its size budget.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// OverlayTileCache is a size-bounded disk cache for overlay tiles.
// Layout: baseDir/{layer}/{z}/{x}/{y}.png with a JSON metadata index at
// baseDir/cache_index.json.
type OverlayTileCache struct {
	baseDir   string
	maxSize   int64
	currSize  int64 // atomic
	ttl       time.Duration
	mu        sync.RWMutex
	metadata  map[string]*TileMetadata
	evictChan chan struct{}
	stop      chan struct{}
}

// TileMetadata describes one cached tile
type TileMetadata struct {
	Key        string    `json:"key"`
	Layer      string    `json:"layer"` // opaque overlay layer id
	Z          int       `json:"z"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Size       int64     `json:"size"`
	AccessTime time.Time `json:"accessTime"`
	CreateTime time.Time `json:"createTime"`
}

// NewOverlayTileCache opens (or creates) a cache rooted at baseDir. A
// non-positive ttlDays disables expiry.
func NewOverlayTileCache(baseDir string, maxSizeMB, ttlDays int) (*OverlayTileCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &OverlayTileCache{
		baseDir:   baseDir,
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		ttl:       time.Duration(ttlDays) * 24 * time.Hour,
		metadata:  make(map[string]*TileMetadata),
		evictChan: make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}

	if err := c.loadMetadata(); err != nil {
		if err := c.rebuildMetadata(); err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
	}

	go c.maintenanceWorker()

	return c, nil
}

// Close stops the background maintenance worker
func (c *OverlayTileCache) Close() {
	close(c.stop)
}

// Key builds the cache key for a tile of a layer
func Key(layer string, z, x, y int) string {
	return fmt.Sprintf("%s:%d:%d:%d", layer, z, x, y)
}

// Get returns the cached tile bytes, or false when absent or expired
func (c *OverlayTileCache) Get(layer string, z, x, y int) ([]byte, bool) {
	key := Key(layer, z, x, y)

	c.mu.RLock()
	meta, exists := c.metadata[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if c.ttl > 0 && time.Since(meta.CreateTime) > c.ttl {
		c.evictTile(key)
		return nil, false
	}

	data, err := os.ReadFile(c.tilePath(meta))
	if err != nil {
		// File vanished out from under the index
		c.evictTile(key)
		return nil, false
	}

	c.mu.Lock()
	meta.AccessTime = time.Now()
	c.mu.Unlock()

	return data, true
}

// Set stores a tile, triggering background eviction when the size budget
// is exceeded
func (c *OverlayTileCache) Set(layer string, z, x, y int, data []byte) error {
	key := Key(layer, z, x, y)
	now := time.Now()
	meta := &TileMetadata{
		Key:        key,
		Layer:      layer,
		Z:          z,
		X:          x,
		Y:          y,
		Size:       int64(len(data)),
		AccessTime: now,
		CreateTime: now,
	}

	path := c.tilePath(meta)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.mu.Lock()
	if old, exists := c.metadata[key]; exists {
		atomic.AddInt64(&c.currSize, -old.Size)
	}
	c.metadata[key] = meta
	c.mu.Unlock()
	atomic.AddInt64(&c.currSize, meta.Size)

	if atomic.LoadInt64(&c.currSize) > c.maxSize {
		select {
		case c.evictChan <- struct{}{}:
		default:
		}
	}

	go c.saveMetadata()

	return nil
}

// DropLayer removes every tile of one overlay layer, used when a new
// analysis replaces the overlay
func (c *OverlayTileCache) DropLayer(layer string) {
	c.mu.Lock()
	for key, meta := range c.metadata {
		if meta.Layer != layer {
			continue
		}
		os.Remove(c.tilePath(meta))
		delete(c.metadata, key)
		atomic.AddInt64(&c.currSize, -meta.Size)
	}
	c.mu.Unlock()
	os.RemoveAll(filepath.Join(c.baseDir, layer))
	c.saveMetadata()
}

func (c *OverlayTileCache) tilePath(meta *TileMetadata) string {
	return filepath.Join(c.baseDir, meta.Layer,
		fmt.Sprintf("%d", meta.Z), fmt.Sprintf("%d", meta.X), fmt.Sprintf("%d.png", meta.Y))
}

func (c *OverlayTileCache) evictTile(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	meta, exists := c.metadata[key]
	if !exists {
		return
	}
	os.Remove(c.tilePath(meta))
	delete(c.metadata, key)
	atomic.AddInt64(&c.currSize, -meta.Size)
}

func (c *OverlayTileCache) maintenanceWorker() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.evictChan:
			c.evictLRU()
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

// evictLRU removes least recently used tiles down to 80% of the budget
func (c *OverlayTileCache) evictLRU() {
	c.mu.Lock()
	defer c.mu.Unlock()

	currSize := atomic.LoadInt64(&c.currSize)
	if currSize <= c.maxSize {
		return
	}
	targetSize := c.maxSize * 8 / 10

	entries := make([]*TileMetadata, 0, len(c.metadata))
	for _, meta := range c.metadata {
		entries = append(entries, meta)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AccessTime.Before(entries[j].AccessTime)
	})

	for _, meta := range entries {
		if currSize <= targetSize {
			break
		}
		os.Remove(c.tilePath(meta))
		delete(c.metadata, meta.Key)
		atomic.AddInt64(&c.currSize, -meta.Size)
		currSize -= meta.Size
	}

	c.saveMetadataLocked()
}

func (c *OverlayTileCache) evictExpired() {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := false
	for key, meta := range c.metadata {
		if now.Sub(meta.CreateTime) <= c.ttl {
			continue
		}
		os.Remove(c.tilePath(meta))
		delete(c.metadata, key)
		atomic.AddInt64(&c.currSize, -meta.Size)
		evicted = true
	}

	if evicted {
		c.saveMetadataLocked()
	}
}

func (c *OverlayTileCache) indexPath() string {
	return filepath.Join(c.baseDir, "cache_index.json")
}

func (c *OverlayTileCache) loadMetadata() error {
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata map[string]*TileMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	var total int64
	for _, meta := range metadata {
		total += meta.Size
	}
	c.metadata = metadata
	atomic.StoreInt64(&c.currSize, total)

	return nil
}

func (c *OverlayTileCache) saveMetadata() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writeIndex()
}

// saveMetadataLocked is saveMetadata for callers already holding the lock
func (c *OverlayTileCache) saveMetadataLocked() error {
	return c.writeIndex()
}

func (c *OverlayTileCache) writeIndex() error {
	data, err := json.MarshalIndent(c.metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// Write-then-rename keeps the index readable if we crash mid-write
	tempPath := c.indexPath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return os.Rename(tempPath, c.indexPath())
}

// rebuildMetadata reindexes the cache by scanning the tile directories
func (c *OverlayTileCache) rebuildMetadata() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metadata = make(map[string]*TileMetadata)
	var total int64

	err := filepath.Walk(c.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(path) != ".png" {
			return nil
		}

		relPath, _ := filepath.Rel(c.baseDir, path)
		parts := strings.Split(relPath, string(os.PathSeparator))
		if len(parts) != 4 {
			return nil
		}

		layer := parts[0]
		z, errZ := parseIntSafe(parts[1])
		x, errX := parseIntSafe(parts[2])
		y, errY := parseIntSafe(strings.TrimSuffix(parts[3], ".png"))
		if errZ != nil || errX != nil || errY != nil {
			return nil
		}

		meta := &TileMetadata{
			Key:        Key(layer, z, x, y),
			Layer:      layer,
			Z:          z,
			X:          x,
			Y:          y,
			Size:       info.Size(),
			AccessTime: info.ModTime(),
			CreateTime: info.ModTime(),
		}
		c.metadata[meta.Key] = meta
		total += info.Size()

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan cache directory: %w", err)
	}

	atomic.StoreInt64(&c.currSize, total)

	return c.writeIndex()
}

func parseIntSafe(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	return i, err
}

// Stats reports entry count, current size and the size budget in bytes
func (c *OverlayTileCache) Stats() (entries int, sizeBytes, maxBytes int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metadata), atomic.LoadInt64(&c.currSize), c.maxSize
}

// Clear removes every cached tile
func (c *OverlayTileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, meta := range c.metadata {
		os.Remove(c.tilePath(meta))
	}
	c.metadata = make(map[string]*TileMetadata)
	atomic.StoreInt64(&c.currSize, 0)

	return c.writeIndex()
}

// BaseDir returns the cache root directory
func (c *OverlayTileCache) BaseDir() string {
	return c.baseDir
}
