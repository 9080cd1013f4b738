// Package cache provides caching for rendered images and resolved data.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	ImageCacheSizeMB int
	ImageTTL         time.Duration
	DataCacheSize    int
}

// Manager manages the rendered-image cache and the resolved-data cache.
// Images are large and short-lived (any state change invalidates them by
// key), data payloads are small JSON blobs reused across panel requests.
type Manager struct {
	imageCache *bigcache.BigCache
	dataCache  *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	imageCacheConfig := bigcache.Config{
		Shards:             1024,
		LifeWindow:         cfg.ImageTTL,
		CleanWindow:        cfg.ImageTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       512 * 1024, // full plot PNGs
		HardMaxCacheSize:   cfg.ImageCacheSizeMB,
		Verbose:            false,
	}

	imageCache, err := bigcache.New(context.Background(), imageCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	dataCache, err := lru.New[string, []byte](cfg.DataCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create data cache: %w", err)
	}

	return &Manager{
		imageCache: imageCache,
		dataCache:  dataCache,
	}, nil
}

// GetImage retrieves a rendered image from cache.
func (m *Manager) GetImage(key string) ([]byte, bool) {
	data, err := m.imageCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetImage stores a rendered image in cache.
func (m *Manager) SetImage(key string, data []byte) error {
	return m.imageCache.Set(key, data)
}

// GetData retrieves a resolved-data payload from cache.
func (m *Manager) GetData(key string) ([]byte, bool) {
	return m.dataCache.Get(key)
}

// SetData stores a resolved-data payload in cache.
func (m *Manager) SetData(key string, data []byte) {
	m.dataCache.Add(key, data)
}

// ImageKey generates a cache key for a rendered plot. The key covers
// everything that can change the pixels: region, canvas size and the
// plot's state generation counter, plus any extra free-form params.
func ImageKey(plotID, chrom string, start, end int64, width, height float64, generation uint64, params map[string]string) string {
	base := fmt.Sprintf("img:%s:%s_%d_%d:%gx%g:g%d", plotID, chrom, start, end, width, height, generation)
	if len(params) == 0 {
		return base
	}

	// Sort for a stable key regardless of map iteration order.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(base))
	for _, k := range keys {
		h.Write([]byte(fmt.Sprintf("%s=%s", k, params[k])))
	}
	return base + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// DataKey generates a cache key for one panel's resolved rows.
func DataKey(plotID, panelID, chrom string, start, end int64, generation uint64) string {
	return fmt.Sprintf("data:%s:%s:%s_%d_%d:g%d", plotID, panelID, chrom, start, end, generation)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"image_cache_len": m.imageCache.Len(),
		"image_cache_cap": m.imageCache.Capacity(),
		"data_cache_len":  m.dataCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.imageCache.Close()
}
