package mediatypes

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"fileindex/internal/logging"
	"fileindex/internal/metrics"
)

// DefaultCacheSize bounds the extension cache.
const DefaultCacheSize = 5000

// MimeCache is a bounded extension to MIME type map shared by all build
// workers. Lookups never promote entries, so when full the oldest inserted
// extension is evicted first.
type MimeCache struct {
	entries *lru.Cache[string, string]
}

// NewMimeCache creates a cache holding at most size entries. Sizes below 1
// use DefaultCacheSize.
func NewMimeCache(size int) *MimeCache {
	if size < 1 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		// Only returned for non-positive sizes, which are excluded above.
		logging.Error("Failed to create MIME cache of size %d: %v", size, err)
		entries, _ = lru.New[string, string](DefaultCacheSize)
	}
	return &MimeCache{entries: entries}
}

// Get returns the cached type for an extension.
func (c *MimeCache) Get(ext string) (string, bool) {
	mimeType, ok := c.entries.Peek(ext)
	if ok {
		metrics.MimeCacheHits.Inc()
	} else {
		metrics.MimeCacheMisses.Inc()
	}
	return mimeType, ok
}

// Set stores the type for an extension, evicting the oldest entry when full.
func (c *MimeCache) Set(ext, mimeType string) {
	if c.entries.Contains(ext) {
		return
	}
	if evicted := c.entries.Add(ext, mimeType); evicted {
		metrics.MimeCacheEvictions.Inc()
	}
}

// Purge removes every entry. Called at the start of each full build.
func (c *MimeCache) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached extensions.
func (c *MimeCache) Len() int {
	return c.entries.Len()
}
