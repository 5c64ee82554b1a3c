package mediatypes

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"fileindex/internal/metrics"
)

func TestMimeCacheEvictsOldestInserted(t *testing.T) {
	c := NewMimeCache(2)

	c.Set(".a", "type/a")
	c.Set(".b", "type/b")

	// Reading must not protect .a from eviction.
	if _, ok := c.Get(".a"); !ok {
		t.Fatal("expected .a to be cached")
	}

	before := testutil.ToFloat64(metrics.MimeCacheEvictions)
	c.Set(".c", "type/c")

	if _, ok := c.Get(".a"); ok {
		t.Error(".a should have been evicted as the oldest insertion")
	}
	if _, ok := c.Get(".b"); !ok {
		t.Error(".b should still be cached")
	}
	if got := testutil.ToFloat64(metrics.MimeCacheEvictions) - before; got != 1 {
		t.Errorf("evictions delta = %v, want 1", got)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestMimeCacheSetExistingKeepsOrder(t *testing.T) {
	c := NewMimeCache(2)
	c.Set(".a", "type/a")
	c.Set(".b", "type/b")
	c.Set(".a", "type/other")
	c.Set(".c", "type/c")

	if _, ok := c.Get(".a"); ok {
		t.Error("re-setting .a must not refresh its position")
	}
}

func TestMimeCachePurge(t *testing.T) {
	c := NewMimeCache(10)
	c.Set(".a", "type/a")
	c.Set(".b", "type/b")

	c.Purge()

	if c.Len() != 0 {
		t.Errorf("Len() after Purge = %d, want 0", c.Len())
	}
	if _, ok := c.Get(".a"); ok {
		t.Error("Get after Purge should miss")
	}
}

func TestMimeCacheHitMissMetrics(t *testing.T) {
	c := NewMimeCache(10)
	hits := testutil.ToFloat64(metrics.MimeCacheHits)
	misses := testutil.ToFloat64(metrics.MimeCacheMisses)

	c.Get(".x")
	c.Set(".x", "type/x")
	c.Get(".x")

	if got := testutil.ToFloat64(metrics.MimeCacheHits) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.MimeCacheMisses) - misses; got != 1 {
		t.Errorf("misses delta = %v, want 1", got)
	}
}

func TestNewMimeCacheDefaultSize(t *testing.T) {
	c := NewMimeCache(0)
	for i := 0; i < DefaultCacheSize+10; i++ {
		c.Set(fmt.Sprintf(".e%d", i), "type/x")
	}
	if c.Len() != DefaultCacheSize {
		t.Errorf("Len() = %d, want %d", c.Len(), DefaultCacheSize)
	}
}

func TestMimeCacheConcurrentAccess(t *testing.T) {
	c := NewMimeCache(50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ext := fmt.Sprintf(".%d", (w*200+i)%100)
				if _, ok := c.Get(ext); !ok {
					c.Set(ext, "type/x")
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Len() = %d, exceeds bound 50", c.Len())
	}
}
