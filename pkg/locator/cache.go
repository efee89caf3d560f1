// Content cache implementation.
package locator

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/csstyped/csstyped/pkg/extractor"
)

// fileRecord is the cached unit of content retrieval: one resolved
// resource's raw bytes plus its extraction result.
//
// Content is owned by the record (copied out of any mapped region), so it
// stays valid across file cache invalidation.
type fileRecord struct {
	Resolution Resolution
	Content    []byte
	Sheet      *extractor.Stylesheet
}

// recordCache deduplicates content retrieval per resolved path.
//
// The LRU keeps completed records and the singleflight group collapses
// concurrent retrievals of one key into a single in-flight fetch. Failed
// retrievals are never stored, so a transient fetch failure does not poison
// later loads of the same key.
type recordCache struct {
	lru    *lru.Cache[string, *fileRecord]
	flight singleflight.Group
}

func newRecordCache(size int) (*recordCache, error) {
	cache, err := lru.New[string, *fileRecord](size)
	if err != nil {
		return nil, err
	}
	return &recordCache{lru: cache}, nil
}

// get returns the cached record for key, retrieving it via load on a miss.
func (c *recordCache) get(key string, load func() (*fileRecord, error)) (*fileRecord, error) {
	if record, ok := c.lru.Get(key); ok {
		return record, nil
	}

	value, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// An earlier flight may have completed while this caller queued
		if record, ok := c.lru.Get(key); ok {
			return record, nil
		}
		record, err := load()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, record)
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*fileRecord), nil
}

// invalidate drops one key. Unknown keys are a no-op.
func (c *recordCache) invalidate(key string) {
	c.lru.Remove(key)
}

// len returns the number of cached records.
func (c *recordCache) len() int {
	return c.lru.Len()
}

// purge drops every cached record.
func (c *recordCache) purge() {
	c.lru.Purge()
}
