// Package uploadcache is the content-addressed upload cache: a
// SHA-256 hash of a local file maps to the remote URL it was last uploaded
// to, with LRU capacity and per-entry TTL.
package uploadcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	defaultCapacity = 100
	defaultTTL      = 24 * time.Hour
	hashChunkBytes  = 8192
)

// UploadFunc performs the actual upload of a local file and returns its
// remote URL. It is called outside the cache's lock.
type UploadFunc func(localPath string) (string, error)

// Result is what get_or_upload returns to the caller.
type Result struct {
	URL    string
	Cached bool
	SHA256 string
}

type entry struct {
	url        string
	insertedAt time.Time
	elem       *list.Element // position in the LRU list
}

// Cache is a mutex-guarded, content-addressed upload cache. The upload call
// itself runs outside the lock; two concurrent misses for the same path may
// both upload, and the cache simply keeps the result written last.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*entry // sha256 -> entry
	order    *list.List        // front = most recently used
}

// New constructs a cache with the given capacity and TTL. A capacity or TTL
// of zero uses the default (100 entries, 24h).
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*entry),
		order:    list.New(),
	}
}

// GetOrUpload returns the cached URL for localPath's content hash if present
// and unexpired, promoting it to most-recently-used. On a miss it calls
// uploader outside the lock, then caches the result, evicting the
// least-recently-used entry if at capacity.
func (c *Cache) GetOrUpload(localPath string, uploader UploadFunc) (Result, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("not_found: %s", localPath)
		}
		return Result{}, fmt.Errorf("io_error: %w", err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("not_a_file: %s", localPath)
	}

	sum, err := hashFile(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("io_error: %w", err)
	}

	if url, ok := c.get(sum); ok {
		return Result{URL: url, Cached: true, SHA256: sum}, nil
	}

	url, err := uploader(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("upload_failed: %w", err)
	}

	c.put(sum, url)
	return Result{URL: url, Cached: false, SHA256: sum}, nil
}

func (c *Cache) get(sum string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sum]
	if !ok {
		return "", false
	}
	if time.Since(e.insertedAt) > c.ttl {
		c.order.Remove(e.elem)
		delete(c.entries, sum)
		return "", false
	}
	c.order.MoveToFront(e.elem)
	return e.url, true
}

func (c *Cache) put(sum, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[sum]; ok {
		existing.url = url
		existing.insertedAt = time.Now()
		c.order.MoveToFront(existing.elem)
		return
	}

	elem := c.order.PushFront(sum)
	c.entries[sum] = &entry{url: url, insertedAt: time.Now(), elem: elem}

	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}
}

// Len reports the current entry count, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkBytes)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
