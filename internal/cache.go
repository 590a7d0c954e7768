package internal

import (
	"crypto/md5"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tt "github.com/gnolang/moveaudit/internal/types"
)

const (
	cacheFileName = "audit_cache.gob"
	// DefaultCacheMaxAge is how long a cached report stays valid.
	DefaultCacheMaxAge = 24 * time.Hour
)

// CacheEntry is a report stored for the exact content it was produced from.
type CacheEntry struct {
	Fingerprint  string
	Report       tt.Report
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Cache persists audit reports keyed by file name and content hash.
type Cache struct {
	CacheDir string
	entries  map[string]CacheEntry
	mutex    sync.Mutex
	maxAge   time.Duration
	now      func() time.Time
}

// NewCache opens the cache stored in cacheDir, creating the directory when
// needed.
func NewCache(cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &Cache{
		CacheDir: cacheDir,
		entries:  make(map[string]CacheEntry),
		maxAge:   DefaultCacheMaxAge,
		now:      time.Now,
	}

	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}

	return cache, nil
}

func (c *Cache) load() error {
	file, err := os.Open(filepath.Join(c.CacheDir, cacheFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil // nothing cached yet
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&c.entries); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	return nil
}

func (c *Cache) save() error {
	file, err := os.Create(filepath.Join(c.CacheDir, cacheFileName))
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c.entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	return nil
}

// Set stores the report produced for source.
func (c *Cache) Set(filename string, source []byte, fingerprint string, report *tt.Report) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	c.entries[cacheKey(filename, source)] = CacheEntry{
		Fingerprint:  fingerprint,
		Report:       *report,
		CreatedAt:    now,
		LastAccessed: now,
	}
	return c.save()
}

// Get returns the cached report for source when it was produced with the
// same rule fingerprint and has not expired.
func (c *Cache) Get(filename string, source []byte, fingerprint string) (*tt.Report, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey(filename, source)
	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if c.isEntryInvalid(entry, fingerprint) {
		delete(c.entries, key)
		return nil, false
	}

	entry.LastAccessed = c.now()
	c.entries[key] = entry

	report := entry.Report
	return &report, true
}

func (c *Cache) isEntryInvalid(entry CacheEntry, fingerprint string) bool {
	if c.maxAge > 0 && c.now().Sub(entry.CreatedAt) > c.maxAge {
		return true
	}
	return entry.Fingerprint != fingerprint
}

// SetMaxAge changes the entry lifetime. Zero disables expiry.
func (c *Cache) SetMaxAge(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = duration
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]CacheEntry)
	return c.save()
}

func cacheKey(filename string, source []byte) string {
	hash := md5.New()
	hash.Write([]byte(filepath.Base(filename)))
	hash.Write([]byte{0})
	hash.Write(source)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
