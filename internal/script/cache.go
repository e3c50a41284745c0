package script

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	cacheFilePermissions = 0o600
	cacheDirPermissions  = 0o750
)

// cacheKeyPayload fixes the fields, and their order, that identify one
// completion request.
type cacheKeyPayload struct {
	MaxTokens   int     `json:"max_tokens"`
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
}

type cacheEntry struct {
	ExpiresAt int64  `json:"expires_at"`
	Value     string `json:"value"`
}

// ResponseCache memoizes completion texts for identical requests within a
// TTL, so repeated runs for the same topic do not spend quota. Entries
// optionally persist to a JSON file across process restarts.
type ResponseCache struct {
	ttl      time.Duration
	diskPath string

	mu      sync.Mutex
	entries map[string]cacheEntry

	now func() time.Time
}

// NewResponseCache creates a cache with the given entry lifetime. An empty
// diskPath keeps the cache in memory only; otherwise entries surviving their
// TTL are loaded from the file at construction.
func NewResponseCache(ttl time.Duration, diskPath string) *ResponseCache {
	cache := &ResponseCache{
		ttl:      ttl,
		diskPath: diskPath,
		mu:       sync.Mutex{},
		entries:  make(map[string]cacheEntry),
		now:      time.Now,
	}

	cache.loadDisk()

	return cache
}

// Get returns the cached completion text for the key. Expired entries are
// evicted on access.
func (c *ResponseCache) Get(key string) (string, bool) {
	now := c.now().Unix()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}

	if entry.ExpiresAt <= now {
		delete(c.entries, key)
		c.persistLocked()

		return "", false
	}

	return entry.Value, true
}

// Set stores the completion text under the key with a fresh expiry.
func (c *ResponseCache) Set(key, value string) {
	expiresAt := c.now().Add(c.ttl).Unix()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		ExpiresAt: expiresAt,
		Value:     value,
	}
	c.persistLocked()
}

func (c *ResponseCache) loadDisk() {
	if c.diskPath == "" {
		return
	}

	data, err := os.ReadFile(c.diskPath)
	if err != nil {
		return
	}

	var entries map[string]cacheEntry

	err = json.Unmarshal(data, &entries)
	if err != nil {
		return
	}

	now := c.now().Unix()

	for key, entry := range entries {
		if entry.ExpiresAt > now {
			c.entries[key] = entry
		}
	}
}

// persistLocked writes the cache file. Persistence is best effort: a failed
// write only loses memoization, never a run.
func (c *ResponseCache) persistLocked() {
	if c.diskPath == "" {
		return
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		return
	}

	mkdirErr := os.MkdirAll(filepath.Dir(c.diskPath), cacheDirPermissions)
	if mkdirErr != nil {
		return
	}

	_ = os.WriteFile(c.diskPath, data, cacheFilePermissions)
}

// cacheKey derives a stable identity for a completion request from everything
// that shapes its output.
func cacheKey(model string, maxTokens int, temperature float64, prompt string) string {
	payload, err := json.Marshal(cacheKeyPayload{
		MaxTokens:   maxTokens,
		Model:       model,
		Prompt:      prompt,
		Temperature: temperature,
	})
	if err != nil {
		payload = []byte(prompt)
	}

	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:])
}
