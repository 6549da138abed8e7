// Package config provides access to the HelixScreen runtime configuration
// stored as JSON at config/config.json. Values are addressed with JSON
// pointer style paths ("/display/drm_device"). Writes are atomic
// (temp file + rename).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Config holds the parsed configuration tree.
type Config struct {
	mu   sync.RWMutex
	path string
	root map[string]interface{}
}

// New creates an empty Config that saves to path.
func New(path string) *Config {
	return &Config{
		path: path,
		root: make(map[string]interface{}),
	}
}

// Load reads the config file at path. A missing file yields an empty
// config (first run); malformed JSON is an error so the caller can decide
// whether to continue with defaults.
func Load(path string) (*Config, error) {
	c := New(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &c.root); err != nil {
		return nil, fmt.Errorf("config: invalid JSON in %s: %w", path, err)
	}
	return c, nil
}

// splitPointer splits "/a/b/c" into ["a","b","c"]. An empty or "/" path
// is invalid.
func splitPointer(ptr string) []string {
	trimmed := strings.Trim(ptr, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// lookup walks the tree to the value at ptr. Returns nil, false if any
// segment is missing.
func (c *Config) lookup(ptr string) (interface{}, bool) {
	parts := splitPointer(ptr)
	if parts == nil {
		return nil, false
	}

	var cur interface{} = c.root
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns the string at ptr, or fallback if absent or not a string.
func (c *Config) GetString(ptr, fallback string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.lookup(ptr)
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// GetInt returns the integer at ptr, or fallback.
func (c *Config) GetInt(ptr string, fallback int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.lookup(ptr)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return fallback
}

// GetBool returns the boolean at ptr, or fallback.
func (c *Config) GetBool(ptr string, fallback bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.lookup(ptr)
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// GetFloat returns the float at ptr, or fallback.
func (c *Config) GetFloat(ptr string, fallback float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.lookup(ptr)
	if !ok {
		return fallback
	}
	f, ok := v.(float64)
	if !ok {
		return fallback
	}
	return f
}

// GetRaw returns the raw JSON value at ptr (maps, arrays, scalars).
func (c *Config) GetRaw(ptr string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(ptr)
}

// Set stores value at ptr, creating intermediate objects as needed.
func (c *Config) Set(ptr string, value interface{}) error {
	parts := splitPointer(ptr)
	if parts == nil {
		return fmt.Errorf("config: invalid pointer %q", ptr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// Delete removes the value at ptr if present.
func (c *Config) Delete(ptr string) {
	parts := splitPointer(ptr)
	if parts == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// Save writes the config atomically using a temp file and rename.
func (c *Config) Save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.root, "", "  ")
	path := c.path
	c.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("config: marshal failed: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: unable to create %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("config: failed to write: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: failed to rename temp file: %w", err)
	}
	return nil
}

// Path returns the file path this config saves to.
func (c *Config) Path() string {
	return c.path
}
