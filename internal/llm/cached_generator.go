package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// CachedTextGenerator wraps a TextGenerator and remembers responses per
// prompt, optionally persisted to a JSON file. Cache hits report no token
// usage.
type CachedTextGenerator struct {
	realGen       TextGenerator
	cache         map[string]string
	cacheFilePath string
	mu            sync.Mutex
}

// NewCachedTextGenerator creates a CachedTextGenerator. An empty
// cacheFilePath keeps the cache in memory only.
func NewCachedTextGenerator(realGen TextGenerator, cacheFilePath string) (*CachedTextGenerator, error) {
	c := &CachedTextGenerator{
		realGen:       realGen,
		cache:         make(map[string]string),
		cacheFilePath: cacheFilePath,
	}
	if cacheFilePath == "" {
		return c, nil
	}

	if err := os.MkdirAll(filepath.Dir(cacheFilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := os.ReadFile(cacheFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", cacheFilePath, err)
	}
	if err := json.Unmarshal(data, &c.cache); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data from %s: %w", cacheFilePath, err)
	}

	log.Printf("Loaded %d cached responses from %s", len(c.cache), cacheFilePath)
	return c, nil
}

// GenerateContent checks the cache first and falls back to the wrapped
// generator on a miss.
func (c *CachedTextGenerator) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	c.mu.Lock()
	content, ok := c.cache[prompt]
	c.mu.Unlock()
	if ok {
		return ContentResponse{Content: content}, nil
	}

	resp, err := c.realGen.GenerateContent(ctx, prompt)
	if err != nil {
		return ContentResponse{}, err
	}

	c.mu.Lock()
	c.cache[prompt] = resp.Content
	c.mu.Unlock()
	return resp, nil
}

// Invalidate drops the cached response for prompt so the next call reaches
// the wrapped generator again.
func (c *CachedTextGenerator) Invalidate(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, prompt)
}

// Len returns the number of cached prompts.
func (c *CachedTextGenerator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// SaveCache persists the current in-memory cache to the file system.
func (c *CachedTextGenerator) SaveCache() error {
	if c.cacheFilePath == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(c.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := os.WriteFile(c.cacheFilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", c.cacheFilePath, err)
	}
	return nil
}

// Close saves the cache and closes the wrapped generator when it can be closed.
func (c *CachedTextGenerator) Close() error {
	if err := c.SaveCache(); err != nil {
		return err
	}
	if closer, ok := c.realGen.(Closer); ok {
		return closer.Close()
	}
	return nil
}
