package phash

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmylchreest/ptsites/internal/logger"
)

// AnswerCache maps image hashes to answers that a site accepted. The whole
// file is read on every lookup and rewritten on every store, so edits made
// by hand between runs are picked up. Entries are never expired.
type AnswerCache struct {
	path string
	mu   sync.Mutex
}

// NewAnswerCache returns a cache backed by the JSON file at path. The file is
// created on first Store.
func NewAnswerCache(path string) *AnswerCache {
	return &AnswerCache{path: path}
}

// Path returns the backing file path.
func (c *AnswerCache) Path() string {
	return c.path
}

// Lookup returns the cached answer for hash.
func (c *AnswerCache) Lookup(hash string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load()
	if err != nil {
		return "", false, err
	}
	answer, ok := entries[hash]
	return answer, ok, nil
}

// Store records hash -> answer. Storing an identical entry does not touch
// the file.
func (c *AnswerCache) Store(hash, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load()
	if err != nil {
		return err
	}
	if existing, ok := entries[hash]; ok && existing == answer {
		return nil
	}
	entries[hash] = answer

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer cache: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	if err := writeAtomic(c.path, data); err != nil {
		return fmt.Errorf("failed to write answer cache: %w", err)
	}
	logger.Debug("answer cache updated", "path", c.path, "entries", len(entries))
	return nil
}

// Len returns the number of cached answers.
func (c *AnswerCache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (c *AnswerCache) load() (map[string]string, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read answer cache: %w", err)
	}
	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse answer cache %s: %w", c.path, err)
	}
	// A file holding null unmarshals to a nil map.
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

// writeAtomic replaces path with data through a temporary file in the same
// directory, so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
