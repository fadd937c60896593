// Package state owns the two files the engine persists: the processing cursor
// of the signal stream and the per-symbol price extremes log.
package state

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"exalted/internal/logger"
)

// Cursor is the highest signal id whose application has been attempted.
type Cursor struct {
	path string

	mu    sync.Mutex
	value int64
}

// OpenCursor reads the cursor file; a missing or corrupt file starts at 0.
func OpenCursor(path string) *Cursor {
	c := &Cursor{path: strings.TrimSpace(path)}
	c.value = readCursor(c.path)
	return c
}

func readCursor(path string) int64 {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("cursor: read %s failed, starting from 0: %v", path, err)
		}
		return 0
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil || v < 0 {
		logger.Warnf("cursor: corrupt value %q in %s, starting from 0", text, path)
		return 0
	}
	return v
}

// Value returns the in-memory cursor.
func (c *Cursor) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Reload re-reads the file, keeping the larger of the stored and in-memory values.
func (c *Cursor) Reload() int64 {
	onDisk := readCursor(c.path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if onDisk > c.value {
		c.value = onDisk
	}
	return c.value
}

// Advance moves the cursor to id and persists it. Lower ids are ignored so
// the cursor never moves backwards.
func (c *Cursor) Advance(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id <= c.value {
		return nil
	}
	c.value = id
	if c.path == "" {
		return nil
	}
	if err := writeFileAtomic(c.path, []byte(strconv.FormatInt(id, 10)), 0o644); err != nil {
		return fmt.Errorf("persist cursor %d: %w", id, err)
	}
	return nil
}
