// Package framecache holds the encoded rasters captured for one video session.
//
// The cache is append-only: once an index is written it keeps its value until
// Clear, which only the session calls when the video is closed.
package framecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidIndex = errors.New("framecache: index out of range")

type Cache struct {
	frames int

	mu      sync.RWMutex
	entries map[int][]byte
}

// New creates a cache for a video with the given number of frames. A
// non-positive frame count disables the upper bound check.
func New(frames int) *Cache {
	return &Cache{
		frames:  frames,
		entries: make(map[int][]byte),
	}
}

func (c *Cache) Has(index int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[index]
	return ok
}

func (c *Cache) Get(index int) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raster, ok := c.entries[index]
	return raster, ok
}

// Put stores a raster and reports whether it was written. An index that is
// already cached is left untouched.
func (c *Cache) Put(index int, raster []byte) (bool, error) {
	if index < 0 || (c.frames > 0 && index >= c.frames) {
		return false, fmt.Errorf("%w: %d (frames=%d)", ErrInvalidIndex, index, c.frames)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[index]; ok {
		return false, nil
	}
	c.entries[index] = raster
	return true, nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Indices returns the cached frame indices in ascending order.
func (c *Cache) Indices() []int {
	c.mu.RLock()
	ret := make([]int, 0, len(c.entries))
	for idx := range c.entries {
		ret = append(ret, idx)
	}
	c.mu.RUnlock()
	slices.Sort(ret)
	return ret
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[int][]byte)
	c.mu.Unlock()
}

// Dump writes every cached frame to dir as frame_NNNNNN.jpg using at most
// workers concurrent writers. It returns the number of files written.
func (c *Cache) Dump(ctx context.Context, dir string, workers int) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create dump directory: %w", err)
	}
	if workers <= 0 {
		workers = 1
	}

	indices := c.Indices()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, idx := range indices {
		raster, ok := c.Get(idx)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, FrameFileName(idx))
			if err := os.WriteFile(path, raster, 0o644); err != nil {
				return fmt.Errorf("write frame %d: %w", idx, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(indices), nil
}

func FrameFileName(index int) string {
	return fmt.Sprintf("frame_%06d.jpg", index)
}
