package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/arc/v2"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/texture"
)

// DefaultSize is the number of decoded textures kept when no size is configured.
const DefaultSize = 256

// Textures holds decoded textures keyed by their normalized asset path. It
// is safe for concurrent use.
type Textures struct {
	lru *lru.ARCCache[uint64, *texture.PixelBuffer]
}

// NewTextures creates a texture cache holding up to size entries.
func NewTextures(size int) (*Textures, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.NewARC[uint64, *texture.PixelBuffer](size)
	if err != nil {
		return nil, fmt.Errorf("creating texture cache: %w", err)
	}
	return &Textures{lru: c}, nil
}

// Key returns the cache key for path. Paths that differ only in case or
// separator style share a key.
func Key(path string) uint64 {
	return xxhash.Sum64String(arc.NormalizePath(path))
}

// Get returns the cached texture for path.
func (t *Textures) Get(path string) (*texture.PixelBuffer, bool) {
	return t.lru.Get(Key(path))
}

// Add stores a decoded texture.
func (t *Textures) Add(path string, pb *texture.PixelBuffer) {
	t.lru.Add(Key(path), pb)
}

// Len returns the number of cached textures.
func (t *Textures) Len() int {
	return t.lru.Len()
}

// Purge drops every cached texture.
func (t *Textures) Purge() {
	t.lru.Purge()
}
