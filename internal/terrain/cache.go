package terrain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/crypto/blake2b"
)

// ErrNotFound is returned by a HeightFieldStore on a cache miss.
var ErrNotFound = errors.New("height field not found")

// HeightFieldStore persists generated height fields by cache key.
// Implementations are called from worker goroutines and must be safe for
// concurrent use.
type HeightFieldStore interface {
	LoadHeightField(ctx context.Context, key string) (*HeightField, error)
	SaveHeightField(ctx context.Context, key string, hf *HeightField) error
}

// CacheKey identifies a height field by every input that affects it.
func CacheKey(width, height int, settings HeightFieldSettings, origin mgl64.Vec2) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%d|%d|%+v|%.6f|%.6f", width, height, settings, origin.X(), origin.Y())
	return hex.EncodeToString(h.Sum(nil))
}

// CachedGenerator serves height fields from a store and falls back to Base.
// Store failures never fail generation; they are logged and skipped.
type CachedGenerator struct {
	Base  HeightFieldGenerator
	Store HeightFieldStore
}

// NewCachedGenerator wraps base with store.
func NewCachedGenerator(base HeightFieldGenerator, store HeightFieldStore) *CachedGenerator {
	return &CachedGenerator{Base: base, Store: store}
}

// Generate implements HeightFieldGenerator.
func (g *CachedGenerator) Generate(ctx context.Context, width, height int, settings HeightFieldSettings, origin mgl64.Vec2) (*HeightField, error) {
	key := CacheKey(width, height, settings, origin)

	hf, err := g.Store.LoadHeightField(ctx, key)
	switch {
	case err == nil:
		if hf.Width == width && hf.Height == height {
			return hf, nil
		}
		slog.Warn("cached height field has wrong size, regenerating",
			"key", key, "width", hf.Width, "height", hf.Height)
	case errors.Is(err, ErrNotFound):
	default:
		slog.Warn("height field cache load failed", "key", key, "err", err)
	}

	hf, err = g.Base.Generate(ctx, width, height, settings, origin)
	if err != nil {
		return nil, err
	}
	if err := g.Store.SaveHeightField(ctx, key, hf); err != nil {
		slog.Warn("height field cache save failed", "key", key, "err", err)
	}
	return hf, nil
}
