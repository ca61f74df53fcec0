package optsync

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache shares compiled programs across the engine's evaluators.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *engineConfig) {
		cfg.programCache = cache
	}
}

// RistrettoOption configures the ristretto-backed program cache.
type RistrettoOption func(*ristretto.Config)

// WithRistrettoConfig replaces the default ristretto configuration.
func WithRistrettoConfig(cfg *ristretto.Config) RistrettoOption {
	return func(c *ristretto.Config) {
		if cfg == nil {
			return
		}
		*c = *cfg
	}
}

// RistrettoProgramCache is a ProgramCache backed by dgraph-io/ristretto. Every
// program costs 1, so MaxCost bounds the number of cached programs.
type RistrettoProgramCache struct {
	c *ristretto.Cache
}

// NewRistrettoProgramCache builds a bounded program cache.
func NewRistrettoProgramCache(opts ...RistrettoOption) (*RistrettoProgramCache, error) {
	cfg := &ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 10,
		BufferItems: 64,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	c, err := ristretto.NewCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("optsync: program cache: %w", err)
	}
	return &RistrettoProgramCache{c: c}, nil
}

// Get implements ProgramCache.
func (r *RistrettoProgramCache) Get(key string) (any, bool) {
	if r == nil || r.c == nil {
		return nil, false
	}
	return r.c.Get(key)
}

// Set implements ProgramCache. The write is visible to Get on return.
func (r *RistrettoProgramCache) Set(key string, value any) {
	if r == nil || r.c == nil {
		return
	}
	r.c.Set(key, value, 1)
	r.c.Wait()
}

// Close releases the cache's background goroutines.
func (r *RistrettoProgramCache) Close() {
	if r == nil || r.c == nil {
		return
	}
	r.c.Close()
}

// mapProgramCache backs rules compiled without a shared cache.
type mapProgramCache map[string]any

func (m mapProgramCache) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapProgramCache) Set(key string, value any) { m[key] = value }
