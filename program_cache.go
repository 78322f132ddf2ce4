package opts

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ProgramCache stores compiled rule programs. Keys are prefixed with the
// engine name, so one cache can be shared by several evaluators.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// DefaultProgramCacheSize bounds the cache built by NewProgramCache(0).
const DefaultProgramCacheSize = 256

type lruProgramCache struct {
	programs *lru.Cache[string, any]
}

// NewProgramCache returns a ProgramCache evicting the least recently used
// program once size programs are cached. size <= 0 uses
// DefaultProgramCacheSize.
func NewProgramCache(size int) (ProgramCache, error) {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}
	programs, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &lruProgramCache{programs: programs}, nil
}

func (c *lruProgramCache) Get(key string) (any, bool) {
	return c.programs.Get(key)
}

func (c *lruProgramCache) Set(key string, value any) {
	c.programs.Add(key, value)
}

// WithProgramCache shares cache with the service's evaluator.
func WithProgramCache(cache ProgramCache) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.programCache = cache
	}
}

// loadProgram returns the program cached under engine:key, compiling and
// caching it on a miss. A nil cache always compiles.
func loadProgram[P any](cache ProgramCache, engine, key string, compile func() (P, error)) (P, error) {
	cacheKey := engine + ":" + key
	if cache != nil {
		if cached, ok := cache.Get(cacheKey); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile()
	if err != nil {
		var zero P
		return zero, err
	}
	if cache != nil {
		cache.Set(cacheKey, program)
	}
	return program, nil
}
