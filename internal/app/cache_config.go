package app

import "github.com/openvolume/volcached/internal/imagecache"

// EngineConfig converts the application cache configuration into the cache
// package representation.
func (c CacheConfig) EngineConfig() imagecache.Config {
	return imagecache.Config{
		MaxSizeGB: c.MaxSizeGB,
		MaxCount:  c.MaxCount,
	}
}
