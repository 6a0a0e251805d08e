package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openvolume/volcached/internal/imagecache"
	"github.com/openvolume/volcached/internal/store"
	appErrors "github.com/openvolume/volcached/pkg/errors"
	"github.com/openvolume/volcached/pkg/response"
)

// CacheHandler exposes the image-volume cache to operators.
type CacheHandler struct {
	cache   *imagecache.Cache
	entries *store.EntryStore
	cfg     imagecache.Config
}

// NewCacheHandler constructs the cache handler.
func NewCacheHandler(cache *imagecache.Cache, entries *store.EntryStore, cfg imagecache.Config) (*CacheHandler, error) {
	if cache == nil {
		return nil, errors.New("cache handler: cache is required")
	}
	if entries == nil {
		return nil, errors.New("cache handler: entry store is required")
	}
	return &CacheHandler{cache: cache, entries: entries, cfg: cfg}, nil
}

// List responds with every cache entry in the scope, most recently used
// first.
//
// GET /api/cache/entries?host=|cluster=
func (h *CacheHandler) List(c *gin.Context) {
	scope, err := scopeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, err := h.entries.GetAll(requestContext(c), scope)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list cache entries"))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, entries, &response.Meta{Total: len(entries)})
}

// Stats reports the scope's usage against the configured ceilings.
//
// GET /api/cache/stats?host=|cluster=
func (h *CacheHandler) Stats(c *gin.Context) {
	scope, err := scopeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	count, size, err := h.entries.Usage(requestContext(c), scope)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to compute cache usage"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"scope":       scope.String(),
		"entry_count": count,
		"size_gb":     size,
		"max_size_gb": h.cfg.MaxSizeGB,
		"max_count":   h.cfg.MaxCount,
	})
}

// Evict removes a cache entry's metadata, unmanaging the backing volume
// from the cache. The volume itself stays in the registry; delete it
// through the volume API to reclaim capacity.
//
// DELETE /api/cache/entries/:id
func (h *CacheHandler) Evict(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := requestContext(c)

	entry, err := h.entries.Get(ctx, id)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to load cache entry"))
		return
	}
	if entry == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	scope := store.HostScope(entry.Host)
	if entry.ClusterName != "" {
		scope = store.ClusterScope(entry.ClusterName)
	}

	if err := h.cache.Evict(ctx, scope, entry); err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to evict cache entry"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"evicted": entry.ID})
}
