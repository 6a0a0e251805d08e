package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/openvolume/volcached/internal/app"
	"github.com/openvolume/volcached/internal/handlers"
	"github.com/openvolume/volcached/internal/imagecache"
	"github.com/openvolume/volcached/internal/middleware"
	"github.com/openvolume/volcached/internal/notify"
	"github.com/openvolume/volcached/internal/store"
	"github.com/openvolume/volcached/internal/volumes"
)

// Deps bundles the long-lived services the router exposes.
type Deps struct {
	DB       *gorm.DB
	Cache    *imagecache.Cache
	Entries  *store.EntryStore
	Volumes  *volumes.Service
	Recorder *notify.Recorder
	Hub      *notify.Hub
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(cfg *app.Config, deps Deps) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	cacheHandler, err := handlers.NewCacheHandler(deps.Cache, deps.Entries, cfg.Cache.EngineConfig())
	if err != nil {
		return nil, err
	}
	volumeHandler, err := handlers.NewVolumeHandler(deps.Volumes, deps.Cache)
	if err != nil {
		return nil, err
	}
	eventsHandler, err := handlers.NewEventsHandler(deps.Recorder, deps.Hub)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")

	cache := api.Group("/cache")
	{
		cache.GET("/entries", cacheHandler.List)
		cache.DELETE("/entries/:id", cacheHandler.Evict)
		cache.GET("/stats", cacheHandler.Stats)
	}

	vols := api.Group("/volumes")
	{
		vols.GET("", volumeHandler.List)
		vols.GET("/:id", volumeHandler.Get)
		vols.POST("", volumeHandler.Create)
		vols.DELETE("/:id", volumeHandler.Delete)
	}

	api.GET("/events", eventsHandler.List)

	if cfg.Events.StreamEnabled && deps.Hub != nil {
		r.GET("/ws/events", eventsHandler.Stream)
	}

	return r, nil
}
