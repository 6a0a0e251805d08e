package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openvolume/volcached/internal/api"
	"github.com/openvolume/volcached/internal/app"
	"github.com/openvolume/volcached/internal/app/maintenance"
	"github.com/openvolume/volcached/internal/database"
	"github.com/openvolume/volcached/internal/imagecache"
	"github.com/openvolume/volcached/internal/notify"
	"github.com/openvolume/volcached/internal/store"
	"github.com/openvolume/volcached/internal/volumes"
	"github.com/openvolume/volcached/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Entries  *store.EntryStore
	Volumes  *volumes.Service
	Cache    *imagecache.Cache
	Recorder *notify.Recorder
	Hub      *notify.Hub
	Reaper   *maintenance.Reaper
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, cache engine, notifiers,
// maintenance jobs, and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Entries, err = store.NewEntryStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise entry store: %w", err)
	}

	stack.Volumes, err = volumes.NewService(stack.DB, stack.Entries)
	if err != nil {
		return nil, fmt.Errorf("initialise volume service: %w", err)
	}

	stack.Recorder, err = notify.NewRecorder(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise event recorder: %w", err)
	}

	sinks := notify.Multi{notify.NewLogNotifier(), stack.Recorder}
	if cfg.Events.StreamEnabled {
		stack.Hub = notify.NewHub()
		sinks = append(sinks, stack.Hub)
	}

	stack.Cache, err = imagecache.New(stack.Entries, stack.Volumes, sinks, cfg.Cache.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise image cache: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Reaper, err = maintenance.NewReaper(stack.Cache, stack.Entries,
			maintenance.WithReconcileSchedule(cfg.Maintenance.ReconcileSchedule),
			maintenance.WithRecorder(stack.Recorder),
			maintenance.WithEventHistory(cfg.Events.HistoryLimit),
		)
		if err != nil {
			return nil, fmt.Errorf("initialise maintenance: %w", err)
		}
		if err := stack.Reaper.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(cfg, api.Deps{
		DB:       stack.DB,
		Cache:    stack.Cache,
		Entries:  stack.Entries,
		Volumes:  stack.Volumes,
		Recorder: stack.Recorder,
		Hub:      stack.Hub,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	log.Info("runtime initialised",
		zap.Int64("cache_max_size_gb", cfg.Cache.MaxSizeGB),
		zap.Int64("cache_max_count", cfg.Cache.MaxCount),
	)
	return stack, nil
}

// Shutdown stops background jobs and closes the database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Reaper != nil {
		stopCtx := s.Reaper.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs did not stop before shutdown deadline")
		}
	}

	closeDatabase(s.DB, log)
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.MustMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
