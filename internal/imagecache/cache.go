package imagecache

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openvolume/volcached/internal/models"
	"github.com/openvolume/volcached/internal/notify"
	"github.com/openvolume/volcached/internal/store"
	"github.com/openvolume/volcached/pkg/logger"
	"github.com/openvolume/volcached/pkg/metrics"
)

// Event names emitted by the cache.
const (
	EventHit   = "image_volume_cache.hit"
	EventMiss  = "image_volume_cache.miss"
	EventEvict = "image_volume_cache.evict"
)

// Config bounds the cache. A zero ceiling disables that dimension; with
// both at zero the cache is unlimited.
type Config struct {
	MaxSizeGB int64
	MaxCount  int64
}

// VolumeDeleter removes a backing volume. Implementations must also remove
// the cache entry registered against the volume, so a successful delete
// leaves no metadata behind.
type VolumeDeleter interface {
	Delete(ctx context.Context, volumeID string) error
}

// Cache decides whether a previously materialized image-volume can be
// reused and keeps each scope's set of cached volumes under the configured
// ceilings. Capacity is enforced with greedy least-recently-used eviction.
//
// The cache itself holds no locks: concurrent callers are resolved by the
// store's uniqueness constraint, and capacity compliance is eventual rather
// than strict when two workers race through EnsureSpace.
type Cache struct {
	entries  *store.EntryStore
	volumes  VolumeDeleter
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
	log      *zap.Logger
}

// Option customises the Cache.
type Option func(*Cache)

// WithNow overrides the clock, primarily for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Cache. The notifier may be nil, in which case events are
// discarded.
func New(entries *store.EntryStore, volumes VolumeDeleter, notifier notify.Notifier, cfg Config, opts ...Option) (*Cache, error) {
	if entries == nil {
		return nil, errors.New("image cache: entry store is required")
	}
	if volumes == nil {
		return nil, errors.New("image cache: volume deleter is required")
	}
	if cfg.MaxSizeGB < 0 || cfg.MaxCount < 0 {
		return nil, errors.New("image cache: ceilings must not be negative")
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}

	c := &Cache{
		entries:  entries,
		volumes:  volumes,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		log:      logger.WithModule("imagecache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetEntry returns the cached entry for (imageID, scope) if one exists and
// is still fresh against updatedAt, bumping its recency. A stale entry has
// its backing volume deleted and counts as a miss. Both absence and
// staleness return (nil, nil); only collaborator failures return an error.
func (c *Cache) GetEntry(ctx context.Context, scope store.Scope, imageID string, updatedAt Timestamp) (*models.ImageVolumeEntry, error) {
	if c == nil {
		return nil, errors.New("image cache: cache not initialised")
	}
	ctx = ensuredContext(ctx)

	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return nil, errors.New("image cache: image id is required")
	}
	if updatedAt == nil {
		return nil, errors.New("image cache: image updated_at is required")
	}

	want, err := updatedAt.UTC()
	if err != nil {
		return nil, err
	}

	entry, err := c.entries.GetAndTouch(ctx, scope, imageID)
	if err != nil {
		return nil, err
	}

	if entry != nil && !entry.ImageUpdatedAt.UTC().Equal(want) {
		// The source image changed since the volume was built. Delete the
		// backing volume (removing the entry with it) and treat as a miss.
		c.log.Debug("stale cache entry",
			zap.String("image_id", imageID),
			zap.String("scope", scope.String()),
			zap.String("volume_id", entry.VolumeID),
		)
		if err := c.volumes.Delete(ctx, entry.VolumeID); err != nil {
			return nil, err
		}
		c.notifyEvict(ctx, scope, entry)
		metrics.CacheEvictions.WithLabelValues("stale").Inc()
		entry = nil
	}

	if entry == nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		c.notify(ctx, EventMiss, scope, map[string]any{"image_id": imageID})
		return nil, nil
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	c.notify(ctx, EventHit, scope, map[string]any{
		"image_id":  imageID,
		"volume_id": entry.VolumeID,
	})
	return entry, nil
}

// CreateEntry registers a volume the caller has already materialized from
// the image and confirmed available. No notification is emitted on create.
func (c *Cache) CreateEntry(ctx context.Context, scope store.Scope, imageID string, updatedAt Timestamp, volume *models.Volume) (*models.ImageVolumeEntry, error) {
	if c == nil {
		return nil, errors.New("image cache: cache not initialised")
	}
	ctx = ensuredContext(ctx)

	if volume == nil {
		return nil, errors.New("image cache: volume is required")
	}
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return nil, errors.New("image cache: image id is required")
	}
	if updatedAt == nil {
		return nil, errors.New("image cache: image updated_at is required")
	}

	normalized, err := updatedAt.UTC()
	if err != nil {
		return nil, err
	}

	entry := &models.ImageVolumeEntry{
		ImageID:        imageID,
		ImageUpdatedAt: normalized,
		VolumeID:       volume.ID,
		Size:           volume.Size,
		Host:           scope.Host,
		ClusterName:    scope.Cluster,
		LastUsed:       c.now().UTC(),
	}
	if err := c.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// EnsureSpace evicts least-recently-used entries until candidate would fit
// under the configured ceilings, and reports whether it can fit at all. A
// candidate larger than the size ceiling is rejected without evicting
// anything. Only collaborator failures return an error.
func (c *Cache) EnsureSpace(ctx context.Context, scope store.Scope, candidate *models.Volume) (bool, error) {
	if c == nil {
		return false, errors.New("image cache: cache not initialised")
	}
	ctx = ensuredContext(ctx)

	if candidate == nil {
		return false, errors.New("image cache: candidate volume is required")
	}

	defer func(start time.Time) {
		metrics.EnsureSpaceDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	if c.cfg.MaxSizeGB == 0 && c.cfg.MaxCount == 0 {
		return true, nil
	}

	// No amount of eviction makes an over-sized candidate fit.
	if c.cfg.MaxSizeGB > 0 && candidate.Size > c.cfg.MaxSizeGB {
		return false, nil
	}

	entries, err := c.entries.GetAll(ctx, scope)
	if err != nil {
		return false, err
	}

	count := int64(len(entries)) + 1
	size := candidate.Size
	for _, entry := range entries {
		size += entry.Size
	}

	for c.overCeiling(size, count) && len(entries) > 0 {
		victim := entries[len(entries)-1]
		entries = entries[:len(entries)-1]

		if err := c.evictVolume(ctx, scope, &victim); err != nil {
			return false, err
		}
		metrics.CacheEvictions.WithLabelValues("capacity").Inc()

		size -= victim.Size
		count--
	}

	// Guarded above, but eviction must never report success while the
	// scope still exceeds a configured size ceiling.
	if c.cfg.MaxSizeGB > 0 && size > c.cfg.MaxSizeGB {
		return false, nil
	}
	return true, nil
}

// Evict removes the metadata entry for an already-deleted or externally
// deleted volume and emits the eviction event. Callers on the volume-delete
// path use this to keep the cache consistent.
func (c *Cache) Evict(ctx context.Context, scope store.Scope, entry *models.ImageVolumeEntry) error {
	if c == nil {
		return errors.New("image cache: cache not initialised")
	}
	ctx = ensuredContext(ctx)

	if entry == nil {
		return errors.New("image cache: entry is required")
	}

	if err := c.entries.DeleteByVolume(ctx, entry.VolumeID); err != nil {
		return err
	}
	metrics.CacheEvictions.WithLabelValues("manual").Inc()
	c.notifyEvict(ctx, scope, entry)
	return nil
}

// GetByVolume maps a volume back to its cache registration, if any.
func (c *Cache) GetByVolume(ctx context.Context, scope store.Scope, volumeID string) (*models.ImageVolumeEntry, error) {
	if c == nil {
		return nil, errors.New("image cache: cache not initialised")
	}
	return c.entries.GetByVolume(ensuredContext(ctx), scope, volumeID)
}

// Reconcile evicts least-recently-used entries until the scope satisfies
// both configured ceilings, returning the number of evictions. Periodic
// maintenance uses it to pull a scope back under limits after races let it
// drift over.
func (c *Cache) Reconcile(ctx context.Context, scope store.Scope) (int, error) {
	if c == nil {
		return 0, errors.New("image cache: cache not initialised")
	}
	ctx = ensuredContext(ctx)

	if c.cfg.MaxSizeGB == 0 && c.cfg.MaxCount == 0 {
		return 0, nil
	}

	entries, err := c.entries.GetAll(ctx, scope)
	if err != nil {
		return 0, err
	}

	count := int64(len(entries))
	var size int64
	for _, entry := range entries {
		size += entry.Size
	}

	evicted := 0
	for c.overCeiling(size, count) && len(entries) > 0 {
		victim := entries[len(entries)-1]
		entries = entries[:len(entries)-1]

		if err := c.evictVolume(ctx, scope, &victim); err != nil {
			return evicted, err
		}
		metrics.CacheEvictions.WithLabelValues("capacity").Inc()

		size -= victim.Size
		count--
		evicted++
	}

	metrics.CacheEntries.WithLabelValues(scope.String()).Set(float64(count))
	metrics.CacheSizeGB.WithLabelValues(scope.String()).Set(float64(size))
	return evicted, nil
}

// overCeiling reports whether usage exceeds any configured ceiling. A zero
// ceiling disables its dimension entirely, so a disabled dimension never
// forces an eviction on its own.
func (c *Cache) overCeiling(size, count int64) bool {
	if c.cfg.MaxSizeGB > 0 && size > c.cfg.MaxSizeGB {
		return true
	}
	if c.cfg.MaxCount > 0 && count > c.cfg.MaxCount {
		return true
	}
	return false
}

// evictVolume deletes a victim's backing volume and emits the eviction
// event. Deletion failures propagate: a swallowed failure here would let
// the cache drift over its ceilings indefinitely.
func (c *Cache) evictVolume(ctx context.Context, scope store.Scope, entry *models.ImageVolumeEntry) error {
	if err := c.volumes.Delete(ctx, entry.VolumeID); err != nil {
		return err
	}

	c.log.Info("evicted image volume",
		zap.String("image_id", entry.ImageID),
		zap.String("volume_id", entry.VolumeID),
		zap.String("scope", scope.String()),
		zap.Int64("size_gb", entry.Size),
	)
	c.notifyEvict(ctx, scope, entry)
	return nil
}

func (c *Cache) notifyEvict(ctx context.Context, scope store.Scope, entry *models.ImageVolumeEntry) {
	c.notify(ctx, EventEvict, scope, map[string]any{
		"image_id":  entry.ImageID,
		"volume_id": entry.VolumeID,
		"size":      entry.Size,
	})
}

func (c *Cache) notify(ctx context.Context, name string, scope store.Scope, payload map[string]any) {
	c.notifier.Notify(ctx, notify.Event{
		Name:    name,
		Scope:   scope.String(),
		Payload: payload,
		At:      c.now().UTC(),
	})
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
