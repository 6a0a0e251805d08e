package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/openvolume/volcached/internal/models"
)

var (
	// ErrScopeRequired indicates a store call was made without a scope key.
	ErrScopeRequired = errors.New("entry store: scope is required")
)

// EntryStore persists image-volume cache entries. It is the single owner of
// the (image_id, scope) uniqueness contract and of the recency ordering the
// eviction algorithm relies on.
type EntryStore struct {
	db  *gorm.DB
	now func() time.Time
}

// Option customises the EntryStore.
type Option func(*EntryStore)

// WithNow overrides the clock, primarily for tests.
func WithNow(now func() time.Time) Option {
	return func(s *EntryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewEntryStore constructs an EntryStore once a database handle is supplied.
func NewEntryStore(db *gorm.DB, opts ...Option) (*EntryStore, error) {
	if db == nil {
		return nil, errors.New("entry store: db is required")
	}

	s := &EntryStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetAndTouch fetches the single entry for (imageID, scope) and bumps its
// last_used timestamp in the same transaction. Returns nil when no entry
// exists.
func (s *EntryStore) GetAndTouch(ctx context.Context, scope Scope, imageID string) (*models.ImageVolumeEntry, error) {
	if s == nil {
		return nil, errors.New("entry store: store not initialised")
	}
	ctx = ensuredContext(ctx)

	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return nil, errors.New("entry store: image id is required")
	}
	if scope.IsZero() {
		return nil, ErrScopeRequired
	}

	var entry models.ImageVolumeEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := scope.apply(tx.Where("image_id = ?", imageID)).Take(&entry).Error
		if err != nil {
			return err
		}

		touched := s.now().UTC()
		if err := tx.Model(&entry).Update("last_used", touched).Error; err != nil {
			return err
		}
		entry.LastUsed = touched
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// Create persists a new entry keyed by (imageID, scope). A concurrent create
// for the same key fails at the database layer through the composite unique
// index.
func (s *EntryStore) Create(ctx context.Context, entry *models.ImageVolumeEntry) error {
	if s == nil {
		return errors.New("entry store: store not initialised")
	}
	if entry == nil {
		return errors.New("entry store: entry is required")
	}
	ctx = ensuredContext(ctx)

	if strings.TrimSpace(entry.ImageID) == "" {
		return errors.New("entry store: image id is required")
	}
	if strings.TrimSpace(entry.VolumeID) == "" {
		return errors.New("entry store: volume id is required")
	}
	if entry.Host == "" && entry.ClusterName == "" {
		return ErrScopeRequired
	}
	if entry.LastUsed.IsZero() {
		entry.LastUsed = s.now().UTC()
	}

	return s.db.WithContext(ctx).Create(entry).Error
}

// GetAll lists every entry in the scope ordered most-recently-used first.
// Eviction pops from the tail of this slice.
func (s *EntryStore) GetAll(ctx context.Context, scope Scope) ([]models.ImageVolumeEntry, error) {
	if s == nil {
		return nil, errors.New("entry store: store not initialised")
	}
	ctx = ensuredContext(ctx)

	if scope.IsZero() {
		return nil, ErrScopeRequired
	}

	var entries []models.ImageVolumeEntry
	err := scope.apply(s.db.WithContext(ctx).Model(&models.ImageVolumeEntry{})).
		Order("last_used DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Get retrieves an entry by its row identifier. Returns nil when no entry
// exists.
func (s *EntryStore) Get(ctx context.Context, id string) (*models.ImageVolumeEntry, error) {
	if s == nil {
		return nil, errors.New("entry store: store not initialised")
	}
	ctx = ensuredContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("entry store: id is required")
	}

	var entry models.ImageVolumeEntry
	err := s.db.WithContext(ctx).Take(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByVolume returns the entry whose backing volume matches volumeID,
// narrowed to the scope. Returns nil when no entry exists.
func (s *EntryStore) GetByVolume(ctx context.Context, scope Scope, volumeID string) (*models.ImageVolumeEntry, error) {
	if s == nil {
		return nil, errors.New("entry store: store not initialised")
	}
	ctx = ensuredContext(ctx)

	volumeID = strings.TrimSpace(volumeID)
	if volumeID == "" {
		return nil, errors.New("entry store: volume id is required")
	}
	if scope.IsZero() {
		return nil, ErrScopeRequired
	}

	var entry models.ImageVolumeEntry
	err := scope.apply(s.db.WithContext(ctx).Where("volume_id = ?", volumeID)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteByVolume removes the entry registered for volumeID. Deleting an
// absent entry is not an error.
func (s *EntryStore) DeleteByVolume(ctx context.Context, volumeID string) error {
	if s == nil {
		return errors.New("entry store: store not initialised")
	}
	ctx = ensuredContext(ctx)

	volumeID = strings.TrimSpace(volumeID)
	if volumeID == "" {
		return errors.New("entry store: volume id is required")
	}

	return s.db.WithContext(ctx).
		Where("volume_id = ?", volumeID).
		Delete(&models.ImageVolumeEntry{}).Error
}

// Usage reports the entry count and summed size for the scope.
func (s *EntryStore) Usage(ctx context.Context, scope Scope) (count int64, sizeGB int64, err error) {
	if s == nil {
		return 0, 0, errors.New("entry store: store not initialised")
	}
	ctx = ensuredContext(ctx)

	if scope.IsZero() {
		return 0, 0, ErrScopeRequired
	}

	query := scope.apply(s.db.WithContext(ctx).Model(&models.ImageVolumeEntry{}))
	if err = query.Count(&count).Error; err != nil {
		return 0, 0, err
	}

	var total struct {
		Size int64
	}
	err = scope.apply(s.db.WithContext(ctx).Model(&models.ImageVolumeEntry{})).
		Select("COALESCE(SUM(size), 0) AS size").
		Scan(&total).Error
	if err != nil {
		return 0, 0, err
	}

	return count, total.Size, nil
}

// Scopes enumerates every distinct scope that currently holds entries.
func (s *EntryStore) Scopes(ctx context.Context) ([]Scope, error) {
	if s == nil {
		return nil, errors.New("entry store: store not initialised")
	}
	ctx = ensuredContext(ctx)

	var rows []struct {
		Host        string
		ClusterName string
	}
	err := s.db.WithContext(ctx).Model(&models.ImageVolumeEntry{}).
		Distinct("host", "cluster_name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	scopes := make([]Scope, 0, len(rows))
	for _, row := range rows {
		if row.ClusterName != "" {
			scopes = append(scopes, ClusterScope(row.ClusterName))
			continue
		}
		scopes = append(scopes, HostScope(row.Host))
	}
	return scopes, nil
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
