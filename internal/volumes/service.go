package volumes

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openvolume/volcached/internal/models"
	"github.com/openvolume/volcached/internal/store"
	"github.com/openvolume/volcached/pkg/logger"
)

var (
	// ErrVolumeNotFound indicates the requested volume does not exist.
	ErrVolumeNotFound = errors.New("volume service: volume not found")
)

// Service manages the volume registry. Deleting a volume also removes any
// image-volume cache entry registered against it, so a cached volume never
// outlives its backing storage record.
type Service struct {
	db      *gorm.DB
	entries *store.EntryStore
	log     *zap.Logger
}

// NewService constructs a volume service.
func NewService(db *gorm.DB, entries *store.EntryStore) (*Service, error) {
	if db == nil {
		return nil, errors.New("volume service: db is required")
	}
	if entries == nil {
		return nil, errors.New("volume service: entry store is required")
	}
	return &Service{db: db, entries: entries, log: logger.WithModule("volumes")}, nil
}

// CreateVolumeInput captures the fields required to register a volume.
type CreateVolumeInput struct {
	Name             string
	Size             int64
	Host             string
	ClusterName      string
	AvailabilityZone string
}

// ListOptions filters volume listings.
type ListOptions struct {
	Host    string
	Cluster string
	Status  string
}

// Create registers a new volume record.
func (s *Service) Create(ctx context.Context, input CreateVolumeInput) (*models.Volume, error) {
	if s == nil {
		return nil, errors.New("volume service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	if input.Size <= 0 {
		return nil, errors.New("volume service: size must be a positive number of gigabytes")
	}

	host := strings.TrimSpace(input.Host)
	cluster := strings.TrimSpace(input.ClusterName)
	if host == "" && cluster == "" {
		return nil, errors.New("volume service: host or cluster name is required")
	}

	volume := models.Volume{
		Name:             strings.TrimSpace(input.Name),
		Size:             input.Size,
		Status:           models.VolumeStatusAvailable,
		Host:             host,
		ClusterName:      cluster,
		AvailabilityZone: strings.TrimSpace(input.AvailabilityZone),
	}

	if err := s.db.WithContext(ctx).Create(&volume).Error; err != nil {
		return nil, err
	}
	return &volume, nil
}

// Get retrieves a volume by identifier.
func (s *Service) Get(ctx context.Context, id string) (*models.Volume, error) {
	if s == nil {
		return nil, errors.New("volume service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("volume service: id is required")
	}

	var volume models.Volume
	if err := s.db.WithContext(ctx).First(&volume, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVolumeNotFound
		}
		return nil, err
	}
	return &volume, nil
}

// List retrieves volumes matching the supplied options.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]models.Volume, error) {
	if s == nil {
		return nil, errors.New("volume service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Volume{})
	if host := strings.TrimSpace(opts.Host); host != "" {
		query = query.Where("host = ?", host)
	}
	if cluster := strings.TrimSpace(opts.Cluster); cluster != "" {
		query = query.Where("cluster_name = ?", cluster)
	}
	if status := strings.TrimSpace(opts.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var volumes []models.Volume
	if err := query.Order("created_at DESC").Find(&volumes).Error; err != nil {
		return nil, err
	}
	return volumes, nil
}

// Delete removes a volume and, in the same transaction, any cache entry
// registered against it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s == nil {
		return errors.New("volume service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("volume service: id is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Volume{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVolumeNotFound
		}

		return tx.Where("volume_id = ?", id).Delete(&models.ImageVolumeEntry{}).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("volume deleted", zap.String("volume_id", id))
	return nil
}

// Scope resolves the cache scope a volume belongs to.
func Scope(volume *models.Volume) store.Scope {
	if volume == nil {
		return store.Scope{}
	}
	if volume.ClusterName != "" {
		return store.ClusterScope(volume.ClusterName)
	}
	return store.HostScope(volume.Host)
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
