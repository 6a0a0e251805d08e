package notify

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openvolume/volcached/internal/models"
	"github.com/openvolume/volcached/pkg/logger"
)

// Recorder persists events to the cache_events table so operators can
// inspect recent cache activity through the API. Writes are best-effort:
// persistence failures are logged and dropped.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRecorder constructs a database-backed event sink.
func NewRecorder(db *gorm.DB) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("event recorder: db is required")
	}
	return &Recorder{db: db, log: logger.WithModule("events")}, nil
}

// Notify implements Notifier.
func (r *Recorder) Notify(ctx context.Context, event Event) {
	if r == nil || r.db == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		r.log.Warn("drop unencodable event payload", zap.String("event", event.Name), zap.Error(err))
		payload = nil
	}

	record := models.CacheEvent{
		Event:   event.Name,
		Scope:   event.Scope,
		Payload: payload,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		r.log.Warn("persist cache event failed", zap.String("event", event.Name), zap.Error(err))
	}
}

// Recent returns the newest events, capped at limit.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.CacheEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event recorder: recorder not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}

	var events []models.CacheEvent
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Prune removes persisted events beyond keep rows, oldest first.
func (r *Recorder) Prune(ctx context.Context, keep int) error {
	if r == nil || r.db == nil {
		return errors.New("event recorder: recorder not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if keep <= 0 {
		return nil
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&models.CacheEvent{}).
		Order("created_at DESC").
		Offset(keep).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.CacheEvent{}).Error
}
