package models

import "time"

// ImageVolumeEntry records one materialized image-volume bound to a cache
// scope. At most one entry exists per (image_id, host, cluster_name); the
// composite unique index lets the storage layer resolve concurrent
// registration races without any in-process locking.
type ImageVolumeEntry struct {
	BaseModel
	ImageID        string    `gorm:"size:64;not null;uniqueIndex:idx_image_volume_entries_scope" json:"image_id"`
	ImageUpdatedAt time.Time `json:"image_updated_at"`
	VolumeID       string    `gorm:"size:64;not null;uniqueIndex" json:"volume_id"`
	Size           int64     `gorm:"not null" json:"size"`
	Host           string    `gorm:"size:255;uniqueIndex:idx_image_volume_entries_scope" json:"host"`
	ClusterName    string    `gorm:"size:255;uniqueIndex:idx_image_volume_entries_scope" json:"cluster_name"`
	LastUsed       time.Time `gorm:"index" json:"last_used"`
}

// TableName keeps the historical table name.
func (ImageVolumeEntry) TableName() string {
	return "image_volume_cache_entries"
}
