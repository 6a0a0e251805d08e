package models

import "gorm.io/datatypes"

// CacheEvent is a persisted record of a cache notification (hit, miss or
// eviction). Telemetry rows are written best-effort and never participate
// in cache decisions.
type CacheEvent struct {
	BaseModel
	Event   string         `gorm:"size:64;not null;index" json:"event"`
	Scope   string         `gorm:"size:255;index" json:"scope"`
	Payload datatypes.JSON `gorm:"type:json" json:"payload"`
}
