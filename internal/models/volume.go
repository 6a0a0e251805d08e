package models

// Volume statuses tracked by the registry.
const (
	VolumeStatusAvailable = "available"
	VolumeStatusDeleting  = "deleting"
	VolumeStatusError     = "error"
)

// Volume describes a block volume known to the control plane. Size is in
// whole gigabytes.
type Volume struct {
	BaseModel
	Name             string `gorm:"size:255" json:"name"`
	Size             int64  `gorm:"not null" json:"size"`
	Status           string `gorm:"size:32;not null;default:available" json:"status"`
	Host             string `gorm:"size:255;index" json:"host"`
	ClusterName      string `gorm:"size:255;index" json:"cluster_name"`
	AvailabilityZone string `gorm:"size:255" json:"availability_zone"`
}
