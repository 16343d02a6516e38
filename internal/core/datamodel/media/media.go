package media

import (
	"time"

	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"gorm.io/datatypes"
)

// State tracks a row through the staged commit of its file.
type State string

const (
	StatePending   State = "pending"
	StateCommitted State = "committed"
	StateDeleted   State = "deleted"
)

// PropZipPrefix is the custom property holding the folder used inside bundles.
const PropZipPrefix = "zip_filename_prefix"

type Media struct {
	ID               uint              `gorm:"primaryKey"`
	OwnerType        owner.Kind        `gorm:"column:owner_type;size:64;not null;index:idx_media_owner,priority:1"`
	OwnerID          uint              `gorm:"column:owner_id;not null;index:idx_media_owner,priority:2"`
	CollectionName   string            `gorm:"column:collection_name;size:64;not null;index:idx_media_owner,priority:3"`
	Name             string            `gorm:"column:name;not null"`
	FileName         string            `gorm:"column:file_name;not null"`
	MimeType         string            `gorm:"column:mime_type;size:128"`
	Disk             string            `gorm:"column:disk;size:32;not null"`
	StoragePath      string            `gorm:"column:storage_path;not null"`
	Size             int64             `gorm:"column:size"`
	CustomProperties datatypes.JSONMap `gorm:"column:custom_properties"`
	State            State             `gorm:"column:state;size:16;not null;index;default:pending"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Media) TableName() string { return "media" }

func (m *Media) Owner() owner.Ref {
	return owner.NewRef(m.OwnerType, m.OwnerID)
}

// ZipPrefix returns the bundle folder of the file, empty when unset.
func (m *Media) ZipPrefix() string {
	if m.CustomProperties == nil {
		return ""
	}
	if v, ok := m.CustomProperties[PropZipPrefix].(string); ok {
		return v
	}
	return ""
}
