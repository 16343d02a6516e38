package translation

import (
	"time"

	"github.com/frahmantamala/fitness-content/internal/core/owner"
)

// Translation overrides one column of one owner row for one locale.
// (translatable_type, translatable_id, locale, column_name) is unique.
type Translation struct {
	ID               uint       `gorm:"primaryKey"`
	Locale           string     `gorm:"column:locale;size:16;not null;uniqueIndex:idx_translation_unique,priority:3"`
	Column           string     `gorm:"column:column_name;size:64;not null;uniqueIndex:idx_translation_unique,priority:4"`
	Translation      string     `gorm:"column:translation;not null"`
	TranslatableType owner.Kind `gorm:"column:translatable_type;size:64;not null;uniqueIndex:idx_translation_unique,priority:1"`
	TranslatableID   uint       `gorm:"column:translatable_id;not null;uniqueIndex:idx_translation_unique,priority:2"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Translation) TableName() string { return "translations" }

func (t *Translation) Owner() owner.Ref {
	return owner.NewRef(t.TranslatableType, t.TranslatableID)
}
