package directory

import "time"

// Directory is a node of the file cabinet tree.
type Directory struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	ParentID  *uint     `gorm:"column:parent_id;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Directory) TableName() string { return "directories" }
