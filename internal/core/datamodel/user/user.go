package user

import (
	"time"

	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"gorm.io/gorm"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type MeasurementSystem string

const (
	Metric   MeasurementSystem = "metric"
	Imperial MeasurementSystem = "imperial"
)

type User struct {
	ID                uint               `gorm:"primaryKey"`
	Name              string             `gorm:"column:name;not null"`
	Email             string             `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash      string             `gorm:"column:password_hash;not null"`
	Age               *int               `gorm:"column:age"`
	Gender            *Gender            `gorm:"column:gender"`
	MeasurementSystem *MeasurementSystem `gorm:"column:measurement_system"`
	Weight            *float64           `gorm:"column:weight"`
	Height            *float64           `gorm:"column:height"`
	Roles             []rbac.Role        `gorm:"many2many:user_roles"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt     `gorm:"column:deleted_at;index"`
}

func (User) TableName() string { return "users" }

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
