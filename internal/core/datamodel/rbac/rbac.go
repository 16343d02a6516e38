package rbac

import "time"

// SuperAdmin bypasses every policy check.
const SuperAdmin = "superAdmin"

type Role struct {
	ID          uint         `gorm:"primaryKey"`
	Name        string       `gorm:"column:name;uniqueIndex;size:64;not null"`
	DisplayName string       `gorm:"column:display_name;size:255"`
	Permissions []Permission `gorm:"many2many:role_permissions"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (Role) TableName() string { return "roles" }

// Permission names are flat strings of the form "<action> <subject>".
type Permission struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;size:128;not null"`
	DisplayName string    `gorm:"column:display_name;size:255"`
	Action      string    `gorm:"column:action;size:64;not null"`
	Subject     string    `gorm:"column:subject;size:64;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Permission) TableName() string { return "permissions" }

type RolePermission struct {
	RoleID       uint `gorm:"column:role_id;primaryKey"`
	PermissionID uint `gorm:"column:permission_id;primaryKey"`
}

func (RolePermission) TableName() string { return "role_permissions" }

type UserRole struct {
	UserID uint `gorm:"column:user_id;primaryKey"`
	RoleID uint `gorm:"column:role_id;primaryKey"`
}

func (UserRole) TableName() string { return "user_roles" }
