package rbac

import (
	"time"

	rbacDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

const (
	PermissionsType = "permissions"
	RolesType       = "roles"
)

var (
	PermissionFilters = []string{"name", "action", "subject"}
	RoleFilters       = []string{"name"}
	Sorts             = []string{"id", "name", "display_name", "created_at", "updated_at"}
)

// CreatePermissionDTO names a permission; name defaults to "<action> <subject>".
type CreatePermissionDTO struct {
	Name        string `json:"name" validate:"max=128"`
	DisplayName string `json:"display_name" validate:"max=255"`
	Action      string `json:"action" validate:"required,max=64"`
	Subject     string `json:"subject" validate:"required,max=64"`
}

type UpdatePermissionDTO struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=128"`
	DisplayName *string `json:"display_name" validate:"omitnil,max=255"`
	Action      *string `json:"action" validate:"omitnil,min=1,max=64"`
	Subject     *string `json:"subject" validate:"omitnil,min=1,max=64"`
}

type CreateRoleDTO struct {
	Name        string `json:"name" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"max=255"`
}

type UpdateRoleDTO struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=64"`
	DisplayName *string `json:"display_name" validate:"omitnil,max=255"`
}

type PermissionResponse struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Action      string    `json:"action"`
	Subject     string    `json:"subject"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RoleResponse struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func PermissionResource(p *rbacDatamodel.Permission) transport.Resource {
	id := transport.FormatID(p.ID)
	return transport.Resource{
		Type: PermissionsType,
		ID:   id,
		Attributes: PermissionResponse{
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Action:      p.Action,
			Subject:     p.Subject,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		},
		Links: &transport.Links{Self: "/" + PermissionsType + "/" + id},
	}
}

func RoleResource(r *rbacDatamodel.Role) transport.Resource {
	id := transport.FormatID(r.ID)
	self := "/" + RolesType + "/" + id

	idents := make([]transport.Identifier, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		idents = append(idents, transport.Identifier{Type: PermissionsType, ID: transport.FormatID(p.ID)})
	}

	return transport.Resource{
		Type: RolesType,
		ID:   id,
		Attributes: RoleResponse{
			Name:        r.Name,
			DisplayName: r.DisplayName,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		},
		Relationships: map[string]transport.Relationship{
			PermissionsType: {
				Data:  idents,
				Links: &transport.Links{Self: self + "/relationships/permissions"},
			},
		},
		Links: &transport.Links{Self: self},
	}
}
