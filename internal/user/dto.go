package user

import (
	"time"

	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

var (
	Filters = []string{"name", "email"}
	Sorts   = []string{"id", "name", "email", "created_at", "updated_at"}
)

// UpdateUserDTO is the attribute set of PATCH /users/{id}. A deleted_at value soft-deletes
// the account.
type UpdateUserDTO struct {
	Name              *string    `json:"name" validate:"omitnil,min=1,max=255"`
	Email             *string    `json:"email" validate:"omitnil,email,max=255"`
	Age               *int       `json:"age" validate:"omitnil,gte=1,lte=120"`
	Gender            *string    `json:"gender" validate:"omitnil,oneof=male female other"`
	MeasurementSystem *string    `json:"measurement_system" validate:"omitnil,oneof=metric imperial"`
	Weight            *float64   `json:"weight" validate:"omitnil,gt=0,lte=1000"`
	Height            *float64   `json:"height" validate:"omitnil,gt=0,lte=300"`
	DeletedAt         *time.Time `json:"deleted_at"`
}

type UserResponse struct {
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Age               *int      `json:"age"`
	Gender            *string   `json:"gender"`
	MeasurementSystem *string   `json:"measurement_system"`
	Weight            *float64  `json:"weight"`
	Height            *float64  `json:"height"`
	BMI               *float64  `json:"bmi"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func ToResource(u *User) transport.Resource {
	id := transport.FormatID(u.ID)
	self := "/" + ResourceType + "/" + id

	attrs := UserResponse{
		Name:      u.Name,
		Email:     u.Email,
		Age:       u.Age,
		Weight:    u.Weight,
		Height:    u.Height,
		BMI:       u.BMI(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Gender != nil {
		g := string(*u.Gender)
		attrs.Gender = &g
	}
	if u.MeasurementSystem != nil {
		m := string(*u.MeasurementSystem)
		attrs.MeasurementSystem = &m
	}

	return transport.Resource{
		Type:       ResourceType,
		ID:         id,
		Attributes: attrs,
		Relationships: map[string]transport.Relationship{
			"roles": {Links: &transport.Links{Self: self + "/relationships/roles", Related: self + "/roles"}},
		},
		Links: &transport.Links{Self: self},
	}
}

type RoleResponse struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func RoleResource(r *rbac.Role) transport.Resource {
	id := transport.FormatID(r.ID)
	return transport.Resource{
		Type: "roles",
		ID:   id,
		Attributes: RoleResponse{
			Name:        r.Name,
			DisplayName: r.DisplayName,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		},
		Links: &transport.Links{Self: "/roles/" + id},
	}
}

func RoleIdentifiers(roles []rbac.Role) []transport.Identifier {
	out := make([]transport.Identifier, 0, len(roles))
	for _, r := range roles {
		out = append(out, transport.Identifier{Type: "roles", ID: transport.FormatID(r.ID)})
	}
	return out
}
