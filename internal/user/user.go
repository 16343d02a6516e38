// Package user serves the user resource: profile reads, self-scoped updates and soft
// deletes, and role assignment.
package user

import (
	"math"
	"time"

	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
)

const ResourceType = "users"

// User is the public view of an account.
type User struct {
	ID                uint
	Name              string
	Email             string
	Age               *int
	Gender            *userDatamodel.Gender
	MeasurementSystem *userDatamodel.MeasurementSystem
	Weight            *float64
	Height            *float64
	Roles             []rbac.Role
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Age:               u.Age,
		Gender:            u.Gender,
		MeasurementSystem: u.MeasurementSystem,
		Weight:            u.Weight,
		Height:            u.Height,
		Roles:             u.Roles,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// BMI is derived from weight and height: kg / m² with height in centimetres for the metric
// system, 703 · lb / in² for the imperial one. Rounded to two decimals; nil when a measure
// is missing.
func (u *User) BMI() *float64 {
	if u.Weight == nil || u.Height == nil || *u.Weight <= 0 || *u.Height <= 0 {
		return nil
	}
	return BMI(*u.Weight, *u.Height, u.system())
}

func (u *User) system() userDatamodel.MeasurementSystem {
	if u.MeasurementSystem == nil {
		return userDatamodel.Metric
	}
	return *u.MeasurementSystem
}

func BMI(weight, height float64, system userDatamodel.MeasurementSystem) *float64 {
	var v float64
	if system == userDatamodel.Imperial {
		v = 703 * weight / (height * height)
	} else {
		m := height / 100
		v = weight / (m * m)
	}
	v = math.Round(v*100) / 100
	return &v
}
