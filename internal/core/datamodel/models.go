// Package datamodel groups the gorm models of every table.
package datamodel

import (
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/catalog"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/directory"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/translation"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
)

// Models returns every model in dependency order, for AutoMigrate in tests and sqlite runs.
func Models() []any {
	return []any{
		&rbac.Role{},
		&rbac.Permission{},
		&rbac.RolePermission{},
		&user.User{},
		&rbac.UserRole{},
		&catalog.Category{},
		&catalog.Subcategory{},
		&catalog.Workout{},
		&catalog.Variation{},
		&catalog.Muscle{},
		&catalog.Frequency{},
		&catalog.Goal{},
		&catalog.PhysicalCondition{},
		&catalog.Plan{},
		&catalog.Routine{},
		&catalog.MuscleWorkout{},
		&catalog.MuscleVariation{},
		&translation.Translation{},
		&media.Media{},
		&directory.Directory{},
	}
}
