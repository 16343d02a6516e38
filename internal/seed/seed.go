// Package seed fills a fresh database with roles, permissions, demo users and a small catalog.
// Every step is idempotent so the command can run against an already seeded database.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/catalog"
	"github.com/frahmantamala/fitness-content/internal/core/common/slug"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel"
	catalogDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/catalog"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/directory"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	translationDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/translation"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Actions are the verbs seeded for every resource.
var Actions = []string{"create", "read", "update", "delete"}

// Resources lists every resource that gets permissions.
func Resources() []string {
	out := make([]string, 0, len(owner.Kinds())+3)
	for _, k := range owner.Kinds() {
		out = append(out, k.String())
	}
	return append(out, "roles", "permissions", "translations")
}

// userGrants are the permissions of plain users: reading the catalog, including its
// relationships, and self service on users, which the policies scope to the actor's own row.
func userGrants() map[string]bool {
	grants := map[string]bool{"read users": true, "update users": true, "delete users": true}
	for _, d := range catalog.Definitions() {
		grants["read "+d.Type()] = true
	}
	return grants
}

type DemoUser struct {
	Name  string
	Email string
	Role  string
}

var DemoUsers = []DemoUser{
	{Name: "Super Admin", Email: "superadmin@example.com", Role: rbac.SuperAdmin},
	{Name: "Admin", Email: "admin@example.com", Role: RoleAdmin},
	{Name: "Demo User", Email: "user@example.com", Role: RoleUser},
}

type Seeder struct {
	db         *gorm.DB
	logger     *slog.Logger
	password   string
	bcryptCost int
}

func New(db *gorm.DB, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{db: db, logger: logger, password: "password"}
}

// WithPassword sets the password and bcrypt cost of the demo users.
func (s *Seeder) WithPassword(password string, cost int) *Seeder {
	s.password = password
	s.bcryptCost = cost
	return s
}

func (s *Seeder) Run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"roles", s.Roles},
		{"permissions", s.Permissions},
		{"users", s.Users},
		{"catalog", s.Catalog},
		{"directories", s.Directories},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("seed %s: %w", step.name, err)
		}
		s.logger.InfoContext(ctx, "seeded", "step", step.name)
	}
	return nil
}

// Clear empties every table, children first. Stored media files are left for the sweeper.
func (s *Seeder) Clear(ctx context.Context) error {
	models := datamodel.Models()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := len(models) - 1; i >= 0; i-- {
			err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(models[i]).Error
			if err != nil {
				return fmt.Errorf("clear %T: %w", models[i], err)
			}
		}
		s.logger.InfoContext(ctx, "cleared seeded tables", "tables", len(models))
		return nil
	})
}

func (s *Seeder) Roles(ctx context.Context) error {
	for _, name := range []string{rbac.SuperAdmin, RoleAdmin, RoleUser} {
		role := rbac.Role{Name: name, DisplayName: name}
		if err := s.db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

// Permissions seeds the permissions of every resource and grants them. Each resource runs in
// its own transaction so a failure never leaves half of a resource's permissions behind.
func (s *Seeder) Permissions(ctx context.Context) error {
	for _, resource := range Resources() {
		if err := s.resourcePermissions(ctx, resource); err != nil {
			return fmt.Errorf("%s: %w", resource, err)
		}
	}
	return nil
}

func (s *Seeder) resourcePermissions(ctx context.Context, resource string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admin, err := findRole(tx, RoleAdmin)
		if err != nil {
			return err
		}
		user, err := findRole(tx, RoleUser)
		if err != nil {
			return err
		}

		for _, action := range Actions {
			name := action + " " + resource
			p := rbac.Permission{Name: name, DisplayName: name, Action: action, Subject: resource}
			if err := tx.Where("name = ?", name).FirstOrCreate(&p).Error; err != nil {
				return err
			}
			if err := grant(tx, admin.ID, p.ID); err != nil {
				return err
			}
			if userGrants()[name] {
				if err := grant(tx, user.ID, p.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Seeder) Users(ctx context.Context) error {
	hash, err := auth.HashPassword(s.password, s.bcryptCost)
	if err != nil {
		return err
	}

	for _, demo := range DemoUsers {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			u := userDatamodel.User{Name: demo.Name, Email: demo.Email, PasswordHash: hash}
			if err := tx.Where("email = ?", demo.Email).FirstOrCreate(&u).Error; err != nil {
				return err
			}
			role, err := findRole(tx, demo.Role)
			if err != nil {
				return err
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&rbac.UserRole{UserID: u.ID, RoleID: role.ID}).Error
		})
		if err != nil {
			return fmt.Errorf("%s: %w", demo.Email, err)
		}
	}
	return nil
}

// Catalog seeds one branch of every catalog tree plus a Spanish name for each category.
func (s *Seeder) Catalog(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upper := &catalogDatamodel.Category{Base: base("Upper body", "Chest, back, shoulders and arms.")}
		lower := &catalogDatamodel.Category{Base: base("Lower body", "Legs and glutes.")}
		for _, c := range []*catalogDatamodel.Category{upper, lower} {
			if err := ensure(tx, c); err != nil {
				return err
			}
		}
		if err := translate(tx, owner.Categories, upper.ID, "es", "name", "Tren superior"); err != nil {
			return err
		}
		if err := translate(tx, owner.Categories, lower.ID, "es", "name", "Tren inferior"); err != nil {
			return err
		}

		chest := &catalogDatamodel.Subcategory{Base: base("Chest", ""), CategoryID: &upper.ID}
		if err := ensure(tx, chest); err != nil {
			return err
		}
		bench := &catalogDatamodel.Workout{Base: base("Bench press", "Barbell press on a flat bench."), SubcategoryID: &chest.ID}
		if err := ensure(tx, bench); err != nil {
			return err
		}
		incline := &catalogDatamodel.Variation{Base: base("Incline bench press", ""), WorkoutID: &bench.ID}
		if err := ensure(tx, incline); err != nil {
			return err
		}

		pectoral := &catalogDatamodel.Muscle{Base: base("Pectoral", "")}
		triceps := &catalogDatamodel.Muscle{Base: base("Triceps", "")}
		dorsal := &catalogDatamodel.Muscle{Base: base("Latissimus dorsi", "")}
		for _, m := range []*catalogDatamodel.Muscle{pectoral, triceps, dorsal} {
			if err := ensure(tx, m); err != nil {
				return err
			}
		}

		pivots := []any{
			&catalogDatamodel.MuscleWorkout{MuscleID: pectoral.ID, WorkoutID: bench.ID, Priority: catalogDatamodel.PriorityPrincipal},
			&catalogDatamodel.MuscleWorkout{MuscleID: triceps.ID, WorkoutID: bench.ID, Priority: catalogDatamodel.PrioritySecondary},
			&catalogDatamodel.MuscleWorkout{MuscleID: dorsal.ID, WorkoutID: bench.ID, Priority: catalogDatamodel.PriorityAntagonist},
			&catalogDatamodel.MuscleVariation{MuscleID: pectoral.ID, VariationID: incline.ID, Priority: catalogDatamodel.PriorityPrincipal},
		}
		for _, p := range pivots {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error; err != nil {
				return err
			}
		}

		for _, name := range []string{"Twice a week", "Three times a week"} {
			if err := ensure(tx, &catalogDatamodel.Frequency{Base: base(name, "")}); err != nil {
				return err
			}
		}
		for _, name := range []string{"Lose weight", "Gain muscle"} {
			if err := ensure(tx, &catalogDatamodel.Goal{Base: base(name, "")}); err != nil {
				return err
			}
		}
		if err := ensure(tx, &catalogDatamodel.PhysicalCondition{Base: base("Beginner", "Little or no training experience.")}); err != nil {
			return err
		}

		plan := &catalogDatamodel.Plan{Base: base("Full body starter", "Four weeks of full body sessions.")}
		if err := ensure(tx, plan); err != nil {
			return err
		}
		return ensure(tx, &catalogDatamodel.Routine{Base: base("Day 1", ""), PlanID: &plan.ID})
	})
}

// Directories seeds the root of the file cabinet.
func (s *Seeder) Directories(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		root := directory.Directory{Name: "Shared"}
		if err := tx.Where("name = ? AND parent_id IS NULL", root.Name).FirstOrCreate(&root).Error; err != nil {
			return err
		}
		docs := directory.Directory{Name: "Plans", ParentID: &root.ID}
		return tx.Where("name = ? AND parent_id = ?", docs.Name, root.ID).FirstOrCreate(&docs).Error
	})
}

func base(name, description string) catalogDatamodel.Base {
	return catalogDatamodel.Base{Name: name, Description: description, Slug: slug.Make(name)}
}

// ensure loads rec by name or creates it.
func ensure(tx *gorm.DB, rec catalogDatamodel.Record) error {
	return tx.Where("name = ?", rec.Core().Name).FirstOrCreate(rec).Error
}

func translate(tx *gorm.DB, kind owner.Kind, id uint, locale, column, value string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&translationDatamodel.Translation{
		Locale:           locale,
		Column:           column,
		Translation:      value,
		TranslatableType: kind,
		TranslatableID:   id,
	}).Error
}

func findRole(tx *gorm.DB, name string) (*rbac.Role, error) {
	var role rbac.Role
	if err := tx.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, fmt.Errorf("role %s: %w", name, err)
	}
	return &role, nil
}

func grant(tx *gorm.DB, roleID, permissionID uint) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rbac.RolePermission{RoleID: roleID, PermissionID: permissionID}).Error
}
