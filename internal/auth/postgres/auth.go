package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// FindByEmail returns nil, nil when no live account uses email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Preload("Roles").First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailExists also counts soft-deleted accounts since the unique index still holds them.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().
		Model(&userDatamodel.User{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateWithRole(ctx context.Context, u *userDatamodel.User, role string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rl rbac.Role
		if err := tx.Where("name = ?", role).First(&rl).Error; err != nil {
			return fmt.Errorf("load role %s: %w", role, err)
		}

		if err := tx.Create(u).Error; err != nil {
			return err
		}

		if err := tx.Model(u).Association("Roles").Append(&rl); err != nil {
			return fmt.Errorf("assign role %s: %w", role, err)
		}
		return nil
	})
}
