package user

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var sortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"email":      "email",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// UserRepository reads and writes live accounts; soft-deleted rows are hidden by gorm's
// deleted_at scope.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context, q transport.Query) ([]userDatamodel.User, int64, error) {
	tx := r.db.WithContext(ctx).Model(&userDatamodel.User{})
	for _, col := range []string{"name", "email"} {
		if v, ok := q.Filters[col]; ok {
			tx = tx.Where("LOWER("+col+") LIKE ?", "%"+strings.ToLower(v)+"%")
		}
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	for _, sf := range q.Sort {
		if col, ok := sortColumns[sf.Field]; ok {
			tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: sf.Desc})
		}
	}

	var rows []userDatamodel.User
	err := tx.Order("id").Offset(q.Page.Offset()).Limit(q.Page.Size).Find(&rows).Error
	return rows, total, err
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*userDatamodel.User, error) {
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

// EmailTaken counts soft-deleted accounts too since the unique index still holds them.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().
		Model(&userDatamodel.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(u).Error
}

func (r *UserRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&userDatamodel.User{}, id).Error
}

func (r *UserRepository) CountRoles(ctx context.Context, ids []uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&rbac.Role{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// ReplaceRoles makes roleIDs the complete role set of the user.
func (r *UserRepository) ReplaceRoles(ctx context.Context, userID uint, roleIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&rbac.UserRole{}).Error; err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}
		rows := make([]rbac.UserRole, 0, len(roleIDs))
		for _, id := range roleIDs {
			rows = append(rows, rbac.UserRole{UserID: userID, RoleID: id})
		}
		return tx.Create(&rows).Error
	})
}
