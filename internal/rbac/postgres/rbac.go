package rbac

import (
	"context"
	"errors"
	"strings"

	rbacDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var sortColumns = map[string]string{
	"id":           "id",
	"name":         "name",
	"display_name": "display_name",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) page(tx *gorm.DB, q transport.Query, filters []string, out any) (int64, error) {
	for _, col := range filters {
		if v, ok := q.Filters[col]; ok {
			tx = tx.Where("LOWER("+col+") LIKE ?", "%"+strings.ToLower(v)+"%")
		}
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return 0, err
	}
	for _, sf := range q.Sort {
		if col, ok := sortColumns[sf.Field]; ok {
			tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: sf.Desc})
		}
	}
	return total, tx.Order("id").Offset(q.Page.Offset()).Limit(q.Page.Size).Find(out).Error
}

func (r *Repository) ListPermissions(ctx context.Context, q transport.Query) ([]rbacDatamodel.Permission, int64, error) {
	var rows []rbacDatamodel.Permission
	total, err := r.page(r.db.WithContext(ctx).Model(&rbacDatamodel.Permission{}), q, []string{"name", "action", "subject"}, &rows)
	return rows, total, err
}

func (r *Repository) FindPermission(ctx context.Context, id uint) (*rbacDatamodel.Permission, error) {
	var p rbacDatamodel.Permission
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) PermissionNameTaken(ctx context.Context, name string, exceptID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&rbacDatamodel.Permission{}).
		Where("name = ? AND id <> ?", name, exceptID).Count(&count).Error
	return count > 0, err
}

func (r *Repository) SavePermission(ctx context.Context, p *rbacDatamodel.Permission) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// DeletePermission removes the permission and its grants.
func (r *Repository) DeletePermission(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permission_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&rbacDatamodel.Permission{}, id).Error
	})
}

func (r *Repository) CountPermissions(ctx context.Context, ids []uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&rbacDatamodel.Permission{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

func (r *Repository) ListRoles(ctx context.Context, q transport.Query) ([]rbacDatamodel.Role, int64, error) {
	var rows []rbacDatamodel.Role
	total, err := r.page(r.db.WithContext(ctx).Model(&rbacDatamodel.Role{}).Preload("Permissions"), q, []string{"name"}, &rows)
	return rows, total, err
}

func (r *Repository) FindRole(ctx context.Context, id uint) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	err := r.db.WithContext(ctx).Preload("Permissions").First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *Repository) RoleNameTaken(ctx context.Context, name string, exceptID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&rbacDatamodel.Role{}).
		Where("name = ? AND id <> ?", name, exceptID).Count(&count).Error
	return count > 0, err
}

func (r *Repository) SaveRole(ctx context.Context, role *rbacDatamodel.Role) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(role).Error
}

// DeleteRole removes the role, its grants and its assignments.
func (r *Repository) DeleteRole(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&rbacDatamodel.Role{}, id).Error
	})
}

// SyncPermissions makes permissionIDs the complete grant set of the role.
func (r *Repository) SyncPermissions(ctx context.Context, roleID uint, permissionIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		rows := make([]rbacDatamodel.RolePermission, 0, len(permissionIDs))
		for _, id := range permissionIDs {
			rows = append(rows, rbacDatamodel.RolePermission{RoleID: roleID, PermissionID: id})
		}
		return tx.Create(&rows).Error
	})
}
