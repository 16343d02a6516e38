package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/fitness-content/internal/core/datamodel/directory"
	directorySvc "github.com/frahmantamala/fitness-content/internal/directory"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var sortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// List pages directories; parentID scopes the page to the children of one directory.
func (r *DirectoryRepository) List(ctx context.Context, q transport.Query, parentID *uint) ([]directory.Directory, int64, error) {
	tx := r.db.WithContext(ctx).Model(&directory.Directory{})
	if parentID != nil {
		tx = tx.Where("parent_id = ?", *parentID)
	}
	if v, ok := q.Filters["name"]; ok {
		tx = tx.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(v)+"%")
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

	var rows []directory.Directory
	err := tx.Order("id").Offset(q.Page.Offset()).Limit(q.Page.Size).Find(&rows).Error
	return rows, total, err
}

func (r *DirectoryRepository) FindByID(ctx context.Context, id uint) (*directory.Directory, error) {
	var d directory.Directory
	err := r.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DirectoryRepository) Exists(ctx context.Context, id uint) (bool, error) {
	return exists(r.db.WithContext(ctx), id)
}

// Save writes d in a transaction that sees its parent, so a parent removed since the
// request was validated fails the save instead of leaving a dangling reference.
func (r *DirectoryRepository) Save(ctx context.Context, d *directory.Directory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if d.ParentID != nil {
			ok, err := exists(tx, *d.ParentID)
			if err != nil {
				return err
			}
			if !ok {
				return directorySvc.ErrParentMissing
			}
		}
		return tx.Save(d).Error
	})
}

// Delete detaches the children and removes the row.
func (r *DirectoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&directory.Directory{}).Where("parent_id = ?", id).
			Update("parent_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&directory.Directory{}, id).Error
	})
}

func exists(tx *gorm.DB, id uint) (bool, error) {
	var count int64
	err := tx.Model(&directory.Directory{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
