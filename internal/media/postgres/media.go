package media

import (
	"context"
	"errors"
	"time"

	mediaDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"gorm.io/gorm"
)

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) Create(ctx context.Context, m *mediaDatamodel.Media) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MediaRepository) MarkState(ctx context.Context, id uint, state mediaDatamodel.State) error {
	return r.db.WithContext(ctx).
		Model(&mediaDatamodel.Media{}).
		Where("id = ?", id).
		Update("state", state).Error
}

func (r *MediaRepository) UpdateNames(ctx context.Context, m *mediaDatamodel.Media) error {
	return r.db.WithContext(ctx).
		Model(&mediaDatamodel.Media{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"name":         m.Name,
			"file_name":    m.FileName,
			"storage_path": m.StoragePath,
		}).Error
}

func (r *MediaRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&mediaDatamodel.Media{}, id).Error
}

// FindByID returns a committed row, nil when there is none.
func (r *MediaRepository) FindByID(ctx context.Context, id uint) (*mediaDatamodel.Media, error) {
	var m mediaDatamodel.Media
	err := r.committed(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindForOwner returns the committed row id of ref; an empty collection matches any.
func (r *MediaRepository) FindForOwner(ctx context.Context, ref owner.Ref, collection string, id uint) (*mediaDatamodel.Media, error) {
	tx := r.committed(ctx).Where("owner_type = ? AND owner_id = ?", ref.Kind, ref.ID)
	if collection != "" {
		tx = tx.Where("collection_name = ?", collection)
	}

	var m mediaDatamodel.Media
	err := tx.First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepository) ListForOwner(ctx context.Context, ref owner.Ref, collection string) ([]mediaDatamodel.Media, error) {
	tx := r.committed(ctx).Where("owner_type = ? AND owner_id = ?", ref.Kind, ref.ID)
	if collection != "" {
		tx = tx.Where("collection_name = ?", collection)
	}

	var rows []mediaDatamodel.Media
	err := tx.Order("id").Find(&rows).Error
	return rows, err
}

// ListForOwners loads the committed media of many owners of one kind.
func (r *MediaRepository) ListForOwners(ctx context.Context, kind owner.Kind, ids []uint, collection string) ([]mediaDatamodel.Media, error) {
	var rows []mediaDatamodel.Media
	err := r.committed(ctx).
		Where("owner_type = ? AND owner_id IN ? AND collection_name = ?", kind, ids, collection).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *MediaRepository) FindMany(ctx context.Context, ids []uint) ([]mediaDatamodel.Media, error) {
	var rows []mediaDatamodel.Media
	err := r.committed(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// Stale returns tombstones and rows stuck in pending since before pendingBefore.
func (r *MediaRepository) Stale(ctx context.Context, pendingBefore time.Time, limit int) ([]mediaDatamodel.Media, error) {
	var rows []mediaDatamodel.Media
	err := r.db.WithContext(ctx).
		Where("state = ?", mediaDatamodel.StateDeleted).
		Or("state = ? AND created_at < ?", mediaDatamodel.StatePending, pendingBefore).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *MediaRepository) committed(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("state = ?", mediaDatamodel.StateCommitted)
}
