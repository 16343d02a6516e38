package translation

import (
	"context"
	"errors"

	translationDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/translation"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns maps public sort names to columns.
var sortColumns = map[string]string{
	"id":         "id",
	"locale":     "locale",
	"column":     "column_name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type TranslationRepository struct {
	db *gorm.DB
}

func NewTranslationRepository(db *gorm.DB) *TranslationRepository {
	return &TranslationRepository{db: db}
}

// ForOwners returns rows most recent first so the first row of a column wins.
func (r *TranslationRepository) ForOwners(ctx context.Context, kind owner.Kind, ids []uint, locale string) ([]translationDatamodel.Translation, error) {
	var rows []translationDatamodel.Translation
	err := r.db.WithContext(ctx).
		Where("translatable_type = ? AND translatable_id IN ? AND locale = ?", kind, ids, locale).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *TranslationRepository) List(ctx context.Context, q transport.Query) ([]translationDatamodel.Translation, int64, error) {
	tx := r.db.WithContext(ctx).Model(&translationDatamodel.Translation{})
	if v, ok := q.Filters["translatable_type"]; ok {
		tx = tx.Where("translatable_type = ?", v)
	}
	if v, ok := q.Filters["translatable_id"]; ok {
		tx = tx.Where("translatable_id = ?", transport.ParseID(v))
	}
	if v, ok := q.Filters["locale"]; ok {
		tx = tx.Where("locale = ?", v)
	}
	if v, ok := q.Filters["column"]; ok {
		tx = tx.Where("column_name = ?", v)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	for _, s := range q.Sort {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumns[s.Field]}, Desc: s.Desc})
	}
	if len(q.Sort) == 0 {
		tx = tx.Order("id")
	}

	var rows []translationDatamodel.Translation
	err := tx.Offset(q.Page.Offset()).Limit(q.Page.Size).Find(&rows).Error
	return rows, total, err
}

func (r *TranslationRepository) FindByID(ctx context.Context, id uint) (*translationDatamodel.Translation, error) {
	var t translationDatamodel.Translation
	err := r.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Upsert overwrites the row of (owner, locale, column) when it exists. The write is a single
// INSERT .. ON CONFLICT so concurrent first writes all succeed; created may be stale under a
// race, the stored row never is.
func (r *TranslationRepository) Upsert(ctx context.Context, t *translationDatamodel.Translation) (bool, error) {
	db := r.db.WithContext(ctx)

	var existing int64
	if err := byKey(db, t).Model(&translationDatamodel.Translation{}).Count(&existing).Error; err != nil {
		return false, err
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "translatable_type"}, {Name: "translatable_id"}, {Name: "locale"}, {Name: "column_name"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"translation", "updated_at"}),
	}).Create(t).Error
	if err != nil {
		return false, err
	}

	var stored translationDatamodel.Translation
	if err := byKey(db, t).First(&stored).Error; err != nil {
		return false, err
	}
	*t = stored
	return existing == 0, nil
}

func byKey(db *gorm.DB, t *translationDatamodel.Translation) *gorm.DB {
	return db.Where("translatable_type = ? AND translatable_id = ? AND locale = ? AND column_name = ?",
		t.TranslatableType, t.TranslatableID, t.Locale, t.Column)
}

func (r *TranslationRepository) Update(ctx context.Context, t *translationDatamodel.Translation) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *TranslationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&translationDatamodel.Translation{}, id).Error
}

func (r *TranslationRepository) DeleteForOwner(ctx context.Context, ref owner.Ref) error {
	return r.db.WithContext(ctx).
		Where("translatable_type = ? AND translatable_id = ?", ref.Kind, ref.ID).
		Delete(&translationDatamodel.Translation{}).Error
}
