package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/fitness-content/internal/catalog"
	catalogDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/catalog"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// filterColumns and sortColumns map public query names to columns.
var (
	filterColumns = map[string]string{
		"name":        "name",
		"slug":        "slug",
		"description": "description",
	}
	sortColumns = map[string]string{
		"id":          "id",
		"name":        "name",
		"slug":        "slug",
		"description": "description",
		"created_at":  "created_at",
		"updated_at":  "updated_at",
	}
)

// Store keeps one catalog model. T is the model, P its pointer type.
type Store[T any, P interface {
	*T
	catalogDatamodel.Record
}] struct {
	db *gorm.DB
}

func NewStore[T any, P interface {
	*T
	catalogDatamodel.Record
}](db *gorm.DB) *Store[T, P] {
	return &Store[T, P]{db: db}
}

// Stores builds the store of every catalog kind.
func Stores(db *gorm.DB) map[owner.Kind]catalog.StoreAPI {
	return map[owner.Kind]catalog.StoreAPI{
		owner.Categories:         NewStore[catalogDatamodel.Category](db),
		owner.Subcategories:      NewStore[catalogDatamodel.Subcategory](db),
		owner.Workouts:           NewStore[catalogDatamodel.Workout](db),
		owner.Variations:         NewStore[catalogDatamodel.Variation](db),
		owner.Muscles:            NewStore[catalogDatamodel.Muscle](db),
		owner.Frequencies:        NewStore[catalogDatamodel.Frequency](db),
		owner.Goals:              NewStore[catalogDatamodel.Goal](db),
		owner.PhysicalConditions: NewStore[catalogDatamodel.PhysicalCondition](db),
		owner.Plans:              NewStore[catalogDatamodel.Plan](db),
		owner.Routines:           NewStore[catalogDatamodel.Routine](db),
	}
}

func (s *Store[T, P]) model() P {
	return P(new(T))
}

func toItem[T any, P interface {
	*T
	catalogDatamodel.Record
}](rec P) catalog.Item {
	var parent *uint
	if pr, ok := any(rec).(catalogDatamodel.Parented); ok {
		parent = pr.ParentRef()
	}
	return catalog.FromBase(rec.Core(), parent)
}

func (s *Store[T, P]) List(ctx context.Context, q catalog.ListQuery) ([]catalog.Item, int64, error) {
	if q.IDs != nil && len(q.IDs) == 0 {
		return []catalog.Item{}, 0, nil
	}

	tx := s.db.WithContext(ctx).Model(s.model())
	for name, value := range q.Filters {
		col, ok := filterColumns[name]
		if !ok {
			continue
		}
		tx = tx.Where("LOWER("+col+") LIKE ?", "%"+strings.ToLower(value)+"%")
	}
	if q.Column != "" {
		tx = tx.Where(q.Column+" = ?", q.Value)
	}
	if q.IDs != nil {
		tx = tx.Where("id IN ?", q.IDs)
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
	tx = tx.Order("id")
	if q.Page.Size > 0 {
		tx = tx.Offset(q.Page.Offset()).Limit(q.Page.Size)
	}

	var rows []T
	if err := tx.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items := make([]catalog.Item, 0, len(rows))
	for i := range rows {
		items = append(items, toItem[T, P](&rows[i]))
	}
	return items, total, nil
}

func (s *Store[T, P]) FindByID(ctx context.Context, id uint) (*catalog.Item, error) {
	rec := s.model()
	err := s.db.WithContext(ctx).First(rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item := toItem[T, P](rec)
	return &item, nil
}

func (s *Store[T, P]) FindMany(ctx context.Context, ids []uint) ([]catalog.Item, error) {
	if len(ids) == 0 {
		return []catalog.Item{}, nil
	}
	var rows []T
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]catalog.Item, 0, len(rows))
	for i := range rows {
		items = append(items, toItem[T, P](&rows[i]))
	}
	return items, nil
}

func (s *Store[T, P]) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(s.model()).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *Store[T, P]) Create(ctx context.Context, item *catalog.Item) error {
	rec := s.record(item)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return err
	}
	*item = toItem[T, P](rec)
	return nil
}

func (s *Store[T, P]) Update(ctx context.Context, item *catalog.Item) error {
	rec := s.record(item)
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return err
	}
	*item = toItem[T, P](rec)
	return nil
}

func (s *Store[T, P]) Delete(ctx context.Context, id uint, refs []catalog.ColumnRef) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ref := range refs {
			var err error
			if ref.Nullify {
				err = tx.Exec("UPDATE "+ref.Table+" SET "+ref.Column+" = NULL WHERE "+ref.Column+" = ?", id).Error
			} else {
				err = tx.Exec("DELETE FROM "+ref.Table+" WHERE "+ref.Column+" = ?", id).Error
			}
			if err != nil {
				return err
			}
		}
		return tx.Delete(s.model(), id).Error
	})
}

func (s *Store[T, P]) record(item *catalog.Item) P {
	rec := s.model()
	item.ToBase(rec.Core())
	if pr, ok := any(rec).(catalogDatamodel.Parented); ok {
		pr.SetParentRef(item.ParentID)
	}
	return rec
}

// PivotRepository keeps the priority pivots between muscles and workouts or variations.
type PivotRepository struct {
	db *gorm.DB
}

func NewPivotRepository(db *gorm.DB) *PivotRepository {
	return &PivotRepository{db: db}
}

type pivotRow struct {
	RelatedID uint
	Priority  string
}

func (r *PivotRepository) Links(ctx context.Context, p catalog.Pivot, id uint) ([]catalog.Link, error) {
	var rows []pivotRow
	err := r.db.WithContext(ctx).
		Table(p.Table).
		Select(p.RelatedColumn+" AS related_id, priority").
		Where(p.OwnColumn+" = ?", id).
		Order(p.RelatedColumn).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	links := make([]catalog.Link, 0, len(rows))
	for _, row := range rows {
		links = append(links, catalog.Link{ID: row.RelatedID, Priority: catalogDatamodel.Priority(row.Priority)})
	}
	return links, nil
}

// Attach adds links; existing links get the new priority.
func (r *PivotRepository) Attach(ctx context.Context, p catalog.Pivot, id uint, links []catalog.Link) error {
	return r.insert(r.db.WithContext(ctx), p, id, links)
}

func (r *PivotRepository) Replace(ctx context.Context, p catalog.Pivot, id uint, links []catalog.Link) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+p.Table+" WHERE "+p.OwnColumn+" = ?", id).Error; err != nil {
			return err
		}
		return r.insert(tx, p, id, links)
	})
}

func (r *PivotRepository) Detach(ctx context.Context, p catalog.Pivot, id uint, related []uint) error {
	if len(related) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("DELETE FROM "+p.Table+" WHERE "+p.OwnColumn+" = ? AND "+p.RelatedColumn+" IN ?", id, related).Error
}

func (r *PivotRepository) insert(tx *gorm.DB, p catalog.Pivot, id uint, links []catalog.Link) error {
	if len(links) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(links))
	for _, l := range links {
		rows = append(rows, map[string]any{
			p.OwnColumn:     id,
			p.RelatedColumn: l.ID,
			"priority":      string(l.Priority),
		})
	}
	return tx.Table(p.Table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: p.OwnColumn}, {Name: p.RelatedColumn}},
			DoUpdates: clause.AssignmentColumns([]string{"priority"}),
		}).
		Create(&rows).Error
}
