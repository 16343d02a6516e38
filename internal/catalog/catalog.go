// Package catalog serves the fitness catalog: categories down to variations, muscles,
// plans with their routines, and the user facing attribute lists.
package catalog

import (
	"context"
	"time"

	catalogDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/catalog"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

// Item is a catalog row of any kind.
type Item struct {
	ID          uint
	Name        string
	Description string
	Slug        string
	ParentID    *uint
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Attributes is the attribute map of the item before the translation overlay.
func (i *Item) Attributes() map[string]any {
	return map[string]any{
		"name":        i.Name,
		"description": i.Description,
		"slug":        i.Slug,
		"created_at":  i.CreatedAt,
		"updated_at":  i.UpdatedAt,
	}
}

func FromBase(b *catalogDatamodel.Base, parent *uint) Item {
	return Item{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Slug:        b.Slug,
		ParentID:    parent,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func (i *Item) ToBase(b *catalogDatamodel.Base) {
	b.ID = i.ID
	b.Name = i.Name
	b.Description = i.Description
	b.Slug = i.Slug
	b.CreatedAt = i.CreatedAt
	b.UpdatedAt = i.UpdatedAt
}

// Link is one row of a pivot relationship.
type Link struct {
	ID       uint
	Priority catalogDatamodel.Priority
}

// ListQuery narrows an index. Column/Value scope it to the children of a parent; a non nil
// IDs restricts it to those rows.
type ListQuery struct {
	transport.Query
	Column string
	Value  uint
	IDs    []uint
}

// ColumnRef names a foreign key column that points at a deleted row.
type ColumnRef struct {
	Table  string
	Column string
	// Nullify clears the column instead of deleting the referencing rows.
	Nullify bool
}

type StoreAPI interface {
	List(ctx context.Context, q ListQuery) ([]Item, int64, error)
	FindByID(ctx context.Context, id uint) (*Item, error)
	FindMany(ctx context.Context, ids []uint) ([]Item, error)
	Exists(ctx context.Context, id uint) (bool, error)
	Create(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	// Delete removes the row and clears refs in one transaction.
	Delete(ctx context.Context, id uint, refs []ColumnRef) error
}

type PivotAPI interface {
	Links(ctx context.Context, p Pivot, id uint) ([]Link, error)
	Attach(ctx context.Context, p Pivot, id uint, links []Link) error
	Replace(ctx context.Context, p Pivot, id uint, links []Link) error
	Detach(ctx context.Context, p Pivot, id uint, related []uint) error
}
