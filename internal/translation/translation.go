// Package translation overlays localized column values on entity attributes and manages the
// translation rows behind them.
package translation

import (
	"context"
	"fmt"
	"maps"
	"slices"

	translationDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/translation"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
)

// Lookup loads the translation rows of a set of owners for one locale, most recent first
// (updated_at DESC, id DESC).
type Lookup interface {
	ForOwners(ctx context.Context, kind owner.Kind, ids []uint, locale string) ([]translationDatamodel.Translation, error)
}

// Target is one entity whose attributes get overlaid.
type Target struct {
	ID         uint
	Attributes map[string]any
}

// Overlay substitutes translated values for base attributes at read time.
type Overlay struct {
	lookup Lookup
}

func NewOverlay(lookup Lookup) *Overlay {
	return &Overlay{lookup: lookup}
}

// Apply returns attrs with every column in columns replaced by its translation in locale,
// when one exists. attrs is never modified.
func (o *Overlay) Apply(ctx context.Context, ref owner.Ref, locale string, attrs map[string]any, columns []string) (map[string]any, error) {
	out, err := o.ApplyMany(ctx, ref.Kind, locale, []Target{{ID: ref.ID, Attributes: attrs}}, columns)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ApplyMany overlays a page of entities of one kind with a single lookup. The result is in
// the order of targets.
func (o *Overlay) ApplyMany(ctx context.Context, kind owner.Kind, locale string, targets []Target, columns []string) ([]map[string]any, error) {
	out := make([]map[string]any, len(targets))
	if len(targets) == 0 {
		return out, nil
	}
	if len(columns) == 0 || locale == "" {
		for i, t := range targets {
			out[i] = maps.Clone(t.Attributes)
		}
		return out, nil
	}

	ids := make([]uint, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := o.lookup.ForOwners(ctx, kind, ids, locale)
	if err != nil {
		return nil, fmt.Errorf("load %s translations: %w", kind, err)
	}

	byOwner := make(map[uint][]translationDatamodel.Translation, len(ids))
	for _, row := range rows {
		byOwner[row.TranslatableID] = append(byOwner[row.TranslatableID], row)
	}

	for i, t := range targets {
		out[i] = Merge(t.Attributes, byOwner[t.ID], columns)
	}
	return out, nil
}

// Merge applies rows to a copy of attrs. Rows must be ordered most recent first; the first
// row of a column wins. Columns outside columns are left alone even if a row names them.
func Merge(attrs map[string]any, rows []translationDatamodel.Translation, columns []string) map[string]any {
	out := maps.Clone(attrs)
	if out == nil {
		out = map[string]any{}
	}

	seen := make(map[string]bool, len(columns))
	for _, row := range rows {
		if seen[row.Column] || !slices.Contains(columns, row.Column) {
			continue
		}
		seen[row.Column] = true
		out[row.Column] = row.Translation
	}
	return out
}
