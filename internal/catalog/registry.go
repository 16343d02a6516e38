package catalog

import (
	"context"
	"strings"

	"github.com/frahmantamala/fitness-content/internal/core/owner"
)

// Registry holds the definition and the store of every catalog kind.
type Registry struct {
	defs   []Definition
	byKind map[owner.Kind]Definition
	stores map[owner.Kind]StoreAPI
}

func NewRegistry(defs []Definition, stores map[owner.Kind]StoreAPI) *Registry {
	r := &Registry{
		defs:   defs,
		byKind: make(map[owner.Kind]Definition, len(defs)),
		stores: stores,
	}
	for _, d := range defs {
		r.byKind[d.Kind] = d
	}
	return r
}

func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (r *Registry) Definition(kind owner.Kind) (Definition, bool) {
	d, ok := r.byKind[kind]
	return d, ok
}

// Store returns the store of kind, nil for kinds outside the catalog.
func (r *Registry) Store(kind owner.Kind) StoreAPI {
	return r.stores[kind]
}

// TranslatableColumns implements translation.Owners.
func (r *Registry) TranslatableColumns(kind owner.Kind) []string {
	return r.byKind[kind].Translatable
}

// OwnerExists implements translation.Owners. Kinds outside the catalog never exist here.
func (r *Registry) OwnerExists(ctx context.Context, ref owner.Ref) (bool, error) {
	store := r.stores[ref.Kind]
	if store == nil || ref.ID == 0 {
		return false, nil
	}
	return store.Exists(ctx, ref.ID)
}

// references lists the columns pointing at a row of d: its pivot rows are removed and the
// foreign keys of its children are cleared.
func (r *Registry) references(d Definition) []ColumnRef {
	refs := make([]ColumnRef, 0, len(d.Pivots)+len(d.Children))
	for _, p := range d.Pivots {
		refs = append(refs, ColumnRef{Table: p.Table, Column: p.OwnColumn})
	}
	for _, c := range d.Children {
		refs = append(refs, ColumnRef{Table: tableOf(c.Related), Column: c.Column, Nullify: true})
	}
	return refs
}

func tableOf(kind owner.Kind) string {
	return strings.ReplaceAll(kind.String(), "-", "_")
}
