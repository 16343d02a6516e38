package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/common/slug"
	catalogDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/catalog"
	mediaDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/locale"
	"github.com/frahmantamala/fitness-content/internal/media"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"github.com/frahmantamala/fitness-content/internal/translation"
)

// MediaAPI is the part of the media service the catalog drives.
type MediaAPI interface {
	Validate(ctx context.Context, ref owner.Ref, coll media.Collection, instructions []media.Instruction) error
	Process(ctx context.Context, ref owner.Ref, coll media.Collection, instructions []media.Instruction, opts media.Options) ([]*mediaDatamodel.Media, error)
	ClearOwner(ctx context.Context, ref owner.Ref) error
}

// TranslationsAPI drops the translations of a deleted row.
type TranslationsAPI interface {
	ForgetOwner(ctx context.Context, ref owner.Ref) error
}

// Entry is an item with its attributes overlaid for the request locale.
type Entry struct {
	Item       Item
	Attributes map[string]any
	// Priority is set on entries reached through a pivot.
	Priority catalogDatamodel.Priority
}

// Input is a create or update request. Nil fields are left untouched on update.
type Input struct {
	Name        *string
	Description *string
	// ParentSet tells a parent linkage was sent; ParentID nil then clears it.
	ParentSet bool
	ParentID  *uint
	// Links replaces the rows of each named pivot.
	Links map[string][]Link
	Files []media.Instruction
	// Unknown lists relationship names the kind does not have.
	Unknown []string
}

type Service struct {
	registry     *Registry
	pivots       PivotAPI
	overlay      *translation.Overlay
	translations TranslationsAPI
	media        MediaAPI
	logger       *slog.Logger
}

func NewService(registry *Registry, pivots PivotAPI, overlay *translation.Overlay, translations TranslationsAPI, mediaSvc MediaAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:     registry,
		pivots:       pivots,
		overlay:      overlay,
		translations: translations,
		media:        mediaSvc,
		logger:       logger,
	}
}

func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) List(ctx context.Context, def Definition, q ListQuery) ([]Entry, int64, error) {
	items, total, err := s.registry.Store(def.Kind).List(ctx, q)
	if err != nil {
		return nil, 0, internal.NewInternalError("failed to list "+def.Type(), err)
	}
	entries, err := s.localize(ctx, def, items)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Service) Get(ctx context.Context, def Definition, id uint) (*Entry, error) {
	item, err := s.find(ctx, def, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.localize(ctx, def, []Item{*item})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func (s *Service) find(ctx context.Context, def Definition, id uint) (*Item, error) {
	item, err := s.registry.Store(def.Kind).FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load "+def.Type(), err)
	}
	if item == nil {
		return nil, internal.ErrNotFound
	}
	return item, nil
}

func (s *Service) localize(ctx context.Context, def Definition, items []Item) ([]Entry, error) {
	targets := make([]translation.Target, len(items))
	for i := range items {
		targets[i] = translation.Target{ID: items[i].ID, Attributes: items[i].Attributes()}
	}
	attrs, err := s.overlay.ApplyMany(ctx, def.Kind, locale.Code(ctx), targets, def.Translatable)
	if err != nil {
		return nil, internal.NewInternalError("failed to load translations", err)
	}
	out := make([]Entry, len(items))
	for i := range items {
		out[i] = Entry{Item: items[i], Attributes: attrs[i]}
	}
	return out, nil
}

// Create validates the relationships and files of in, saves the row, then links pivots and
// stores files.
func (s *Service) Create(ctx context.Context, def Definition, in Input) (*Entry, error) {
	if err := s.check(ctx, def, 0, in); err != nil {
		return nil, err
	}

	item := &Item{}
	in.apply(item)
	if err := s.registry.Store(def.Kind).Create(ctx, item); err != nil {
		return nil, internal.NewInternalError("failed to create "+def.Type(), err)
	}
	s.logger.InfoContext(ctx, "catalog row created", "kind", def.Kind, "id", item.ID)

	if err := s.after(ctx, def, item.ID, in); err != nil {
		return nil, err
	}
	return s.Get(ctx, def, item.ID)
}

func (s *Service) Update(ctx context.Context, def Definition, id uint, in Input) (*Entry, error) {
	item, err := s.find(ctx, def, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, def, id, in); err != nil {
		return nil, err
	}

	in.apply(item)
	if err := s.registry.Store(def.Kind).Update(ctx, item); err != nil {
		return nil, internal.NewInternalError("failed to update "+def.Type(), err)
	}

	if err := s.after(ctx, def, id, in); err != nil {
		return nil, err
	}
	return s.Get(ctx, def, id)
}

func (in Input) apply(item *Item) {
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
		item.Slug = slug.Make(item.Name)
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.ParentSet {
		item.ParentID = in.ParentID
	}
}

func (s *Service) after(ctx context.Context, def Definition, id uint, in Input) error {
	for _, p := range def.Pivots {
		links, ok := in.Links[p.Name]
		if !ok {
			continue
		}
		if err := s.pivots.Replace(ctx, p, id, links); err != nil {
			return internal.NewInternalError("failed to link "+p.Name, err)
		}
	}
	if def.Media != nil && len(in.Files) > 0 {
		if _, err := s.media.Process(ctx, owner.NewRef(def.Kind, id), *def.Media, in.Files, media.Options{}); err != nil {
			return err
		}
	}
	return nil
}

// check runs every relationship and file check of in before anything is written. id is 0
// on create.
func (s *Service) check(ctx context.Context, def Definition, id uint, in Input) error {
	var errs []internal.ValidationError

	for _, name := range in.Unknown {
		errs = append(errs, internal.ValidationError{
			Field:   name,
			Message: "The relationship %s does not exist.",
			Args:    []any{name},
			Code:    "INVALID",
			Pointer: "/data/relationships/" + name,
		})
	}

	if in.ParentSet && in.ParentID != nil && def.Parent != nil {
		ok, err := s.registry.Store(def.Parent.Related).Exists(ctx, *in.ParentID)
		if err != nil {
			return internal.NewInternalError("failed to load "+def.Parent.Name, err)
		}
		if !ok {
			errs = append(errs, relationshipError(def.Parent.Name, "/data/relationships/"+def.Parent.Name+"/data/id"))
		}
	}

	for _, p := range def.Pivots {
		links, ok := in.Links[p.Name]
		if !ok {
			continue
		}
		linkErrs, err := s.checkLinks(ctx, p, links, "/data/relationships/"+p.Name+"/data")
		if err != nil {
			return err
		}
		errs = append(errs, linkErrs...)
	}

	if len(in.Files) > 0 {
		if def.Media == nil {
			errs = append(errs, internal.ValidationError{
				Field:   "files",
				Message: "The %s is invalid.",
				Args:    []any{"files"},
				Code:    "INVALID",
				Pointer: media.InstructionsPointer,
			})
		} else if err := s.media.Validate(ctx, owner.NewRef(def.Kind, id), *def.Media, in.Files); err != nil {
			appErr, ok := internal.IsAppError(err)
			if !ok || appErr.StatusCode != http.StatusUnprocessableEntity {
				return err
			}
			errs = append(errs, appErr.FieldErrors()...)
		}
	}

	if len(errs) > 0 {
		return internal.NewUnprocessableError(errs)
	}
	return nil
}

// checkLinks verifies every related id exists and every priority is known.
func (s *Service) checkLinks(ctx context.Context, p Pivot, links []Link, pointer string) ([]internal.ValidationError, error) {
	var errs []internal.ValidationError
	store := s.registry.Store(p.Related)
	for i, l := range links {
		at := fmt.Sprintf("%s/%d", pointer, i)
		if !l.Priority.Valid() {
			errs = append(errs, internal.ValidationError{
				Field:   "priority",
				Message: "The priority must be one of: PRINCIPAL, SECONDARY, ANTAGONIST.",
				Code:    "ONEOF",
				Pointer: at + "/meta/priority",
			})
		}
		ok, err := store.Exists(ctx, l.ID)
		if err != nil {
			return nil, internal.NewInternalError("failed to load "+p.Name, err)
		}
		if !ok {
			errs = append(errs, relationshipError("id", at+"/id"))
		}
	}
	return errs, nil
}

func relationshipError(field, pointer string) internal.ValidationError {
	return internal.ValidationError{
		Field:   field,
		Message: "The %s is invalid.",
		Args:    []any{field},
		Code:    "EXISTS",
		Pointer: pointer,
	}
}

// Delete removes the files of the row first, then the row with its pivot rows, and finally
// its translations. Children keep existing with their parent cleared.
func (s *Service) Delete(ctx context.Context, def Definition, id uint) error {
	if _, err := s.find(ctx, def, id); err != nil {
		return err
	}

	ref := owner.NewRef(def.Kind, id)
	if def.Media != nil {
		if err := s.media.ClearOwner(ctx, ref); err != nil {
			return err
		}
	}
	if err := s.registry.Store(def.Kind).Delete(ctx, id, s.registry.references(def)); err != nil {
		return internal.NewInternalError("failed to delete "+def.Type(), err)
	}
	if err := s.translations.ForgetOwner(ctx, ref); err != nil {
		s.logger.WarnContext(ctx, "failed to drop translations", "owner", ref.String(), "error", err)
	}
	s.logger.InfoContext(ctx, "catalog row deleted", "kind", def.Kind, "id", id)
	return nil
}

// Parent returns the parent entry of a row, nil when it has none.
func (s *Service) Parent(ctx context.Context, def Definition, id uint) (*Entry, error) {
	item, err := s.find(ctx, def, id)
	if err != nil {
		return nil, err
	}
	if def.Parent == nil || item.ParentID == nil {
		return nil, nil
	}
	parent, err := s.registry.Store(def.Parent.Related).FindByID(ctx, *item.ParentID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load "+def.Parent.Name, err)
	}
	if parent == nil {
		return nil, nil
	}
	entries, err := s.localize(ctx, s.mustDefinition(def.Parent.Related), []Item{*parent})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// Related lists the children or the pivot rows reached through rel.
func (s *Service) Related(ctx context.Context, def Definition, id uint, rel Relationship, q transport.Query) ([]Entry, int64, error) {
	if _, err := s.find(ctx, def, id); err != nil {
		return nil, 0, err
	}

	lq := ListQuery{Query: q}
	var priorities map[uint]catalogDatamodel.Priority
	switch {
	case rel.Child != nil:
		lq.Column, lq.Value = rel.Child.Column, id
	case rel.Pivot != nil:
		links, err := s.pivots.Links(ctx, *rel.Pivot, id)
		if err != nil {
			return nil, 0, internal.NewInternalError("failed to load "+rel.Name, err)
		}
		lq.IDs = make([]uint, 0, len(links))
		priorities = make(map[uint]catalogDatamodel.Priority, len(links))
		for _, l := range links {
			lq.IDs = append(lq.IDs, l.ID)
			priorities[l.ID] = l.Priority
		}
	default:
		return nil, 0, internal.ErrNotFound
	}

	entries, total, err := s.List(ctx, s.mustDefinition(rel.Related), lq)
	if err != nil {
		return nil, 0, err
	}
	for i := range entries {
		entries[i].Priority = priorities[entries[i].Item.ID]
	}
	return entries, total, nil
}

// Links returns the linkage of a to-many relationship.
func (s *Service) Links(ctx context.Context, def Definition, id uint, rel Relationship) ([]Link, error) {
	if _, err := s.find(ctx, def, id); err != nil {
		return nil, err
	}
	switch {
	case rel.Pivot != nil:
		links, err := s.pivots.Links(ctx, *rel.Pivot, id)
		if err != nil {
			return nil, internal.NewInternalError("failed to load "+rel.Name, err)
		}
		return links, nil
	case rel.Child != nil:
		items, _, err := s.registry.Store(rel.Related).List(ctx, ListQuery{Column: rel.Child.Column, Value: id})
		if err != nil {
			return nil, internal.NewInternalError("failed to load "+rel.Name, err)
		}
		links := make([]Link, 0, len(items))
		for _, it := range items {
			links = append(links, Link{ID: it.ID})
		}
		return links, nil
	}
	return nil, internal.ErrNotFound
}

// Attach adds or re-prioritises pivot rows.
func (s *Service) Attach(ctx context.Context, def Definition, id uint, p Pivot, links []Link) error {
	if err := s.linkable(ctx, def, id, p, links); err != nil {
		return err
	}
	if err := s.pivots.Attach(ctx, p, id, links); err != nil {
		return internal.NewInternalError("failed to attach "+p.Name, err)
	}
	return nil
}

// Replace makes links the complete set of pivot rows.
func (s *Service) Replace(ctx context.Context, def Definition, id uint, p Pivot, links []Link) error {
	if err := s.linkable(ctx, def, id, p, links); err != nil {
		return err
	}
	if err := s.pivots.Replace(ctx, p, id, links); err != nil {
		return internal.NewInternalError("failed to update "+p.Name, err)
	}
	return nil
}

func (s *Service) Detach(ctx context.Context, def Definition, id uint, p Pivot, related []uint) error {
	if _, err := s.find(ctx, def, id); err != nil {
		return err
	}
	if err := s.pivots.Detach(ctx, p, id, related); err != nil {
		return internal.NewInternalError("failed to detach "+p.Name, err)
	}
	return nil
}

func (s *Service) linkable(ctx context.Context, def Definition, id uint, p Pivot, links []Link) error {
	if _, err := s.find(ctx, def, id); err != nil {
		return err
	}
	errs, err := s.checkLinks(ctx, p, links, "/data")
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return internal.NewUnprocessableError(errs)
	}
	return nil
}

// SetParent changes the to-one parent of a row; nil clears it.
func (s *Service) SetParent(ctx context.Context, def Definition, id uint, parentID *uint) error {
	if def.Parent == nil {
		return internal.ErrNotFound
	}
	item, err := s.find(ctx, def, id)
	if err != nil {
		return err
	}
	in := Input{ParentSet: true, ParentID: parentID}
	if parentID != nil {
		ok, err := s.registry.Store(def.Parent.Related).Exists(ctx, *parentID)
		if err != nil {
			return internal.NewInternalError("failed to load "+def.Parent.Name, err)
		}
		if !ok {
			return internal.NewUnprocessableError([]internal.ValidationError{relationshipError(def.Parent.Name, "/data/id")})
		}
	}
	in.apply(item)
	if err := s.registry.Store(def.Kind).Update(ctx, item); err != nil {
		return internal.NewInternalError("failed to update "+def.Type(), err)
	}
	return nil
}

func (s *Service) mustDefinition(kind owner.Kind) Definition {
	d, ok := s.registry.Definition(kind)
	if !ok {
		panic("catalog: no definition for " + kind.String())
	}
	return d
}
