package catalog

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/common/validation"
	catalogDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/catalog"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/media"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

var (
	Filters = []string{"name", "slug", "description"}
	Sorts   = []string{"id", "name", "slug", "description", "created_at", "updated_at"}
)

type CreateDTO struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
}

type UpdateDTO struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=255"`
	Description *string `json:"description" validate:"omitnil,max=5000"`
}

// ReadInput turns a create (update=false) or update request document into an Input.
func ReadInput(def Definition, doc *transport.RequestDocument, update bool) (Input, error) {
	var in Input
	if update {
		var dto UpdateDTO
		if err := transport.DecodeAttributes(doc, &dto); err != nil {
			return in, err
		}
		if err := validation.Attributes(dto); err != nil {
			return in, err
		}
		in.Name, in.Description = dto.Name, dto.Description
	} else {
		var dto CreateDTO
		if err := transport.DecodeAttributes(doc, &dto); err != nil {
			return in, err
		}
		if err := validation.Attributes(dto); err != nil {
			return in, err
		}
		in.Name, in.Description = &dto.Name, &dto.Description
	}

	var errs []internal.ValidationError
	for name, raw := range doc.Data.Relationships {
		rel, ok := def.Relationship(name)
		if !ok || rel.Child != nil {
			in.Unknown = append(in.Unknown, name)
			continue
		}
		pointer := "/data/relationships/" + name + "/data"

		if rel.ToOne {
			ident, err := raw.ToOne()
			if err != nil {
				return in, invalidBody(err)
			}
			in.ParentSet = true
			if ident == nil {
				continue
			}
			id, verr := identifierID(*ident, rel.Related, pointer)
			if verr != nil {
				errs = append(errs, *verr)
				continue
			}
			in.ParentID = &id
			continue
		}

		idents, err := raw.ToMany()
		if err != nil {
			return in, invalidBody(err)
		}
		links, linkErrs := ReadLinks(idents, rel.Related, pointer)
		errs = append(errs, linkErrs...)
		if in.Links == nil {
			in.Links = map[string][]Link{}
		}
		in.Links[name] = links
	}

	files, err := media.DocumentInstructions(doc)
	if err != nil {
		return in, err
	}
	in.Files = files

	if len(errs) > 0 {
		return in, internal.NewUnprocessableError(errs)
	}
	return in, nil
}

// ReadLinks reads pivot linkage. meta.priority defaults to PRINCIPAL; an unknown priority is
// left in place for the service to reject.
func ReadLinks(idents []transport.Identifier, related owner.Kind, pointer string) ([]Link, []internal.ValidationError) {
	links := make([]Link, 0, len(idents))
	var errs []internal.ValidationError
	for i, ident := range idents {
		at := fmt.Sprintf("%s/%d", pointer, i)
		id, verr := identifierID(ident, related, at)
		if verr != nil {
			errs = append(errs, *verr)
			continue
		}
		priority := catalogDatamodel.PriorityPrincipal
		if raw, ok := ident.Meta["priority"]; ok {
			s, _ := raw.(string)
			priority = catalogDatamodel.Priority(strings.ToUpper(strings.TrimSpace(s)))
		}
		links = append(links, Link{ID: id, Priority: priority})
	}
	return links, errs
}

// ReadIDs reads linkage identifiers for a detach.
func ReadIDs(idents []transport.Identifier, related owner.Kind) ([]uint, error) {
	ids := make([]uint, 0, len(idents))
	var errs []internal.ValidationError
	for i, ident := range idents {
		id, verr := identifierID(ident, related, fmt.Sprintf("/data/%d", i))
		if verr != nil {
			errs = append(errs, *verr)
			continue
		}
		ids = append(ids, id)
	}
	if len(errs) > 0 {
		return nil, internal.NewUnprocessableError(errs)
	}
	return ids, nil
}

func identifierID(ident transport.Identifier, related owner.Kind, pointer string) (uint, *internal.ValidationError) {
	if ident.Type != related.String() {
		return 0, &internal.ValidationError{
			Field:   "type",
			Message: "The %s is invalid.",
			Args:    []any{"type"},
			Code:    "INVALID",
			Pointer: pointer + "/type",
		}
	}
	id := transport.ParseID(ident.ID)
	if id == 0 {
		return 0, &internal.ValidationError{
			Field:   "id",
			Message: "The %s is invalid.",
			Args:    []any{"id"},
			Code:    "INVALID",
			Pointer: pointer + "/id",
		}
	}
	return id, nil
}

func invalidBody(err error) error {
	return internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
}

func selfLink(kind owner.Kind, id uint) string {
	return "/" + kind.String() + "/" + transport.FormatID(id)
}

// ToResource renders an entry of def with links to each of its relationships.
func ToResource(def Definition, e Entry) transport.Resource {
	self := selfLink(def.Kind, e.Item.ID)
	rels := make(map[string]transport.Relationship)
	for _, rel := range def.Relationships() {
		r := transport.Relationship{Links: &transport.Links{
			Self:    self + "/relationships/" + rel.Name,
			Related: self + "/" + rel.Name,
		}}
		if rel.ToOne {
			if e.Item.ParentID != nil {
				r.Data = transport.Identifier{Type: rel.Related.String(), ID: transport.FormatID(*e.Item.ParentID)}
			}
		}
		rels[rel.Name] = r
	}
	if def.Media != nil {
		rels[def.Media.Name] = transport.Relationship{Links: &transport.Links{Related: self + "/files"}}
	}

	res := transport.Resource{
		Type:          def.Type(),
		ID:            transport.FormatID(e.Item.ID),
		Attributes:    e.Attributes,
		Relationships: rels,
		Links:         &transport.Links{Self: self},
	}
	if e.Priority != "" {
		res.Meta = map[string]any{"priority": string(e.Priority)}
	}
	return res
}

func ToResources(def Definition, entries []Entry) []transport.Resource {
	out := make([]transport.Resource, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToResource(def, e))
	}
	return out
}

// ToIdentifiers renders linkage, with the priority in meta for pivot rows.
func ToIdentifiers(related owner.Kind, links []Link) []transport.Identifier {
	out := make([]transport.Identifier, 0, len(links))
	for _, l := range links {
		ident := transport.Identifier{Type: related.String(), ID: transport.FormatID(l.ID)}
		if l.Priority != "" {
			ident.Meta = map[string]any{"priority": string(l.Priority)}
		}
		out = append(out, ident)
	}
	return out
}
