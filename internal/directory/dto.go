package directory

import (
	"time"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/media"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

var (
	Filters = []string{"name"}
	Sorts   = []string{"id", "name", "created_at", "updated_at"}
)

type CreateDirectoryDTO struct {
	Name string `json:"name" validate:"required,max=255,pathsegment"`
}

type UpdateDirectoryDTO struct {
	Name *string `json:"name" validate:"omitnil,min=1,max=255,pathsegment"`
}

// Input is a validated create or update request.
type Input struct {
	Name *string
	// ParentSet is true when the request carried relationships.parent; ParentID nil
	// then moves the directory to the root.
	ParentSet bool
	ParentID  *uint
	Files     []media.Instruction
}

type DirectoryResponse struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadParent extracts relationships.parent; a malformed linkage is a 400.
func ReadParent(doc *transport.RequestDocument) (set bool, id *uint, err error) {
	rel, ok := doc.Data.Relationships[ParentRel]
	if !ok {
		return false, nil, nil
	}
	id, err = ParentLinkage(rel)
	return err == nil, id, err
}

// ParentLinkage reads a to-one parent linkage; null moves the directory to the root.
func ParentLinkage(rel transport.RequestRelationship) (*uint, error) {
	ident, err := rel.ToOne()
	if err != nil {
		return nil, internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
	}
	if ident == nil {
		return nil, nil
	}
	id := transport.ParseID(ident.ID)
	if ident.Type != ResourceType || id == 0 {
		return nil, parentError()
	}
	return &id, nil
}

func parentError() error {
	return internal.NewUnprocessableError([]internal.ValidationError{{
		Field:   ParentRel,
		Message: "The selected parent is invalid.",
		Code:    string(internal.ErrCodeInvalidParent),
		Pointer: "/data/relationships/parent/data/id",
	}})
}

func ToResource(d *Directory) transport.Resource {
	id := transport.FormatID(d.ID)
	self := "/" + ResourceType + "/" + id

	parent := transport.Relationship{
		Links: &transport.Links{
			Self:    self + "/relationships/" + ParentRel,
			Related: self + "/" + ParentRel,
		},
	}
	if d.ParentID != nil {
		parent.Data = transport.Identifier{Type: ResourceType, ID: transport.FormatID(*d.ParentID)}
	}

	return transport.Resource{
		Type: ResourceType,
		ID:   id,
		Attributes: DirectoryResponse{
			Name:      d.Name,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		Relationships: map[string]transport.Relationship{
			ParentRel: parent,
			ChildrenRel: {
				Links: &transport.Links{Related: self + "/" + ChildrenRel},
			},
			"files": {
				Links: &transport.Links{Related: self + "/files"},
			},
		},
		Links: &transport.Links{Self: self},
	}
}

func ToResources(rows []*Directory) []transport.Resource {
	out := make([]transport.Resource, 0, len(rows))
	for _, d := range rows {
		out = append(out, ToResource(d))
	}
	return out
}
