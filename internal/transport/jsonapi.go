package transport

import (
	"encoding/json"
	"strconv"

	"github.com/frahmantamala/fitness-content/internal"
)

// MediaType is the JSON:API content type.
const MediaType = "application/vnd.api+json"

type Document struct {
	Data     any            `json:"data"`
	Included []Resource     `json:"included,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Links    *Links         `json:"links,omitempty"`
	JSONAPI  *Version       `json:"jsonapi,omitempty"`
}

type Version struct {
	Version string `json:"version"`
}

var jsonapiVersion = &Version{Version: "1.0"}

type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    any                     `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         *Links                  `json:"links,omitempty"`
	Meta          map[string]any          `json:"meta,omitempty"`
}

type Relationship struct {
	Data  any            `json:"data,omitempty"`
	Links *Links         `json:"links,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

type Identifier struct {
	Type string         `json:"type"`
	ID   string         `json:"id"`
	Meta map[string]any `json:"meta,omitempty"`
}

type Links struct {
	Self    string `json:"self,omitempty"`
	Related string `json:"related,omitempty"`
	First   string `json:"first,omitempty"`
	Prev    string `json:"prev,omitempty"`
	Next    string `json:"next,omitempty"`
	Last    string `json:"last,omitempty"`
}

type ErrorDocument struct {
	Errors  []ErrorObject `json:"errors"`
	JSONAPI *Version      `json:"jsonapi,omitempty"`
}

type ErrorObject struct {
	Status string       `json:"status"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// RequestDocument is the body of a create or update request.
type RequestDocument struct {
	Data RequestResource            `json:"data"`
	Meta map[string]json.RawMessage `json:"meta,omitempty"`
}

type RequestResource struct {
	Type          string                         `json:"type"`
	ID            string                         `json:"id,omitempty"`
	Attributes    json.RawMessage                `json:"attributes,omitempty"`
	Relationships map[string]RequestRelationship `json:"relationships,omitempty"`
	Meta          map[string]json.RawMessage     `json:"meta,omitempty"`
}

type RequestRelationship struct {
	Data json.RawMessage `json:"data"`
}

// ToOne decodes a to-one linkage; nil when the linkage is null.
func (r RequestRelationship) ToOne() (*Identifier, error) {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil, nil
	}
	var id Identifier
	if err := json.Unmarshal(r.Data, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// ToMany decodes a to-many linkage.
func (r RequestRelationship) ToMany() ([]Identifier, error) {
	var ids []Identifier
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return ids, nil
	}
	if err := json.Unmarshal(r.Data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// LinkageDocument is the body of relationship endpoints.
type LinkageDocument struct {
	Data []Identifier `json:"data"`
}

// FormatID renders a numeric id the way JSON:API wants it.
func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a JSON:API or URL id; zero means invalid.
// CheckResource answers 409 when data.type differs from resourceType, or when an update
// document carries a data.id other than id. Pass id 0 for create documents.
func (doc *RequestDocument) CheckResource(resourceType string, id uint) error {
	if doc.Data.Type != resourceType {
		return internal.NewConflictError("The resource type does not match the endpoint.", internal.ErrCodeTypeMismatch)
	}
	if id != 0 && doc.Data.ID != "" && ParseID(doc.Data.ID) != id {
		return internal.NewConflictError("The resource id does not match the endpoint.", internal.ErrCodeTypeMismatch)
	}
	return nil
}

func ParseID(s string) uint {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}
