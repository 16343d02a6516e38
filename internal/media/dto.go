package media

import (
	"time"

	mediaDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

const ResourceType = "media"

type MediaResponse struct {
	Name             string         `json:"name"`
	FileName         string         `json:"file_name"`
	MimeType         string         `json:"mime_type"`
	Size             int64          `json:"size"`
	CollectionName   string         `json:"collection_name"`
	OwnerType        string         `json:"owner_type"`
	OwnerID          string         `json:"owner_id"`
	CustomProperties map[string]any `json:"custom_properties,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func ToResource(m *mediaDatamodel.Media) transport.Resource {
	id := transport.FormatID(m.ID)
	return transport.Resource{
		Type: ResourceType,
		ID:   id,
		Attributes: MediaResponse{
			Name:             m.Name,
			FileName:         m.FileName,
			MimeType:         m.MimeType,
			Size:             m.Size,
			CollectionName:   m.CollectionName,
			OwnerType:        m.OwnerType.String(),
			OwnerID:          transport.FormatID(m.OwnerID),
			CustomProperties: m.CustomProperties,
			CreatedAt:        m.CreatedAt,
			UpdatedAt:        m.UpdatedAt,
		},
		Links: &transport.Links{
			Self:    "/media/" + id + "/download",
			Related: "/media/" + id + "/inline",
		},
	}
}

func ToResources(rows []mediaDatamodel.Media) []transport.Resource {
	out := make([]transport.Resource, 0, len(rows))
	for i := range rows {
		out = append(out, ToResource(&rows[i]))
	}
	return out
}
