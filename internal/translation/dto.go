package translation

import (
	"time"

	translationDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/translation"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

const ResourceType = "translations"

var (
	Filters = []string{"translatable_type", "translatable_id", "locale", "column"}
	Sorts   = []string{"id", "locale", "column", "created_at", "updated_at"}
)

// CreateTranslationDTO is the attribute set of a POST /translations document.
type CreateTranslationDTO struct {
	Locale           string `json:"locale" validate:"required,max=16"`
	Column           string `json:"column" validate:"required,max=64"`
	Translation      string `json:"translation" validate:"required"`
	TranslatableType string `json:"translatable_type" validate:"required"`
	TranslatableID   uint   `json:"translatable_id" validate:"required,gt=0"`
}

type UpdateTranslationDTO struct {
	Translation string `json:"translation" validate:"required"`
}

// TranslationResponse is the attribute set of a translations resource.
type TranslationResponse struct {
	Locale           string    `json:"locale"`
	Column           string    `json:"column"`
	Translation      string    `json:"translation"`
	TranslatableType string    `json:"translatable_type"`
	TranslatableID   uint      `json:"translatable_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func ToResource(t *translationDatamodel.Translation) transport.Resource {
	id := transport.FormatID(t.ID)
	return transport.Resource{
		Type: ResourceType,
		ID:   id,
		Attributes: TranslationResponse{
			Locale:           t.Locale,
			Column:           t.Column,
			Translation:      t.Translation,
			TranslatableType: t.TranslatableType.String(),
			TranslatableID:   t.TranslatableID,
			CreatedAt:        t.CreatedAt,
			UpdatedAt:        t.UpdatedAt,
		},
		Links: &transport.Links{Self: "/" + ResourceType + "/" + id},
	}
}
