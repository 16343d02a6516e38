package translation

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/common/validation"
	translationDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/translation"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

type RepositoryAPI interface {
	Lookup
	List(ctx context.Context, q transport.Query) ([]translationDatamodel.Translation, int64, error)
	FindByID(ctx context.Context, id uint) (*translationDatamodel.Translation, error)
	Upsert(ctx context.Context, t *translationDatamodel.Translation) (created bool, err error)
	Update(ctx context.Context, t *translationDatamodel.Translation) error
	Delete(ctx context.Context, id uint) error
	DeleteForOwner(ctx context.Context, ref owner.Ref) error
}

// Owners tells which columns of a kind are translatable and whether an owner row exists.
type Owners interface {
	TranslatableColumns(kind owner.Kind) []string
	OwnerExists(ctx context.Context, ref owner.Ref) (bool, error)
}

type Service struct {
	repo    RepositoryAPI
	owners  Owners
	locales []string
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, owners Owners, locales []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, owners: owners, locales: locales, logger: logger}
}

func (s *Service) List(ctx context.Context, q transport.Query) ([]translationDatamodel.Translation, int64, error) {
	if raw, ok := q.Filters["translatable_type"]; ok {
		if _, err := owner.ParseKind(raw); err != nil {
			return nil, 0, internal.NewParameterError("filter[translatable_type]", "The %s is invalid.", "translatable_type")
		}
	}
	if raw, ok := q.Filters["translatable_id"]; ok && transport.ParseID(raw) == 0 {
		return nil, 0, internal.NewParameterError("filter[translatable_id]", "The %s is invalid.", "translatable_id")
	}

	rows, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, internal.NewInternalError("failed to list translations", err)
	}
	return rows, total, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*translationDatamodel.Translation, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load translation", err)
	}
	if t == nil {
		return nil, internal.ErrNotFound
	}
	return t, nil
}

// Upsert writes the translation of (owner, locale, column). An existing row is overwritten
// and created is false.
func (s *Service) Upsert(ctx context.Context, dto CreateTranslationDTO) (*translationDatamodel.Translation, bool, error) {
	dto.Locale = strings.TrimSpace(dto.Locale)
	dto.Column = strings.TrimSpace(dto.Column)

	verr := validation.Attributes(dto)

	var extra []internal.ValidationError
	kind, kindErr := owner.ParseKind(dto.TranslatableType)
	if dto.TranslatableType != "" && kindErr != nil {
		extra = append(extra, fieldError("translatable_type", "INVALID", "The %s is invalid.", "translatable_type"))
	}
	if dto.Locale != "" && !slices.Contains(s.locales, dto.Locale) {
		extra = append(extra, fieldError("locale", "UNSUPPORTED", "The locale %s is not supported.", dto.Locale))
	}
	if kindErr == nil && dto.Column != "" && !slices.Contains(s.owners.TranslatableColumns(kind), dto.Column) {
		extra = append(extra, fieldError("column", "NOT_TRANSLATABLE", "The column %s is not translatable for %s.", dto.Column, kind.String()))
	}
	if kindErr == nil && dto.TranslatableID > 0 {
		ok, err := s.owners.OwnerExists(ctx, owner.NewRef(kind, dto.TranslatableID))
		if err != nil {
			return nil, false, internal.NewInternalError("failed to load owner", err)
		}
		if !ok {
			extra = append(extra, fieldError("translatable_id", "EXISTS", "The %s is invalid.", "translatable_id"))
		}
	}

	if err := validation.Merge(verr, extra...); err != nil {
		return nil, false, err
	}

	t := &translationDatamodel.Translation{
		Locale:           dto.Locale,
		Column:           dto.Column,
		Translation:      dto.Translation,
		TranslatableType: kind,
		TranslatableID:   dto.TranslatableID,
	}
	created, err := s.repo.Upsert(ctx, t)
	if err != nil {
		return nil, false, internal.NewInternalError("failed to save translation", err)
	}

	s.logger.InfoContext(ctx, "translation saved",
		"translation_id", t.ID, "owner", t.Owner().String(), "locale", t.Locale, "column", t.Column, "created", created)
	return t, created, nil
}

func (s *Service) Update(ctx context.Context, id uint, dto UpdateTranslationDTO) (*translationDatamodel.Translation, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Attributes(dto); err != nil {
		return nil, err
	}

	t.Translation = dto.Translation
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, internal.NewInternalError("failed to update translation", err)
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internal.NewInternalError("failed to delete translation", err)
	}
	return nil
}

// ForgetOwner removes every translation of ref; called when the owner is deleted.
func (s *Service) ForgetOwner(ctx context.Context, ref owner.Ref) error {
	return s.repo.DeleteForOwner(ctx, ref)
}

func fieldError(field, code, message string, args ...any) internal.ValidationError {
	return internal.ValidationError{
		Field:   field,
		Message: message,
		Args:    args,
		Code:    code,
		Pointer: internal.AttributePointer(field),
	}
}
