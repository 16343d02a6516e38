package user

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

type RepositoryAPI interface {
	List(ctx context.Context, q transport.Query) ([]userDatamodel.User, int64, error)
	FindByID(ctx context.Context, id uint) (*userDatamodel.User, error)
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
	Update(ctx context.Context, u *userDatamodel.User) error
	SoftDelete(ctx context.Context, id uint) error
	CountRoles(ctx context.Context, ids []uint) (int64, error)
	ReplaceRoles(ctx context.Context, userID uint, roleIDs []uint) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, q transport.Query) ([]*User, int64, error) {
	rows, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, internal.NewInternalError("failed to list users", err)
	}
	out := make([]*User, 0, len(rows))
	for i := range rows {
		out = append(out, FromDataModel(&rows[i]))
	}
	return out, total, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*User, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(u), nil
}

func (s *Service) find(ctx context.Context, id uint) (*userDatamodel.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return nil, internal.ErrNotFound
	}
	return u, nil
}

// Update applies dto. It returns nil, nil when dto carried deleted_at and the account is gone.
func (s *Service) Update(ctx context.Context, id uint, dto UpdateUserDTO) (*User, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.DeletedAt != nil {
		return nil, s.Delete(ctx, id)
	}

	if dto.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*dto.Email))
		taken, err := s.repo.EmailTaken(ctx, email, id)
		if err != nil {
			return nil, internal.NewInternalError("failed to check email", err)
		}
		if taken {
			return nil, internal.NewUnprocessableError([]internal.ValidationError{{
				Field:   "email",
				Message: "The %s has already been taken.",
				Args:    []any{"email"},
				Code:    "UNIQUE",
				Pointer: internal.AttributePointer("email"),
			}})
		}
		u.Email = email
	}
	if dto.Name != nil {
		u.Name = strings.TrimSpace(*dto.Name)
	}
	if dto.Age != nil {
		u.Age = dto.Age
	}
	if dto.Gender != nil {
		g := userDatamodel.Gender(*dto.Gender)
		u.Gender = &g
	}
	if dto.MeasurementSystem != nil {
		m := userDatamodel.MeasurementSystem(*dto.MeasurementSystem)
		u.MeasurementSystem = &m
	}
	if dto.Weight != nil {
		u.Weight = dto.Weight
	}
	if dto.Height != nil {
		u.Height = dto.Height
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, internal.NewInternalError("failed to update user", err)
	}
	return FromDataModel(u), nil
}

// Delete soft-deletes the account; it disappears from reads and can no longer sign in.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return internal.NewInternalError("failed to delete user", err)
	}
	s.logger.InfoContext(ctx, "user soft deleted", "user_id", id)
	return nil
}

func (s *Service) Roles(ctx context.Context, id uint) (*User, error) {
	return s.Get(ctx, id)
}

// SyncRoles replaces the roles of a user. Every id must name an existing role.
func (s *Service) SyncRoles(ctx context.Context, id uint, roleIDs []uint) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	slices.Sort(roleIDs)
	roleIDs = slices.Compact(roleIDs)
	if len(roleIDs) > 0 {
		n, err := s.repo.CountRoles(ctx, roleIDs)
		if err != nil {
			return internal.NewInternalError("failed to load roles", err)
		}
		if int(n) != len(roleIDs) {
			return internal.NewUnprocessableError([]internal.ValidationError{{
				Field:   "roles",
				Message: "The %s is invalid.",
				Args:    []any{"roles"},
				Code:    "EXISTS",
				Pointer: "/data",
			}})
		}
	}

	if err := s.repo.ReplaceRoles(ctx, id, roleIDs); err != nil {
		return internal.NewInternalError(fmt.Sprintf("failed to sync roles of user %d", id), err)
	}
	s.logger.InfoContext(ctx, "user roles synced", "user_id", id, "roles", roleIDs)
	return nil
}
