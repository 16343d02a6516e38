// Package rbac administers roles, permissions and the grants between them.
package rbac

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	rbacDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"github.com/frahmantamala/fitness-content/internal/core/events"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

type RepositoryAPI interface {
	ListPermissions(ctx context.Context, q transport.Query) ([]rbacDatamodel.Permission, int64, error)
	FindPermission(ctx context.Context, id uint) (*rbacDatamodel.Permission, error)
	PermissionNameTaken(ctx context.Context, name string, exceptID uint) (bool, error)
	SavePermission(ctx context.Context, p *rbacDatamodel.Permission) error
	DeletePermission(ctx context.Context, id uint) error
	CountPermissions(ctx context.Context, ids []uint) (int64, error)

	ListRoles(ctx context.Context, q transport.Query) ([]rbacDatamodel.Role, int64, error)
	FindRole(ctx context.Context, id uint) (*rbacDatamodel.Role, error)
	RoleNameTaken(ctx context.Context, name string, exceptID uint) (bool, error)
	SaveRole(ctx context.Context, r *rbacDatamodel.Role) error
	DeleteRole(ctx context.Context, id uint) error
	SyncPermissions(ctx context.Context, roleID uint, permissionIDs []uint) error
}

// Notifier delivers rbac.changed before the request returns so cached grants are gone
// when the client sees the response.
type Notifier interface {
	PublishSync(ctx context.Context, event events.Event) error
}

type Service struct {
	repo     RepositoryAPI
	notifier Notifier
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

func (s *Service) changed(ctx context.Context, subject string, id uint) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishSync(ctx, events.NewRBACChangedEvent(subject, id)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish rbac change", "subject", subject, "id", id, "error", err)
	}
}

func (s *Service) ListPermissions(ctx context.Context, q transport.Query) ([]rbacDatamodel.Permission, int64, error) {
	rows, total, err := s.repo.ListPermissions(ctx, q)
	if err != nil {
		return nil, 0, internal.NewInternalError("failed to list permissions", err)
	}
	return rows, total, nil
}

func (s *Service) GetPermission(ctx context.Context, id uint) (*rbacDatamodel.Permission, error) {
	p, err := s.repo.FindPermission(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load permission", err)
	}
	if p == nil {
		return nil, internal.ErrNotFound
	}
	return p, nil
}

func (s *Service) CreatePermission(ctx context.Context, dto CreatePermissionDTO) (*rbacDatamodel.Permission, error) {
	p := &rbacDatamodel.Permission{
		Name:        strings.TrimSpace(dto.Name),
		DisplayName: dto.DisplayName,
		Action:      strings.TrimSpace(dto.Action),
		Subject:     strings.TrimSpace(dto.Subject),
	}
	if p.Name == "" {
		p.Name = PermissionName(p.Action, p.Subject)
	}
	if err := s.uniquePermission(ctx, p.Name, 0); err != nil {
		return nil, err
	}

	if err := s.repo.SavePermission(ctx, p); err != nil {
		return nil, internal.NewInternalError("failed to create permission", err)
	}
	s.changed(ctx, PermissionsType, p.ID)
	return p, nil
}

func (s *Service) UpdatePermission(ctx context.Context, id uint, dto UpdatePermissionDTO) (*rbacDatamodel.Permission, error) {
	p, err := s.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Action != nil {
		p.Action = strings.TrimSpace(*dto.Action)
	}
	if dto.Subject != nil {
		p.Subject = strings.TrimSpace(*dto.Subject)
	}
	if dto.DisplayName != nil {
		p.DisplayName = *dto.DisplayName
	}
	switch {
	case dto.Name != nil:
		p.Name = strings.TrimSpace(*dto.Name)
	case dto.Action != nil || dto.Subject != nil:
		p.Name = PermissionName(p.Action, p.Subject)
	}
	if err := s.uniquePermission(ctx, p.Name, id); err != nil {
		return nil, err
	}

	if err := s.repo.SavePermission(ctx, p); err != nil {
		return nil, internal.NewInternalError("failed to update permission", err)
	}
	s.changed(ctx, PermissionsType, id)
	return p, nil
}

// DeletePermission answers 404 for an unknown id and 400 when the row could not be removed.
func (s *Service) DeletePermission(ctx context.Context, id uint) error {
	if _, err := s.GetPermission(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "permission delete failed", "id", id, "error", err)
		return internal.NewDeleteFailedError(err)
	}
	s.changed(ctx, PermissionsType, id)
	return nil
}

func (s *Service) uniquePermission(ctx context.Context, name string, exceptID uint) error {
	taken, err := s.repo.PermissionNameTaken(ctx, name, exceptID)
	if err != nil {
		return internal.NewInternalError("failed to check permission name", err)
	}
	if taken {
		return takenError("name")
	}
	return nil
}

// PermissionName is the flat name checked by the policy gate.
func PermissionName(action, subject string) string {
	return action + " " + subject
}

func (s *Service) ListRoles(ctx context.Context, q transport.Query) ([]rbacDatamodel.Role, int64, error) {
	rows, total, err := s.repo.ListRoles(ctx, q)
	if err != nil {
		return nil, 0, internal.NewInternalError("failed to list roles", err)
	}
	return rows, total, nil
}

func (s *Service) GetRole(ctx context.Context, id uint) (*rbacDatamodel.Role, error) {
	r, err := s.repo.FindRole(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load role", err)
	}
	if r == nil {
		return nil, internal.ErrNotFound
	}
	return r, nil
}

// CreateRole saves a role and, when permissionIDs is not nil, grants them.
func (s *Service) CreateRole(ctx context.Context, dto CreateRoleDTO, permissionIDs []uint) (*rbacDatamodel.Role, error) {
	name := strings.TrimSpace(dto.Name)
	if err := s.uniqueRole(ctx, name, 0); err != nil {
		return nil, err
	}
	if err := s.checkPermissions(ctx, permissionIDs); err != nil {
		return nil, err
	}

	r := &rbacDatamodel.Role{Name: name, DisplayName: dto.DisplayName}
	if err := s.repo.SaveRole(ctx, r); err != nil {
		return nil, internal.NewInternalError("failed to create role", err)
	}
	if permissionIDs != nil {
		if err := s.repo.SyncPermissions(ctx, r.ID, unique(permissionIDs)); err != nil {
			return nil, internal.NewInternalError("failed to grant permissions", err)
		}
	}
	s.changed(ctx, RolesType, r.ID)
	return s.GetRole(ctx, r.ID)
}

func (s *Service) UpdateRole(ctx context.Context, id uint, dto UpdateRoleDTO, permissionIDs []uint) (*rbacDatamodel.Role, error) {
	r, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if dto.Name != nil {
		r.Name = strings.TrimSpace(*dto.Name)
		if err := s.uniqueRole(ctx, r.Name, id); err != nil {
			return nil, err
		}
	}
	if dto.DisplayName != nil {
		r.DisplayName = *dto.DisplayName
	}
	if err := s.checkPermissions(ctx, permissionIDs); err != nil {
		return nil, err
	}

	if err := s.repo.SaveRole(ctx, r); err != nil {
		return nil, internal.NewInternalError("failed to update role", err)
	}
	if permissionIDs != nil {
		if err := s.repo.SyncPermissions(ctx, id, unique(permissionIDs)); err != nil {
			return nil, internal.NewInternalError("failed to grant permissions", err)
		}
	}
	s.changed(ctx, RolesType, id)
	return s.GetRole(ctx, id)
}

// SyncPermissions replaces the grants of a role.
func (s *Service) SyncPermissions(ctx context.Context, id uint, permissionIDs []uint) (*rbacDatamodel.Role, error) {
	if _, err := s.GetRole(ctx, id); err != nil {
		return nil, err
	}
	if err := s.checkPermissions(ctx, permissionIDs); err != nil {
		return nil, err
	}
	if err := s.repo.SyncPermissions(ctx, id, unique(permissionIDs)); err != nil {
		return nil, internal.NewInternalError("failed to grant permissions", err)
	}
	s.changed(ctx, RolesType, id)
	return s.GetRole(ctx, id)
}

func (s *Service) DeleteRole(ctx context.Context, id uint) error {
	if _, err := s.GetRole(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "role delete failed", "id", id, "error", err)
		return internal.NewDeleteFailedError(err)
	}
	s.changed(ctx, RolesType, id)
	return nil
}

func (s *Service) uniqueRole(ctx context.Context, name string, exceptID uint) error {
	taken, err := s.repo.RoleNameTaken(ctx, name, exceptID)
	if err != nil {
		return internal.NewInternalError("failed to check role name", err)
	}
	if taken {
		return takenError("name")
	}
	return nil
}

func (s *Service) checkPermissions(ctx context.Context, ids []uint) error {
	ids = unique(ids)
	if len(ids) == 0 {
		return nil
	}
	n, err := s.repo.CountPermissions(ctx, ids)
	if err != nil {
		return internal.NewInternalError("failed to load permissions", err)
	}
	if int(n) != len(ids) {
		return internal.NewUnprocessableError([]internal.ValidationError{{
			Field:   PermissionsType,
			Message: "The %s is invalid.",
			Args:    []any{PermissionsType},
			Code:    "EXISTS",
			Pointer: "/data/relationships/permissions",
		}})
	}
	return nil
}

func takenError(field string) error {
	return internal.NewUnprocessableError([]internal.ValidationError{{
		Field:   field,
		Message: "The %s has already been taken.",
		Args:    []any{field},
		Code:    "UNIQUE",
		Pointer: internal.AttributePointer(field),
	}})
}

func unique(ids []uint) []uint {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
