package auth

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/metrics"
	"github.com/jmoiron/sqlx"
)

const rolePermissionsQuery = `SELECT p.name
	FROM permissions p
	JOIN role_permissions rp ON rp.permission_id = p.id
	JOIN roles r ON r.id = rp.role_id
	WHERE r.name = ?`

// PermissionGraph answers whether an actor holds a named permission through any of its roles.
// Names match exactly; there are no wildcards.
type PermissionGraph struct {
	db     *sqlx.DB
	cache  PermissionCache
	logger *slog.Logger
}

func NewPermissionGraph(db *sqlx.DB, cache PermissionCache, logger *slog.Logger) *PermissionGraph {
	if cache == nil {
		cache = noCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionGraph{db: db, cache: cache, logger: logger}
}

// RolePermissions returns the permission names linked to role, sorted.
func (g *PermissionGraph) RolePermissions(ctx context.Context, role string) ([]string, error) {
	if perms, ok := g.cache.Get(ctx, role); ok {
		metrics.PermissionCacheTotal.WithLabelValues("hit").Inc()
		return perms, nil
	}
	metrics.PermissionCacheTotal.WithLabelValues("miss").Inc()

	perms := []string{}
	if err := g.db.SelectContext(ctx, &perms, g.db.Rebind(rolePermissionsQuery), role); err != nil {
		return nil, fmt.Errorf("load permissions of role %s: %w", role, err)
	}
	slices.Sort(perms)

	g.cache.Set(ctx, role, perms)
	return perms, nil
}

func (g *PermissionGraph) HasPermission(ctx context.Context, actor *internal.Principal, name string) (bool, error) {
	if actor == nil {
		return false, nil
	}
	for _, role := range actor.Roles {
		perms, err := g.RolePermissions(ctx, role)
		if err != nil {
			return false, err
		}
		if slices.Contains(perms, name) {
			return true, nil
		}
	}
	g.logger.Debug("permission not granted", "user_id", actor.ID, "permission", name, "roles", actor.Roles)
	return false, nil
}
