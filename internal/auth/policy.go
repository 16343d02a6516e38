package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"github.com/frahmantamala/fitness-content/internal/metrics"
)

type ruleKind int

const (
	ruleDeny ruleKind = iota
	rulePublic
	rulePermission
	rulePermissionAndSelf
)

// Rule decides one action on one resource.
type Rule struct {
	kind       ruleKind
	permission string
}

// Public lets anyone through, guests included.
func Public() Rule { return Rule{kind: rulePublic} }

// Permission requires the named permission.
func Permission(name string) Rule { return Rule{kind: rulePermission, permission: name} }

// PermissionAndSelf requires the named permission and that the actor is the target.
func PermissionAndSelf(name string) Rule {
	return Rule{kind: rulePermissionAndSelf, permission: name}
}

// Deny refuses everyone but superAdmin.
func Deny() Rule { return Rule{kind: ruleDeny} }

func (r Rule) IsPublic() bool { return r.kind == rulePublic }

// PermissionName is the permission the rule consults, empty for Public and Deny.
func (r Rule) PermissionName() string { return r.permission }

// Policy maps action names (viewAny, view, create, update, delete, restore, forceDelete,
// view<Rel>, attach<Rel>, detach<Rel>, update<Rel>) to rules.
type Policy map[string]Rule

// Checker resolves permissions for an actor.
type Checker interface {
	HasPermission(ctx context.Context, actor *internal.Principal, name string) (bool, error)
}

// Gate is the single authorization entry point.
type Gate struct {
	checker  Checker
	mu       sync.RWMutex
	policies map[string]Policy
	logger   *slog.Logger
}

func NewGate(checker Checker, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		checker:  checker,
		policies: make(map[string]Policy),
		logger:   logger,
	}
}

// Register installs or extends the policy of resource.
func (g *Gate) Register(resource string, p Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.policies[resource]
	if !ok {
		existing = Policy{}
		g.policies[resource] = existing
	}
	for action, rule := range p {
		existing[action] = rule
	}
}

// Rule returns the rule of (resource, action); unknown pairs deny.
func (g *Gate) Rule(resource, action string) Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if p, ok := g.policies[resource]; ok {
		if r, ok := p[action]; ok {
			return r
		}
	}
	return Deny()
}

// Authorize checks actor against the rule of (resource, action). targetID is the user the
// request acts on and only matters for self-scoped rules.
//
// Order: public rules pass, guests get 401, superAdmin passes, then the rule decides (403).
func (g *Gate) Authorize(ctx context.Context, actor *internal.Principal, resource, action string, targetID uint) error {
	err := g.authorize(ctx, actor, resource, action, targetID)
	switch {
	case err == nil:
		metrics.AuthorizationDecisionsTotal.WithLabelValues("allow").Inc()
	case err == internal.ErrUnauthenticated:
		metrics.AuthorizationDecisionsTotal.WithLabelValues("unauthenticated").Inc()
	case err == internal.ErrForbidden:
		metrics.AuthorizationDecisionsTotal.WithLabelValues("forbidden").Inc()
	}
	return err
}

func (g *Gate) authorize(ctx context.Context, actor *internal.Principal, resource, action string, targetID uint) error {
	rule := g.Rule(resource, action)
	if rule.kind == rulePublic {
		return nil
	}

	if actor == nil {
		return internal.ErrUnauthenticated
	}

	if actor.HasRole(rbac.SuperAdmin) {
		return nil
	}

	switch rule.kind {
	case rulePermission, rulePermissionAndSelf:
		ok, err := g.checker.HasPermission(ctx, actor, rule.permission)
		if err != nil {
			return internal.NewInternalError("permission lookup failed", err)
		}
		if !ok {
			g.logger.WarnContext(ctx, "access denied: insufficient permissions",
				"user_id", actor.ID, "resource", resource, "action", action,
				"required_permission", rule.permission)
			return internal.ErrForbidden
		}
		if rule.kind == rulePermissionAndSelf && actor.ID != targetID {
			g.logger.WarnContext(ctx, "access denied: not the target user",
				"user_id", actor.ID, "target_id", targetID, "resource", resource, "action", action)
			return internal.ErrForbidden
		}
		return nil
	default:
		return internal.ErrForbidden
	}
}

// Allows is Authorize as a boolean.
func (g *Gate) Allows(ctx context.Context, actor *internal.Principal, resource, action string, targetID uint) bool {
	return g.Authorize(ctx, actor, resource, action, targetID) == nil
}

// RelAction names a relationship predicate: RelAction("view", "physical-conditions") is
// "viewPhysicalConditions".
func RelAction(verb, rel string) string {
	var b strings.Builder
	b.WriteString(verb)
	upper := true
	for _, r := range rel {
		if r == '-' || r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ResourcePolicy is the catalog default: reads are public, writes need "<verb> <resource>".
func ResourcePolicy(resource string) Policy {
	return Policy{
		"viewAny":     Public(),
		"view":        Public(),
		"create":      Permission("create " + resource),
		"update":      Permission("update " + resource),
		"delete":      Permission("delete " + resource),
		"restore":     Permission("restore " + resource),
		"forceDelete": Permission("forceDelete " + resource),
	}
}

// ProtectedPolicy requires "read <resource>" for reads as well.
func ProtectedPolicy(resource string) Policy {
	p := ResourcePolicy(resource)
	p["viewAny"] = Permission("read " + resource)
	p["view"] = Permission("read " + resource)
	return p
}

// SelfPolicy scopes update and delete to the actor's own row.
func SelfPolicy(resource string) Policy {
	p := ProtectedPolicy(resource)
	p["update"] = PermissionAndSelf("update " + resource)
	p["delete"] = PermissionAndSelf("delete " + resource)
	return p
}

// WithRelation adds the predicates of relationship rel pointing at related resources:
// view<Rel> needs "read <related>", attach/detach/update<Rel> need "update <resource>".
func (p Policy) WithRelation(resource, rel, related string) Policy {
	p[RelAction("view", rel)] = Permission("read " + related)
	p[RelAction("attach", rel)] = Permission("update " + resource)
	p[RelAction("detach", rel)] = Permission("update " + resource)
	p[RelAction("update", rel)] = Permission("update " + resource)
	return p
}
