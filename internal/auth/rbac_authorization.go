package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

// RBACAuthorization guards routes whose decision does not depend on the target row.
type RBACAuthorization struct {
	*transport.BaseHandler
	gate *Gate
}

func NewRBACAuthorization(gate *Gate, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		gate:        gate,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, resource, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := internal.PrincipalFromContext(r.Context())
		if err := ra.gate.Authorize(r.Context(), actor, resource, action, 0); err != nil {
			ra.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) Middleware(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, resource, action)
	}
}

// RequireAuth rejects guests with 401.
func (ra *RBACAuthorization) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if internal.PrincipalFromContext(r.Context()) == nil {
			ra.Logger.Warn("authorization check failed: user not found in context")
			ra.WriteError(w, r, internal.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
