package rest

import (
	"log/slog"

	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/catalog"
	"github.com/frahmantamala/fitness-content/internal/directory"
	"github.com/frahmantamala/fitness-content/internal/locale"
	"github.com/frahmantamala/fitness-content/internal/media"
	"github.com/frahmantamala/fitness-content/internal/rbac"
	"github.com/frahmantamala/fitness-content/internal/translation"
	"github.com/frahmantamala/fitness-content/internal/transport/middleware"
	"github.com/frahmantamala/fitness-content/internal/transport/swagger"
	"github.com/frahmantamala/fitness-content/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles everything the router mounts. Nil handlers are skipped.
type Handlers struct {
	Health        *HealthHandler
	Auth          *auth.Handler
	Authorization *auth.RBACAuthorization
	Catalog       *catalog.Handler
	Translations  *translation.Handler
	Media         *media.Handler
	Users         *user.Handler
	RBAC          *rbac.Handler
	Directories   *directory.Handler
}

type RouterOptions struct {
	AllowedOrigins string
	Locales        *locale.Resolver
	OpenAPIPath    string
	MetricsPath    string
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts RouterOptions, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.Metrics)
	router.Use(middleware.Locale(opts.Locales))
	router.Use(middleware.LoggingMiddleware(logger))

	if opts.OpenAPIPath != "" {
		router.Get(swagger.SpecURL, swagger.SpecHandler(opts.OpenAPIPath))
		router.Handle("/swagger/*", swagger.Handler())
	}
	if opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, promhttp.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}
	})

	if h.Auth == nil {
		return
	}

	router.Post("/signin", h.Auth.SignIn)
	router.Post("/signup", h.Auth.SignUp)
	router.Post("/refresh", h.Auth.RefreshToken)
	router.Post("/signout", h.Auth.SignOut)

	// Everything below may carry a bearer token; guests continue without a principal and
	// the policy gate decides per action.
	router.Group(func(r chi.Router) {
		r.Use(h.Auth.Authenticate)

		if h.Catalog != nil {
			h.Catalog.Mount(r)
		}
		if h.Directories != nil {
			h.Directories.Mount(r)
		}

		if h.Translations != nil {
			r.Route("/translations", func(tr chi.Router) {
				tr.Get("/", h.Translations.Index)
				tr.Post("/", h.Translations.Store)
				tr.Get("/{id}", h.Translations.Show)
				tr.Patch("/{id}", h.Translations.Update)
				tr.Delete("/{id}", h.Translations.Destroy)
			})
		}

		if h.Media != nil {
			r.Route("/media", func(mr chi.Router) {
				mr.Get("/bundle", h.Media.Bundle)
				mr.Post("/bundle", h.Media.Bundle)
				mr.Get("/{id}/download", h.Media.Download)
				mr.Get("/{id}/inline", h.Media.Inline)
			})
		}

		if h.Users != nil {
			r.Route("/users", func(ur chi.Router) {
				ur.Get("/", h.Users.Index)
				ur.Get("/{id}", h.Users.Show)
				ur.Patch("/{id}", h.Users.Update)
				ur.Delete("/{id}", h.Users.Destroy)
				ur.Get("/{id}/roles", h.Users.ShowRoles)
				ur.Get("/{id}/relationships/roles", h.Users.ShowRoleLinkage)
				ur.Patch("/{id}/relationships/roles", h.Users.UpdateRoles)
			})
		}

		if h.RBAC != nil {
			r.Group(func(ar chi.Router) {
				if h.Authorization != nil {
					ar.Use(h.Authorization.RequireAuth)
				}
				ar.Route("/permissions", func(pr chi.Router) {
					pr.Get("/", h.RBAC.ListPermissions)
					pr.Post("/", h.RBAC.StorePermission)
					pr.Get("/{id}", h.RBAC.ShowPermission)
					pr.Patch("/{id}", h.RBAC.UpdatePermission)
					pr.Delete("/{id}", h.RBAC.DestroyPermission)
				})
				ar.Route("/roles", func(rr chi.Router) {
					rr.Get("/", h.RBAC.ListRoles)
					rr.Post("/", h.RBAC.StoreRole)
					rr.Get("/{id}", h.RBAC.ShowRole)
					rr.Patch("/{id}", h.RBAC.UpdateRole)
					rr.Delete("/{id}", h.RBAC.DestroyRole)
					rr.Patch("/{id}/relationships/permissions", h.RBAC.SyncPermissions)
				})
			})
		}
	})
}
