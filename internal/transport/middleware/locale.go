package middleware

import (
	"net/http"

	"github.com/frahmantamala/fitness-content/internal/locale"
	"github.com/frahmantamala/fitness-content/pkg/logger"
)

// Locale resolves the Locale header into the request context and echoes the result as
// Content-Language.
func Locale(resolver *locale.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := resolver.Resolve(r.Header.Get(locale.Header))

			ctx := locale.WithTag(r.Context(), tag)
			ctx = logger.With(ctx, "locale", tag.String())

			w.Header().Set("Content-Language", tag.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
