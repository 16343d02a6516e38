package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"github.com/frahmantamala/fitness-content/pkg/logger"
)

type ServiceAPI interface {
	SignIn(ctx context.Context, dto SignInDTO) (AuthTokens, error)
	SignUp(ctx context.Context, dto SignUpDTO) (*userDatamodel.User, AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	SignOut(ctx context.Context, accessToken string) error
	ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error)
	Principal(ctx context.Context, userID uint) (*internal.Principal, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var dto SignInDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	tokens, err := h.Service.SignIn(r.Context(), dto)
	if err != nil {
		h.Logger.Warn("SignIn: authentication failed", "error", err)
		h.WriteError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	doc, err := h.DecodeDocument(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	var dto SignUpDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	u, tokens, err := h.Service.SignUp(r.Context(), dto)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	w.Header().Set("Location", "/users/"+transport.FormatID(u.ID))
	h.WriteDocument(w, http.StatusCreated, transport.Document{
		Data: transport.Resource{
			Type: "users",
			ID:   transport.FormatID(u.ID),
			Attributes: map[string]any{
				"name":       u.Name,
				"email":      u.Email,
				"created_at": u.CreatedAt,
				"updated_at": u.UpdatedAt,
			},
		},
		Meta: map[string]any{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"token_type":    tokens.TokenType,
			"expires_in":    tokens.ExpiresIn,
		},
	})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	if err := validation.Body(dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.Logger.Warn("RefreshToken: token refresh failed", "error", err)
		h.WriteError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteError(w, r, internal.ErrUnauthenticated)
		return
	}

	if err := h.Service.SignOut(r.Context(), token); err != nil {
		h.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Authenticate attaches the principal when a bearer token is present. Requests without a
// token continue as guests; an invalid token is always rejected.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := h.Service.ValidateAccessToken(r.Context(), token)
		if err != nil {
			h.Logger.Warn("auth middleware: token validation failed", "error", err)
			h.WriteError(w, r, err)
			return
		}

		principal, err := h.Service.Principal(r.Context(), claims.UserID)
		if err != nil {
			h.Logger.Warn("auth middleware: failed to load user", "user_id", claims.UserID, "error", err)
			h.WriteError(w, r, err)
			return
		}

		ctx := internal.ContextWithPrincipal(r.Context(), principal)
		ctx = logger.With(ctx, "user_id", principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
