package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultRole is assigned to every account created through signup.
const DefaultRole = "user"

type RepositoryAPI interface {
	FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	FindByID(ctx context.Context, id uint) (*userDatamodel.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateWithRole(ctx context.Context, u *userDatamodel.User, role string) error
}

// Service is the main auth service with dependencies
type Service struct {
	repo           RepositoryAPI
	tokenGenerator TokenGenerator
	bcryptCost     int
	accessTTL      time.Duration
	refreshTTL     time.Duration
	revocations    Revocations
	logger         *slog.Logger
}

// NewService creates a new auth service
func NewService(repo RepositoryAPI, tokenGen *JWTTokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		accessTTL:      tokenGen.AccessTokenTTL,
		refreshTTL:     tokenGen.RefreshTokenTTL,
		revocations:    NewMemoryRevocations(10000, tokenGen.RefreshTokenTTL),
		logger:         logger,
	}
}

// WithRevocations replaces the in-process sign out store, e.g. with RedisRevocations.
func (s *Service) WithRevocations(r Revocations) *Service {
	s.revocations = r
	return s
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	if accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL == 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
	}
}

// SignIn validates credentials and returns tokens. Soft-deleted accounts cannot sign in.
func (s *Service) SignIn(ctx context.Context, dto SignInDTO) (AuthTokens, error) {
	if err := validation.Body(dto); err != nil {
		return AuthTokens{}, err
	}

	u, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(dto.Email)))
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if err := VerifyPassword(u.PasswordHash, dto.Password); err != nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	return s.issue(u.ID, u.Email, uuid.NewString())
}

// SignUp creates an account with the default role. Every failing field is reported at once.
func (s *Service) SignUp(ctx context.Context, dto SignUpDTO) (*userDatamodel.User, AuthTokens, error) {
	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))

	verr := validation.Attributes(dto)
	if dto.Email != "" {
		taken, err := s.repo.EmailExists(ctx, dto.Email)
		if err != nil {
			return nil, AuthTokens{}, internal.NewInternalError("failed to check email", err)
		}
		if taken {
			verr = validation.Merge(verr, internal.ValidationError{
				Field:   "email",
				Message: "The %s has already been taken.",
				Args:    []any{"email"},
				Code:    "UNIQUE",
				Pointer: internal.AttributePointer("email"),
			})
		}
	}
	if verr != nil {
		return nil, AuthTokens{}, verr
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, AuthTokens{}, internal.NewInternalError("failed to hash password", err)
	}

	u := &userDatamodel.User{
		Name:         strings.TrimSpace(dto.Name),
		Email:        dto.Email,
		PasswordHash: hash,
	}
	if err := s.repo.CreateWithRole(ctx, u, DefaultRole); err != nil {
		return nil, AuthTokens{}, internal.NewInternalError("failed to create user", err)
	}

	s.logger.Info("user signed up", "user_id", u.ID)

	tokens, err := s.issue(u.ID, u.Email, uuid.NewString())
	if err != nil {
		return nil, AuthTokens{}, err
	}
	return u, tokens, nil
}

// RefreshTokens validates refresh token and returns new tokens of the same session.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateToken(refreshToken, RefreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	if err := s.checkSession(ctx, claims); err != nil {
		return AuthTokens{}, err
	}

	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return AuthTokens{}, internal.ErrUserInactive
	}

	return s.issue(u.ID, u.Email, claims.Session())
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString, AccessToken)
	if err != nil {
		return nil, err
	}
	if err := s.checkSession(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// SignOut revokes the session of the access token; its refresh token stops working too.
func (s *Service) SignOut(ctx context.Context, tokenString string) error {
	claims, err := s.ValidateAccessToken(ctx, tokenString)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, claims.Session(), s.refreshTTL); err != nil {
		return internal.NewInternalError("failed to revoke session", err)
	}
	s.logger.Info("user signed out", "user_id", claims.UserID)
	return nil
}

func (s *Service) checkSession(ctx context.Context, claims *Claims) error {
	revoked, err := s.revocations.IsRevoked(ctx, claims.Session())
	if err != nil {
		return internal.NewInternalError("failed to check session", err)
	}
	if revoked {
		return internal.ErrInvalidToken
	}
	return nil
}

// Principal loads the actor for userID with its roles; soft-deleted users yield ErrUserInactive.
func (s *Service) Principal(ctx context.Context, userID uint) (*internal.Principal, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return nil, internal.NewUnauthorizedError("User account is inactive", internal.ErrCodeUserInactive)
	}
	return &internal.Principal{ID: u.ID, Email: u.Email, Roles: u.RoleNames()}, nil
}

func (s *Service) issue(userID uint, email, sessionID string) (AuthTokens, error) {
	accessToken, refreshToken, err := s.tokenGenerator.GenerateTokenPair(userID, email, sessionID)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign token", err)
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// GenerateAccessToken creates a new access token
func (j *JWTTokenGenerator) GenerateAccessToken(userID uint, email string) (string, error) {
	return j.sign(userID, email, "", AccessToken, j.AccessTokenTTL, j.AccessTokenSecret)
}

// GenerateRefreshToken creates a new refresh token
func (j *JWTTokenGenerator) GenerateRefreshToken(userID uint, email string) (string, error) {
	return j.sign(userID, email, "", RefreshToken, j.RefreshTokenTTL, j.RefreshTokenSecret)
}

// GenerateTokenPair signs an access and a refresh token sharing sessionID.
func (j *JWTTokenGenerator) GenerateTokenPair(userID uint, email, sessionID string) (string, string, error) {
	access, err := j.sign(userID, email, sessionID, AccessToken, j.AccessTokenTTL, j.AccessTokenSecret)
	if err != nil {
		return "", "", err
	}
	refresh, err := j.sign(userID, email, sessionID, RefreshToken, j.RefreshTokenTTL, j.RefreshTokenSecret)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (j *JWTTokenGenerator) sign(userID uint, email, sessionID string, typ TokenType, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		Email:     email,
		Type:      typ,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprint(userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a JWT token of the given type and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string, typ TokenType) (*Claims, error) {
	secret := j.AccessTokenSecret
	if typ == RefreshToken {
		secret = j.RefreshTokenSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != typ {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
