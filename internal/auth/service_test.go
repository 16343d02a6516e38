package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func sessionOf(gen *JWTTokenGenerator, access string) string {
	claims, err := gen.ValidateToken(access, AccessToken)
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	return claims.Session()
}

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

type mockUserRepository struct {
	users         map[uint]*userDatamodel.User
	nextID        uint
	returnError   bool
	errorToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)

	return &mockUserRepository{
		users: map[uint]*userDatamodel.User{
			1: {ID: 1, Name: "User", Email: "user@example.com", PasswordHash: string(hash), Roles: []rbac.Role{{Name: "user"}}},
			2: {ID: 2, Name: "Admin", Email: "admin@example.com", PasswordHash: string(hash), Roles: []rbac.Role{{Name: "admin"}}},
		},
		nextID: 3,
	}
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*userDatamodel.User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) FindByID(_ context.Context, id uint) (*userDatamodel.User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	return m.users[id], nil
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	u, err := m.FindByEmail(ctx, email)
	return u != nil, err
}

func (m *mockUserRepository) CreateWithRole(_ context.Context, u *userDatamodel.User, role string) error {
	if m.returnError {
		return m.errorToReturn
	}
	u.ID = m.nextID
	u.Roles = []rbac.Role{{Name: role}}
	m.users[u.ID] = u
	m.nextID++
	return nil
}

func (m *mockUserRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

func fieldsOf(err error) []string {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		return nil
	}
	var fields []string
	for _, fe := range appErr.FieldErrors() {
		fields = append(fields, fe.Field)
	}
	return fields
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service       *Service
		mockRepo      *mockUserRepository
		tokenGen      *JWTTokenGenerator
		ctx           context.Context
		accessSecret  string        = "test-access-secret"
		refreshSecret string        = "test-refresh-secret"
		accessTTL     time.Duration = 15 * time.Minute
		refreshTTL    time.Duration = 24 * time.Hour
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		mockRepo = newMockUserRepository()
		tokenGen = NewJWTTokenGenerator(accessSecret, refreshSecret, accessTTL, refreshTTL)
		service = NewService(mockRepo, tokenGen, bcrypt.MinCost, logger.Discard())
	})

	ginkgo.Describe("SignIn", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return access and refresh tokens", func() {
				// Given
				dto := SignInDTO{Email: "user@example.com", Password: "correct_password"}

				// When
				tokens, err := service.SignIn(ctx, dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
				gomega.Expect(tokens.TokenType).To(gomega.Equal("Bearer"))
				gomega.Expect(tokens.ExpiresIn).To(gomega.Equal(int64(900)))
			})

			ginkgo.It("should normalize the email before lookup", func() {
				// Given
				dto := SignInDTO{Email: "  ADMIN@example.com ", Password: "correct_password"}

				// When
				tokens, err := service.SignIn(ctx, dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				claims, err := service.ValidateAccessToken(ctx, tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal(uint(2)))
				gomega.Expect(claims.Email).To(gomega.Equal("admin@example.com"))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return error for unknown email", func() {
				// When
				tokens, err := service.SignIn(ctx, SignInDTO{Email: "nobody@example.com", Password: "any_password"})

				// Then
				gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return error for wrong password", func() {
				// When
				_, err := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "wrong_password"})

				// Then
				gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidCredentials))
			})
		})

		ginkgo.Context("when input validation fails", func() {
			ginkgo.It("should report every missing field", func() {
				// When
				_, err := service.SignIn(ctx, SignInDTO{})

				// Then
				gomega.Expect(internal.StatusOf(err)).To(gomega.Equal(http.StatusUnprocessableEntity))
				gomega.Expect(fieldsOf(err)).To(gomega.ConsistOf("email", "password"))
			})
		})

		ginkgo.Context("when repository returns error", func() {
			ginkgo.It("should return an internal error", func() {
				// Given
				mockRepo.setError(errors.New("database error"))

				// When
				_, err := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "correct_password"})

				// Then
				gomega.Expect(internal.StatusOf(err)).To(gomega.Equal(http.StatusInternalServerError))
			})
		})
	})

	ginkgo.Describe("SignUp", func() {
		ginkgo.It("should create the user with the default role", func() {
			// Given
			dto := SignUpDTO{
				Name:                 "New User",
				Email:                "New@Example.com",
				Password:             "password123",
				PasswordConfirmation: "password123",
			}

			// When
			u, tokens, err := service.SignUp(ctx, dto)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(u.ID).To(gomega.Equal(uint(3)))
			gomega.Expect(u.Email).To(gomega.Equal("new@example.com"))
			gomega.Expect(u.RoleNames()).To(gomega.ConsistOf(DefaultRole))
			gomega.Expect(VerifyPassword(u.PasswordHash, "password123")).To(gomega.Succeed())
			gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
		})

		ginkgo.It("should report all failing fields at once", func() {
			// Given
			dto := SignUpDTO{
				Email:                "user@example.com",
				Password:             "short",
				PasswordConfirmation: "different",
			}

			// When
			u, _, err := service.SignUp(ctx, dto)

			// Then
			gomega.Expect(u).To(gomega.BeNil())
			gomega.Expect(internal.StatusOf(err)).To(gomega.Equal(http.StatusUnprocessableEntity))
			gomega.Expect(fieldsOf(err)).To(gomega.ConsistOf("name", "password", "password_confirmation", "email"))
		})

		ginkgo.It("should point at the attribute of the taken email", func() {
			// When
			_, _, err := service.SignUp(ctx, SignUpDTO{
				Name:                 "Dup",
				Email:                "user@example.com",
				Password:             "password123",
				PasswordConfirmation: "password123",
			})

			// Then
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.FieldErrors()).To(gomega.HaveLen(1))
			gomega.Expect(appErr.FieldErrors()[0].Pointer).To(gomega.Equal("/data/attributes/email"))
			gomega.Expect(appErr.FieldErrors()[0].Text()).To(gomega.Equal("The email has already been taken."))
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		var validRefreshToken string

		ginkgo.BeforeEach(func() {
			tokens, err := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			validRefreshToken = tokens.RefreshToken
		})

		ginkgo.It("should issue a new pair for the same user", func() {
			// When
			newTokens, err := service.RefreshTokens(ctx, validRefreshToken)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			claims, err := service.ValidateAccessToken(ctx, newTokens.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(uint(1)))
		})

		ginkgo.It("should reject an access token used as refresh token", func() {
			// Given
			tokens, err := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			_, err = service.RefreshTokens(ctx, tokens.AccessToken)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
		})

		ginkgo.It("should return error for expired token", func() {
			// Given
			expiredGen := NewJWTTokenGenerator(accessSecret, refreshSecret, -1*time.Hour, -1*time.Hour)
			expiredToken, err := expiredGen.GenerateRefreshToken(1, "user@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			_, err = service.RefreshTokens(ctx, expiredToken)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrTokenExpired))
		})

		ginkgo.It("should reject tokens of deleted users", func() {
			// Given
			delete(mockRepo.users, 1)

			// When
			_, err := service.RefreshTokens(ctx, validRefreshToken)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrUserInactive))
		})
	})

	ginkgo.Describe("SignOut", func() {
		ginkgo.It("should revoke the access token", func() {
			// Given
			tokens, err := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			err = service.SignOut(ctx, tokens.AccessToken)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = service.ValidateAccessToken(ctx, tokens.AccessToken)
			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
		})

		ginkgo.It("should leave other sessions valid", func() {
			// Given
			first, _ := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "correct_password"})
			second, _ := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "correct_password"})

			// When
			gomega.Expect(service.SignOut(ctx, first.AccessToken)).To(gomega.Succeed())

			// Then
			_, err := service.ValidateAccessToken(ctx, second.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = service.RefreshTokens(ctx, second.RefreshToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should stop the refresh token of the session, also after a rotation", func() {
			// Given
			tokens, err := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			rotated, err := service.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			gomega.Expect(service.SignOut(ctx, rotated.AccessToken)).To(gomega.Succeed())

			// Then
			_, err = service.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
			_, err = service.RefreshTokens(ctx, rotated.RefreshToken)
			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
			_, err = service.ValidateAccessToken(ctx, tokens.AccessToken)
			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
		})

		ginkgo.It("should share the sign out between instances through redis", func() {
			// Given
			mr, err := miniredis.Run()
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			ginkgo.DeferCleanup(mr.Close)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			ginkgo.DeferCleanup(rdb.Close)

			service.WithRevocations(NewRedisRevocations(rdb))
			other := NewService(mockRepo, tokenGen, bcrypt.MinCost, logger.Discard()).WithRevocations(NewRedisRevocations(rdb))
			tokens, err := service.SignIn(ctx, SignInDTO{Email: "user@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			gomega.Expect(service.SignOut(ctx, tokens.AccessToken)).To(gomega.Succeed())

			// Then
			_, err = other.ValidateAccessToken(ctx, tokens.AccessToken)
			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
			_, err = other.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
			gomega.Expect(mr.TTL(revokedKeyPrefix + sessionOf(tokenGen, tokens.AccessToken))).To(gomega.Equal(refreshTTL))
		})
	})

	ginkgo.Describe("Principal", func() {
		ginkgo.It("should carry the role names", func() {
			// When
			p, err := service.Principal(ctx, 2)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(p.ID).To(gomega.Equal(uint(2)))
			gomega.Expect(p.Roles).To(gomega.ConsistOf("admin"))
		})

		ginkgo.It("should return 401 for a missing user", func() {
			// When
			p, err := service.Principal(ctx, 999)

			// Then
			gomega.Expect(p).To(gomega.BeNil())
			gomega.Expect(internal.StatusOf(err)).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})

var _ = ginkgo.Describe("JWTTokenGenerator", func() {
	var (
		tokenGen   *JWTTokenGenerator
		accessTTL  time.Duration = 15 * time.Minute
		refreshTTL time.Duration = 24 * time.Hour
	)

	ginkgo.BeforeEach(func() {
		tokenGen = NewJWTTokenGenerator("test-access-secret-key", "test-refresh-secret-key", accessTTL, refreshTTL)
	})

	ginkgo.It("should round trip an access token", func() {
		// When
		token, err := tokenGen.GenerateAccessToken(123, "test@example.com")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		claims, err := tokenGen.ValidateToken(token, AccessToken)

		// Then
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(claims.UserID).To(gomega.Equal(uint(123)))
		gomega.Expect(claims.Type).To(gomega.Equal(AccessToken))
		gomega.Expect(claims.ID).ToNot(gomega.BeEmpty())
		gomega.Expect(claims.ExpiresAt.Time).To(gomega.BeTemporally("~", time.Now().Add(accessTTL), time.Minute))
	})

	ginkgo.It("should round trip a refresh token", func() {
		// When
		token, err := tokenGen.GenerateRefreshToken(456, "refresh@example.com")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		claims, err := tokenGen.ValidateToken(token, RefreshToken)

		// Then
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(claims.Email).To(gomega.Equal("refresh@example.com"))
		gomega.Expect(claims.ExpiresAt.Time).To(gomega.BeTemporally("~", time.Now().Add(refreshTTL), time.Minute))
	})

	ginkgo.It("should reject a token of the other type even with a shared secret", func() {
		// Given
		shared := NewJWTTokenGenerator("same", "same", accessTTL, refreshTTL)
		token, err := shared.GenerateAccessToken(1, "a@example.com")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		// When
		claims, err := shared.ValidateToken(token, RefreshToken)

		// Then
		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
		gomega.Expect(claims).To(gomega.BeNil())
	})

	ginkgo.It("should reject malformed and empty tokens", func() {
		_, err := tokenGen.ValidateToken("invalid.token.here", AccessToken)
		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))

		_, err = tokenGen.ValidateToken("", AccessToken)
		gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
	})
})
