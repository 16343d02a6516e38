package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/user"
	"github.com/frahmantamala/fitness-content/internal/core/dbtest"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"github.com/frahmantamala/fitness-content/internal/user"
	userPostgres "github.com/frahmantamala/fitness-content/internal/user/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

type grants map[string]bool

func (g grants) HasPermission(_ context.Context, _ *internal.Principal, name string) (bool, error) {
	return g[name], nil
}

func ptr[T any](v T) *T { return &v }

var _ = Describe("BMI", func() {
	It("uses kg and centimetres for the metric system", func() {
		Expect(*user.BMI(80, 180, userDatamodel.Metric)).To(Equal(24.69))
	})

	It("uses pounds and inches for the imperial system", func() {
		Expect(*user.BMI(150, 65, userDatamodel.Imperial)).To(Equal(24.96))
	})

	It("is absent without both measures", func() {
		u := &user.User{Weight: ptr(80.0)}
		Expect(u.BMI()).To(BeNil())
	})
})

var _ = Describe("User handlers", func() {
	var (
		db     *gorm.DB
		router chi.Router
		actor  *internal.Principal
		perms  grants
	)

	BeforeEach(func() {
		var err error
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())

		for _, u := range []userDatamodel.User{
			{Name: "Ana", Email: "ana@example.com", PasswordHash: "x", Weight: ptr(60.0), Height: ptr(165.0)},
			{Name: "Bruno", Email: "bruno@example.com", PasswordHash: "x"},
		} {
			Expect(db.Create(&u).Error).To(Succeed())
		}
		Expect(db.Create(&rbac.Role{Name: "coach"}).Error).To(Succeed())

		perms = grants{"read users": true, "update users": true, "delete users": true}
		actor = &internal.Principal{ID: 1, Email: "ana@example.com", Roles: []string{"user"}}

		gate := auth.NewGate(perms, nil)
		user.RegisterPolicies(gate)
		h := user.NewHandler(user.NewService(userPostgres.NewUserRepository(db), nil), gate, nil)

		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if actor != nil {
					req = req.WithContext(internal.ContextWithPrincipal(req.Context(), actor))
				}
				next.ServeHTTP(w, req)
			})
		})
		r.Get("/users", h.Index)
		r.Get("/users/{id}", h.Show)
		r.Patch("/users/{id}", h.Update)
		r.Delete("/users/{id}", h.Destroy)
		r.Get("/users/{id}/roles", h.ShowRoles)
		r.Patch("/users/{id}/relationships/roles", h.UpdateRoles)
		router = r
	})

	send := func(method, url string, body any) *httptest.ResponseRecorder {
		var b []byte
		if body != nil {
			b, _ = json.Marshal(body)
		}
		req := httptest.NewRequest(method, url, bytes.NewReader(b))
		req.Header.Set("Content-Type", transport.MediaType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("shows the bmi", func() {
		rec := send(http.MethodGet, "/users/1", nil)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"bmi":22.04`))
	})

	It("lets users delete only themselves", func() {
		Expect(send(http.MethodDelete, "/users/2", nil).Code).To(Equal(http.StatusForbidden))

		Expect(send(http.MethodDelete, "/users/1", nil).Code).To(Equal(http.StatusNoContent))
		Expect(send(http.MethodGet, "/users/1", nil).Code).To(Equal(http.StatusNotFound))

		var count int64
		db.Unscoped().Model(&userDatamodel.User{}).Count(&count)
		Expect(count).To(Equal(int64(2)))
	})

	It("soft deletes through a patch with deleted_at", func() {
		rec := send(http.MethodPatch, "/users/1", map[string]any{
			"data": map[string]any{"type": "users", "id": "1", "attributes": map[string]any{"deleted_at": "2026-01-01T00:00:00Z"}},
		})
		Expect(rec.Code).To(Equal(http.StatusNoContent))

		rec = send(http.MethodGet, "/users", nil)
		Expect(rec.Body.String()).NotTo(ContainSubstring("ana@example.com"))
	})

	It("updates the own profile and rejects a taken email", func() {
		rec := send(http.MethodPatch, "/users/1", map[string]any{
			"data": map[string]any{"type": "users", "id": "1", "attributes": map[string]any{"name": "Ana Maria", "gender": "female"}},
		})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"name":"Ana Maria"`))

		rec = send(http.MethodPatch, "/users/1", map[string]any{
			"data": map[string]any{"type": "users", "id": "1", "attributes": map[string]any{"email": "bruno@example.com"}},
		})
		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(rec.Body.String()).To(ContainSubstring("/data/attributes/email"))
	})

	It("rejects unknown enum values", func() {
		rec := send(http.MethodPatch, "/users/1", map[string]any{
			"data": map[string]any{"type": "users", "id": "1", "attributes": map[string]any{"measurement_system": "cubits"}},
		})

		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
	})

	It("needs the roles permissions for roles", func() {
		Expect(send(http.MethodGet, "/users/2/roles", nil).Code).To(Equal(http.StatusForbidden))

		perms["read roles"] = true
		perms["update roles"] = true
		rec := send(http.MethodPatch, "/users/2/relationships/roles", map[string]any{
			"data": []map[string]any{{"type": "roles", "id": "1"}},
		})
		Expect(rec.Code).To(Equal(http.StatusNoContent))

		rec = send(http.MethodGet, "/users/2/roles", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"name":"coach"`))
	})

	It("asks guests to authenticate", func() {
		actor = nil

		Expect(send(http.MethodGet, "/users", nil).Code).To(Equal(http.StatusUnauthorized))
	})
})
