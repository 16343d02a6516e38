package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type stubChecker struct {
	granted map[string]bool
	err     error
	calls   int
}

func (s *stubChecker) HasPermission(_ context.Context, _ *internal.Principal, name string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.granted[name], nil
}

var _ = ginkgo.Describe("Gate", func() {
	var (
		gate    *Gate
		checker *stubChecker
		ctx     context.Context
		member  *internal.Principal
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		checker = &stubChecker{granted: map[string]bool{"read users": true, "update users": true, "read muscles": true}}
		gate = NewGate(checker, logger.Discard())
		gate.Register("categories", ResourcePolicy("categories"))
		gate.Register("users", SelfPolicy("users"))
		gate.Register("variations", ResourcePolicy("variations").WithRelation("variations", "muscles", "muscles"))
		member = &internal.Principal{ID: 7, Roles: []string{"user"}}
	})

	ginkgo.It("should let guests through public rules", func() {
		gomega.Expect(gate.Authorize(ctx, nil, "categories", "viewAny", 0)).To(gomega.Succeed())
		gomega.Expect(checker.calls).To(gomega.BeZero())
	})

	ginkgo.It("should return 401 to guests on protected rules", func() {
		// When
		err := gate.Authorize(ctx, nil, "categories", "create", 0)

		// Then
		gomega.Expect(err).To(gomega.Equal(internal.ErrUnauthenticated))
		gomega.Expect(internal.StatusOf(err)).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("should return 403 when the permission is missing", func() {
		// When
		err := gate.Authorize(ctx, member, "categories", "create", 0)

		// Then
		gomega.Expect(err).To(gomega.Equal(internal.ErrForbidden))
	})

	ginkgo.It("should let superAdmin through without consulting permissions", func() {
		// Given
		admin := &internal.Principal{ID: 1, Roles: []string{rbac.SuperAdmin}}

		// Then
		gomega.Expect(gate.Authorize(ctx, admin, "categories", "forceDelete", 0)).To(gomega.Succeed())
		gomega.Expect(gate.Authorize(ctx, admin, "unknown", "anything", 0)).To(gomega.Succeed())
		gomega.Expect(checker.calls).To(gomega.BeZero())
	})

	ginkgo.It("should scope self rules to the actor's own row", func() {
		gomega.Expect(gate.Authorize(ctx, member, "users", "update", 7)).To(gomega.Succeed())
		gomega.Expect(gate.Authorize(ctx, member, "users", "update", 8)).To(gomega.Equal(internal.ErrForbidden))
		gomega.Expect(gate.Authorize(ctx, member, "users", "delete", 7)).To(gomega.Equal(internal.ErrForbidden))
	})

	ginkgo.It("should check the related resource for relationship reads", func() {
		// Given
		gomega.Expect(gate.Rule("variations", "viewMuscles").PermissionName()).To(gomega.Equal("read muscles"))

		// Then
		gomega.Expect(gate.Authorize(ctx, member, "variations", "viewMuscles", 0)).To(gomega.Succeed())
		gomega.Expect(gate.Authorize(ctx, member, "variations", "attachMuscles", 0)).To(gomega.Equal(internal.ErrForbidden))
	})

	ginkgo.It("should deny unknown actions", func() {
		gomega.Expect(gate.Allows(ctx, member, "categories", "publish", 0)).To(gomega.BeFalse())
		gomega.Expect(gate.Rule("nothing", "view").IsPublic()).To(gomega.BeFalse())
	})

	ginkgo.It("should surface checker failures as internal errors", func() {
		// Given
		checker.err = errors.New("db down")

		// When
		err := gate.Authorize(ctx, member, "categories", "create", 0)

		// Then
		gomega.Expect(internal.StatusOf(err)).To(gomega.Equal(http.StatusInternalServerError))
	})

	ginkgo.It("should merge policies registered for the same resource", func() {
		// Given
		gate.Register("users", Policy{"viewRoles": Permission("read roles")})

		// Then
		gomega.Expect(gate.Rule("users", "viewRoles").PermissionName()).To(gomega.Equal("read roles"))
		gomega.Expect(gate.Rule("users", "view").PermissionName()).To(gomega.Equal("read users"))
	})
})

var _ = ginkgo.DescribeTable("RelAction",
	func(verb, rel, expected string) {
		gomega.Expect(RelAction(verb, rel)).To(gomega.Equal(expected))
	},
	ginkgo.Entry("plain", "view", "muscles", "viewMuscles"),
	ginkgo.Entry("kebab case", "attach", "physical-conditions", "attachPhysicalConditions"),
	ginkgo.Entry("snake case", "detach", "muscle_workout", "detachMuscleWorkout"),
)

var _ = ginkgo.Describe("RBACAuthorization", func() {
	var (
		ra   *RBACAuthorization
		next http.HandlerFunc
	)

	ginkgo.BeforeEach(func() {
		gate := NewGate(&stubChecker{granted: map[string]bool{"create categories": true}}, logger.Discard())
		gate.Register("categories", ResourcePolicy("categories"))
		ra = NewRBACAuthorization(gate, logger.Discard())
		next = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }
	})

	serve := func(h http.Handler, p *internal.Principal) int {
		r := httptest.NewRequest(http.MethodPost, "/categories", nil)
		if p != nil {
			r = r.WithContext(internal.ContextWithPrincipal(r.Context(), p))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	ginkgo.It("should pass through when the gate allows", func() {
		h := ra.Middleware("categories", "create")(next)
		gomega.Expect(serve(h, &internal.Principal{ID: 1})).To(gomega.Equal(http.StatusTeapot))
	})

	ginkgo.It("should stop guests before the handler", func() {
		gomega.Expect(serve(ra.Check(next, "categories", "create"), nil)).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(serve(ra.RequireAuth(next), nil)).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("should answer 403 when the permission is missing", func() {
		h := ra.Middleware("categories", "delete")(next)
		gomega.Expect(serve(h, &internal.Principal{ID: 1})).To(gomega.Equal(http.StatusForbidden))
	})
})
