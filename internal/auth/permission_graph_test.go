package auth

import (
	"context"
	"errors"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/rbac"
	"github.com/frahmantamala/fitness-content/internal/core/dbtest"
	"github.com/frahmantamala/fitness-content/internal/core/events"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func seedRole(db *gorm.DB, name string, perms ...string) {
	role := rbac.Role{Name: name}
	for _, p := range perms {
		perm := rbac.Permission{Name: p, Action: p, Subject: p}
		gomega.Expect(db.Where(rbac.Permission{Name: p}).FirstOrCreate(&perm).Error).To(gomega.Succeed())
		role.Permissions = append(role.Permissions, perm)
	}
	gomega.Expect(db.Create(&role).Error).To(gomega.Succeed())
}

var _ = ginkgo.Describe("PermissionGraph", func() {
	var (
		db    *gorm.DB
		graph *PermissionGraph
		cache *TieredCache
		ctx   context.Context
	)

	ginkgo.BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		seedRole(db, "admin", "create categories", "update categories")
		seedRole(db, "user", "read users")

		sx, err := dbtest.SQLX(db)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		cache = NewTieredCache(16, time.Minute, nil, logger.Discard())
		graph = NewPermissionGraph(sx, cache, logger.Discard())
	})

	ginkgo.It("should resolve permissions through roles", func() {
		// Given
		actor := &internal.Principal{ID: 1, Roles: []string{"user", "admin"}}

		// When
		ok, err := graph.HasPermission(ctx, actor, "update categories")

		// Then
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())
	})

	ginkgo.It("should match names exactly", func() {
		actor := &internal.Principal{ID: 1, Roles: []string{"admin"}}

		ok, err := graph.HasPermission(ctx, actor, "update")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeFalse())

		ok, _ = graph.HasPermission(ctx, nil, "update categories")
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("should return sorted role permissions and an empty list for unknown roles", func() {
		perms, err := graph.RolePermissions(ctx, "admin")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(perms).To(gomega.Equal([]string{"create categories", "update categories"}))

		perms, err = graph.RolePermissions(ctx, "ghost")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(perms).To(gomega.BeEmpty())
	})

	ginkgo.It("should serve from cache until an rbac change is published", func() {
		// Given
		bus := events.NewEventBus(logger.Discard())
		cache.InvalidateOn(bus)
		actor := &internal.Principal{ID: 1, Roles: []string{"user"}}
		ok, _ := graph.HasPermission(ctx, actor, "create categories")
		gomega.Expect(ok).To(gomega.BeFalse())

		var role rbac.Role
		gomega.Expect(db.Where("name = ?", "user").First(&role).Error).To(gomega.Succeed())
		var perm rbac.Permission
		gomega.Expect(db.Where("name = ?", "create categories").First(&perm).Error).To(gomega.Succeed())
		gomega.Expect(db.Model(&role).Association("Permissions").Append(&perm)).To(gomega.Succeed())

		// When
		ok, _ = graph.HasPermission(ctx, actor, "create categories")
		gomega.Expect(ok).To(gomega.BeFalse())
		gomega.Expect(bus.PublishSync(ctx, events.NewRBACChangedEvent("roles", role.ID))).To(gomega.Succeed())

		// Then
		ok, _ = graph.HasPermission(ctx, actor, "create categories")
		gomega.Expect(ok).To(gomega.BeTrue())
	})

	ginkgo.Context("when the query fails", func() {
		ginkgo.It("should return the error and cache nothing", func() {
			// Given
			raw, mock, err := sqlmock.New()
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			defer raw.Close()
			mock.ExpectQuery("SELECT p.name").WithArgs("admin").WillReturnError(errors.New("connection reset"))
			mock.ExpectQuery("SELECT p.name").WithArgs("admin").
				WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("read users"))
			failing := NewPermissionGraph(sqlx.NewDb(raw, "sqlmock"), nil, logger.Discard())

			// When
			_, err = failing.RolePermissions(ctx, "admin")

			// Then
			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("connection reset")))
			perms, err := failing.RolePermissions(ctx, "admin")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(perms).To(gomega.Equal([]string{"read users"}))
			gomega.Expect(mock.ExpectationsWereMet()).To(gomega.Succeed())
		})
	})
})

var _ = ginkgo.Describe("TieredCache", func() {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
		ctx    context.Context
	)

	ginkgo.BeforeEach(func() {
		var err error
		ctx = context.Background()
		mr, err = miniredis.Run()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	})

	ginkgo.AfterEach(func() {
		_ = client.Close()
		mr.Close()
	})

	ginkgo.It("should share entries between instances through redis", func() {
		// Given
		first := NewTieredCache(8, time.Minute, client, logger.Discard())
		second := NewTieredCache(8, time.Minute, client, logger.Discard())

		// When
		first.Set(ctx, "admin", []string{"read users"})

		// Then
		gomega.Expect(mr.Exists("perm:role:admin")).To(gomega.BeTrue())
		perms, ok := second.Get(ctx, "admin")
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(perms).To(gomega.Equal([]string{"read users"}))
	})

	ginkgo.It("should purge both tiers", func() {
		// Given
		c := NewTieredCache(8, time.Minute, client, logger.Discard())
		c.Set(ctx, "admin", []string{"read users"})
		c.Set(ctx, "user", []string{"read users"})
		gomega.Expect(mr.Set("unrelated", "x")).To(gomega.Succeed())

		// When
		c.Purge(ctx)

		// Then
		_, ok := c.Get(ctx, "admin")
		gomega.Expect(ok).To(gomega.BeFalse())
		gomega.Expect(mr.Keys()).To(gomega.Equal([]string{"unrelated"}))
	})

	ginkgo.It("should treat a redis outage as a miss", func() {
		// Given
		c := NewTieredCache(8, time.Minute, client, logger.Discard())
		mr.Close()

		// When
		_, ok := c.Get(ctx, "admin")

		// Then
		gomega.Expect(ok).To(gomega.BeFalse())
	})
})
