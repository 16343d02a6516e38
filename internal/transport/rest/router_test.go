package rest_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/frahmantamala/fitness-content/internal/locale"
	"github.com/frahmantamala/fitness-content/internal/transport/rest"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rest Suite")
}

var _ = Describe("Router", func() {
	var (
		router *chi.Mux
		mock   sqlmock.Sqlmock
		mr     *miniredis.Miniredis
	)

	BeforeEach(func() {
		raw, m, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		Expect(err).NotTo(HaveOccurred())
		mock = m
		DeferCleanup(raw.Close)

		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(rdb.Close)

		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Handlers{
			Health: rest.NewHealthHandler(sqlx.NewDb(raw, "sqlmock"), rdb),
		}, rest.RouterOptions{
			AllowedOrigins: "https://app.example.com",
			Locales:        locale.MustResolver("en", "en", "es"),
			OpenAPIPath:    "../../../api/openapi.yml",
			MetricsPath:    "/metrics",
		}, logger.Discard())
	})

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	Describe("health", func() {
		It("reports every dependency healthy", func() {
			mock.ExpectPing()

			rec := serve(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"status":"healthy"`))
			Expect(rec.Body.String()).To(ContainSubstring(`"redis"`))
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("answers 503 when the database is down", func() {
			mock.ExpectPing().WillReturnError(errors.New("connection refused"))

			rec := serve(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(rec.Body.String()).To(ContainSubstring("connection refused"))
		})

		It("answers 503 when redis is down", func() {
			mock.ExpectPing()
			mr.Close()

			rec := serve(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("pings without touching dependencies", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("OK"))
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})

	Describe("middleware", func() {
		It("echoes the incoming request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
			req.Header.Set("X-Request-ID", "req-123")

			rec := serve(req)

			Expect(rec.Header().Get("X-Request-ID")).To(Equal("req-123"))
		})

		It("resolves the locale header", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
			req.Header.Set(locale.Header, "es")
			Expect(serve(req).Header().Get("Content-Language")).To(Equal("es"))

			req = httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
			Expect(serve(req).Header().Get("Content-Language")).To(Equal("en"))
		})

		It("answers preflight requests of allowed origins", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/ping", nil)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.example.com"))
		})

		It("leaves other origins without cors headers", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
			req.Header.Set("Origin", "https://evil.example.com")

			Expect(serve(req).Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})

	It("serves the openapi document and the metrics", func() {
		rec := serve(httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("openapi: 3.0.3"))

		serve(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		rec = serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("http_requests_total"))
	})
})
