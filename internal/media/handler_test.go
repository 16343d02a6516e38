package media_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/media"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type allowAll struct{}

func (allowAll) Authorize(context.Context, *internal.Principal, string, string, uint) error {
	return nil
}

type denyAll struct{}

func (denyAll) Authorize(_ context.Context, actor *internal.Principal, _, _ string, _ uint) error {
	if actor == nil {
		return internal.ErrUnauthenticated
	}
	return internal.ErrForbidden
}

var _ = Describe("Handler", func() {
	var (
		f      *fixture
		router chi.Router
	)

	mount := func(gate transport.Authorizer) {
		h := media.NewHandler(f.svc, gate, nil)
		files := h.ForOwner(owner.Plans, planFiles, func(_ context.Context, id uint) (bool, error) {
			return id == plan.ID, nil
		}).WithProperties(func(context.Context, uint) (map[string]any, error) {
			return map[string]any{"zip_filename_prefix": "plans"}, nil
		})

		router = chi.NewRouter()
		router.Get("/media/{id}/download", h.Download)
		router.Get("/media/bundle", h.Bundle)
		router.Post("/media/bundle", h.Bundle)
		router.Get("/plans/{id}/files", files.Index)
		router.Post("/plans/{id}/files", files.Store)
		router.Get("/plans/{id}/files/{mediaId}", files.Show)
	}

	BeforeEach(func() {
		f = newFixture()
		mount(allowAll{})
	})

	postJSON := func(url string, body any) *httptest.ResponseRecorder {
		b, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(b))
		req.Header.Set("Content-Type", transport.MediaType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("stores base64 files from meta.files", func() {
		rec := postJSON("/plans/7/files", map[string]any{
			"data": map[string]any{"type": "plans", "id": "7"},
			"meta": map[string]any{"files": []map[string]any{
				{"action": "store", "filename": "week.txt", "content": b64([]byte("legs"))},
			}},
		})

		Expect(rec.Code).To(Equal(http.StatusOK))
		var doc struct {
			Data []struct {
				ID         string         `json:"id"`
				Attributes map[string]any `json:"attributes"`
			} `json:"data"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &doc)).To(Succeed())
		Expect(doc.Data).To(HaveLen(1))
		Expect(doc.Data[0].Attributes["file_name"]).To(Equal("week.txt"))
		Expect(doc.Data[0].Attributes["custom_properties"]).To(HaveKeyWithValue("zip_filename_prefix", "plans"))
	})

	It("stores multipart uploads", func() {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "notes.txt")
		Expect(err).NotTo(HaveOccurred())
		_, _ = fw.Write([]byte("push day"))
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/plans/7/files", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(f.rows()).To(HaveLen(1))
	})

	It("answers 400 to an unknown action and changes nothing", func() {
		rec := postJSON("/plans/7/files", map[string]any{
			"data": map[string]any{"type": "plans", "id": "7"},
			"meta": map[string]any{"files": []map[string]any{{"action": "unknown"}}},
		})

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring("The selected action is invalid."))
		Expect(rec.Body.String()).To(ContainSubstring(`"pointer":"/meta/files/0/action"`))
		Expect(f.rows()).To(BeEmpty())
	})

	It("answers 404 for an unknown owner", func() {
		rec := postJSON("/plans/8/files", map[string]any{"data": map[string]any{"type": "plans"}})

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("downloads and shows files with the right disposition", func() {
		m, err := f.svc.Attach(context.Background(), plan, planFiles, media.Source{FileName: "week.txt", Base64: b64([]byte("legs"))}, media.Options{})
		Expect(err).NotTo(HaveOccurred())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/"+transport.FormatID(m.ID)+"/download", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Disposition")).To(Equal(`attachment; filename=week.txt`))
		Expect(rec.Body.String()).To(Equal("legs"))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans/7/files/"+transport.FormatID(m.ID), nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Disposition")).To(HavePrefix("inline"))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans/8/files/"+transport.FormatID(m.ID), nil))
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("streams bundles as zip", func() {
		m, err := f.svc.Attach(context.Background(), plan, planFiles, media.Source{FileName: "week.txt", Base64: b64([]byte("legs"))}, media.Options{})
		Expect(err).NotTo(HaveOccurred())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/bundle?ids="+transport.FormatID(m.ID), nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/zip"))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))

		post := postJSON("/media/bundle", map[string]any{"data": []map[string]any{{"type": "media", "id": "999"}}})
		Expect(post.Code).To(Equal(http.StatusNotFound))
	})

	It("follows the owner policy", func() {
		mount(denyAll{})

		rec := postJSON("/plans/7/files", map[string]any{"data": map[string]any{"type": "plans"}})

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})
