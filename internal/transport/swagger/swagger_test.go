package swagger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/frahmantamala/fitness-content/internal/transport/swagger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSwagger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Swagger Suite")
}

const documentPath = "../../../api/openapi.yml"

var _ = Describe("OpenAPI document", func() {
	It("loads and validates the shipped document", func() {
		doc, err := swagger.Load(context.Background(), documentPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Paths.Find("/directories/{id}/relationships/parent")).NotTo(BeNil())
		Expect(doc.Components.Schemas).To(HaveKey("ErrorDocument"))
	})

	It("rejects documents that do not validate", func() {
		path := filepath.Join(GinkgoT().TempDir(), "broken.yml")
		Expect(os.WriteFile(path, []byte("openapi: 3.0.3\ninfo:\n  title: broken\npaths: {}\n"), 0o600)).To(Succeed())

		_, err := swagger.Load(context.Background(), path)
		Expect(err).To(MatchError(ContainSubstring("invalid openapi document")))
	})

	It("serves the document as yaml", func() {
		rec := httptest.NewRecorder()
		swagger.SpecHandler(documentPath)(rec, httptest.NewRequest(http.MethodGet, swagger.SpecURL, nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/yaml"))
	})
})
