package transport_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/locale"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/text/language"
)

func TestTransport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Transport Suite")
}

var _ = Describe("ParseQuery", func() {
	parse := func(raw string) (transport.Query, error) {
		values, err := url.ParseQuery(raw)
		Expect(err).NotTo(HaveOccurred())
		return transport.ParseQuery(values, []string{"name"}, []string{"name", "created_at"})
	}

	It("defaults to the first page", func() {
		q, err := parse("")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Page).To(Equal(transport.Page{Number: 1, Size: transport.DefaultPageSize}))
		Expect(q.Filters).To(BeEmpty())
	})

	It("reads filters, sort fields and the page", func() {
		q, err := parse("filter[name]=bench&sort=-created_at,name&page[number]=3&page[size]=10")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Filters).To(HaveKeyWithValue("name", "bench"))
		Expect(q.Sort).To(Equal([]transport.SortField{{Field: "created_at", Desc: true}, {Field: "name"}}))
		Expect(q.Page.Offset()).To(Equal(20))
	})

	It("caps the page size", func() {
		q, err := parse("page[size]=1000")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Page.Size).To(Equal(transport.MaxPageSize))
	})

	DescribeTable("rejects unusable parameters",
		func(raw, parameter string) {
			_, err := parse(raw)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(appErr.FieldErrors()[0].Parameter).To(Equal(parameter))
		},
		Entry("unknown filter", "filter[secret]=x", "filter[secret]"),
		Entry("unknown sort", "sort=password", "sort"),
		Entry("page number zero", "page[number]=0", "page[number]"),
		Entry("page size text", "page[size]=many", "page[size]"),
	)
})

var _ = Describe("Paginate", func() {
	It("links every page around the current one", func() {
		u, _ := url.Parse("/workouts?filter[name]=press")
		meta, links := transport.Paginate(u, transport.Page{Number: 2, Size: 10}, 25)

		Expect(meta["page"]).To(HaveKeyWithValue("lastPage", 3))
		Expect(meta["page"]).To(HaveKeyWithValue("from", 11))
		Expect(meta["page"]).To(HaveKeyWithValue("to", 20))
		Expect(links.Prev).To(ContainSubstring("page%5Bnumber%5D=1"))
		Expect(links.Next).To(ContainSubstring("page%5Bnumber%5D=3"))
		Expect(links.Self).To(ContainSubstring("filter%5Bname%5D=press"))
	})

	It("keeps one page for empty results", func() {
		u, _ := url.Parse("/goals")
		meta, links := transport.Paginate(u, transport.Page{Number: 1, Size: 15}, 0)

		Expect(meta["page"]).To(HaveKeyWithValue("lastPage", 1))
		Expect(meta["page"]).To(HaveKeyWithValue("from", 0))
		Expect(links.Prev).To(BeEmpty())
		Expect(links.Next).To(BeEmpty())
	})
})

var _ = Describe("BaseHandler", func() {
	var h *transport.BaseHandler

	BeforeEach(func() {
		h = transport.NewBaseHandler(logger.Discard())
	})

	render := func(err error, tag language.Tag) transport.ErrorDocument {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(locale.WithTag(r.Context(), tag))
		rec := httptest.NewRecorder()
		h.WriteError(rec, r, err)

		Expect(rec.Header().Get("Content-Type")).To(Equal(transport.MediaType))
		var doc transport.ErrorDocument
		Expect(json.Unmarshal(rec.Body.Bytes(), &doc)).To(Succeed())
		Expect(doc.Errors).NotTo(BeEmpty())
		Expect(doc.Errors[0].Status).To(Equal(strconv.Itoa(internal.StatusOf(err))))
		return doc
	}

	It("renders one error object per field with pointers", func() {
		doc := render(internal.NewUnprocessableError([]internal.ValidationError{
			{Field: "name", Message: "The %s field is required.", Args: []any{"name"}, Code: "REQUIRED", Pointer: internal.AttributePointer("name")},
			{Field: "slug", Message: "The %s is invalid.", Args: []any{"slug"}, Code: "INVALID", Pointer: internal.AttributePointer("slug")},
		}), language.English)

		Expect(doc.Errors).To(HaveLen(2))
		Expect(doc.Errors[0].Code).To(Equal("REQUIRED"))
		Expect(doc.Errors[0].Detail).To(Equal("The name field is required."))
		Expect(doc.Errors[1].Source.Pointer).To(Equal("/data/attributes/slug"))
	})

	It("localizes messages for the request locale", func() {
		doc := render(internal.ErrForbidden, language.Spanish)

		Expect(doc.Errors[0].Detail).To(Equal("Esta acción no está autorizada."))
		Expect(doc.Errors[0].Code).To(Equal(string(internal.ErrCodeForbidden)))
	})

	It("hides unknown errors behind a 500", func() {
		doc := render(errors.New("pq: connection reset"), language.English)

		Expect(doc.Errors[0].Detail).To(Equal("Internal server error"))
	})

	It("answers 404 for ids that are not positive integers", func() {
		r := httptest.NewRequest(http.MethodGet, "/workouts/abc", nil)
		_, err := h.URLID(r, "id")
		Expect(internal.StatusOf(err)).To(Equal(http.StatusNotFound))
	})

	It("reads bearer tokens case insensitively", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "bearer abc.def")
		Expect(transport.BearerToken(r)).To(Equal("abc.def"))

		r.Header.Set("Authorization", "Basic abc")
		Expect(transport.BearerToken(r)).To(BeEmpty())
	})
})

var _ = Describe("RequestRelationship", func() {
	It("treats null to-one linkage as empty", func() {
		id, err := transport.RequestRelationship{Data: json.RawMessage("null")}.ToOne()
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(BeNil())
	})

	It("decodes to-many linkage with meta", func() {
		ids, err := transport.RequestRelationship{
			Data: json.RawMessage(`[{"type":"muscles","id":"4","meta":{"priority":"SECONDARY"}}]`),
		}.ToMany()
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(HaveLen(1))
		Expect(transport.ParseID(ids[0].ID)).To(Equal(uint(4)))
		Expect(ids[0].Meta).To(HaveKeyWithValue("priority", "SECONDARY"))
	})
})
