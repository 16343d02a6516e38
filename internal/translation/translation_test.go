package translation_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/frahmantamala/fitness-content/internal"
	translationDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/translation"
	"github.com/frahmantamala/fitness-content/internal/core/dbtest"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/translation"
	translationPostgres "github.com/frahmantamala/fitness-content/internal/translation/postgres"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestTranslation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Translation Suite")
}

type stubOwners struct {
	existing map[owner.Ref]bool
}

func (s stubOwners) TranslatableColumns(kind owner.Kind) []string {
	if kind == owner.Directories || kind == owner.Users {
		return nil
	}
	return []string{"name", "description"}
}

func (s stubOwners) OwnerExists(_ context.Context, ref owner.Ref) (bool, error) {
	return s.existing[ref], nil
}

var _ = Describe("Merge", func() {
	base := map[string]any{"name": "Chest", "description": "Upper body", "slug": "chest"}

	It("replaces translated columns and leaves the rest alone", func() {
		rows := []translationDatamodel.Translation{{Column: "name", Translation: "Pecho"}}

		out := translation.Merge(base, rows, []string{"name", "description"})

		Expect(out).To(Equal(map[string]any{"name": "Pecho", "description": "Upper body", "slug": "chest"}))
	})

	It("never mutates its input and is idempotent", func() {
		rows := []translationDatamodel.Translation{{Column: "name", Translation: "Pecho"}}

		first := translation.Merge(base, rows, []string{"name"})
		second := translation.Merge(first, rows, []string{"name"})

		Expect(base["name"]).To(Equal("Chest"))
		Expect(second).To(Equal(first))
	})

	It("lets the first row of a column win", func() {
		rows := []translationDatamodel.Translation{
			{ID: 9, Column: "name", Translation: "Pecho nuevo"},
			{ID: 3, Column: "name", Translation: "Pecho viejo"},
		}

		out := translation.Merge(base, rows, []string{"name"})

		Expect(out["name"]).To(Equal("Pecho nuevo"))
	})

	It("ignores rows for columns that are not translatable", func() {
		rows := []translationDatamodel.Translation{{Column: "slug", Translation: "pecho"}}

		out := translation.Merge(base, rows, []string{"name", "description"})

		Expect(out["slug"]).To(Equal("chest"))
	})
})

var _ = Describe("Translation Service", func() {
	var (
		db      *gorm.DB
		repo    *translationPostgres.TranslationRepository
		service *translation.Service
		overlay *translation.Overlay
		ctx     context.Context
		muscle  owner.Ref
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())

		muscle = owner.NewRef(owner.Muscles, 1)
		repo = translationPostgres.NewTranslationRepository(db)
		owners := stubOwners{existing: map[owner.Ref]bool{muscle: true, owner.NewRef(owner.Muscles, 2): true}}
		service = translation.NewService(repo, owners, []string{"en", "es"}, logger.Discard())
		overlay = translation.NewOverlay(repo)
	})

	Describe("Upsert", func() {
		valid := func() translation.CreateTranslationDTO {
			return translation.CreateTranslationDTO{
				Locale:           "es",
				Column:           "name",
				Translation:      "Pecho",
				TranslatableType: "muscles",
				TranslatableID:   1,
			}
		}

		It("creates a row and then overwrites it", func() {
			first, created, err := service.Upsert(ctx, valid())
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			dto := valid()
			dto.Translation = "Pectoral"
			second, created, err := service.Upsert(ctx, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(second.ID).To(Equal(first.ID))

			var count int64
			Expect(db.Model(&translationDatamodel.Translation{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		It("keeps one row when first writes race", func() {
			words := []string{"Pecho", "Pectoral", "Torso", "Busto", "Tórax", "Seno"}
			errs := make([]error, len(words))

			var wg sync.WaitGroup
			for i, word := range words {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = repo.Upsert(ctx, &translationDatamodel.Translation{
						Locale: "es", Column: "name", Translation: word,
						TranslatableType: owner.Muscles, TranslatableID: 1,
					})
				}()
			}
			wg.Wait()

			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			var rows []translationDatamodel.Translation
			Expect(db.Find(&rows).Error).To(Succeed())
			Expect(rows).To(HaveLen(1))
			Expect(words).To(ContainElement(rows[0].Translation))
		})

		It("rejects columns that are not translatable, unknown owners and unsupported locales", func() {
			dto := valid()
			dto.Column = "slug"
			dto.Locale = "fr"
			dto.TranslatableID = 99

			_, _, err := service.Upsert(ctx, dto)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			var pointers []string
			for _, fe := range appErr.FieldErrors() {
				pointers = append(pointers, fe.Pointer)
			}
			Expect(pointers).To(ConsistOf(
				"/data/attributes/column",
				"/data/attributes/locale",
				"/data/attributes/translatable_id",
			))
		})

		It("rejects unknown owner kinds", func() {
			dto := valid()
			dto.TranslatableType = "invoices"

			_, _, err := service.Upsert(ctx, dto)

			appErr, _ := internal.IsAppError(err)
			Expect(appErr.FieldErrors()).To(HaveLen(1))
			Expect(appErr.FieldErrors()[0].Field).To(Equal("translatable_type"))
		})
	})

	Describe("Overlay", func() {
		BeforeEach(func() {
			_, _, err := service.Upsert(ctx, translation.CreateTranslationDTO{
				Locale: "es", Column: "name", Translation: "Pecho", TranslatableType: "muscles", TranslatableID: 1,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("overlays only the requested locale", func() {
			attrs := map[string]any{"name": "Chest", "description": "Upper body"}

			es, err := overlay.Apply(ctx, muscle, "es", attrs, []string{"name", "description"})
			Expect(err).NotTo(HaveOccurred())
			en, err := overlay.Apply(ctx, muscle, "en", attrs, []string{"name", "description"})
			Expect(err).NotTo(HaveOccurred())

			Expect(es).To(Equal(map[string]any{"name": "Pecho", "description": "Upper body"}))
			Expect(en).To(Equal(attrs))
		})

		It("overlays a page with one lookup and keeps the order", func() {
			targets := []translation.Target{
				{ID: 2, Attributes: map[string]any{"name": "Back"}},
				{ID: 1, Attributes: map[string]any{"name": "Chest"}},
			}

			out, err := overlay.ApplyMany(ctx, owner.Muscles, "es", targets, []string{"name"})

			Expect(err).NotTo(HaveOccurred())
			Expect(out[0]["name"]).To(Equal("Back"))
			Expect(out[1]["name"]).To(Equal("Pecho"))
		})

		It("is idempotent", func() {
			attrs := map[string]any{"name": "Chest"}

			once, err := overlay.Apply(ctx, muscle, "es", attrs, []string{"name"})
			Expect(err).NotTo(HaveOccurred())
			twice, err := overlay.Apply(ctx, muscle, "es", once, []string{"name"})
			Expect(err).NotTo(HaveOccurred())

			Expect(twice).To(Equal(once))
		})
	})

	Describe("List", func() {
		It("filters by owner", func() {
			for _, id := range []uint{1, 2} {
				_, _, err := service.Upsert(ctx, translation.CreateTranslationDTO{
					Locale: "es", Column: "name", Translation: "x", TranslatableType: "muscles", TranslatableID: id,
				})
				Expect(err).NotTo(HaveOccurred())
			}

			q, err := transport.ParseQuery(map[string][]string{"filter[translatable_id]": {"2"}}, translation.Filters, translation.Sorts)
			Expect(err).NotTo(HaveOccurred())
			rows, total, err := service.List(ctx, q)

			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(rows[0].TranslatableID).To(Equal(uint(2)))
		})

		It("removes every row of a deleted owner", func() {
			_, _, err := service.Upsert(ctx, translation.CreateTranslationDTO{
				Locale: "es", Column: "description", Translation: "x", TranslatableType: "muscles", TranslatableID: 1,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(service.ForgetOwner(ctx, muscle)).To(Succeed())

			rows, err := repo.ForOwners(ctx, owner.Muscles, []uint{1}, "es")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})
})
