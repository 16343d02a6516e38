package media_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frahmantamala/fitness-content/internal"
	mediaDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/core/dbtest"
	"github.com/frahmantamala/fitness-content/internal/core/events"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/media"
	mediaPostgres "github.com/frahmantamala/fitness-content/internal/media/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestMedia(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Media Suite")
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// flakyStorage fails on demand in front of a local directory.
type flakyStorage struct {
	*media.LocalStorage
	failSave   bool
	failDelete bool
}

func (f *flakyStorage) Save(ctx context.Context, p string, r io.Reader) (int64, error) {
	if f.failSave {
		return 0, errors.New("disk full")
	}
	return f.LocalStorage.Save(ctx, p, r)
}

func (f *flakyStorage) Delete(ctx context.Context, p string) error {
	if f.failDelete {
		return errors.New("permission denied")
	}
	return f.LocalStorage.Delete(ctx, p)
}

type fixture struct {
	db      *gorm.DB
	root    string
	storage *flakyStorage
	repo    *mediaPostgres.MediaRepository
	svc     *media.Service
	bus     *events.EventBus
}

func newFixture() *fixture {
	db, err := dbtest.Open()
	Expect(err).NotTo(HaveOccurred())

	root, err := os.MkdirTemp("", "media-test-*")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(os.RemoveAll, root)

	local, err := media.NewLocalStorage(root)
	Expect(err).NotTo(HaveOccurred())

	f := &fixture{
		db:      db,
		root:    root,
		storage: &flakyStorage{LocalStorage: local},
		repo:    mediaPostgres.NewMediaRepository(db),
		bus:     events.NewEventBus(nil),
	}
	f.svc = media.NewService(f.repo, f.storage, f.bus, media.Config{MaxUploadSize: 1 << 20, BundleMaxItems: 10}, nil)
	return f
}

func (f *fixture) rows() []mediaDatamodel.Media {
	var rows []mediaDatamodel.Media
	Expect(f.db.Order("id").Find(&rows).Error).To(Succeed())
	return rows
}

func (f *fixture) stored(m *mediaDatamodel.Media) string {
	return filepath.Join(f.root, filepath.FromSlash(m.StoragePath))
}

var (
	muscle    = owner.NewRef(owner.Muscles, 1)
	plan      = owner.NewRef(owner.Plans, 7)
	images    = media.Collection{Name: "image", Single: true, MimeTypes: media.ImageTypes}
	planFiles = media.Collection{Name: "files"}
)

var _ = Describe("Service", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	Describe("Attach", func() {
		It("stores the file and commits the row", func() {
			m, err := f.svc.Attach(context.Background(), muscle, images, media.Source{FileName: "chest.png", Base64: b64(pngBytes)}, media.Options{})

			Expect(err).NotTo(HaveOccurred())
			Expect(m.State).To(Equal(mediaDatamodel.StateCommitted))
			Expect(m.MimeType).To(Equal("image/png"))
			Expect(m.Name).To(Equal("chest"))
			Expect(m.Disk).To(Equal("local"))

			content, err := os.ReadFile(f.stored(m))
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(pngBytes))

			rows := f.rows()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].State).To(Equal(mediaDatamodel.StateCommitted))
		})

		It("accepts data URIs", func() {
			m, err := f.svc.Attach(context.Background(), muscle, images,
				media.Source{FileName: "chest.png", Base64: "data:image/png;base64," + b64(pngBytes)}, media.Options{})

			Expect(err).NotTo(HaveOccurred())
			Expect(m.Size).To(Equal(int64(len(pngBytes))))
		})

		It("replaces the file of a single collection", func() {
			first, err := f.svc.Attach(context.Background(), muscle, images, media.Source{FileName: "a.png", Base64: b64(pngBytes)}, media.Options{})
			Expect(err).NotTo(HaveOccurred())

			second, err := f.svc.Attach(context.Background(), muscle, images, media.Source{FileName: "b.png", Base64: b64(pngBytes)}, media.Options{})
			Expect(err).NotTo(HaveOccurred())

			rows := f.rows()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].ID).To(Equal(second.ID))
			Expect(f.stored(first)).NotTo(BeAnExistingFile())
			Expect(f.stored(second)).To(BeAnExistingFile())
		})

		It("rejects types outside the collection", func() {
			_, err := f.svc.Attach(context.Background(), muscle, images, media.Source{FileName: "notes.txt", Base64: b64([]byte("hello"))}, media.Options{})

			Expect(internal.StatusOf(err)).To(Equal(422))
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.FieldErrors()[0].Code).To(Equal("MIME_TYPE"))
			Expect(f.rows()).To(BeEmpty())
		})

		It("rejects files over the size limit", func() {
			small := media.NewService(f.repo, f.storage, nil, media.Config{MaxUploadSize: 4}, nil)

			_, err := small.Attach(context.Background(), plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("hello"))}, media.Options{})

			Expect(internal.StatusOf(err)).To(Equal(422))
			Expect(f.rows()).To(BeEmpty())
		})

		It("drops the pending row when the file cannot be written", func() {
			f.storage.failSave = true

			_, err := f.svc.Attach(context.Background(), plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("hello"))}, media.Options{})

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeStorageFailed))
			Expect(f.rows()).To(BeEmpty())
		})

		It("publishes media.committed", func() {
			got := make(chan events.Event, 1)
			f.bus.Subscribe(events.EventTypeMediaCommitted, func(_ context.Context, e events.Event) error {
				got <- e
				return nil
			})

			m, err := f.svc.Attach(context.Background(), plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("hello"))}, media.Options{})
			Expect(err).NotTo(HaveOccurred())
			f.bus.Wait()

			var e events.Event
			Eventually(got).Should(Receive(&e))
			Expect(e.(*events.MediaCommittedEvent).MediaID).To(Equal(m.ID))
		})
	})

	Describe("Process", func() {
		It("stores, renames and deletes without touching the bytes on rename", func() {
			ctx := context.Background()

			// Given
			stored, err := f.svc.Process(ctx, plan, planFiles, []media.Instruction{
				{Action: "store", FileName: "week-1.txt", Content: b64([]byte("monday: legs"))},
			}, media.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(1))
			original := stored[0]
			Expect(f.stored(original)).To(BeAnExistingFile())

			// When
			updated, err := f.svc.Process(ctx, plan, planFiles, []media.Instruction{
				{Action: "update", ID: media.ID(original.ID), Name: "week-one"},
			}, media.Options{})

			// Then
			Expect(err).NotTo(HaveOccurred())
			renamed := updated[0]
			Expect(renamed.Name).To(Equal("week-one"))
			Expect(renamed.FileName).To(Equal("week-one.txt"))
			Expect(f.stored(original)).NotTo(BeAnExistingFile())
			content, err := os.ReadFile(f.stored(renamed))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("monday: legs"))

			// When
			_, err = f.svc.Process(ctx, plan, planFiles, []media.Instruction{
				{Action: "delete", ID: media.ID(original.ID)},
			}, media.Options{})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(f.rows()).To(BeEmpty())
			Expect(f.stored(renamed)).NotTo(BeAnExistingFile())
		})

		It("rejects an unknown action with 400 before any change", func() {
			_, err := f.svc.Process(context.Background(), plan, planFiles, []media.Instruction{
				{Action: "store", FileName: "a.txt", Content: b64([]byte("hello"))},
				{Action: "unknown"},
			}, media.Options{})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidAction))
			Expect(appErr.FieldErrors()[0].Pointer).To(Equal("/meta/files/1/action"))
			Expect(appErr.FieldErrors()[0].Text()).To(Equal("The selected action is invalid."))

			Expect(f.rows()).To(BeEmpty())
			entries, err := os.ReadDir(f.root)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("requires ids that belong to the owner", func() {
			other, err := f.svc.Attach(context.Background(), owner.NewRef(owner.Plans, 8), planFiles,
				media.Source{FileName: "a.txt", Base64: b64([]byte("hello"))}, media.Options{})
			Expect(err).NotTo(HaveOccurred())

			_, err = f.svc.Process(context.Background(), plan, planFiles, []media.Instruction{
				{Action: "delete", ID: media.ID(other.ID)},
				{Action: "update"},
			}, media.Options{})

			Expect(internal.StatusOf(err)).To(Equal(422))
			appErr, _ := internal.IsAppError(err)
			pointers := []string{}
			for _, fe := range appErr.FieldErrors() {
				pointers = append(pointers, fe.Pointer)
			}
			Expect(pointers).To(ConsistOf("/meta/files/0/id", "/meta/files/1/id"))
			Expect(f.stored(other)).To(BeAnExistingFile())
		})

		It("requires a file or base64 content with a filename to store", func() {
			_, err := f.svc.Process(context.Background(), plan, planFiles, []media.Instruction{
				{Action: "store", Content: b64([]byte("hello"))},
			}, media.Options{})

			Expect(internal.StatusOf(err)).To(Equal(422))
			Expect(f.rows()).To(BeEmpty())
		})

		It("rejects file names made only of dots", func() {
			_, err := f.svc.Process(context.Background(), plan, planFiles, []media.Instruction{
				{Action: "store", FileName: "..", Content: b64(pngBytes)},
			}, media.Options{})

			Expect(internal.StatusOf(err)).To(Equal(422))
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.FieldErrors()[0].Pointer).To(Equal("/meta/files/0/filename"))
			Expect(appErr.FieldErrors()[0].Code).To(Equal("INVALID"))
			Expect(f.rows()).To(BeEmpty())
			entries, err := os.ReadDir(f.root)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("refuses to rename a file to dots", func() {
			ctx := context.Background()
			stored, err := f.svc.Process(ctx, plan, planFiles, []media.Instruction{
				{Action: "store", FileName: "week-1.txt", Content: b64([]byte("monday: legs"))},
			}, media.Options{})
			Expect(err).NotTo(HaveOccurred())

			_, err = f.svc.Process(ctx, plan, planFiles, []media.Instruction{
				{Action: "update", ID: media.ID(stored[0].ID), Name: ".."},
			}, media.Options{})
			Expect(internal.StatusOf(err)).To(Equal(422))

			_, err = f.svc.Rename(ctx, plan, stored[0].ID, "...")
			Expect(internal.StatusOf(err)).To(Equal(422))

			rows := f.rows()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].FileName).To(Equal("week-1.txt"))
			Expect(f.stored(&rows[0])).To(BeAnExistingFile())
		})

		It("keeps custom properties such as the zip prefix", func() {
			out, err := f.svc.Process(context.Background(), plan, planFiles, []media.Instruction{
				{Action: "store", FileName: "a.txt", Content: b64([]byte("hello"))},
			}, media.Options{Properties: map[string]any{mediaDatamodel.PropZipPrefix: "plans/strength"}})

			Expect(err).NotTo(HaveOccurred())
			m, err := f.repo.FindByID(context.Background(), out[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.ZipPrefix()).To(Equal("plans/strength"))
		})
	})

	Describe("Delete", func() {
		It("returns 404 for media of another owner", func() {
			m, err := f.svc.Attach(context.Background(), plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("hello"))}, media.Options{})
			Expect(err).NotTo(HaveOccurred())

			err = f.svc.Delete(context.Background(), owner.NewRef(owner.Plans, 99), m.ID)

			Expect(internal.StatusOf(err)).To(Equal(404))
			Expect(f.rows()).To(HaveLen(1))
		})

		It("leaves a tombstone when the file cannot be removed", func() {
			m, err := f.svc.Attach(context.Background(), plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("hello"))}, media.Options{})
			Expect(err).NotTo(HaveOccurred())
			f.storage.failDelete = true

			Expect(f.svc.Delete(context.Background(), plan, m.ID)).To(Succeed())

			rows := f.rows()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].State).To(Equal(mediaDatamodel.StateDeleted))
			_, err = f.svc.Get(context.Background(), m.ID)
			Expect(internal.StatusOf(err)).To(Equal(404))
		})
	})

	Describe("Bundle", func() {
		It("zips files under their prefix with unique names", func() {
			ctx := context.Background()
			props := media.Options{Properties: map[string]any{mediaDatamodel.PropZipPrefix: "docs"}}
			a, err := f.svc.Attach(ctx, plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("one"))}, props)
			Expect(err).NotTo(HaveOccurred())
			b, err := f.svc.Attach(ctx, plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("two"))}, props)
			Expect(err).NotTo(HaveOccurred())
			c, err := f.svc.Attach(ctx, plan, planFiles, media.Source{FileName: "c.txt", Base64: b64([]byte("three"))}, media.Options{})
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(f.svc.Bundle(ctx, &buf, []uint{a.ID, b.ID, c.ID, a.ID})).To(Succeed())

			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			Expect(err).NotTo(HaveOccurred())
			contents := map[string]string{}
			for _, zf := range zr.File {
				rc, err := zf.Open()
				Expect(err).NotTo(HaveOccurred())
				data, err := io.ReadAll(rc)
				Expect(err).NotTo(HaveOccurred())
				_ = rc.Close()
				contents[zf.Name] = string(data)
			}
			Expect(contents).To(Equal(map[string]string{
				"docs/a.txt":     "one",
				"docs/a (1).txt": "two",
				"c.txt":          "three",
			}))
		})

		It("keeps every entry inside the archive", func() {
			ctx := context.Background()
			up, err := f.svc.Attach(ctx, plan, planFiles, media.Source{FileName: "squat.png", Base64: b64(pngBytes)},
				media.Options{Properties: map[string]any{mediaDatamodel.PropZipPrefix: ".."}})
			Expect(err).NotTo(HaveOccurred())
			deep, err := f.svc.Attach(ctx, plan, planFiles, media.Source{FileName: "lunge.png", Base64: b64(pngBytes)},
				media.Options{Properties: map[string]any{mediaDatamodel.PropZipPrefix: "/../../etc/./legs"}})
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(f.svc.Bundle(ctx, &buf, []uint{up.ID, deep.ID})).To(Succeed())

			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			Expect(err).NotTo(HaveOccurred())
			names := []string{}
			for _, zf := range zr.File {
				names = append(names, zf.Name)
			}
			Expect(names).To(Equal([]string{"squat.png", "etc/legs/lunge.png"}))
		})

		It("fails with 404 before writing when an id is unknown", func() {
			a, err := f.svc.Attach(context.Background(), plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("one"))}, media.Options{})
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			err = f.svc.Bundle(context.Background(), &buf, []uint{a.ID, 404})

			Expect(internal.StatusOf(err)).To(Equal(404))
			Expect(buf.Len()).To(BeZero())
		})

		It("caps the number of entries", func() {
			ids := make([]uint, 11)
			for i := range ids {
				ids[i] = uint(i + 1)
			}

			err := f.svc.Bundle(context.Background(), io.Discard, ids)

			Expect(internal.StatusOf(err)).To(Equal(400))
		})
	})
})

var _ = Describe("Sweeper", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	It("finishes tombstones and stale pending rows but keeps fresh ones", func() {
		ctx := context.Background()

		// Given a failed delete
		gone, err := f.svc.Attach(ctx, plan, planFiles, media.Source{FileName: "gone.txt", Base64: b64([]byte("x"))}, media.Options{})
		Expect(err).NotTo(HaveOccurred())
		f.storage.failDelete = true
		Expect(f.svc.Delete(ctx, plan, gone.ID)).To(Succeed())
		f.storage.failDelete = false

		// and two pending rows of different age
		stale := &mediaDatamodel.Media{OwnerType: owner.Plans, OwnerID: 7, CollectionName: "files", Name: "s", FileName: "s.txt",
			Disk: "local", StoragePath: "plans/7/stale/s.txt", State: mediaDatamodel.StatePending}
		fresh := &mediaDatamodel.Media{OwnerType: owner.Plans, OwnerID: 7, CollectionName: "files", Name: "f", FileName: "f.txt",
			Disk: "local", StoragePath: "plans/7/fresh/f.txt", State: mediaDatamodel.StatePending}
		Expect(f.repo.Create(ctx, stale)).To(Succeed())
		Expect(f.repo.Create(ctx, fresh)).To(Succeed())
		Expect(f.db.Model(stale).Update("created_at", time.Now().Add(-2*time.Hour)).Error).To(Succeed())

		// When
		sweeper := media.NewSweeper(f.repo, f.storage, internal.MediaConfig{PendingTTL: time.Hour, GCConcurrency: 2}, nil)
		n, err := sweeper.Sweep(ctx)

		// Then
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))
		rows := f.rows()
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].ID).To(Equal(fresh.ID))
		Expect(f.stored(gone)).NotTo(BeAnExistingFile())
	})

	It("keeps rows whose file still cannot be removed", func() {
		ctx := context.Background()
		m, err := f.svc.Attach(ctx, plan, planFiles, media.Source{FileName: "a.txt", Base64: b64([]byte("x"))}, media.Options{})
		Expect(err).NotTo(HaveOccurred())
		f.storage.failDelete = true
		Expect(f.svc.Delete(ctx, plan, m.ID)).To(Succeed())

		n, err := media.NewSweeper(f.repo, f.storage, internal.MediaConfig{}, nil).Sweep(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
		Expect(f.rows()).To(HaveLen(1))
	})

	It("schedules sweeps on a cron spec", func() {
		c, err := media.NewSweeper(f.repo, f.storage, internal.MediaConfig{}, nil).Schedule(context.Background(), "@every 1h")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Entries()).To(HaveLen(1))

		_, err = media.NewSweeper(f.repo, f.storage, internal.MediaConfig{}, nil).Schedule(context.Background(), "not a spec")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Instruction", func() {
	It("accepts numeric and string ids", func() {
		ins, err := media.ParseInstructions([]byte(`[{"action":"delete","id":3},{"action":"delete","id":"4"},{"action":"delete","id":"x"}]`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ins[0].ID).To(Equal(media.ID(3)))
		Expect(ins[1].ID).To(Equal(media.ID(4)))
		Expect(ins[2].ID).To(BeZero())
	})

	It("sanitizes file names", func() {
		Expect(media.SanitizeFileName("../../etc/passwd")).To(Equal("passwd"))
		Expect(media.SanitizeFileName(`C:\temp\a:b.png`)).To(Equal("a-b.png"))
		Expect(media.SanitizeFileName("")).To(BeEmpty())
	})
})
