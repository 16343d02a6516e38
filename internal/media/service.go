package media

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/fitness-content/internal"
	mediaDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/core/events"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/metrics"
	"github.com/google/uuid"
)

type RepositoryAPI interface {
	Create(ctx context.Context, m *mediaDatamodel.Media) error
	MarkState(ctx context.Context, id uint, state mediaDatamodel.State) error
	UpdateNames(ctx context.Context, m *mediaDatamodel.Media) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*mediaDatamodel.Media, error)
	FindForOwner(ctx context.Context, ref owner.Ref, collection string, id uint) (*mediaDatamodel.Media, error)
	ListForOwner(ctx context.Context, ref owner.Ref, collection string) ([]mediaDatamodel.Media, error)
	ListForOwners(ctx context.Context, kind owner.Kind, ids []uint, collection string) ([]mediaDatamodel.Media, error)
	FindMany(ctx context.Context, ids []uint) ([]mediaDatamodel.Media, error)
	Stale(ctx context.Context, pendingBefore time.Time, limit int) ([]mediaDatamodel.Media, error)
}

type Config struct {
	MaxUploadSize  int64
	BundleMaxItems int
}

func ConfigFrom(c internal.MediaConfig) Config {
	return Config{MaxUploadSize: c.MaxUploadSize, BundleMaxItems: c.BundleMaxItems}
}

type Service struct {
	repo    RepositoryAPI
	storage Storage
	bus     events.Publisher
	cfg     Config
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, storage Storage, bus events.Publisher, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 10 << 20
	}
	if cfg.BundleMaxItems <= 0 {
		cfg.BundleMaxItems = 200
	}
	return &Service{repo: repo, storage: storage, bus: bus, cfg: cfg, logger: logger}
}

func (s *Service) Storage() Storage { return s.storage }

// Attach stores src as a new attachment of ref. Single collections are cleared first.
func (s *Service) Attach(ctx context.Context, ref owner.Ref, coll Collection, src Source, opts Options) (*mediaDatamodel.Media, error) {
	p, verr := read(src, coll, s.cfg.MaxUploadSize, "/data/attributes/file")
	if verr != nil {
		return nil, internal.NewUnprocessableError([]internal.ValidationError{*verr})
	}
	if coll.Single {
		if err := s.ClearCollection(ctx, ref, coll.Name); err != nil {
			return nil, err
		}
	}
	return s.attach(ctx, ref, coll, p, opts)
}

// Replace swaps the content of a collection for src.
func (s *Service) Replace(ctx context.Context, ref owner.Ref, coll Collection, src Source, opts Options) (*mediaDatamodel.Media, error) {
	coll.Single = true
	return s.Attach(ctx, ref, coll, src, opts)
}

// attach runs the staged commit: pending row, stored file, committed row. A failed write
// removes the row again; a crash in between leaves a pending row for the sweeper.
func (s *Service) attach(ctx context.Context, ref owner.Ref, coll Collection, p *payload, opts Options) (*mediaDatamodel.Media, error) {
	name := opts.Name
	if name == "" {
		name = baseName(p.fileName)
	}

	m := &mediaDatamodel.Media{
		OwnerType:        ref.Kind,
		OwnerID:          ref.ID,
		CollectionName:   coll.Name,
		Name:             name,
		FileName:         p.fileName,
		MimeType:         p.mimeType,
		Disk:             s.storage.Name(),
		StoragePath:      objectPath(ref, uuid.NewString(), p.fileName),
		Size:             int64(len(p.data)),
		CustomProperties: opts.Properties,
		State:            mediaDatamodel.StatePending,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		metrics.MediaOperationsTotal.WithLabelValues(ActionStore, "error").Inc()
		return nil, internal.NewInternalError("failed to create media", err)
	}

	n, err := s.storage.Save(ctx, m.StoragePath, p.reader())
	if err != nil {
		metrics.MediaOperationsTotal.WithLabelValues(ActionStore, "error").Inc()
		if derr := s.repo.Delete(context.WithoutCancel(ctx), m.ID); derr != nil {
			s.logger.ErrorContext(ctx, "failed to drop pending media", "media_id", m.ID, "error", derr)
		}
		return nil, storageError("failed to store file", err)
	}

	if err := s.repo.MarkState(ctx, m.ID, mediaDatamodel.StateCommitted); err != nil {
		metrics.MediaOperationsTotal.WithLabelValues(ActionStore, "error").Inc()
		return nil, internal.NewInternalError("failed to commit media", err)
	}
	m.State = mediaDatamodel.StateCommitted

	metrics.MediaOperationsTotal.WithLabelValues(ActionStore, "ok").Inc()
	metrics.MediaStoredBytesTotal.Add(float64(n))
	s.logger.InfoContext(ctx, "media stored",
		"media_id", m.ID, "owner", ref.String(), "collection", coll.Name, "size", n, "mime_type", m.MimeType)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewMediaCommittedEvent(m.ID, ref.Kind.String(), ref.ID, n))
	}
	return m, nil
}

// Rename changes the display and file name of an attachment; the bytes are untouched.
func (s *Service) Rename(ctx context.Context, ref owner.Ref, id uint, newName string) (*mediaDatamodel.Media, error) {
	m, err := s.GetForOwner(ctx, ref, "", id)
	if err != nil {
		return nil, err
	}
	return s.rename(ctx, m, newName)
}

func (s *Service) rename(ctx context.Context, m *mediaDatamodel.Media, newName string) (*mediaDatamodel.Media, error) {
	fileName := renamed(newName, m.FileName)
	if fileName == "" {
		return nil, internal.NewUnprocessableError([]internal.ValidationError{
			*fileError(internal.AttributePointer("name"), "INVALID", "The %s is invalid.", "name"),
		})
	}
	oldPath := m.StoragePath
	newPath := path.Join(path.Dir(oldPath), fileName)

	if newPath != oldPath {
		if err := s.storage.Move(ctx, oldPath, newPath); err != nil {
			metrics.MediaOperationsTotal.WithLabelValues(ActionUpdate, "error").Inc()
			return nil, storageError("failed to rename file", err)
		}
	}

	updated := *m
	updated.Name = newName
	updated.FileName = fileName
	updated.StoragePath = newPath
	if err := s.repo.UpdateNames(ctx, &updated); err != nil {
		if newPath != oldPath {
			if merr := s.storage.Move(context.WithoutCancel(ctx), newPath, oldPath); merr != nil {
				s.logger.ErrorContext(ctx, "failed to restore renamed file", "media_id", m.ID, "error", merr)
			}
		}
		metrics.MediaOperationsTotal.WithLabelValues(ActionUpdate, "error").Inc()
		return nil, internal.NewInternalError("failed to rename media", err)
	}

	metrics.MediaOperationsTotal.WithLabelValues(ActionUpdate, "ok").Inc()
	s.logger.InfoContext(ctx, "media renamed", "media_id", m.ID, "file_name", fileName)
	return &updated, nil
}

// Delete removes an attachment of ref: tombstone, file, row.
func (s *Service) Delete(ctx context.Context, ref owner.Ref, id uint) error {
	m, err := s.GetForOwner(ctx, ref, "", id)
	if err != nil {
		return err
	}
	return s.remove(ctx, m)
}

// remove leaves the tombstone in place when the file cannot be deleted, and reports it.
func (s *Service) remove(ctx context.Context, m *mediaDatamodel.Media) error {
	if err := s.repo.MarkState(ctx, m.ID, mediaDatamodel.StateDeleted); err != nil {
		metrics.MediaOperationsTotal.WithLabelValues(ActionDelete, "error").Inc()
		return internal.NewInternalError("failed to delete media", err)
	}

	if err := s.storage.Delete(ctx, m.StoragePath); err != nil {
		metrics.MediaOperationsTotal.WithLabelValues(ActionDelete, "error").Inc()
		s.logger.WarnContext(ctx, "media file removal failed, left for sweeper",
			"media_id", m.ID, "path", m.StoragePath, "error", err)
		if s.bus != nil {
			_ = s.bus.Publish(ctx, events.NewMediaDeleteFailedEvent(m.ID, m.StoragePath, err.Error()))
		}
		return nil
	}

	if err := s.repo.Delete(ctx, m.ID); err != nil {
		metrics.MediaOperationsTotal.WithLabelValues(ActionDelete, "error").Inc()
		return internal.NewInternalError("failed to delete media", err)
	}

	metrics.MediaOperationsTotal.WithLabelValues(ActionDelete, "ok").Inc()
	s.logger.InfoContext(ctx, "media deleted", "media_id", m.ID, "owner", m.Owner().String())
	return nil
}

// ClearCollection removes every attachment of ref in collection; an empty name clears all.
func (s *Service) ClearCollection(ctx context.Context, ref owner.Ref, collection string) error {
	rows, err := s.repo.ListForOwner(ctx, ref, collection)
	if err != nil {
		return internal.NewInternalError("failed to load media", err)
	}
	for i := range rows {
		if err := s.remove(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// ClearOwner removes every attachment of ref; called when the owner is deleted.
func (s *Service) ClearOwner(ctx context.Context, ref owner.Ref) error {
	return s.ClearCollection(ctx, ref, "")
}

func (s *Service) Get(ctx context.Context, id uint) (*mediaDatamodel.Media, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load media", err)
	}
	if m == nil {
		return nil, internal.ErrNotFound
	}
	return m, nil
}

// GetForOwner returns attachment id of ref, or 404 when it belongs to something else.
func (s *Service) GetForOwner(ctx context.Context, ref owner.Ref, collection string, id uint) (*mediaDatamodel.Media, error) {
	m, err := s.repo.FindForOwner(ctx, ref, collection, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load media", err)
	}
	if m == nil {
		return nil, internal.ErrNotFound
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, ref owner.Ref, collection string) ([]mediaDatamodel.Media, error) {
	rows, err := s.repo.ListForOwner(ctx, ref, collection)
	if err != nil {
		return nil, internal.NewInternalError("failed to load media", err)
	}
	return rows, nil
}

// ListForOwners groups the collection media of many owners by owner id.
func (s *Service) ListForOwners(ctx context.Context, kind owner.Kind, ids []uint, collection string) (map[uint][]mediaDatamodel.Media, error) {
	out := make(map[uint][]mediaDatamodel.Media, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.repo.ListForOwners(ctx, kind, ids, collection)
	if err != nil {
		return nil, internal.NewInternalError("failed to load media", err)
	}
	for _, m := range rows {
		out[m.OwnerID] = append(out[m.OwnerID], m)
	}
	return out, nil
}

// Open returns the stored bytes of m.
func (s *Service) Open(ctx context.Context, m *mediaDatamodel.Media) (io.ReadCloser, error) {
	rc, err := s.storage.Open(ctx, m.StoragePath)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, internal.ErrNotFound
	}
	if err != nil {
		return nil, storageError("failed to read file", err)
	}
	return rc, nil
}

// PrepareBundle loads the rows of a bundle; every id must exist before anything is written.
func (s *Service) PrepareBundle(ctx context.Context, ids []uint) ([]mediaDatamodel.Media, error) {
	ids = unique(ids)
	if len(ids) == 0 {
		return nil, internal.NewParameterError("ids", "The %s field is required.", "ids")
	}
	if len(ids) > s.cfg.BundleMaxItems {
		return nil, internal.NewParameterError("ids", "The %s may not be greater than %s.", "ids", strconv.Itoa(s.cfg.BundleMaxItems))
	}

	rows, err := s.repo.FindMany(ctx, ids)
	if err != nil {
		return nil, internal.NewInternalError("failed to load media", err)
	}
	if len(rows) != len(ids) {
		return nil, internal.ErrNotFound
	}

	byID := make(map[uint]mediaDatamodel.Media, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	ordered := make([]mediaDatamodel.Media, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, byID[id])
	}
	return ordered, nil
}

// Bundle writes a zip of the given media to w. Entries sit under their zip prefix; it
// never touches HTTP headers.
func (s *Service) Bundle(ctx context.Context, w io.Writer, ids []uint) error {
	rows, err := s.PrepareBundle(ctx, ids)
	if err != nil {
		return err
	}
	return s.WriteBundle(ctx, w, rows)
}

func (s *Service) WriteBundle(ctx context.Context, w io.Writer, rows []mediaDatamodel.Media) error {
	zw := zip.NewWriter(w)
	names := newEntryNames()

	for i := range rows {
		m := &rows[i]
		if err := s.addEntry(ctx, zw, names.next(entryName(m.ZipPrefix(), m.FileName)), m); err != nil {
			metrics.MediaOperationsTotal.WithLabelValues("bundle", "error").Inc()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		metrics.MediaOperationsTotal.WithLabelValues("bundle", "error").Inc()
		return fmt.Errorf("failed to finish bundle: %w", err)
	}
	metrics.MediaOperationsTotal.WithLabelValues("bundle", "ok").Inc()
	return nil
}

func (s *Service) addEntry(ctx context.Context, zw *zip.Writer, name string, m *mediaDatamodel.Media) error {
	rc, err := s.Open(ctx, m)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: m.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to bundle: %w", name, err)
	}
	if _, err := io.Copy(fw, rc); err != nil {
		return fmt.Errorf("failed to add %s to bundle: %w", name, err)
	}
	return nil
}

// entryName places fileName under prefix. Empty, "." and ".." segments are dropped so
// entries never leave the archive root.
func entryName(prefix, fileName string) string {
	var segs []string
	for _, seg := range strings.Split(strings.ReplaceAll(prefix, "\\", "/"), "/") {
		if seg = SanitizeFileName(seg); seg != "" {
			segs = append(segs, seg)
		}
	}
	name := SanitizeFileName(fileName)
	if name == "" {
		name = "file"
	}
	return path.Join(append(segs, name)...)
}

// entryNames keeps zip entry names unique: a.png, a (1).png, ...
type entryNames map[string]int

func newEntryNames() entryNames { return entryNames{} }

func (e entryNames) next(name string) string {
	name = path.Clean(name)
	n, seen := e[name]
	e[name] = n + 1
	if !seen {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s (%d)%s", name[:len(name)-len(ext)], n, ext)
	return e.next(candidate)
}

// objectPath is <kind>/<owner id>/<uuid>/<file name>; renames only swap the last segment.
func objectPath(ref owner.Ref, id, fileName string) string {
	return path.Join(ref.Kind.String(), strconv.FormatUint(uint64(ref.ID), 10), id, fileName)
}

func storageError(message string, cause error) *internal.AppError {
	return &internal.AppError{
		Type:       internal.ErrorTypeExternal,
		Code:       internal.ErrCodeStorageFailed,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func unique(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
