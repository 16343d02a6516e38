package media

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	mediaDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

// Handler serves attachments by id. Access follows the view rule of the owning resource.
type Handler struct {
	*transport.BaseHandler
	Service *Service
	Gate    transport.Authorizer
}

func NewHandler(svc *Service, gate transport.Authorizer, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Gate:        gate,
	}
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "attachment")
}

func (h *Handler) Inline(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "inline")
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, disposition string) {
	id, err := h.URLID(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	m, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := h.canView(r, m); err != nil {
		h.WriteError(w, r, err)
		return
	}

	h.stream(w, r, m, disposition)
}

// Bundle streams a zip of the media listed in ?ids=1,2 (GET) or in a linkage document (POST).
func (h *Handler) Bundle(w http.ResponseWriter, r *http.Request) {
	ids, err := h.bundleIDs(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	rows, err := h.Service.PrepareBundle(r.Context(), ids)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	for i := range rows {
		if err := h.canView(r, &rows[i]); err != nil {
			h.WriteError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "bundle.zip"}))
	w.WriteHeader(http.StatusOK)
	if err := h.Service.WriteBundle(r.Context(), w, rows); err != nil {
		// headers are gone, the client sees a truncated archive
		h.Logger.ErrorContext(r.Context(), "bundle streaming failed", "error", err)
	}
}

func (h *Handler) bundleIDs(r *http.Request) ([]uint, error) {
	if r.Method == http.MethodGet {
		var ids []uint
		for _, raw := range r.URL.Query()["ids"] {
			for _, part := range strings.Split(raw, ",") {
				id := transport.ParseID(strings.TrimSpace(part))
				if id == 0 {
					return nil, internal.NewParameterError("ids", "The %s is invalid.", "ids")
				}
				ids = append(ids, id)
			}
		}
		return ids, nil
	}

	var doc transport.LinkageDocument
	if err := h.DecodeJSON(r, &doc); err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(doc.Data))
	for i, ident := range doc.Data {
		id := transport.ParseID(ident.ID)
		if ident.Type != ResourceType || id == 0 {
			return nil, internal.NewUnprocessableError([]internal.ValidationError{{
				Field:   "id",
				Message: "The %s is invalid.",
				Args:    []any{"id"},
				Code:    "INVALID",
				Pointer: "/data/" + strconv.Itoa(i),
			}})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Handler) canView(r *http.Request, m *mediaDatamodel.Media) error {
	return transport.Can(r, h.Gate, m.OwnerType.String(), "view", m.OwnerID)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, m *mediaDatamodel.Media, disposition string) {
	rc, err := h.Service.Open(r.Context(), m)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	ct := m.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": m.FileName}))
	if m.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(m.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.WarnContext(r.Context(), "media streaming interrupted", "media_id", m.ID, "error", err)
	}
}

// OwnerFiles serves the files endpoints of one owner kind: /{kind}/{id}/files[/{mediaId}].
type OwnerFiles struct {
	*Handler
	Kind       owner.Kind
	Collection Collection
	// Exists reports whether the owner row is there.
	Exists func(ctx context.Context, id uint) (bool, error)
	// Properties returns the custom properties stored on new files, for example a zip prefix.
	Properties func(ctx context.Context, id uint) (map[string]any, error)
}

func (h *Handler) ForOwner(kind owner.Kind, coll Collection, exists func(ctx context.Context, id uint) (bool, error)) *OwnerFiles {
	return &OwnerFiles{Handler: h, Kind: kind, Collection: coll, Exists: exists}
}

func (o *OwnerFiles) WithProperties(fn func(ctx context.Context, id uint) (map[string]any, error)) *OwnerFiles {
	o.Properties = fn
	return o
}

func (o *OwnerFiles) owner(w http.ResponseWriter, r *http.Request, action string) (owner.Ref, bool) {
	id, err := o.URLID(r, "id")
	if err != nil {
		o.WriteError(w, r, err)
		return owner.Ref{}, false
	}
	if err := transport.Can(r, o.Gate, o.Kind.String(), action, id); err != nil {
		o.WriteError(w, r, err)
		return owner.Ref{}, false
	}
	ok, err := o.Exists(r.Context(), id)
	if err != nil {
		o.WriteError(w, r, internal.NewInternalError("failed to load owner", err))
		return owner.Ref{}, false
	}
	if !ok {
		o.WriteError(w, r, internal.ErrNotFound)
		return owner.Ref{}, false
	}
	return owner.NewRef(o.Kind, id), true
}

// Index lists the files of the owner.
func (o *OwnerFiles) Index(w http.ResponseWriter, r *http.Request) {
	ref, ok := o.owner(w, r, "view")
	if !ok {
		return
	}

	rows, err := o.Service.List(r.Context(), ref, o.Collection.Name)
	if err != nil {
		o.WriteError(w, r, err)
		return
	}
	o.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResources(rows)})
}

// Show outputs one file of the owner inline.
func (o *OwnerFiles) Show(w http.ResponseWriter, r *http.Request) {
	ref, ok := o.owner(w, r, "view")
	if !ok {
		return
	}
	mediaID, err := o.URLID(r, "mediaId")
	if err != nil {
		o.WriteError(w, r, err)
		return
	}

	m, err := o.Service.GetForOwner(r.Context(), ref, o.Collection.Name, mediaID)
	if err != nil {
		o.WriteError(w, r, err)
		return
	}
	o.stream(w, r, m, "inline")
}

// Store accepts multipart uploads (file / files fields) or a JSON:API document whose
// meta.files holds instructions, and answers with the files of the owner.
func (o *OwnerFiles) Store(w http.ResponseWriter, r *http.Request) {
	ref, ok := o.owner(w, r, "update")
	if !ok {
		return
	}

	instructions, err := o.instructions(w, r)
	if err != nil {
		o.WriteError(w, r, err)
		return
	}

	var opts Options
	if o.Properties != nil {
		props, err := o.Properties(r.Context(), ref.ID)
		if err != nil {
			o.WriteError(w, r, internal.NewInternalError("failed to load owner", err))
			return
		}
		opts.Properties = props
	}

	if _, err := o.Service.Process(r.Context(), ref, o.Collection, instructions, opts); err != nil {
		o.WriteError(w, r, err)
		return
	}

	rows, err := o.Service.List(r.Context(), ref, o.Collection.Name)
	if err != nil {
		o.WriteError(w, r, err)
		return
	}
	o.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResources(rows)})
}

func (o *OwnerFiles) instructions(w http.ResponseWriter, r *http.Request) ([]Instruction, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		return MultipartInstructions(w, r, o.Service.cfg.MaxUploadSize)
	}

	doc, err := o.DecodeDocument(r)
	if err != nil {
		return nil, err
	}
	return DocumentInstructions(doc)
}

// DocumentInstructions reads meta.files of a request document.
func DocumentInstructions(doc *transport.RequestDocument) ([]Instruction, error) {
	raw, ok := doc.Meta["files"]
	if !ok {
		return nil, nil
	}
	instructions, err := ParseInstructions(raw)
	if err != nil {
		return nil, internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
	}
	return instructions, nil
}

// MultipartInstructions turns every uploaded file into a store instruction. An optional
// name field sets the display name of a single upload.
func MultipartInstructions(w http.ResponseWriter, r *http.Request, maxSize int64) ([]Instruction, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize*4+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
	}

	var out []Instruction
	for _, field := range []string{"file", "files", "files[]"} {
		for _, fh := range r.MultipartForm.File[field] {
			out = append(out, Instruction{Action: ActionStore, File: fh})
		}
	}
	if len(out) == 1 {
		out[0].Name = r.FormValue("name")
	}
	if len(out) == 0 {
		return nil, internal.NewUnprocessableError([]internal.ValidationError{
			*fileError(InstructionsPointer, "REQUIRED", "A file or a base64 payload with a filename is required."),
		})
	}
	return out, nil
}
