package directory

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/core/common/validation"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/media"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"github.com/go-chi/chi"
)

func RegisterPolicies(gate *auth.Gate) {
	gate.Register(ResourceType, auth.ProtectedPolicy(ResourceType).
		WithRelation(ResourceType, ParentRel, ResourceType).
		WithRelation(ResourceType, ChildrenRel, ResourceType))
}

type Handler struct {
	*transport.BaseHandler
	Service *Service
	Gate    transport.Authorizer
	Files   *media.OwnerFiles
}

// NewHandler serves directories; files may be nil when no media handler is configured.
func NewHandler(svc *Service, gate transport.Authorizer, files *media.Handler, lg *slog.Logger) *Handler {
	h := &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Gate:        gate,
	}
	if files != nil {
		h.Files = files.ForOwner(owner.Directories, Files, svc.Exists).WithProperties(svc.FileProperties)
	}
	return h
}

func (h *Handler) Mount(r chi.Router) {
	r.Route("/"+ResourceType, func(dr chi.Router) {
		dr.Get("/", h.Index)
		dr.Post("/", h.Store)
		dr.Get("/{id}", h.Show)
		dr.Patch("/{id}", h.Update)
		dr.Delete("/{id}", h.Destroy)
		dr.Get("/{id}/children", h.Children)
		dr.Get("/{id}/parent", h.ShowParent)
		dr.Get("/{id}/relationships/parent", h.ShowParentRelationship)
		dr.Patch("/{id}/relationships/parent", h.UpdateParent)

		if h.Files != nil {
			dr.Get("/{id}/files", h.Files.Index)
			dr.Post("/{id}/files", h.Files.Store)
			dr.Get("/{id}/files/{mediaId}", h.Files.Show)
		}
	})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action string) (uint, bool) {
	id, err := h.URLID(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return 0, false
	}
	if err := transport.Can(r, h.Gate, ResourceType, action, id); err != nil {
		h.WriteError(w, r, err)
		return 0, false
	}
	return id, true
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if err := transport.Can(r, h.Gate, ResourceType, "viewAny", 0); err != nil {
		h.WriteError(w, r, err)
		return
	}
	q, err := transport.ParseQuery(r.URL.Query(), Filters, Sorts)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	rows, total, err := h.Service.List(r.Context(), q)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	meta, links := transport.Paginate(r.URL, q.Page, total)
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResources(rows), Meta: meta, Links: links})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, "view")
	if !ok {
		return
	}
	d, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(d)})
}

func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	if err := transport.Can(r, h.Gate, ResourceType, "create", 0); err != nil {
		h.WriteError(w, r, err)
		return
	}
	doc, err := h.DecodeDocument(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := doc.CheckResource(ResourceType, 0); err != nil {
		h.WriteError(w, r, err)
		return
	}
	var dto CreateDirectoryDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := validation.Attributes(dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	in, err := readInput(doc)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	in.Name = &dto.Name

	d, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	res := ToResource(d)
	h.Created(w, res.Links.Self, transport.Document{Data: res})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, "update")
	if !ok {
		return
	}
	doc, err := h.DecodeDocument(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := doc.CheckResource(ResourceType, id); err != nil {
		h.WriteError(w, r, err)
		return
	}
	var dto UpdateDirectoryDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := validation.Attributes(dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	in, err := readInput(doc)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	in.Name = dto.Name

	d, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(d)})
}

func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, "delete")
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Children(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.RelAction("view", ChildrenRel))
	if !ok {
		return
	}
	q, err := transport.ParseQuery(r.URL.Query(), Filters, Sorts)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	rows, total, err := h.Service.Children(r.Context(), id, q)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	meta, links := transport.Paginate(r.URL, q.Page, total)
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResources(rows), Meta: meta, Links: links})
}

func (h *Handler) ShowParent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.RelAction("view", ParentRel))
	if !ok {
		return
	}
	parent, err := h.Service.Parent(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if parent == nil {
		h.WriteDocument(w, http.StatusOK, transport.Document{Data: nil})
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(parent)})
}

func (h *Handler) ShowParentRelationship(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.RelAction("view", ParentRel))
	if !ok {
		return
	}
	d, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: parentIdentifier(d)})
}

// UpdateParent moves the directory; {"data": null} moves it to the root.
func (h *Handler) UpdateParent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, auth.RelAction("update", ParentRel))
	if !ok {
		return
	}
	var rel transport.RequestRelationship
	if err := h.DecodeJSON(r, &rel); err != nil {
		h.WriteError(w, r, err)
		return
	}
	parentID, err := ParentLinkage(rel)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	d, err := h.Service.SetParent(r.Context(), id, parentID)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: parentIdentifier(d)})
}

func parentIdentifier(d *Directory) any {
	if d.ParentID == nil {
		return nil
	}
	return transport.Identifier{Type: ResourceType, ID: transport.FormatID(*d.ParentID)}
}

func readInput(doc *transport.RequestDocument) (Input, error) {
	var in Input
	set, parentID, err := ReadParent(doc)
	if err != nil {
		return in, err
	}
	in.ParentSet, in.ParentID = set, parentID

	files, err := media.DocumentInstructions(doc)
	if err != nil {
		return in, err
	}
	in.Files = files
	return in, nil
}
