package catalog

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/media"
	"github.com/frahmantamala/fitness-content/internal/transport"
	"github.com/go-chi/chi"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
	Gate    transport.Authorizer
	// Files serves the files endpoints of kinds with a media collection; nil skips them.
	Files *media.Handler
}

func NewHandler(svc *Service, gate transport.Authorizer, files *media.Handler, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Gate:        gate,
		Files:       files,
	}
}

// KindHandler serves the endpoints of one catalog kind.
type KindHandler struct {
	*Handler
	def Definition
}

func (h *Handler) Kind(def Definition) *KindHandler {
	return &KindHandler{Handler: h, def: def}
}

// Mount registers the routes of every catalog kind on r.
func (h *Handler) Mount(r chi.Router) {
	for _, def := range h.Service.Registry().Definitions() {
		k := h.Kind(def)
		r.Route("/"+def.Type(), func(kr chi.Router) {
			kr.Get("/", k.Index)
			kr.Post("/", k.Store)
			kr.Get("/{id}", k.Show)
			kr.Patch("/{id}", k.Update)
			kr.Delete("/{id}", k.Destroy)

			if def.Media != nil && h.Files != nil {
				files := h.Files.ForOwner(def.Kind, *def.Media, h.Service.Registry().Store(def.Kind).Exists)
				kr.Get("/{id}/files", files.Index)
				kr.Post("/{id}/files", files.Store)
				kr.Get("/{id}/files/{mediaId}", files.Show)
			}

			kr.Get("/{id}/relationships/{rel}", k.ShowRelationship)
			kr.Post("/{id}/relationships/{rel}", k.AttachRelationship)
			kr.Patch("/{id}/relationships/{rel}", k.UpdateRelationship)
			kr.Delete("/{id}/relationships/{rel}", k.DetachRelationship)
			kr.Get("/{id}/{rel}", k.ShowRelated)
		})
	}
}

func (k *KindHandler) Index(w http.ResponseWriter, r *http.Request) {
	if err := transport.Can(r, k.Gate, k.def.Type(), "viewAny", 0); err != nil {
		k.WriteError(w, r, err)
		return
	}

	q, err := transport.ParseQuery(r.URL.Query(), Filters, Sorts)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}

	entries, total, err := k.Service.List(r.Context(), k.def, ListQuery{Query: q})
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	meta, links := transport.Paginate(r.URL, q.Page, total)
	k.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResources(k.def, entries), Meta: meta, Links: links})
}

func (k *KindHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := k.URLID(r, "id")
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	if err := transport.Can(r, k.Gate, k.def.Type(), "view", id); err != nil {
		k.WriteError(w, r, err)
		return
	}

	e, err := k.Service.Get(r.Context(), k.def, id)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	k.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(k.def, *e)})
}

func (k *KindHandler) Store(w http.ResponseWriter, r *http.Request) {
	if err := transport.Can(r, k.Gate, k.def.Type(), "create", 0); err != nil {
		k.WriteError(w, r, err)
		return
	}

	doc, err := k.DecodeDocument(r)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	if err := doc.CheckResource(k.def.Type(), 0); err != nil {
		k.WriteError(w, r, err)
		return
	}
	in, err := ReadInput(k.def, doc, false)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}

	e, err := k.Service.Create(r.Context(), k.def, in)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	res := ToResource(k.def, *e)
	k.Created(w, res.Links.Self, transport.Document{Data: res})
}

func (k *KindHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := k.URLID(r, "id")
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	if err := transport.Can(r, k.Gate, k.def.Type(), "update", id); err != nil {
		k.WriteError(w, r, err)
		return
	}

	doc, err := k.DecodeDocument(r)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	if err := doc.CheckResource(k.def.Type(), id); err != nil {
		k.WriteError(w, r, err)
		return
	}
	in, err := ReadInput(k.def, doc, true)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}

	e, err := k.Service.Update(r.Context(), k.def, id, in)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	k.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(k.def, *e)})
}

func (k *KindHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := k.URLID(r, "id")
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	if err := transport.Can(r, k.Gate, k.def.Type(), "delete", id); err != nil {
		k.WriteError(w, r, err)
		return
	}

	if err := k.Service.Delete(r.Context(), k.def, id); err != nil {
		k.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// relationship resolves {id} and {rel} and checks verb<Rel> on the kind.
func (k *KindHandler) relationship(w http.ResponseWriter, r *http.Request, verb string) (uint, Relationship, bool) {
	id, err := k.URLID(r, "id")
	if err != nil {
		k.WriteError(w, r, err)
		return 0, Relationship{}, false
	}
	rel, ok := k.def.Relationship(chi.URLParam(r, "rel"))
	if !ok {
		k.WriteError(w, r, internal.ErrNotFound)
		return 0, Relationship{}, false
	}
	if err := transport.Can(r, k.Gate, k.def.Type(), auth.RelAction(verb, rel.Name), id); err != nil {
		k.WriteError(w, r, err)
		return 0, Relationship{}, false
	}
	return id, rel, true
}

// ShowRelated outputs the related resources: the parent for a to-one relationship, a
// paginated collection otherwise.
func (k *KindHandler) ShowRelated(w http.ResponseWriter, r *http.Request) {
	id, rel, ok := k.relationship(w, r, "view")
	if !ok {
		return
	}
	related, _ := k.Service.Registry().Definition(rel.Related)

	if rel.ToOne {
		e, err := k.Service.Parent(r.Context(), k.def, id)
		if err != nil {
			k.WriteError(w, r, err)
			return
		}
		doc := transport.Document{Data: nil}
		if e != nil {
			doc.Data = ToResource(related, *e)
		}
		k.WriteDocument(w, http.StatusOK, doc)
		return
	}

	q, err := transport.ParseQuery(r.URL.Query(), Filters, Sorts)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	entries, total, err := k.Service.Related(r.Context(), k.def, id, rel, q)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	meta, links := transport.Paginate(r.URL, q.Page, total)
	k.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResources(related, entries), Meta: meta, Links: links})
}

func (k *KindHandler) ShowRelationship(w http.ResponseWriter, r *http.Request) {
	id, rel, ok := k.relationship(w, r, "view")
	if !ok {
		return
	}

	self := selfLink(k.def.Kind, id)
	links := &transport.Links{Self: self + "/relationships/" + rel.Name, Related: self + "/" + rel.Name}

	if rel.ToOne {
		e, err := k.Service.Parent(r.Context(), k.def, id)
		if err != nil {
			k.WriteError(w, r, err)
			return
		}
		doc := transport.Document{Data: nil, Links: links}
		if e != nil {
			doc.Data = transport.Identifier{Type: rel.Related.String(), ID: transport.FormatID(e.Item.ID)}
		}
		k.WriteDocument(w, http.StatusOK, doc)
		return
	}

	linkage, err := k.Service.Links(r.Context(), k.def, id, rel)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	k.WriteDocument(w, http.StatusOK, transport.Document{Data: ToIdentifiers(rel.Related, linkage), Links: links})
}

// AttachRelationship adds pivot rows.
func (k *KindHandler) AttachRelationship(w http.ResponseWriter, r *http.Request) {
	id, rel, ok := k.relationship(w, r, "attach")
	if !ok {
		return
	}
	if rel.Pivot == nil {
		k.WriteError(w, r, internal.ErrNotFound)
		return
	}

	links, err := k.readLinks(r, rel)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	if err := k.Service.Attach(r.Context(), k.def, id, *rel.Pivot, links); err != nil {
		k.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateRelationship replaces pivot rows, or sets the parent of a to-one relationship.
func (k *KindHandler) UpdateRelationship(w http.ResponseWriter, r *http.Request) {
	id, rel, ok := k.relationship(w, r, "update")
	if !ok {
		return
	}

	switch {
	case rel.ToOne:
		var body struct {
			Data *transport.Identifier `json:"data"`
		}
		if err := k.DecodeJSON(r, &body); err != nil {
			k.WriteError(w, r, err)
			return
		}
		var parentID *uint
		if body.Data != nil {
			pid, verr := identifierID(*body.Data, rel.Related, "/data")
			if verr != nil {
				k.WriteError(w, r, internal.NewUnprocessableError([]internal.ValidationError{*verr}))
				return
			}
			parentID = &pid
		}
		if err := k.Service.SetParent(r.Context(), k.def, id, parentID); err != nil {
			k.WriteError(w, r, err)
			return
		}
	case rel.Pivot != nil:
		links, err := k.readLinks(r, rel)
		if err != nil {
			k.WriteError(w, r, err)
			return
		}
		if err := k.Service.Replace(r.Context(), k.def, id, *rel.Pivot, links); err != nil {
			k.WriteError(w, r, err)
			return
		}
	default:
		k.WriteError(w, r, internal.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DetachRelationship removes pivot rows.
func (k *KindHandler) DetachRelationship(w http.ResponseWriter, r *http.Request) {
	id, rel, ok := k.relationship(w, r, "detach")
	if !ok {
		return
	}
	if rel.Pivot == nil {
		k.WriteError(w, r, internal.ErrNotFound)
		return
	}

	var doc transport.LinkageDocument
	if err := k.DecodeJSON(r, &doc); err != nil {
		k.WriteError(w, r, err)
		return
	}
	ids, err := ReadIDs(doc.Data, rel.Related)
	if err != nil {
		k.WriteError(w, r, err)
		return
	}
	if err := k.Service.Detach(r.Context(), k.def, id, *rel.Pivot, ids); err != nil {
		k.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (k *KindHandler) readLinks(r *http.Request, rel Relationship) ([]Link, error) {
	var doc transport.LinkageDocument
	if err := k.DecodeJSON(r, &doc); err != nil {
		return nil, err
	}
	links, errs := ReadLinks(doc.Data, rel.Related, "/data")
	if len(errs) > 0 {
		return nil, internal.NewUnprocessableError(errs)
	}
	return links, nil
}
