package translation

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

// RegisterPolicies installs the translations policy: public reads, permissioned writes.
func RegisterPolicies(gate *auth.Gate) {
	gate.Register(ResourceType, auth.ResourcePolicy(ResourceType))
}

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

	data := make([]transport.Resource, 0, len(rows))
	for i := range rows {
		data = append(data, ToResource(&rows[i]))
	}
	meta, links := transport.Paginate(r.URL, q.Page, total)
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: data, Meta: meta, Links: links})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := h.URLID(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := transport.Can(r, h.Gate, ResourceType, "view", id); err != nil {
		h.WriteError(w, r, err)
		return
	}

	t, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(t)})
}

// Store upserts: 201 when the row is new, 200 when it replaced an existing translation.
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
	var dto CreateTranslationDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	t, created, err := h.Service.Upsert(r.Context(), dto)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	res := ToResource(t)
	if created {
		h.Created(w, res.Links.Self, transport.Document{Data: res})
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: res})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := h.URLID(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := transport.Can(r, h.Gate, ResourceType, "update", id); err != nil {
		h.WriteError(w, r, err)
		return
	}

	doc, err := h.DecodeDocument(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	var dto UpdateTranslationDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	t, err := h.Service.Update(r.Context(), id, dto)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(t)})
}

func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := h.URLID(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := transport.Can(r, h.Gate, ResourceType, "delete", id); err != nil {
		h.WriteError(w, r, err)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
