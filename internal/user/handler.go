package user

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/core/common/validation"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

// RegisterPolicies installs the users policy: every read needs "read users", update and
// delete are limited to the actor's own account, roles need the roles permissions.
func RegisterPolicies(gate *auth.Gate) {
	p := auth.SelfPolicy(ResourceType)
	p["viewRoles"] = auth.Permission("read roles")
	p["updateRoles"] = auth.Permission("update roles")
	gate.Register(ResourceType, p)
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

	users, total, err := h.Service.List(r.Context(), q)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	data := make([]transport.Resource, 0, len(users))
	for _, u := range users {
		data = append(data, ToResource(u))
	}
	meta, links := transport.Paginate(r.URL, q.Page, total)
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: data, Meta: meta, Links: links})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, "view")
	if !ok {
		return
	}

	u, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(u)})
}

// Update patches the profile; a deleted_at attribute soft-deletes the account instead (204).
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
	var dto UpdateUserDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := validation.Attributes(dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	u, err := h.Service.Update(r.Context(), id, dto)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if u == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: ToResource(u)})
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

// ShowRoles lists the roles of a user (GET /users/{id}/roles).
func (h *Handler) ShowRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, "viewRoles")
	if !ok {
		return
	}

	u, err := h.Service.Roles(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	data := make([]transport.Resource, 0, len(u.Roles))
	for i := range u.Roles {
		data = append(data, RoleResource(&u.Roles[i]))
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: data})
}

// ShowRoleLinkage outputs the role identifiers of a user.
func (h *Handler) ShowRoleLinkage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, "viewRoles")
	if !ok {
		return
	}

	u, err := h.Service.Roles(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: RoleIdentifiers(u.Roles)})
}

// UpdateRoles replaces the roles of a user with the linkage in the body.
func (h *Handler) UpdateRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, "updateRoles")
	if !ok {
		return
	}

	var doc transport.LinkageDocument
	if err := h.DecodeJSON(r, &doc); err != nil {
		h.WriteError(w, r, err)
		return
	}
	ids := make([]uint, 0, len(doc.Data))
	for _, ident := range doc.Data {
		roleID := transport.ParseID(ident.ID)
		if ident.Type != "roles" || roleID == 0 {
			h.WriteError(w, r, internal.NewUnprocessableError([]internal.ValidationError{{
				Field:   "roles",
				Message: "The %s is invalid.",
				Args:    []any{"roles"},
				Code:    "INVALID",
				Pointer: "/data",
			}}))
			return
		}
		ids = append(ids, roleID)
	}

	if err := h.Service.SyncRoles(r.Context(), id, ids); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
