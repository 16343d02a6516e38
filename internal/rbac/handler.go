package rbac

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/core/common/validation"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

// RegisterPolicies protects both resources; reading needs "read <resource>" as well.
func RegisterPolicies(gate *auth.Gate) {
	gate.Register(PermissionsType, auth.ProtectedPolicy(PermissionsType))
	gate.Register(RolesType, auth.ProtectedPolicy(RolesType).WithRelation(RolesType, PermissionsType, PermissionsType))
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

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, resource, action string) (uint, bool) {
	id, err := h.URLID(r, "id")
	if err != nil {
		h.WriteError(w, r, err)
		return 0, false
	}
	if err := transport.Can(r, h.Gate, resource, action, id); err != nil {
		h.WriteError(w, r, err)
		return 0, false
	}
	return id, true
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	if err := transport.Can(r, h.Gate, PermissionsType, "viewAny", 0); err != nil {
		h.WriteError(w, r, err)
		return
	}
	q, err := transport.ParseQuery(r.URL.Query(), PermissionFilters, Sorts)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	rows, total, err := h.Service.ListPermissions(r.Context(), q)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	data := make([]transport.Resource, 0, len(rows))
	for i := range rows {
		data = append(data, PermissionResource(&rows[i]))
	}
	meta, links := transport.Paginate(r.URL, q.Page, total)
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: data, Meta: meta, Links: links})
}

func (h *Handler) ShowPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, PermissionsType, "view")
	if !ok {
		return
	}
	p, err := h.Service.GetPermission(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: PermissionResource(p)})
}

func (h *Handler) StorePermission(w http.ResponseWriter, r *http.Request) {
	if err := transport.Can(r, h.Gate, PermissionsType, "create", 0); err != nil {
		h.WriteError(w, r, err)
		return
	}
	doc, err := h.DecodeDocument(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	var dto CreatePermissionDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := validation.Attributes(dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	p, err := h.Service.CreatePermission(r.Context(), dto)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	res := PermissionResource(p)
	h.Created(w, res.Links.Self, transport.Document{Data: res})
}

func (h *Handler) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, PermissionsType, "update")
	if !ok {
		return
	}
	doc, err := h.DecodeDocument(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	var dto UpdatePermissionDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := validation.Attributes(dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	p, err := h.Service.UpdatePermission(r.Context(), id, dto)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: PermissionResource(p)})
}

func (h *Handler) DestroyPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, PermissionsType, "delete")
	if !ok {
		return
	}
	if err := h.Service.DeletePermission(r.Context(), id); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	if err := transport.Can(r, h.Gate, RolesType, "viewAny", 0); err != nil {
		h.WriteError(w, r, err)
		return
	}
	q, err := transport.ParseQuery(r.URL.Query(), RoleFilters, Sorts)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	rows, total, err := h.Service.ListRoles(r.Context(), q)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	data := make([]transport.Resource, 0, len(rows))
	for i := range rows {
		data = append(data, RoleResource(&rows[i]))
	}
	meta, links := transport.Paginate(r.URL, q.Page, total)
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: data, Meta: meta, Links: links})
}

func (h *Handler) ShowRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, RolesType, "view")
	if !ok {
		return
	}
	role, err := h.Service.GetRole(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: RoleResource(role)})
}

func (h *Handler) StoreRole(w http.ResponseWriter, r *http.Request) {
	if err := transport.Can(r, h.Gate, RolesType, "create", 0); err != nil {
		h.WriteError(w, r, err)
		return
	}
	doc, err := h.DecodeDocument(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	var dto CreateRoleDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := validation.Attributes(dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	ids, err := permissionLinkage(doc)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	role, err := h.Service.CreateRole(r.Context(), dto, ids)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	res := RoleResource(role)
	h.Created(w, res.Links.Self, transport.Document{Data: res})
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, RolesType, "update")
	if !ok {
		return
	}
	doc, err := h.DecodeDocument(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	var dto UpdateRoleDTO
	if err := transport.DecodeAttributes(doc, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := validation.Attributes(dto); err != nil {
		h.WriteError(w, r, err)
		return
	}
	ids, err := permissionLinkage(doc)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	role, err := h.Service.UpdateRole(r.Context(), id, dto, ids)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: RoleResource(role)})
}

func (h *Handler) DestroyRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, RolesType, "delete")
	if !ok {
		return
	}
	if err := h.Service.DeleteRole(r.Context(), id); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncPermissions replaces the grants of a role with the linkage in the body.
func (h *Handler) SyncPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, RolesType, auth.RelAction("update", PermissionsType))
	if !ok {
		return
	}
	var doc transport.LinkageDocument
	if err := h.DecodeJSON(r, &doc); err != nil {
		h.WriteError(w, r, err)
		return
	}
	ids, err := identifierIDs(doc.Data, "/data")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	role, err := h.Service.SyncPermissions(r.Context(), id, ids)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteDocument(w, http.StatusOK, transport.Document{Data: RoleResource(role)})
}

// permissionLinkage reads relationships.permissions; nil when absent.
func permissionLinkage(doc *transport.RequestDocument) ([]uint, error) {
	rel, ok := doc.Data.Relationships[PermissionsType]
	if !ok {
		return nil, nil
	}
	idents, err := rel.ToMany()
	if err != nil {
		return nil, internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
	}
	ids, err := identifierIDs(idents, "/data/relationships/permissions/data")
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}

func identifierIDs(idents []transport.Identifier, pointer string) ([]uint, error) {
	var ids []uint
	for _, ident := range idents {
		id := transport.ParseID(ident.ID)
		if ident.Type != PermissionsType || id == 0 {
			return nil, internal.NewUnprocessableError([]internal.ValidationError{{
				Field:   PermissionsType,
				Message: "The %s is invalid.",
				Args:    []any{PermissionsType},
				Code:    "INVALID",
				Pointer: pointer,
			}})
		}
		ids = append(ids, id)
	}
	return ids, nil
}
