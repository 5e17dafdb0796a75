package rbac

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
	"github.com/scholaris-sis/scholaris-sis/internal/catalog"
	"github.com/scholaris-sis/scholaris-sis/internal/platform/httpx"
)

// Handler exposes the role and assignment administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validator: validator.New()}
}

// MountRoutes registers role management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireDescriptor(authz.Descriptor(catalog.PermRoleRead, catalog.PermRoleManage)))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{roleID}", h.getRole)
		r.Get("/roles/{roleID}/permissions", h.listRolePermissions)
		r.Get("/permissions", h.listCatalog)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(catalog.PermRoleManage))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{roleID}", h.updateRole)
		r.Delete("/roles/{roleID}", h.deleteRole)
		r.Put("/roles/{roleID}/permissions", h.setRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(catalog.PermUserManage))
		r.Post("/users/{userID}/roles", h.assignRoles)
		r.Put("/users/{userID}/roles", h.replaceRoles)
		r.Delete("/users/{userID}/roles", h.removeAllRoles)
		r.Delete("/users/{userID}/roles/{roleID}", h.removeRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireDescriptor(authz.Descriptor(catalog.PermUserRead, catalog.PermUserManage)))
		r.Get("/users/{userID}/permissions", h.userPermissions)
	})
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SchoolID    *int64 `json:"school_id,omitempty"`
	System      bool   `json:"system"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		SchoolID:    role.SchoolID,
		System:      role.IsSystem(),
	}
}

func toRoleResponses(roles []Role) []roleResponse {
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = toRoleResponse(role)
	}
	return out
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())

	if raw := r.URL.Query().Get("school_id"); raw != "" {
		schoolID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid school_id")
			return
		}
		roles, err := h.service.ListAvailableRoles(r.Context(), actor, schoolID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"roles": toRoleResponses(roles)})
		return
	}

	if actor.IsSuperAdmin {
		roles, err := h.service.ListAllRoles(r.Context(), actor)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"roles": toRoleResponses(roles)})
		return
	}

	if actor.SchoolID == nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "school_id required")
		return
	}
	roles, err := h.service.ListAvailableRoles(r.Context(), actor, *actor.SchoolID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": toRoleResponses(roles)})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), actor, roleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

type rolePayload struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	SchoolID    *int64 `json:"school_id"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	var payload rolePayload
	if !h.decode(w, r, &payload) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), actor, payload.Name, payload.Description, payload.SchoolID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var payload rolePayload
	if !h.decode(w, r, &payload) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), actor, roleID, payload.Name, payload.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), actor, roleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	keys, err := h.service.RolePermissions(r.Context(), actor, roleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": keys})
}

type permissionsPayload struct {
	Permissions []string `json:"permissions" validate:"required"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var payload permissionsPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), actor, roleID, payload.Permissions); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignPayload struct {
	RoleIDs []int64 `json:"role_ids" validate:"required,min=1"`
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var payload assignPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.AssignRoles(r.Context(), actor, userID, payload.RoleIDs); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type replacePayload struct {
	RoleIDs []int64 `json:"role_ids"`
}

func (h *Handler) replaceRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var payload replacePayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.ReplaceRoles(r.Context(), actor, userID, payload.RoleIDs); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), actor, userID, roleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeAllRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.service.RemoveAllRoles(r.Context(), actor, userID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ClaimsFromContext(r.Context())
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	// Boundary check via the role listing before exposing the keys.
	if _, err := h.service.UserRoleIDs(r.Context(), actor, userID); err != nil {
		h.respondError(w, err)
		return
	}
	keys, err := h.service.ResolveUserPermissions(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": keys})
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	type groupResponse struct {
		Name string   `json:"name"`
		Keys []string `json:"keys"`
	}
	groups := catalog.Groups()
	out := make([]groupResponse, len(groups))
	for i, g := range groups {
		out[i] = groupResponse{Name: g.Name, Keys: g.Keys}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": out})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrTenantMismatch):
		httpx.Problem(w, http.StatusForbidden, "Tenant Mismatch", err.Error())
	case errors.Is(err, ErrUnknownPermission):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("rbac request failed", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
