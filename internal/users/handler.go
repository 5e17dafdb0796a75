package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
	"github.com/scholaris-sis/scholaris-sis/internal/catalog"
	"github.com/scholaris-sis/scholaris-sis/internal/platform/httpx"
	"github.com/scholaris-sis/scholaris-sis/internal/shared"
)

// Handler manages user directory endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireDescriptor(authz.Descriptor(catalog.PermUserRead, catalog.PermUserManage)))
		r.Get("/users", h.listUsers)
	})
}

type roleSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type userResponse struct {
	ID           int64         `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	SchoolID     *int64        `json:"school_id"`
	IsSuperAdmin bool          `json:"is_super_admin"`
	IsActive     bool          `json:"is_active"`
	Roles        []roleSummary `json:"roles"`
	CreatedAt    time.Time     `json:"created_at"`
}

type listResponse struct {
	Users      []userResponse    `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := authz.ClaimsFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	schoolID, err := requestedSchool(r, claims)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	p := shared.ParsePagination(r, 25)
	users, total, err := h.service.ListUsers(r.Context(), claims, schoolID, r.URL.Query().Get("q"), p)
	if err != nil {
		if errors.Is(err, ErrSchoolForbidden) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "school out of scope")
			return
		}
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := listResponse{
		Users:      make([]userResponse, 0, len(users)),
		Pagination: shared.NewPagination(p.Page, p.PerPage, total),
	}
	for _, user := range users {
		resp.Users = append(resp.Users, toResponse(user))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// requestedSchool resolves the school scope of a listing request. Tenant
// users default to their own school; superusers must name one.
func requestedSchool(r *http.Request, claims authz.ClaimSet) (int64, error) {
	raw := r.URL.Query().Get("school_id")
	if raw == "" {
		if claims.SchoolID != nil {
			return *claims.SchoolID, nil
		}
		return 0, errors.New("school_id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("school_id must be a positive integer")
	}
	return id, nil
}

func toResponse(user UserWithRoles) userResponse {
	resp := userResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		SchoolID:     user.SchoolID,
		IsSuperAdmin: user.IsSuperAdmin,
		IsActive:     user.IsActive,
		Roles:        make([]roleSummary, 0, len(user.Roles)),
		CreatedAt:    user.CreatedAt,
	}
	for _, role := range user.Roles {
		resp.Roles = append(resp.Roles, roleSummary{ID: role.ID, Name: role.Name})
	}
	return resp
}
