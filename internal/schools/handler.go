package schools

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
)

// Handler manages school endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers school routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireDescriptor(authz.Descriptor(catalog.PermSchoolRead, catalog.PermSchoolManage)))
		r.Get("/schools", h.listSchools)
		r.Get("/schools/{schoolID}", h.getSchool)
	})
}

type schoolResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Timezone  string    `json:"timezone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) listSchools(w http.ResponseWriter, r *http.Request) {
	claims, ok := authz.ClaimsFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	schools, err := h.service.ListSchools(r.Context(), claims)
	if err != nil {
		h.logger.Error("list schools failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]schoolResponse, 0, len(schools))
	for _, school := range schools {
		resp = append(resp, toResponse(school))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schools": resp})
}

func (h *Handler) getSchool(w http.ResponseWriter, r *http.Request) {
	claims, ok := authz.ClaimsFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "schoolID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "school id must be a positive integer")
		return
	}
	school, err := h.service.GetSchool(r.Context(), claims, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrSchoolForbidden):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "school out of scope")
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "school not found")
		default:
			h.logger.Error("get school failed", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(school))
}

func toResponse(school School) schoolResponse {
	return schoolResponse{
		ID:        school.ID,
		Name:      school.Name,
		Code:      school.Code,
		Timezone:  school.Timezone,
		IsActive:  school.IsActive,
		CreatedAt: school.CreatedAt,
	}
}
