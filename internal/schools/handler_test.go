package schools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
	"github.com/scholaris-sis/scholaris-sis/internal/catalog"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	svc := NewService(seedRepo())
	handler := NewHandler(slog.Default(), svc, authz.Middleware{Resolver: authz.NewResolver()})
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func doAs(t *testing.T, router chi.Router, cs authz.ClaimSet, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(authz.ContextWithClaims(req.Context(), cs))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestListSchoolsRouteAdmitsReader(t *testing.T) {
	router := newTestRouter(t)
	actor := authz.NewClaimSet(10, schoolPtr(1), false, []string{catalog.PermSchoolRead})

	rr := doAs(t, router, actor, "/schools")
	require.Equal(t, http.StatusOK, rr.Code)

	var schools []schoolResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &schools))
	require.Len(t, schools, 1)
	require.Equal(t, int64(1), schools[0].ID)
}

func TestListSchoolsRouteDeniesWithoutPermission(t *testing.T) {
	router := newTestRouter(t)
	actor := authz.NewClaimSet(10, schoolPtr(1), false, []string{catalog.PermStudentRead})

	rr := doAs(t, router, actor, "/schools")
	require.Equal(t, http.StatusForbidden, rr.Code)

	var problem struct {
		RequiredPermissions []string `json:"required_permissions"`
		RequireAll          bool     `json:"require_all"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.ElementsMatch(t, []string{catalog.PermSchoolRead, catalog.PermSchoolManage}, problem.RequiredPermissions)
	require.False(t, problem.RequireAll)
}

func TestGetSchoolRouteAdmitsManager(t *testing.T) {
	router := newTestRouter(t)
	actor := authz.NewClaimSet(10, schoolPtr(2), false, []string{catalog.PermSchoolManage})

	rr := doAs(t, router, actor, "/schools/2")
	require.Equal(t, http.StatusOK, rr.Code)

	var school schoolResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &school))
	require.Equal(t, "Riverdale Academy", school.Name)
}

func TestSchoolRoutesRequireCredential(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/schools", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
