package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/scholaris-sis/scholaris-sis/internal/auth"
	_ "github.com/scholaris-sis/scholaris-sis/testing"
)

type stubRepo struct {
	users map[int64]*auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *stubRepo) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return user, nil
}

type stubPerms struct {
	perms map[int64][]string
}

func (s *stubPerms) ResolveUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	return append([]string(nil), s.perms[userID]...), nil
}

func newAuthStack(t *testing.T, users map[int64]*auth.User, perms map[int64][]string) (*auth.Handler, *auth.TokenIssuer) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	issuer := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "scholaris",
		Audience:      "scholaris-api",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}, &stubPerms{perms: perms})
	registry := auth.NewCredentialRegistry(redisClient, 24*time.Hour)
	service := auth.NewService(&stubRepo{users: users}, issuer, registry)
	return auth.NewHandler(nil, service), issuer
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func postJSON(t *testing.T, handler http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func mountAuth(h *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r
}

func seedUser(t *testing.T) map[int64]*auth.User {
	t.Helper()
	school := int64(3)
	return map[int64]*auth.User{
		7: {
			ID:           7,
			Email:        "teacher@school.test",
			PasswordHash: hashPassword(t, "correct-horse"),
			SchoolID:     &school,
			IsActive:     true,
		},
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	handler, issuer := newAuthStack(t, seedUser(t), map[int64][]string{7: {"Student.Read"}})
	router := mountAuth(handler)

	res := postJSON(t, router, "/auth/login", `{"email":"teacher@school.test","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	cs, err := issuer.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, int64(7), cs.UserID)
	require.Equal(t, []string{"Student.Read"}, cs.Permissions())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	handler, _ := newAuthStack(t, seedUser(t), nil)
	router := mountAuth(handler)

	res := postJSON(t, router, "/auth/login", `{"email":"teacher@school.test","password":"wrong-password"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	users := seedUser(t)
	users[7].IsActive = false
	handler, _ := newAuthStack(t, users, nil)
	router := mountAuth(handler)

	res := postJSON(t, router, "/auth/login", `{"email":"teacher@school.test","password":"correct-horse"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	handler, _ := newAuthStack(t, seedUser(t), nil)
	router := mountAuth(handler)

	res := postJSON(t, router, "/auth/login", `{"email":"not-an-email","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRefreshRotatesCredential(t *testing.T) {
	handler, _ := newAuthStack(t, seedUser(t), map[int64][]string{7: {"Student.Read"}})
	router := mountAuth(handler)

	login := postJSON(t, router, "/auth/login", `{"email":"teacher@school.test","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, login.Code)
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &pair))

	refresh := postJSON(t, router, "/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, refresh.Code)
	var rotated auth.TokenPair
	require.NoError(t, json.Unmarshal(refresh.Body.Bytes(), &rotated))
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The rotated-out credential must not be usable again.
	replay := postJSON(t, router, "/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, replay.Code)
}

func TestLogoutInvalidatesRefreshCredential(t *testing.T) {
	handler, _ := newAuthStack(t, seedUser(t), nil)
	router := mountAuth(handler)

	login := postJSON(t, router, "/auth/login", `{"email":"teacher@school.test","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, login.Code)
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &pair))

	logout := postJSON(t, router, "/auth/logout", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusNoContent, logout.Code)

	refresh := postJSON(t, router, "/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, refresh.Code)
}
