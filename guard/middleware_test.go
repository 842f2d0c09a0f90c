package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sentriview/go-session-core/guard"
	"github.com/sentriview/go-session-core/rbac"
	"github.com/sentriview/go-session-core/session"
	"github.com/sentriview/go-session-core/session/memstore"
)

type middlewareFixture struct {
	store      *memstore.Store
	middleware *guard.Middleware
	router     chi.Router
}

func setupMiddlewareFixture(t *testing.T) *middlewareFixture {
	t.Helper()

	store := memstore.New("svw")
	middleware, err := guard.NewMiddleware(store)
	require.NoError(t, err)

	render := func(w http.ResponseWriter, r *http.Request) {
		sess, ok := guard.SessionFromContext(r.Context())
		require.True(t, ok, "authorized handlers must see the session")
		w.Write([]byte("hello " + string(sess.Role()))) //nolint:errcheck
	}

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(middleware.Protect(guard.RouteConfig{
			RequireAuth:  true,
			AllowedRoles: []rbac.Role{rbac.RoleAdminMaster, rbac.RoleAdmin},
		}))
		r.Get("/admin/dashboard", render)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Protect(guard.RouteConfig{RequireAuth: true}))
		r.Get("/live", render)
	})

	return &middlewareFixture{store: store, middleware: middleware, router: router}
}

func (f *middlewareFixture) login(t *testing.T, role rbac.Role) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), authenticatedAs(role)))
}

func (f *middlewareFixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestProtectAuthorizedRendersWithSession(t *testing.T) {
	f := setupMiddlewareFixture(t)
	f.login(t, rbac.RoleAdmin)

	rec := f.get(t, "/admin/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello admin", rec.Body.String())
}

func TestProtectAnonymousRedirectsToLoginWithReturnPath(t *testing.T) {
	f := setupMiddlewareFixture(t)

	rec := f.get(t, "/admin/dashboard?tab=alerts")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, rbac.PathLogin, location.Path)
	require.Equal(t, "/admin/dashboard?tab=alerts", location.Query().Get(guard.ReturnParam))
}

func TestProtectWrongRoleRedirectsToLandingNotLogin(t *testing.T) {
	f := setupMiddlewareFixture(t)
	f.login(t, rbac.RoleClientViewer)

	rec := f.get(t, "/admin/dashboard")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, rbac.LandingPath(rbac.RoleClientViewer), rec.Header().Get("Location"))

	sess, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, sess.IsAuthenticated, "an unauthorized verdict never ends the session")
}

func TestProtectCorruptedSessionWipesAndRedirects(t *testing.T) {
	f := setupMiddlewareFixture(t)
	require.NoError(t, f.store.Save(context.Background(), session.Session{
		User:            &session.UserProfile{ID: "u1"}, // no role
		AccessToken:     "access-1",
		RefreshToken:    "refresh-1",
		IsAuthenticated: true,
	}))

	rec := f.get(t, "/live")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, rbac.PathLogin, location.Path)
	require.Equal(t, 0, f.store.Len(), "corrupted credentials must be wiped")
}

func TestProtectCancelledRequestGetsNoVerdict(t *testing.T) {
	f := setupMiddlewareFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil).WithContext(ctx)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "no redirect or error may be written for a dead request")
	require.Zero(t, rec.Body.Len())
}

func TestReturnPath(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{name: "same-site path is honored", next: "/installations", want: "/installations"},
		{name: "missing parameter falls back to root", next: "", want: rbac.PathRoot},
		{name: "absolute url is rejected", next: "https://evil.example/phish", want: rbac.PathRoot},
		{name: "protocol-relative url is rejected", next: "//evil.example", want: rbac.PathRoot},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := rbac.PathLogin
			if tc.next != "" {
				target += "?" + guard.ReturnParam + "=" + url.QueryEscape(tc.next)
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			require.Equal(t, tc.want, guard.ReturnPath(req))
		})
	}
}

func TestNewMiddlewareValidatesDependencies(t *testing.T) {
	_, err := guard.NewMiddleware(nil)
	require.Error(t, err)
}
