package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-commerce-shop/api/middleware"
	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
	"github.com/sirupsen/logrus"
)

func chain(session *scs.SessionManager, h web.Handler, mw ...web.Middleware) http.Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)

	all := append([]web.Middleware{LoadAndSave(session), middleware.Errors(log)}, mw...)
	handler := web.WrapMiddleware(all, h)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = handler(r.Context(), w, r)
	})
}

func TestSessionLifecycle(t *testing.T) {
	session := scs.New()

	loginAs := func(role string) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			session.Put(ctx, userIDKey, "u1")
			session.Put(ctx, roleKey, role)
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}
	}

	var seen claims.Claims
	whoami := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		seen, _ = claims.Get(ctx)
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	// Anonymous callers are turned away.
	w := httptest.NewRecorder()
	chain(session, whoami, Authenticate(session)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	chain(session, loginAs(claims.RoleCustomer)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "" {
		t.Fatalf("expected a session cookie, got %v", cookies)
	}

	withCookie := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(cookies[0])
		return r
	}

	w = httptest.NewRecorder()
	chain(session, whoami, Authenticate(session)).ServeHTTP(w, withCookie())
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if seen != (claims.Claims{UserID: "u1", Role: claims.RoleCustomer}) {
		t.Fatalf("unexpected claims %+v", seen)
	}

	w = httptest.NewRecorder()
	chain(session, whoami, Admin(session)).ServeHTTP(w, withCookie())
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a customer on an admin route, got %d", w.Code)
	}
}
