package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/api/weberr"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
)

const (
	userIDKey = "userID"
	roleKey   = "role"
)

// LoadAndSave is scs.LoadAndSave for web.Handler chains. The session cookie
// is committed right before the first byte of the response goes out.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var token string
			if c, err := r.Cookie(session.Cookie.Name); err == nil {
				token = c.Value
			}

			ctx, err := session.Load(ctx, token)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			sw := &sessionWriter{ResponseWriter: w, ctx: ctx, session: session}
			err = handler(ctx, sw, r.WithContext(ctx))

			if !sw.committed {
				sw.commit()
			}
			if err == nil && sw.err != nil {
				return fmt.Errorf("committing session: %w", sw.err)
			}
			return err
		}
		return h
	}
	return m
}

type sessionWriter struct {
	http.ResponseWriter
	ctx       context.Context
	session   *scs.SessionManager
	committed bool
	err       error
}

func (sw *sessionWriter) commit() {
	sw.committed = true

	switch sw.session.Status(sw.ctx) {
	case scs.Modified:
		token, expiry, err := sw.session.Commit(sw.ctx)
		if err != nil {
			sw.err = err
			return
		}
		sw.session.WriteSessionCookie(sw.ctx, sw.ResponseWriter, token, expiry)
	case scs.Destroyed:
		sw.session.WriteSessionCookie(sw.ctx, sw.ResponseWriter, "", time.Time{})
	}
}

func (sw *sessionWriter) WriteHeader(code int) {
	if !sw.committed {
		sw.commit()
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	if !sw.committed {
		sw.commit()
	}
	return sw.ResponseWriter.Write(b)
}

// Authenticate rejects requests without a logged in session and puts the
// caller's claims in the context.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, err := fromSession(ctx, session)
			if err != nil {
				return weberr.NotAuthorized(err)
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

// Admin is Authenticate restricted to the admin role.
func Admin(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, err := fromSession(ctx, session)
			if err != nil {
				return weberr.NotAuthorized(err)
			}

			if err := clm.Require(claims.RoleAdmin); err != nil {
				return weberr.Forbidden(err)
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

// Identify reads the caller from the session without requiring one. The
// session must already be loaded, see LoadAndSave.
func Identify(session *scs.SessionManager) func(ctx context.Context) (claims.Claims, bool) {
	return func(ctx context.Context) (claims.Claims, bool) {
		clm, err := fromSession(ctx, session)
		return clm, err == nil
	}
}

func fromSession(ctx context.Context, session *scs.SessionManager) (claims.Claims, error) {
	clm := claims.Claims{
		UserID: session.GetString(ctx, userIDKey),
		Role:   session.GetString(ctx, roleKey),
	}
	if clm.UserID == "" {
		return claims.Claims{}, errors.New("user not authenticated")
	}
	return clm, nil
}
