package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/api/weberr"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
	"github.com/irsalhamdi/e-commerce-shop/rate"
)

// RateLimit throttles callers per authenticated user, falling back to the
// remote address for anonymous requests.
func RateLimit(l *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !l.Check(clientKey(ctx, r)) {
				return weberr.TooManyRequests(errors.New("rate limit exceeded"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func clientKey(ctx context.Context, r *http.Request) string {
	if clm, err := claims.Get(ctx); err == nil {
		return "user:" + clm.UserID
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
