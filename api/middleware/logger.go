package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

// Identify reports the caller of a request, if there is one.
type Identify func(ctx context.Context) (claims.Claims, bool)

// Logger writes one line per request. Requests are keyed by route template
// so order and product ids stay out of the route field. identify may be nil.
func Logger(log logrus.FieldLogger, identify Identify) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			log := log

			if rid := ContextRequestID(ctx); rid != "" {
				log = log.WithField("req_id", rid)
			}

			log = log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteaddr": r.RemoteAddr,
			})

			// Asked before and after, so logout is attributed to the user
			// leaving and login to the one arriving.
			var (
				who   claims.Claims
				known bool
			)
			if identify != nil {
				who, known = identify(ctx)
			}

			log.Debug("started")
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			if identify != nil && !known {
				who, known = identify(ctx)
			}
			if known {
				log = log.WithFields(logrus.Fields{"user_id": who.UserID, "role": who.Role})
			}

			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}

			log = log.WithFields(logrus.Fields{
				"route":      web.Route(r),
				"statuscode": status,
				"bytes":      lw.BytesWritten(),
				"took_ms":    time.Since(start).Milliseconds(),
			})
			if status >= http.StatusInternalServerError {
				log.Warn("completed")
				return err
			}
			log.Info("completed")
			return err
		}
		return h
	}
	return m
}
