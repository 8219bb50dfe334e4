package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/metrics"
	"github.com/zenazn/goji/web/mutil"
)

// Metrics records count and latency per route template, so path ids do
// not explode the label cardinality.
func Metrics(m *metrics.Metrics) web.Middleware {
	mw := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, web.Route(r), status, time.Since(start))

			return err
		}
		return h
	}
	return mw
}
