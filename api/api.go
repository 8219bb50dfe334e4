package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/e-commerce-shop/api/middleware"
	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/api/weberr"
	"github.com/irsalhamdi/e-commerce-shop/core/auth"
	"github.com/irsalhamdi/e-commerce-shop/core/cart"
	"github.com/irsalhamdi/e-commerce-shop/core/checkout"
	"github.com/irsalhamdi/e-commerce-shop/core/order"
	"github.com/irsalhamdi/e-commerce-shop/core/product"
	"github.com/irsalhamdi/e-commerce-shop/core/user"
	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/irsalhamdi/e-commerce-shop/metrics"
	"github.com/irsalhamdi/e-commerce-shop/rate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin    string
	Log           logrus.FieldLogger
	DB            *sqlx.DB
	Session       *scs.SessionManager
	Carts         *cart.Store
	Checkout      *checkout.Service
	Metrics       *metrics.Metrics
	Limiter       *rate.Limiter
	StripeWebhook string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log, auth.Identify(cfg.Session)))
	a.mw = append(a.mw, middleware.Metrics(cfg.Metrics))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)

	// Checkout and payment calls reach the gateway and lock stock rows, so
	// they are throttled per user on top of authentication.
	limited := []web.Middleware{authen}
	if cfg.Limiter != nil {
		limited = append(limited, middleware.RateLimit(cfg.Limiter))
	}

	a.Router.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	a.Handle(http.MethodGet, "/readiness", handleReadiness(cfg.DB))

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)

	a.Handle(http.MethodGet, "/products/{id}", product.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/products", product.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/products", product.HandleCreate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.Carts), authen)
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.Carts), authen)
	a.Handle(http.MethodPut, "/cart/items", cart.HandleCreateItem(cfg.Carts), authen)
	a.Handle(http.MethodPatch, "/cart/items/{product_id}", cart.HandleUpdateItem(cfg.Carts), authen)
	a.Handle(http.MethodDelete, "/cart/items/{product_id}", cart.HandleDeleteItem(cfg.Carts), authen)

	a.Handle(http.MethodPost, "/orders/checkout", checkout.HandleCheckout(cfg.Checkout), limited...)
	a.Handle(http.MethodGet, "/orders/{id}/transaction", order.HandleShowTransaction(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders", order.HandleListOwned(cfg.DB), authen)

	a.Handle(http.MethodPost, "/payments/intent", checkout.HandleCreatePayment(cfg.Checkout), limited...)
	a.Handle(http.MethodPost, "/payments/verify", checkout.HandleVerify(cfg.Checkout), limited...)
	if cfg.StripeWebhook != "" {
		a.Handle(http.MethodPost, "/payments/stripe/webhook", checkout.HandleStripeWebhook(cfg.Checkout, cfg.StripeWebhook))
	}

	a.Handle(http.MethodGet, "/admin/orders", order.HandleList(cfg.DB), admin)
	a.Handle(http.MethodPost, "/admin/orders/{id}/cancel", checkout.HandleCancel(cfg.Checkout), admin)

	return a.Router
}

func handleReadiness(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		if err := database.StatusCheck(ctx, db); err != nil {
			return weberr.Unavailable(err)
		}

		return web.Respond(ctx, w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
