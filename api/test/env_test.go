package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-commerce-shop/api"
	"github.com/irsalhamdi/e-commerce-shop/core/auth"
	"github.com/irsalhamdi/e-commerce-shop/core/cart"
	"github.com/irsalhamdi/e-commerce-shop/core/checkout"
	"github.com/irsalhamdi/e-commerce-shop/core/payment"
	"github.com/irsalhamdi/e-commerce-shop/database/dbtest"
	"github.com/irsalhamdi/e-commerce-shop/metrics"
	"github.com/irsalhamdi/e-commerce-shop/rate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// TestEnv is the whole service on top of a disposable Postgres, with Stripe
// replaced by an in-process fake.
type TestEnv struct {
	*httptest.Server
	DB            *sqlx.DB
	Gateway       *payment.Adapter
	Stripe        *mockStripe
	WebhookSecret string
	AdminEmail    string
	AdminPass     string
}

func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	db := dbtest.NewUnit(t, name)

	log := logrus.New()
	log.SetOutput(io.Discard)

	env := TestEnv{
		DB:            db,
		Stripe:        &mockStripe{},
		WebhookSecret: "whsec_test",
		AdminEmail:    "admin@example.com",
		AdminPass:     "admin-password",
	}

	if _, err := auth.SeedAdmin(context.Background(), db, env.AdminEmail, env.AdminPass); err != nil {
		return nil, fmt.Errorf("seeding admin: %w", err)
	}

	stripeSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stripeSrv.Close)

	env.Gateway = payment.NewAdapter(payment.NewStripe("sk_test_123", stripeSrv.URL), payment.Config{
		SigningSecret:    "signing-secret",
		Timeout:          5 * time.Second,
		BreakerFailures:  5,
		BreakerOpenDelay: time.Second,
	}, log)

	carts := cart.NewStore(db, nil, log)
	svc := checkout.NewService(checkout.NewPGStore(db, carts), env.Gateway, "USD", nil, log)

	mux := api.APIMux(api.APIConfig{
		Log:           log,
		DB:            db,
		Session:       scs.New(),
		Carts:         carts,
		Checkout:      svc,
		Metrics:       metrics.New(),
		Limiter:       rate.NewLimiter(100, time.Minute, 100),
		StripeWebhook: env.WebhookSecret,
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	env.Server.Client().Jar = jar

	return &env, nil
}

// Login opens a session for email in the server client's cookie jar.
func Login(srv *httptest.Server, email, pass string) error {
	body := map[string]string{"email": email, "password": pass}
	status, err := Do(srv, http.MethodPost, "/auth/login", body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login %s: status code %d", email, status)
	}
	return nil
}

func Logout(srv *httptest.Server) error {
	status, err := Do(srv, http.MethodPost, "/auth/logout", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("logout: status code %d", status)
	}
	return nil
}

// Signup registers a customer and leaves it logged in.
func Signup(srv *httptest.Server, name, email, pass string) error {
	body := map[string]string{"name": name, "email": email, "password": pass, "passwordConfirm": pass}
	status, err := Do(srv, http.MethodPost, "/auth/signup", body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("signup %s: status code %d", email, status)
	}
	return nil
}

// Do sends body as JSON and decodes the response, error bodies included,
// into out when it is not nil. It returns the status code.
func Do(srv *httptest.Server, method, path string, body, out interface{}) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}

	r, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	w, err := srv.Client().Do(r)
	if err != nil {
		return 0, err
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			return w.StatusCode, fmt.Errorf("decoding %s %s: %w", method, path, err)
		}
	}

	return w.StatusCode, nil
}
