package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
	mock "github.com/stripe/stripe-mock/param"
)

// mockStripe answers payment intent creation and retrieval and remembers the amount it
// was asked for, so a later webhook can report exactly that.
type mockStripe struct {
	mu      sync.Mutex
	seq     int
	amounts map[string]string
}

func (m *mockStripe) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := mock.ParseParams(r)
		if err != nil {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}

		amount, _ := params["amount"].(string)
		if amount == "" || params["currency"] != "usd" {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		m.seq++
		id := fmt.Sprintf("pi_%d", m.seq)
		if m.amounts == nil {
			m.amounts = make(map[string]string)
		}
		m.amounts[id] = amount
		m.mu.Unlock()

		pi := map[string]any{
			"id":            id,
			"object":        "payment_intent",
			"amount":        json.Number(amount),
			"currency":      "usd",
			"client_secret": id + "_secret",
		}
		web.Respond(context.Background(), w, pi, http.StatusOK)
	})

	show := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		amount := m.amount(id)
		if amount == "" {
			web.Respond(context.Background(), w, nil, http.StatusNotFound)
			return
		}

		pi := map[string]any{
			"id":            id,
			"object":        "payment_intent",
			"amount":        json.Number(amount),
			"currency":      "usd",
			"client_secret": id + "_secret",
		}
		web.Respond(context.Background(), w, pi, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/v1/payment_intents", create).Methods(http.MethodPost)
	r.Handle("/v1/payment_intents/{id}", show).Methods(http.MethodGet)
	return r
}

func (m *mockStripe) amount(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.amounts[id]
}

// stripeWebhook builds a signed payment_intent event the way Stripe
// delivers it.
func stripeWebhook(t *testing.T, secret, typ, intentID string, amount string) ([]byte, string) {
	t.Helper()

	evt := map[string]any{
		"id":          "evt_" + intentID,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        typ,
		"data": map[string]any{
			"object": map[string]any{
				"id":       intentID,
				"object":   "payment_intent",
				"amount":   json.Number(amount),
				"currency": "usd",
			},
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	return b, signed.Header
}
