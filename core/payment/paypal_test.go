package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

func fakePaypal(t *testing.T) *httptest.Server {
	t.Helper()

	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "A21AA",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	orders := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Intent string                       `json:"intent"`
			Units  []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in.Units) != 1 {
			http.Error(w, "bad order", http.StatusBadRequest)
			return
		}
		if in.Intent != "CAPTURE" || in.Units[0].Amount.Value != "25.50" || in.Units[0].ReferenceID != "ORD-1" {
			http.Error(w, "unexpected order", http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "5O190127TN364715T",
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", "rel": "approve", "method": "GET"},
			},
		})
	})

	show := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     mux.Vars(r)["id"],
			"status": "CREATED",
			"purchase_units": []map[string]interface{}{{
				"reference_id": "ORD-1",
				"amount":       map[string]string{"currency_code": "USD", "value": "25.50"},
			}},
			"links": []map[string]string{
				{"href": "https://www.sandbox.paypal.com/checkoutnow?token=" + mux.Vars(r)["id"], "rel": "approve", "method": "GET"},
			},
		})
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods(http.MethodPost)
	r.Handle("/v2/checkout/orders", orders).Methods(http.MethodPost)
	r.Handle("/v2/checkout/orders/{id}", show).Methods(http.MethodGet)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestPaypalCreateIntent(t *testing.T) {
	srv := fakePaypal(t)

	client, err := paypal.NewClient("client", "secret", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	in, err := NewPaypal(client).CreateIntent(context.Background(), decimal.RequireFromString("25.5"), "usd", "ORD-1")
	if err != nil {
		t.Fatal(err)
	}

	if in.GatewayOrderID != "5O190127TN364715T" || in.Currency != "USD" {
		t.Fatalf("unexpected intent %+v", in)
	}
	if in.ApproveURL == "" {
		t.Fatal("missing approve url")
	}
}

func TestPaypalFetchIntent(t *testing.T) {
	srv := fakePaypal(t)

	client, err := paypal.NewClient("client", "secret", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	in, err := NewPaypal(client).FetchIntent(context.Background(), "5O190127TN364715T")
	if err != nil {
		t.Fatal(err)
	}

	if in.GatewayOrderID != "5O190127TN364715T" || in.Currency != "USD" || !in.Amount.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("unexpected intent %+v", in)
	}
	if in.ApproveURL == "" {
		t.Fatal("missing approve url")
	}
}
