package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/irsalhamdi/e-commerce-shop/core/pricing"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// Stripe creates PaymentIntents. Settlement arrives through the signed
// webhook, see ParseStripeWebhook.
type Stripe struct {
	api *stripecl.API
}

// NewStripe builds a client for secret. A non empty url replaces the API
// backend, which is how tests point it at a fake.
func NewStripe(secret, url string) *Stripe {
	var backends *stripe.Backends
	if url != "" {
		cfg := &stripe.BackendConfig{
			URL:               stripe.String(url),
			MaxNetworkRetries: stripe.Int64(0),
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
		}
	}

	api := &stripecl.API{}
	api.Init(secret, backends)

	return &Stripe{api: api}
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, receipt string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(pricing.MinorUnits(amount, currency)),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String("Order " + receipt),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_reference", receipt)

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("creating stripe payment intent: %w", err)
	}

	return Intent{
		Provider:       s.Name(),
		GatewayOrderID: pi.ID,
		Amount:         amount,
		Currency:       strings.ToUpper(currency),
		ClientSecret:   pi.ClientSecret,
	}, nil
}

func (s *Stripe) FetchIntent(ctx context.Context, gatewayOrderID string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(gatewayOrderID, params)
	if err != nil {
		return Intent{}, fmt.Errorf("fetching stripe payment intent[%s]: %w", gatewayOrderID, err)
	}

	currency := strings.ToUpper(string(pi.Currency))
	return Intent{
		Provider:       s.Name(),
		GatewayOrderID: pi.ID,
		Amount:         pricing.FromMinorUnits(pi.Amount, currency),
		Currency:       currency,
		ClientSecret:   pi.ClientSecret,
	}, nil
}

// Notification is a gateway signed statement about the outcome of a payment.
type Notification struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Amount           decimal.Decimal
	Currency         string
	Succeeded        bool
}

const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
)

// ParseStripeWebhook authenticates a webhook delivery and extracts the
// payment outcome. ok is false for event types that settle nothing.
func ParseStripeWebhook(payload []byte, header, secret string) (n Notification, ok bool, err error) {
	event, err := webhook.ConstructEvent(payload, header, secret)
	if err != nil {
		return Notification{}, false, fmt.Errorf("stripe event: %v: %w", err, ErrVerificationFailed)
	}

	switch event.Type {
	case eventIntentSucceeded, eventIntentFailed:
	default:
		return Notification{}, false, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return Notification{}, false, fmt.Errorf("decoding stripe payment intent: %w", err)
	}

	currency := strings.ToUpper(string(pi.Currency))
	n = Notification{
		GatewayOrderID:   pi.ID,
		GatewayPaymentID: pi.ID,
		Amount:           pricing.FromMinorUnits(pi.Amount, currency),
		Currency:         currency,
		Succeeded:        event.Type == eventIntentSucceeded,
	}
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		n.GatewayPaymentID = pi.LatestCharge.ID
	}

	return n, true, nil
}
