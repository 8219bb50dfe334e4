package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/irsalhamdi/e-commerce-shop/core/pricing"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

type Paypal struct {
	client *paypal.Client
}

func NewPaypal(client *paypal.Client) *Paypal {
	return &Paypal{client: client}
}

func (p *Paypal) Name() string { return "paypal" }

// CreateIntent creates a CAPTURE order; the buyer approves it at ApproveURL.
func (p *Paypal) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, receipt string) (Intent, error) {
	currency = strings.ToUpper(currency)

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: receipt,
		Description: "Order " + receipt,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    pricing.Format(amount, currency),
		},
	}}

	ord, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, &paypal.ApplicationContext{})
	if err != nil {
		return Intent{}, fmt.Errorf("creating paypal order: %w", err)
	}

	in := Intent{
		Provider:       p.Name(),
		GatewayOrderID: ord.ID,
		Amount:         amount,
		Currency:       currency,
		ApproveURL:     approveURL(ord.Links),
	}

	return in, nil
}

func (p *Paypal) FetchIntent(ctx context.Context, gatewayOrderID string) (Intent, error) {
	ord, err := p.client.GetOrder(ctx, gatewayOrderID)
	if err != nil {
		return Intent{}, fmt.Errorf("fetching paypal order[%s]: %w", gatewayOrderID, err)
	}
	if len(ord.PurchaseUnits) == 0 || ord.PurchaseUnits[0].Amount == nil {
		return Intent{}, fmt.Errorf("paypal order[%s] has no amount", gatewayOrderID)
	}

	a := ord.PurchaseUnits[0].Amount
	amount, err := decimal.NewFromString(a.Value)
	if err != nil {
		return Intent{}, fmt.Errorf("paypal order[%s] amount %q: %w", gatewayOrderID, a.Value, err)
	}

	return Intent{
		Provider:       p.Name(),
		GatewayOrderID: ord.ID,
		Amount:         amount,
		Currency:       strings.ToUpper(a.Currency),
		ApproveURL:     approveURL(ord.Links),
	}, nil
}

func approveURL(links []paypal.Link) string {
	for _, l := range links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}
