package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/irsalhamdi/e-commerce-shop/random"
	"github.com/shopspring/decimal"
)

// Sandbox is an in-process gateway for development and tests. It hands out
// random order ids and never fails.
type Sandbox struct{}

func (Sandbox) Name() string { return "sandbox" }

func (Sandbox) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, receipt string) (Intent, error) {
	id, err := random.String(14)
	if err != nil {
		return Intent{}, fmt.Errorf("generating sandbox order id: %w", err)
	}

	return Intent{
		Provider:       "sandbox",
		GatewayOrderID: "pg_order_" + id,
		Amount:         amount,
		Currency:       strings.ToUpper(currency),
	}, nil
}

// FetchIntent knows nothing but the id; the adapter fills in the amount.
func (Sandbox) FetchIntent(ctx context.Context, gatewayOrderID string) (Intent, error) {
	return Intent{Provider: "sandbox", GatewayOrderID: gatewayOrderID}, nil
}
