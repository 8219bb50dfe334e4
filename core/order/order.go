package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidState  = errors.New("order is not in a valid state for this operation")
	ErrInvalidStatus = errors.New("unknown order status")
)

type Status string

const (
	PendingPayment Status = "PENDING_PAYMENT"
	Placed         Status = "PLACED"
	PaymentFailed  Status = "PAYMENT_FAILED"
	Cancelled      Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	PendingPayment: {Placed, PaymentFailed, Cancelled},
	PaymentFailed:  {Cancelled},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// PLACED and CANCELLED are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case PendingPayment, Placed, PaymentFailed, Cancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Order is immutable after creation apart from Status and the gateway link.
type Order struct {
	ID              string          `json:"id" db:"order_id"`
	Reference       string          `json:"reference" db:"reference"`
	UserID          string          `json:"userId" db:"user_id"`
	Status          Status          `json:"status" db:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Currency        string          `json:"currency" db:"currency"`
	ShippingAddress string          `json:"shippingAddress" db:"shipping_address"`
	GatewayOrderID  *string         `json:"gatewayOrderId,omitempty" db:"gateway_order_id"`
	OrderDate       time.Time       `json:"orderDate" db:"order_date"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
	Lines           []Line          `json:"lines" db:"-"`
}

// Line carries the price frozen at checkout, never the current catalog price.
type Line struct {
	OrderID      string          `json:"-" db:"order_id"`
	ProductID    string          `json:"productId" db:"product_id"`
	Quantity     int             `json:"quantity" db:"quantity"`
	PriceAtOrder decimal.Decimal `json:"priceAtOrder" db:"price_at_order"`
}

type TxStatus string

const (
	TxSuccess TxStatus = "SUCCESS"
	TxFailed  TxStatus = "FAILED"
	TxPending TxStatus = "PENDING"
)

// Transaction is the append-only payment record of an order.
type Transaction struct {
	ID               string          `json:"id" db:"transaction_id"`
	OrderID          string          `json:"orderId" db:"order_id"`
	GatewayOrderID   string          `json:"gatewayOrderId" db:"gateway_order_id"`
	GatewayPaymentID string          `json:"gatewayPaymentId" db:"gateway_payment_id"`
	AmountPaid       decimal.Decimal `json:"amountPaid" db:"amount_paid"`
	Currency         string          `json:"currency" db:"currency"`
	Status           TxStatus        `json:"status" db:"status"`
	Signature        string          `json:"-" db:"signature"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
}
