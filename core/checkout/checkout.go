// Package checkout turns a cart into an order and drives the order through
// payment. Each step runs as one atomic unit of the Store: it either fully
// commits or leaves no trace, so callers can always retry the whole step.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/core/cart"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
	"github.com/irsalhamdi/e-commerce-shop/core/events"
	"github.com/irsalhamdi/e-commerce-shop/core/inventory"
	"github.com/irsalhamdi/e-commerce-shop/core/order"
	"github.com/irsalhamdi/e-commerce-shop/core/payment"
	"github.com/irsalhamdi/e-commerce-shop/core/pricing"
	"github.com/irsalhamdi/e-commerce-shop/core/product"
	"github.com/irsalhamdi/e-commerce-shop/metrics"
	"github.com/irsalhamdi/e-commerce-shop/random"
	"github.com/irsalhamdi/e-commerce-shop/validate"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductUnavailable = errors.New("product is no longer available")

	// ErrPaymentNeedsReview reports a gateway confirmed payment for an order
	// that was no longer awaiting one. The order is left as is and an event
	// is recorded for an operator to refund or reinstate it.
	ErrPaymentNeedsReview = errors.New("payment received for an order not awaiting payment")
)

// InsufficientStockError names the first product that could not be reserved.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product[%s]: requested %d", e.ProductID, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return inventory.ErrInsufficientStock }

// PersistenceError means the checkout could not be stored. Nothing of the
// attempt survives and the caller may retry.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "checkout persistence failed: " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store runs units of work against orders, carts and stock.
type Store interface {
	Order(ctx context.Context, id string) (order.Order, error)
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is one unit of work. It is bound to the context Atomic was called with
// and everything done through it commits or rolls back together.
type Tx interface {
	CartLines(userID string) ([]cart.Line, error)
	ClearCart(userID string) error
	Products(ids []string) (map[string]product.Product, error)
	Reserve(productID string, qty int) error
	Release(productID string, qty int) error
	CreateOrder(ord order.Order) error
	LockOrder(id string) (order.Order, error)
	LockOrderByGateway(gatewayOrderID string) (order.Order, error)
	UpdateOrderStatus(id string, from, to order.Status) error
	LinkGateway(id, gatewayOrderID string) error
	CreateTransaction(txn order.Transaction) error
	RecordEvent(typ, aggregateID string, payload interface{}) error
}

// Gateway is the payment adapter as seen by the orchestrator.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, frozenTotal, requested decimal.Decimal, currency, receipt string) (payment.Intent, error)
	ResumePaymentIntent(ctx context.Context, frozenTotal, requested decimal.Decimal, currency, gatewayOrderID string) (payment.Intent, error)
	VerifySignature(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error
}

// States of an in-flight checkout, used in logs.
const (
	stateValidating      = "VALIDATING"
	stateReserving       = "RESERVING"
	statePersisting      = "PERSISTING"
	stateAwaitingPayment = "AWAITING_PAYMENT"
	stateFinalizing      = "FINALIZING"
	stateComplete        = "COMPLETE"
	stateFailed          = "FAILED"
)

type Request struct {
	ShippingAddress string `json:"shippingAddress" validate:"required,max=500"`
}

type PaymentRequest struct {
	OrderID  string          `json:"orderId" validate:"required,uuid"`
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
}

type Verification struct {
	OrderID          string           `json:"orderId" validate:"required,uuid"`
	GatewayOrderID   string           `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string           `json:"gatewayPaymentId" validate:"required"`
	Signature        string           `json:"signature" validate:"required"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
}

// OrderEvent is the outbox payload of every order lifecycle event.
type OrderEvent struct {
	OrderID     string          `json:"orderId"`
	Reference   string          `json:"reference"`
	UserID      string          `json:"userId"`
	Status      order.Status    `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	Lines       []order.Line    `json:"lines,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// ReviewEvent is the outbox payload of a payment that arrived after its
// order stopped awaiting one.
type ReviewEvent struct {
	OrderEvent
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPaymentID string          `json:"gatewayPaymentId"`
	AmountPaid       decimal.Decimal `json:"amountPaid"`
	PaidCurrency     string          `json:"paidCurrency"`
}

type Service struct {
	store    Store
	gateway  Gateway
	currency string
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewService(store Store, gw Gateway, currency string, m *metrics.Metrics, log logrus.FieldLogger) *Service {
	return &Service{
		store:    store,
		gateway:  gw,
		currency: strings.ToUpper(currency),
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Checkout converts the caller's cart into a PENDING_PAYMENT order. Stock
// of every line is reserved in ascending product order, the order is
// priced with the prices read in the same unit and the cart is emptied.
// Any failure leaves stock, cart and orders exactly as they were.
func (s *Service) Checkout(ctx context.Context, who claims.Claims, req Request) (order.Order, error) {
	if err := who.Require(claims.RoleCustomer, claims.RoleAdmin); err != nil {
		return order.Order{}, err
	}

	log := s.log.WithField("user_id", who.UserID)
	var ord order.Order

	err := s.store.Atomic(ctx, func(tx Tx) error {
		log.WithField("state", stateValidating).Debug("checkout")

		lines, err := tx.CartLines(who.UserID)
		if err != nil {
			return &PersistenceError{Err: err}
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		// A stable lock order keeps concurrent checkouts over overlapping
		// products from deadlocking.
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		ids := make([]string, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}

		prods, err := tx.Products(ids)
		if err != nil {
			return &PersistenceError{Err: err}
		}
		for _, id := range ids {
			if _, ok := prods[id]; !ok {
				return fmt.Errorf("product[%s]: %w", id, ErrProductUnavailable)
			}
		}

		log.WithField("state", stateReserving).Debug("checkout")

		reserved := make([]cart.Line, 0, len(lines))
		for _, l := range lines {
			if err := tx.Reserve(l.ProductID, l.Quantity); err != nil {
				s.compensate(log, tx, reserved)
				if errors.Is(err, inventory.ErrInsufficientStock) {
					return &InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity}
				}
				return &PersistenceError{Err: err}
			}
			reserved = append(reserved, l)
		}

		log.WithField("state", statePersisting).Debug("checkout")

		items := make([]pricing.Item, len(lines))
		for i, l := range lines {
			items[i] = pricing.Item{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: prods[l.ProductID].Price}
		}

		quote, err := pricing.Price(s.currency, items)
		if err != nil {
			s.compensate(log, tx, reserved)
			return &PersistenceError{Err: err}
		}

		ord, err = s.newOrder(who.UserID, req.ShippingAddress, quote)
		if err != nil {
			s.compensate(log, tx, reserved)
			return &PersistenceError{Err: err}
		}

		if err := s.persist(tx, ord); err != nil {
			s.compensate(log, tx, reserved)
			return &PersistenceError{Err: err}
		}

		return nil
	})

	if err != nil {
		err = classify(err)
		s.metrics.ObserveCheckout(checkoutOutcome(err))
		log.WithError(err).WithField("state", stateFailed).Info("checkout failed")
		return order.Order{}, err
	}

	s.metrics.ObserveCheckout("success")
	log.WithFields(logrus.Fields{
		"state":    stateAwaitingPayment,
		"order_id": ord.ID,
		"total":    ord.TotalAmount.String(),
	}).Info("checkout complete")

	return ord, nil
}

func (s *Service) newOrder(userID, address string, q pricing.Quote) (order.Order, error) {
	ref, err := random.Reference("ORD", 10)
	if err != nil {
		return order.Order{}, fmt.Errorf("generating order reference: %w", err)
	}

	now := s.now()
	ord := order.Order{
		ID:              validate.GenerateID(),
		Reference:       ref,
		UserID:          userID,
		Status:          order.PendingPayment,
		TotalAmount:     q.Total,
		Currency:        q.Currency,
		ShippingAddress: strings.TrimSpace(address),
		OrderDate:       now,
		UpdatedAt:       now,
		Lines:           make([]order.Line, len(q.Lines)),
	}
	for i, l := range q.Lines {
		ord.Lines[i] = order.Line{
			OrderID:      ord.ID,
			ProductID:    l.ProductID,
			Quantity:     l.Quantity,
			PriceAtOrder: l.UnitPrice,
		}
	}

	return ord, nil
}

func (s *Service) persist(tx Tx, ord order.Order) error {
	if err := tx.CreateOrder(ord); err != nil {
		return err
	}
	if err := tx.ClearCart(ord.UserID); err != nil {
		return err
	}
	return tx.RecordEvent(events.OrderCreated, ord.ID, s.event(ord))
}

// compensate releases reservations in reverse acquisition order. Release
// failures are logged: inside a database transaction the rollback that
// follows restores the stock anyway.
func (s *Service) compensate(log logrus.FieldLogger, tx Tx, reserved []cart.Line) {
	released := 0
	for i := len(reserved) - 1; i >= 0; i-- {
		l := reserved[i]
		if err := tx.Release(l.ProductID, l.Quantity); err != nil {
			log.WithError(err).WithField("product_id", l.ProductID).Warn("releasing reservation")
			continue
		}
		released += l.Quantity
	}
	s.metrics.ObserveReleased(released)
}

// CreatePayment obtains a gateway payment reference for a PENDING_PAYMENT
// order of the caller and links it to the order. requested must equal the
// frozen total. An order is linked to one gateway order only: asking again
// returns the linked intent. A gateway failure leaves the order untouched.
func (s *Service) CreatePayment(ctx context.Context, who claims.Claims, req PaymentRequest) (payment.Intent, error) {
	if err := who.Require(claims.RoleCustomer, claims.RoleAdmin); err != nil {
		return payment.Intent{}, err
	}

	ord, err := s.store.Order(ctx, req.OrderID)
	if err != nil {
		return payment.Intent{}, err
	}
	if !who.CanAccess(ord.UserID) {
		return payment.Intent{}, fmt.Errorf("order[%s]: %w", req.OrderID, ErrOrderNotFound)
	}
	if ord.Status != order.PendingPayment {
		s.metrics.ObservePayment("intent", "invalid_state")
		return payment.Intent{}, fmt.Errorf("order[%s] is %s: %w", ord.ID, ord.Status, order.ErrInvalidState)
	}
	if req.Currency != "" && !strings.EqualFold(req.Currency, ord.Currency) {
		s.metrics.ObservePayment("intent", "amount_mismatch")
		return payment.Intent{}, fmt.Errorf("currency %s for an order in %s: %w", req.Currency, ord.Currency, payment.ErrAmountMismatch)
	}

	if ord.GatewayOrderID != nil {
		return s.resumePayment(ctx, ord, req.Amount)
	}

	in, err := s.gateway.CreatePaymentIntent(ctx, ord.TotalAmount, req.Amount, ord.Currency, ord.Reference)
	if err != nil {
		s.metrics.ObservePayment("intent", paymentOutcome(err))
		return payment.Intent{}, fmt.Errorf("order[%s]: %w", ord.ID, err)
	}

	var linked string
	err = s.store.Atomic(ctx, func(tx Tx) error {
		cur, err := tx.LockOrder(ord.ID)
		if err != nil {
			return err
		}
		if cur.Status != order.PendingPayment {
			return fmt.Errorf("order[%s] is %s: %w", ord.ID, cur.Status, order.ErrInvalidState)
		}
		if cur.GatewayOrderID != nil {
			linked = *cur.GatewayOrderID
			return nil
		}
		return tx.LinkGateway(ord.ID, in.GatewayOrderID)
	})
	if err != nil {
		s.metrics.ObservePayment("intent", paymentOutcome(err))
		return payment.Intent{}, fmt.Errorf("linking gateway order[%s]: %w", in.GatewayOrderID, err)
	}

	// A concurrent request linked its intent first. Ours is never handed
	// out, so nobody can pay it.
	if linked != "" {
		s.log.WithFields(logrus.Fields{
			"order_id":         ord.ID,
			"gateway_order_id": linked,
			"discarded":        in.GatewayOrderID,
		}).Warn("payment intent created concurrently, returning the linked one")

		ord.GatewayOrderID = &linked
		return s.resumePayment(ctx, ord, req.Amount)
	}

	s.metrics.ObservePayment("intent", "success")
	s.log.WithFields(logrus.Fields{
		"order_id":         ord.ID,
		"gateway":          in.Provider,
		"gateway_order_id": in.GatewayOrderID,
		"state":            stateAwaitingPayment,
	}).Info("payment intent created")

	return in, nil
}

func (s *Service) resumePayment(ctx context.Context, ord order.Order, requested decimal.Decimal) (payment.Intent, error) {
	in, err := s.gateway.ResumePaymentIntent(ctx, ord.TotalAmount, requested, ord.Currency, *ord.GatewayOrderID)
	if err != nil {
		s.metrics.ObservePayment("intent", paymentOutcome(err))
		return payment.Intent{}, fmt.Errorf("order[%s]: %w", ord.ID, err)
	}

	s.metrics.ObservePayment("intent", "resumed")
	s.log.WithFields(logrus.Fields{
		"order_id":         ord.ID,
		"gateway_order_id": in.GatewayOrderID,
		"state":            stateAwaitingPayment,
	}).Info("payment intent resumed")

	return in, nil
}

// Verify finalizes an order from a signed payment callback. A valid
// signature places the order; an invalid one marks it PAYMENT_FAILED and
// still returns ErrVerificationFailed. Reserved stock is kept in both cases.
// Any other failure rolls back and leaves the order PENDING_PAYMENT.
func (s *Service) Verify(ctx context.Context, who claims.Claims, v Verification) (order.Order, error) {
	if err := who.Require(claims.RoleCustomer, claims.RoleAdmin); err != nil {
		return order.Order{}, err
	}

	log := s.log.WithFields(logrus.Fields{"order_id": v.OrderID, "state": stateFinalizing})

	var (
		result    order.Order
		verifyErr error
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		ord, err := tx.LockOrder(v.OrderID)
		if err != nil {
			return err
		}
		if !who.CanAccess(ord.UserID) {
			return fmt.Errorf("order[%s]: %w", v.OrderID, ErrOrderNotFound)
		}
		if ord.Status != order.PendingPayment {
			return fmt.Errorf("order[%s] is %s: %w", ord.ID, ord.Status, order.ErrInvalidState)
		}
		if v.Amount != nil && !v.Amount.Equal(ord.TotalAmount) {
			return fmt.Errorf("paid %s for a total of %s: %w", v.Amount, ord.TotalAmount, payment.ErrAmountMismatch)
		}

		err = s.gateway.VerifySignature(ctx, v.GatewayOrderID, v.GatewayPaymentID, v.Signature)
		if err == nil && (ord.GatewayOrderID == nil || *ord.GatewayOrderID != v.GatewayOrderID) {
			err = fmt.Errorf("gateway order[%s] is not linked to order[%s]: %w", v.GatewayOrderID, ord.ID, payment.ErrVerificationFailed)
		}

		switch {
		case err == nil:
			result, err = s.finalize(tx, ord, true, v.GatewayOrderID, v.GatewayPaymentID, v.Signature)
			return err
		case errors.Is(err, payment.ErrVerificationFailed):
			verifyErr = err
			result, err = s.finalize(tx, ord, false, v.GatewayOrderID, v.GatewayPaymentID, v.Signature)
			return err
		default:
			return fmt.Errorf("verifying payment of order[%s]: %w", ord.ID, err)
		}
	})
	if err != nil {
		s.metrics.ObservePayment("verify", paymentOutcome(err))
		log.WithError(err).Info("payment verification rejected")
		return order.Order{}, err
	}

	if verifyErr != nil {
		s.metrics.ObservePayment("verify", "failed")
		log.WithError(verifyErr).WithField("state", stateFailed).Warn("payment verification failed, order needs administrative resolution")
		return result, verifyErr
	}

	s.metrics.ObservePayment("verify", "success")
	log.WithField("state", stateComplete).Info("order placed")

	return result, nil
}

// Settle finalizes an order from a gateway notification whose authenticity
// was already established, such as a signed Stripe webhook. A successful
// payment for an order that already failed or was cancelled is not applied:
// it is recorded for review and reported as ErrPaymentNeedsReview.
func (s *Service) Settle(ctx context.Context, n payment.Notification) (order.Order, error) {
	var (
		result order.Order
		review bool
	)

	err := s.store.Atomic(ctx, func(tx Tx) error {
		ord, err := tx.LockOrderByGateway(n.GatewayOrderID)
		if err != nil {
			return err
		}
		result = ord

		if ord.Status != order.PendingPayment {
			if !n.Succeeded || ord.Status == order.Placed {
				return fmt.Errorf("order[%s] is %s: %w", ord.ID, ord.Status, order.ErrInvalidState)
			}
			review = true
			return tx.RecordEvent(events.OrderPaymentNeedsReview, ord.ID, ReviewEvent{
				OrderEvent:       s.event(ord),
				GatewayOrderID:   n.GatewayOrderID,
				GatewayPaymentID: n.GatewayPaymentID,
				AmountPaid:       n.Amount,
				PaidCurrency:     n.Currency,
			})
		}

		if !n.Amount.Equal(ord.TotalAmount) || !strings.EqualFold(n.Currency, ord.Currency) {
			return fmt.Errorf("settled %s %s for a total of %s %s: %w", n.Amount, n.Currency, ord.TotalAmount, ord.Currency, payment.ErrAmountMismatch)
		}

		result, err = s.finalize(tx, ord, n.Succeeded, n.GatewayOrderID, n.GatewayPaymentID, "")
		return err
	})
	if err != nil {
		s.metrics.ObservePayment("settle", paymentOutcome(err))
		s.log.WithError(err).WithField("gateway_order_id", n.GatewayOrderID).Info("gateway notification not applied")
		return order.Order{}, err
	}

	if review {
		s.metrics.ObservePayment("settle", "paid_after_failure")
		s.log.WithFields(logrus.Fields{
			"order_id":           result.ID,
			"status":             result.Status,
			"gateway_order_id":   n.GatewayOrderID,
			"gateway_payment_id": n.GatewayPaymentID,
			"amount":             n.Amount.String(),
			"currency":           n.Currency,
		}).Error("payment captured for an order not awaiting payment, needs review")
		return result, fmt.Errorf("order[%s] is %s: %w", result.ID, result.Status, ErrPaymentNeedsReview)
	}

	outcome := "success"
	if !n.Succeeded {
		outcome = "failed"
	}
	s.metrics.ObservePayment("settle", outcome)
	s.log.WithFields(logrus.Fields{
		"order_id": result.ID,
		"status":   result.Status,
	}).Info("order settled by gateway notification")

	return result, nil
}

func (s *Service) finalize(tx Tx, ord order.Order, succeeded bool, gatewayOrderID, gatewayPaymentID, signature string) (order.Order, error) {
	to, txStatus, evType, paid := order.Placed, order.TxSuccess, events.OrderPlaced, ord.TotalAmount
	if !succeeded {
		to, txStatus, evType, paid = order.PaymentFailed, order.TxFailed, events.OrderPaymentFailed, decimal.Zero
	}

	if err := tx.UpdateOrderStatus(ord.ID, order.PendingPayment, to); err != nil {
		return order.Order{}, err
	}

	now := s.now()
	txn := order.Transaction{
		ID:               validate.GenerateID(),
		OrderID:          ord.ID,
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		AmountPaid:       paid,
		Currency:         ord.Currency,
		Status:           txStatus,
		Signature:        signature,
		CreatedAt:        now,
	}
	if err := tx.CreateTransaction(txn); err != nil {
		return order.Order{}, err
	}

	ord.Status = to
	ord.UpdatedAt = now
	if err := tx.RecordEvent(evType, ord.ID, s.event(ord)); err != nil {
		return order.Order{}, err
	}

	return ord, nil
}

// Cancel is the administrative exit for orders that will never be paid:
// PENDING_PAYMENT or PAYMENT_FAILED orders become CANCELLED and all their
// reserved stock returns to the ledger in the same unit.
func (s *Service) Cancel(ctx context.Context, who claims.Claims, orderID string) (order.Order, error) {
	if err := who.Require(claims.RoleAdmin); err != nil {
		return order.Order{}, err
	}

	var (
		result   order.Order
		released int
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		ord, err := tx.LockOrder(orderID)
		if err != nil {
			return err
		}
		if !ord.Status.CanTransitionTo(order.Cancelled) {
			return fmt.Errorf("order[%s] is %s: %w", ord.ID, ord.Status, order.ErrInvalidState)
		}

		if err := tx.UpdateOrderStatus(ord.ID, ord.Status, order.Cancelled); err != nil {
			return err
		}

		released = 0
		for _, l := range ord.Lines {
			if err := tx.Release(l.ProductID, l.Quantity); err != nil {
				return fmt.Errorf("releasing product[%s]: %w", l.ProductID, err)
			}
			released += l.Quantity
		}

		ord.Status = order.Cancelled
		ord.UpdatedAt = s.now()
		if err := tx.RecordEvent(events.OrderCancelled, ord.ID, s.event(ord)); err != nil {
			return err
		}

		result = ord
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}

	s.metrics.ObserveReleased(released)
	s.log.WithFields(logrus.Fields{
		"order_id": result.ID,
		"admin_id": who.UserID,
		"released": released,
	}).Info("order cancelled")

	return result, nil
}

func (s *Service) event(ord order.Order) OrderEvent {
	return OrderEvent{
		OrderID:     ord.ID,
		Reference:   ord.Reference,
		UserID:      ord.UserID,
		Status:      ord.Status,
		TotalAmount: ord.TotalAmount,
		Currency:    ord.Currency,
		Lines:       ord.Lines,
		OccurredAt:  ord.UpdatedAt,
	}
}

// classify turns anything that is not a known checkout outcome, such as a
// failed commit, into a PersistenceError.
func classify(err error) error {
	var ise *InsufficientStockError
	var pe *PersistenceError
	switch {
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrProductUnavailable),
		errors.As(err, &ise),
		errors.As(err, &pe):
		return err
	}
	return &PersistenceError{Err: err}
}

func checkoutOutcome(err error) string {
	var ise *InsufficientStockError
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &ise):
		return "insufficient_stock"
	case errors.Is(err, ErrProductUnavailable):
		return "product_unavailable"
	}
	return "persistence_failed"
}

func paymentOutcome(err error) string {
	switch {
	case errors.Is(err, payment.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return "unavailable"
	case errors.Is(err, order.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, payment.ErrVerificationFailed):
		return "failed"
	}
	return "error"
}
