package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/irsalhamdi/e-commerce-shop/api/web"
	"github.com/irsalhamdi/e-commerce-shop/api/weberr"
	"github.com/irsalhamdi/e-commerce-shop/core/claims"
	"github.com/irsalhamdi/e-commerce-shop/core/order"
	"github.com/irsalhamdi/e-commerce-shop/core/payment"
	"github.com/irsalhamdi/e-commerce-shop/validate"
)

func HandleCheckout(s *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req Request
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		ord, err := s.Checkout(ctx, clm, req)
		if err != nil {
			return mapError(err)
		}

		return web.Respond(ctx, w, ord, http.StatusCreated)
	}
}

func HandleCreatePayment(s *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req PaymentRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		in, err := s.CreatePayment(ctx, clm, req)
		if err != nil {
			return mapError(err)
		}

		return web.Respond(ctx, w, in, http.StatusCreated)
	}
}

func HandleVerify(s *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var v Verification
		if err := web.Decode(w, r, &v); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		ord, err := s.Verify(ctx, clm, v)
		if err != nil {
			return mapError(err, weberr.WithFields(map[string]interface{}{"order_id": v.OrderID}))
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

// HandleStripeWebhook settles orders from signed Stripe deliveries.
// Deliveries about orders that are already final are acknowledged so
// Stripe stops retrying them; Settle records the ones needing review.
func HandleStripeWebhook(s *Service, secret string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 65536))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("reading webhook body: %w", err))
		}

		n, ok, err := payment.ParseStripeWebhook(payload, r.Header.Get("Stripe-Signature"), secret)
		if err != nil {
			return weberr.BadRequest(err)
		}
		if !ok {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if _, err := s.Settle(ctx, n); err != nil {
			if errors.Is(err, order.ErrInvalidState) || errors.Is(err, ErrPaymentNeedsReview) {
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}
			return mapError(err, weberr.WithFields(map[string]interface{}{"gateway_order_id": n.GatewayOrderID}))
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleCancel(s *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		ord, err := s.Cancel(ctx, clm, id)
		if err != nil {
			return mapError(err)
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func mapError(err error, opts ...weberr.Opt) error {
	var ise *InsufficientStockError
	var pe *PersistenceError

	switch {
	case errors.Is(err, ErrEmptyCart):
		return weberr.Unprocessable(err, opts...)
	case errors.As(err, &ise):
		details := map[string]interface{}{"productId": ise.ProductID, "requested": ise.Requested}
		opts = append(opts, weberr.WithFields(map[string]interface{}{"product_id": ise.ProductID}))
		return weberr.NewDetailedError(err, "insufficient stock", http.StatusConflict, details, opts...)
	case errors.Is(err, ErrProductUnavailable):
		return weberr.Conflict(err, opts...)
	case errors.Is(err, ErrOrderNotFound):
		return weberr.NotFound(err, opts...)
	case errors.Is(err, order.ErrInvalidState):
		return weberr.NewError(err, "order is not in a state that allows this action", http.StatusConflict, opts...)
	case errors.Is(err, payment.ErrVerificationFailed):
		return weberr.NewError(err, "payment verification failed", http.StatusBadRequest, opts...)
	case errors.Is(err, payment.ErrAmountMismatch):
		return weberr.NewError(err, "amount does not match the order total", http.StatusBadRequest, opts...)
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return weberr.Unavailable(err, opts...)
	case errors.As(err, &pe):
		return weberr.Unavailable(err, opts...)
	case errors.Is(err, claims.ErrUnauthenticated):
		return weberr.NotAuthorized(err, opts...)
	case errors.Is(err, claims.ErrForbidden):
		return weberr.Forbidden(err, opts...)
	}

	return weberr.Wrap(err, opts...)
}
