// Package payment talks to the external payment gateway. It guards intent
// creation against tampered amounts and an unhealthy gateway, and verifies
// the signatures the gateway attaches to payment callbacks.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

var (
	ErrAmountMismatch     = errors.New("amount does not match the order total")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Intent is the gateway side handle of a pending payment.
type Intent struct {
	Provider       string          `json:"provider"`
	GatewayOrderID string          `json:"gatewayOrderId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ClientSecret   string          `json:"clientSecret,omitempty"`
	ApproveURL     string          `json:"approveUrl,omitempty"`
}

// Provider creates payment intents on one concrete gateway and looks up
// the ones it created earlier.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency, receipt string) (Intent, error)
	FetchIntent(ctx context.Context, gatewayOrderID string) (Intent, error)
}

type Config struct {
	SigningSecret    string
	Timeout          time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

type Adapter struct {
	provider Provider
	secret   []byte
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker[Intent]
}

func NewAdapter(p Provider, cfg Config, log logrus.FieldLogger) *Adapter {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	st := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDelay,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"gateway": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("payment gateway breaker changed state")
		},
	}

	return &Adapter{
		provider: p,
		secret:   []byte(cfg.SigningSecret),
		timeout:  cfg.Timeout,
		breaker:  gobreaker.NewCircuitBreaker[Intent](st),
	}
}

func (a *Adapter) Provider() string {
	return a.provider.Name()
}

// CreatePaymentIntent asks the gateway for an intent of requested. The
// request is refused without contacting the gateway unless requested is
// exactly the order's frozen total. Any gateway failure, including a
// timeout or an open breaker, is reported as ErrGatewayUnavailable.
func (a *Adapter) CreatePaymentIntent(ctx context.Context, frozenTotal, requested decimal.Decimal, currency, receipt string) (Intent, error) {
	if !requested.Equal(frozenTotal) {
		return Intent{}, fmt.Errorf("requested %s for a total of %s: %w", requested, frozenTotal, ErrAmountMismatch)
	}

	return a.call(ctx, func(ctx context.Context) (Intent, error) {
		return a.provider.CreateIntent(ctx, frozenTotal, currency, receipt)
	})
}

// ResumePaymentIntent returns the intent already created for an order, so
// a client asking twice keeps paying the same one. The amount rules of
// CreatePaymentIntent apply, and the gateway's own amount must still match
// the frozen total.
func (a *Adapter) ResumePaymentIntent(ctx context.Context, frozenTotal, requested decimal.Decimal, currency, gatewayOrderID string) (Intent, error) {
	if !requested.Equal(frozenTotal) {
		return Intent{}, fmt.Errorf("requested %s for a total of %s: %w", requested, frozenTotal, ErrAmountMismatch)
	}

	in, err := a.call(ctx, func(ctx context.Context) (Intent, error) {
		return a.provider.FetchIntent(ctx, gatewayOrderID)
	})
	if err != nil {
		return Intent{}, err
	}

	// Providers that keep no amount, like the sandbox, report none.
	if in.Currency == "" {
		in.Amount, in.Currency = frozenTotal, strings.ToUpper(currency)
	}
	if !in.Amount.Equal(frozenTotal) || !strings.EqualFold(in.Currency, currency) {
		return Intent{}, fmt.Errorf("gateway order[%s] is for %s %s, order total is %s %s: %w",
			gatewayOrderID, in.Amount, in.Currency, frozenTotal, currency, ErrAmountMismatch)
	}

	return in, nil
}

func (a *Adapter) call(ctx context.Context, fn func(ctx context.Context) (Intent, error)) (Intent, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	in, err := a.breaker.Execute(func() (Intent, error) {
		return fn(ctx)
	})
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, a.provider.Name(), err)
	}

	return in, nil
}

// VerifySignature checks the callback signature of a payment. A mismatch
// is always ErrVerificationFailed; an error of any other kind means the
// verification could not be performed and must be retried.
func (a *Adapter) VerifySignature(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("verifying payment[%s]: %w", gatewayPaymentID, err)
	}

	if !Verify(a.secret, gatewayOrderID, gatewayPaymentID, signature) {
		return fmt.Errorf("gateway order[%s] payment[%s]: %w", gatewayOrderID, gatewayPaymentID, ErrVerificationFailed)
	}
	return nil
}

// Sign returns the signature the gateway would attach to a callback for
// the pair, with the adapter's secret.
func (a *Adapter) Sign(gatewayOrderID, gatewayPaymentID string) string {
	return Sign(a.secret, gatewayOrderID, gatewayPaymentID)
}
