package config

import (
	"strings"
	"time"

	"github.com/ardanlabs/conf/v3"
)

type Config struct {
	conf.Version
	Web       Web
	DB        DB
	Cors      Cors
	Session   Session
	Admin     Admin
	Payment   Payment
	Stripe    Stripe
	Paypal    Paypal
	Redis     Redis
	Kafka     Kafka
	RateLimit RateLimit
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:shop"`
	MaxIdleConns int    `conf:"default:2"`
	MaxOpenConns int    `conf:"default:20"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

type Cors struct {
	Origin string
}

type Session struct {
	Lifetime time.Duration `conf:"default:24h"`
}

// Admin is created at startup when Email is set and no such user exists.
type Admin struct {
	Email    string
	Password string `conf:"mask"`
}

type Payment struct {
	// sandbox, stripe or paypal.
	Provider string `conf:"default:sandbox"`
	Currency string `conf:"default:USD"`
	// Secret used to verify HMAC signatures returned with gateway callbacks.
	SigningSecret    string        `conf:"default:dev-signing-secret,mask"`
	Timeout          time.Duration `conf:"default:10s"`
	BreakerFailures  uint32        `conf:"default:5"`
	BreakerOpenDelay time.Duration `conf:"default:30s"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	// Overrides the API backend, used against stripe-mock.
	URL string
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api-m.sandbox.paypal.com"`
}

type Redis struct {
	// Empty disables the cart cache.
	Address  string
	Password string        `conf:"mask"`
	CartTTL  time.Duration `conf:"default:15m"`
}

type Kafka struct {
	// Comma separated. Empty disables the outbox relay.
	Brokers  string
	Topic    string        `conf:"default:shop.orders"`
	Interval time.Duration `conf:"default:1s"`
	Batch    int           `conf:"default:100"`
}

type RateLimit struct {
	RPS    float64       `conf:"default:5"`
	Burst  int           `conf:"default:10"`
	Expiry time.Duration `conf:"default:10m"`
}

// BrokerList splits Brokers, dropping empty entries.
func (k Kafka) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
