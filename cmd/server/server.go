package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/e-commerce-shop/api"
	"github.com/irsalhamdi/e-commerce-shop/config"
	"github.com/irsalhamdi/e-commerce-shop/core/auth"
	"github.com/irsalhamdi/e-commerce-shop/core/cart"
	"github.com/irsalhamdi/e-commerce-shop/core/checkout"
	"github.com/irsalhamdi/e-commerce-shop/core/events"
	"github.com/irsalhamdi/e-commerce-shop/core/payment"
	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/irsalhamdi/e-commerce-shop/metrics"
	"github.com/irsalhamdi/e-commerce-shop/rate"
	"github.com/joho/godotenv"
	"github.com/plutov/paypal/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var build = "develop"

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	const prefix = "SHOP"
	cfg := config.Config{
		Version: conf.Version{
			Build: build,
			Desc:  "e-commerce checkout service",
		},
	}
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	logger.WithField("build", build).Info("starting server")
	defer logger.Info("shutdown complete")

	if out, err := conf.String(&cfg); err == nil {
		logger.Debugf("config:\n%s", out)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(database.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := database.StatusCheck(ctx, db); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	if cfg.DB.Migrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	if cfg.Admin.Email != "" {
		admin, err := auth.SeedAdmin(ctx, db, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
		logger.WithField("user_id", admin.ID).Info("admin account ready")
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Session.Lifetime

	var cache *cart.Cache
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			// The cache is an optimisation, carts are served from Postgres.
			logger.WithError(err).Warn("redis not reachable, cart cache degraded")
		}
		cache = cart.NewCache(rdb, cfg.Redis.CartTTL, logger)
	}
	carts := cart.NewStore(db, cache, logger)

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	adapter := payment.NewAdapter(provider, payment.Config{
		SigningSecret:    cfg.Payment.SigningSecret,
		Timeout:          cfg.Payment.Timeout,
		BreakerFailures:  cfg.Payment.BreakerFailures,
		BreakerOpenDelay: cfg.Payment.BreakerOpenDelay,
	}, logger)
	logger.WithField("gateway", adapter.Provider()).Info("payment gateway configured")

	m := metrics.New()
	svc := checkout.NewService(checkout.NewPGStore(db, carts), adapter, cfg.Payment.Currency, m, logger)
	limiter := rate.NewLimiter(cfg.RateLimit.Burst, cfg.RateLimit.Expiry, cfg.RateLimit.RPS)

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:    cfg.Cors.Origin,
		Log:           logger,
		DB:            db,
		Session:       sessionManager,
		Carts:         carts,
		Checkout:      svc,
		Metrics:       m,
		Limiter:       limiter,
		StripeWebhook: cfg.Stripe.WebhookSecret,
	})

	srv := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.Infof("starting api router at %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		limiter.Run(gctx, cfg.RateLimit.Expiry)
		return nil
	})

	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		w := events.NewWriter(brokers, cfg.Kafka.Topic)
		defer w.Close()

		relay := events.NewRelay(db, w, cfg.Kafka.Batch, cfg.Kafka.Interval, logger)
		g.Go(func() error {
			logger.WithField("topic", cfg.Kafka.Topic).Info("starting outbox relay")
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newProvider(ctx context.Context, cfg config.Config) (payment.Provider, error) {
	switch cfg.Payment.Provider {
	case "sandbox":
		return payment.Sandbox{}, nil

	case "stripe":
		if cfg.Stripe.APISecret == "" {
			return nil, errors.New("stripe provider needs an api secret")
		}
		return payment.NewStripe(cfg.Stripe.APISecret, cfg.Stripe.URL), nil

	case "paypal":
		pp, err := paypal.NewClient(cfg.Paypal.ClientID, cfg.Paypal.Secret, cfg.Paypal.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to build the paypal client: %w", err)
		}
		if _, err = pp.GetAccessToken(ctx); err != nil {
			return nil, fmt.Errorf("failed to get the first paypal access token: %w", err)
		}
		return payment.NewPaypal(pp), nil
	}

	return nil, fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
}
