package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/ardanlabs/conf/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/irsalhamdi/enrol-cart/api"
	"github.com/irsalhamdi/enrol-cart/config"
	"github.com/irsalhamdi/enrol-cart/core/auth"
	"github.com/irsalhamdi/enrol-cart/core/cart"
	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/irsalhamdi/enrol-cart/core/enrol"
	"github.com/irsalhamdi/enrol-cart/core/payment"
	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/irsalhamdi/enrol-cart/rate"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/plutov/paypal/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env file: %w", err)
	}

	const prefix = "CART"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate the database: %w", err)
		}
	}

	sessionManager := newSessionManager(cfg.Session, db)

	var cache catalog.Cache
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Address, err)
		}
		cache = catalog.NewRedisCache(rdb, cfg.Redis.OfferTTL)
	} else {
		logger.Warn("redis address not set, offer cache disabled")
	}
	cat := catalog.New(db, cache, logger)

	settings, err := cart.NewSettings(cfg.Cart.Currency, cfg.Cart.PaymentAccount)
	if err != nil {
		return fmt.Errorf("cart settings: %w", err)
	}
	settings.SetEnabled(cfg.Cart.Enabled)

	deps := cart.Deps{
		Catalog:  cat,
		Enroller: enrol.Applier{},
		Settings: settings,
		Log:      logger,
	}
	carts := cart.NewResolver(db, cart.NewCookieStore(sessionManager), deps)
	payments := payment.NewService(carts, settings, cfg.Cart.ViewURL, logger)

	pp, err := paypal.NewClient(
		cfg.Paypal.ClientID,
		cfg.Paypal.Secret,
		cfg.Paypal.URL,
	)
	if err != nil {
		return fmt.Errorf("failed to build the paypal client: %w", err)
	}

	if cfg.Paypal.ClientID != "" {
		if _, err = pp.GetAccessToken(context.TODO()); err != nil {
			return fmt.Errorf("failed to get the first paypal access token: %w", err)
		}
	}

	strp := &stripecl.API{}
	strp.Init(cfg.Stripe.APISecret, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.Interval, cfg.Rate.Expiry)
	go limiter.Run(ctx)

	// providers keep using this context to fetch their signing keys
	oidcCtx := oidc.ClientContext(ctx, &http.Client{Timeout: cfg.Oauth.DiscoveryTimeout})
	google := cfg.Oauth.Google
	oauthProvs, err := auth.MakeProviders(oidcCtx, []auth.ProviderConfig{
		{Name: "google", Client: google.Client, Secret: google.Secret, URL: google.URL, RedirectURL: google.RedirectURL},
	})
	if err != nil {
		return fmt.Errorf("failed to discover oauth providers: %w", err)
	}

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		DB:         db,
		Session:    sessionManager,
		Catalog:    cat,
		Settings:   settings,
		Carts:      carts,
		Payments:   payments,
		Limiter:    limiter,
		Paypal:     pp,
		Stripe:     strp,
		StripeCfg:  cfg.Stripe,

		Providers:        oauthProvs,
		LoginRedirectURL: cfg.Oauth.LoginRedirectURL,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}

func newSessionManager(cfg config.Session, db *sqlx.DB) *scs.SessionManager {
	sm := scs.New()
	sm.Lifetime = cfg.Lifetime
	sm.Cookie.Name = cfg.CookieName
	sm.Cookie.Secure = cfg.Secure
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode

	switch cfg.Store {
	case "memory":
		sm.Store = memstore.New()
	default:
		sm.Store = postgresstore.New(db.DB)
	}
	return sm
}
