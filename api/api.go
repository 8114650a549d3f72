package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/enrol-cart/api/middleware"
	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/config"
	"github.com/irsalhamdi/enrol-cart/core/auth"
	"github.com/irsalhamdi/enrol-cart/core/cart"
	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/irsalhamdi/enrol-cart/core/enrol"
	"github.com/irsalhamdi/enrol-cart/core/payment"
	"github.com/irsalhamdi/enrol-cart/rate"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Session    *scs.SessionManager
	Catalog    *catalog.Catalog
	Settings   *cart.Settings
	Carts      *cart.Resolver
	Payments   *payment.Service
	Limiter    *rate.Limiter
	Paypal     *paypal.Client
	Stripe     *stripecl.API
	StripeCfg  config.Stripe

	Providers        auth.Providers
	LoginRedirectURL string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())
	a.mw = append(a.mw, auth.Claims(cfg.Session))
	a.mw = append(a.mw, cfg.Carts.Scope())

	authen := auth.Authenticate()
	admin := auth.Admin()
	enabled := cart.RequireEnabled(cfg.Settings)

	// only cart mutations are throttled
	var limit web.Middleware
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter)
	}

	mergeCart := func(ctx context.Context) error {
		if !cfg.Settings.Enabled() {
			return nil
		}
		_, err := cfg.Carts.MoveCookieCartToDB(ctx)
		return err
	}

	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session, cfg.Log, mergeCart))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session), authen)
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL, cfg.Log, mergeCart))

	a.Handle(http.MethodGet, "/courses/{id}", catalog.HandleShowCourse(cfg.Catalog))
	a.Handle(http.MethodGet, "/offers/{id}", catalog.HandleShowOffer(cfg.Catalog))
	a.Handle(http.MethodPut, "/offers/{id}/enabled", catalog.HandleSetOfferEnabled(cfg.Catalog), admin)
	a.Handle(http.MethodPut, "/settings", cart.HandleUpdateSettings(cfg.Settings), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.Carts), enabled)
	a.Handle(http.MethodPut, "/cart/items", cart.HandleCreateItem(cfg.Carts), enabled, limit)
	a.Handle(http.MethodDelete, "/cart/items/{instance_id}", cart.HandleDeleteItem(cfg.Carts), enabled, limit)
	a.Handle(http.MethodDelete, "/cart/courses/{course_id}", cart.HandleDeleteCourse(cfg.Carts), enabled, limit)
	a.Handle(http.MethodPost, "/cart/checkout", cart.HandleCheckout(cfg.Carts), authen, enabled, limit)

	expirePayments := payment.ExpirePayments(cfg.DB, cfg.Stripe)
	a.Handle(http.MethodGet, "/carts", cart.HandleList(cfg.DB), authen, enabled)
	a.Handle(http.MethodGet, "/carts/{id}", cart.HandleShowByID(cfg.Carts), authen, enabled)
	a.Handle(http.MethodPost, "/carts/{id}/cancel", cart.HandleCancel(cfg.Carts, expirePayments), authen, enabled, limit)
	a.Handle(http.MethodPost, "/carts/{id}/paypal", payment.HandlePaypalCheckout(cfg.DB, cfg.Payments, cfg.Paypal), authen, enabled, limit)
	a.Handle(http.MethodPost, "/carts/{id}/stripe", payment.HandleStripeCheckout(cfg.DB, cfg.Payments, cfg.Stripe, cfg.StripeCfg), authen, enabled, limit)

	// paid carts are delivered even while carts are disabled
	a.Handle(http.MethodPost, "/payments/paypal/{id}/capture", payment.HandlePaypalCapture(cfg.DB, cfg.Payments, cfg.Paypal), authen)
	a.Handle(http.MethodPost, "/payments/stripe/capture", payment.HandleStripeCapture(cfg.DB, cfg.Payments, cfg.StripeCfg))

	a.Handle(http.MethodGet, "/enrolments", enrol.HandleListOwned(cfg.DB), authen)

	var h http.Handler = cfg.Session.LoadAndSave(a.Router)
	if cfg.CorsOrigin != "" {
		h = cors.New(cors.Options{
			AllowedOrigins:   []string{cfg.CorsOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", middleware.RequestIDHeader},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
