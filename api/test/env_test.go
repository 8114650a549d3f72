package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/enrol-cart/api"
	"github.com/irsalhamdi/enrol-cart/config"
	"github.com/irsalhamdi/enrol-cart/core/auth"
	"github.com/irsalhamdi/enrol-cart/core/cart"
	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/irsalhamdi/enrol-cart/core/enrol"
	"github.com/irsalhamdi/enrol-cart/core/payment"
	"github.com/irsalhamdi/enrol-cart/core/user"
	"github.com/irsalhamdi/enrol-cart/database/dbtest"
	"github.com/irsalhamdi/enrol-cart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type TestEnv struct {
	*httptest.Server
	DB       *sqlx.DB
	Settings *cart.Settings

	UserEmail  string
	UserPass   string
	AdminEmail string
	AdminPass  string

	WebhookSecret string

	Paypal *mockPaypal
	Stripe *mockStripe
	OIDC   *mockOIDC
}

// NewTestEnv starts the api against a fresh database and mocked providers.
// opts adjust the api configuration before the routes are built.
func NewTestEnv(t *testing.T, name string, opts ...func(*api.APIConfig)) (*TestEnv, error) {
	db := dbtest.NewDatabase(t, name)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	env := &TestEnv{
		DB:            db,
		UserEmail:     "user@example.com",
		UserPass:      "user-pass",
		AdminEmail:    "admin@example.com",
		AdminPass:     "admin-pass",
		WebhookSecret: "whsec_test",
		Paypal:        &mockPaypal{},
		Stripe:        &mockStripe{},
		OIDC:          newMockOIDC(t),
	}

	ctx := context.Background()
	for _, u := range []struct{ email, pass, role string }{
		{env.UserEmail, env.UserPass, claims.RoleUser},
		{env.AdminEmail, env.AdminPass, claims.RoleAdmin},
	} {
		usr, err := auth.NewUser(u.email, u.pass, u.role)
		if err != nil {
			return nil, err
		}
		if err := user.Create(ctx, db, usr); err != nil {
			return nil, fmt.Errorf("seeding user %s: %w", u.email, err)
		}
	}

	ppSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(ppSrv.Close)

	pp, err := paypal.NewClient("client", "secret", ppSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}
	if _, err := pp.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("getting paypal token: %w", err)
	}

	stSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stSrv.Close)

	strp := &stripecl.API{}
	strp.Init("sk_test_cart", &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(stSrv.URL),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
			MaxNetworkRetries: stripe.Int64(0),
		}),
	})

	settings, err := cart.NewSettings("USD", "test-account")
	if err != nil {
		return nil, err
	}
	env.Settings = settings

	sm := scs.New()
	cat := catalog.New(db, nil, log)
	deps := cart.Deps{
		Catalog:  cat,
		Enroller: enrol.Applier{},
		Settings: settings,
		Log:      log,
	}
	carts := cart.NewResolver(db, cart.NewCookieStore(sm), deps)

	stripeCfg := config.Stripe{
		WebhookSecret: env.WebhookSecret,
		CancelURL:     "http://localhost/cart",
	}

	// the address is needed for the oauth redirects before the routes exist
	srv := httptest.NewUnstartedServer(nil)
	base := "http://" + srv.Listener.Addr().String()

	provs, err := auth.MakeProviders(ctx, []auth.ProviderConfig{{
		Name:        "test",
		Client:      oidcClientID,
		Secret:      "oidc-secret",
		URL:         env.OIDC.URL,
		RedirectURL: base + "/auth/oauth-callback/test",
	}})
	if err != nil {
		return nil, fmt.Errorf("discovering oidc provider: %w", err)
	}

	cfg := api.APIConfig{
		Log:              log,
		DB:               db,
		Session:          sm,
		Catalog:          cat,
		Settings:         settings,
		Carts:            carts,
		Payments:         payment.NewService(carts, settings, "http://localhost/carts", log),
		Paypal:           pp,
		Stripe:           strp,
		StripeCfg:        stripeCfg,
		Providers:        provs,
		LoginRedirectURL: base + "/cart",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv.Config.Handler = api.APIMux(cfg)
	srv.Start()
	t.Cleanup(srv.Close)
	env.Server = srv

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	env.Server.Client().Jar = jar

	return env, nil
}

func Login(server *httptest.Server, email string, pass string) error {
	body, err := json.Marshal(auth.Credentials{Email: email, Password: pass})
	if err != nil {
		return err
	}

	w, err := server.Client().Post(server.URL+"/auth/login", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("can't login: status code %s", w.Status)
	}
	return nil
}

func Logout(server *httptest.Server) error {
	r, err := http.NewRequest(http.MethodPost, server.URL+"/auth/logout", nil)
	if err != nil {
		return err
	}

	w, err := server.Client().Do(r)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("can't logout: status code %s", w.Status)
	}
	return nil
}

// createOffer seeds a course with one enabled offer.
func (env *TestEnv) createOffer(t *testing.T, cost string) catalog.Offer {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	c := catalog.Course{
		ID:        validate.GenerateID(),
		Name:      "Course " + validate.GenerateID()[:8],
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := catalog.CreateCourse(ctx, env.DB, c); err != nil {
		t.Fatalf("creating course: %v", err)
	}

	o := catalog.Offer{
		ID:         validate.GenerateID(),
		CourseID:   c.ID,
		CourseName: c.Name,
		Cost:       decimal.RequireFromString(cost),
		Enabled:    true,
		RoleID:     "student",
	}
	if err := catalog.CreateOffer(ctx, env.DB, o); err != nil {
		t.Fatalf("creating offer: %v", err)
	}
	return o
}

// do sends a JSON request and decodes the JSON answer into out when it is not nil.
func (env *TestEnv) do(t *testing.T, method string, path string, in any, out any) int {
	t.Helper()

	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			t.Fatal(err)
		}
	}

	r, err := http.NewRequest(method, env.URL+path, &body)
	if err != nil {
		t.Fatal(err)
	}
	if in != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	w, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode < 300 {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return w.StatusCode
}
