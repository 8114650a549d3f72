package config

import "time"

type Config struct {
	Web     Web
	DB      DB
	Session Session
	Redis   Redis
	Cors    Cors
	Rate    Rate
	Cart    Cart
	Stripe  Stripe
	Paypal  Paypal
	Oauth   Oauth
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
	Name         string `conf:"default:postgres"`
	MaxIdleConns int    `conf:"default:0"`
	MaxOpenConns int    `conf:"default:0"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

type Session struct {
	Store      string        `conf:"default:postgres"`
	Lifetime   time.Duration `conf:"default:24h"`
	CookieName string        `conf:"default:cart_session"`
	Secure     bool          `conf:"default:false"`
}

type Redis struct {
	// Empty address disables the offer cache.
	Address  string
	Password string        `conf:"mask"`
	DB       int           `conf:"default:0"`
	OfferTTL time.Duration `conf:"default:1m"`
}

type Cors struct {
	Origin string
}

type Rate struct {
	Burst    int           `conf:"default:20"`
	Interval time.Duration `conf:"default:500ms"`
	Expiry   time.Duration `conf:"default:10m"`
}

type Cart struct {
	Enabled        bool   `conf:"default:true"`
	Currency       string `conf:"default:USD"`
	PaymentAccount string `conf:"default:default"`
	ViewURL        string `conf:"default:http://localhost:8000/carts"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	CancelURL     string `conf:"default:http://localhost:8000/cart"`
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api-m.sandbox.paypal.com"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:10s"`
	LoginRedirectURL string        `conf:"default:http://localhost:8000/cart"`
	Google           OauthProvider
}

// OauthProvider is an OpenID Connect client. An empty Client disables it.
type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/auth/oauth-callback/google"`
}
