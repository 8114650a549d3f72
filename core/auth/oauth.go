package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/api/weberr"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/irsalhamdi/enrol-cart/core/user"
	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/irsalhamdi/enrol-cart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const oauthStateKey = "auth.oauth_state"

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

// Provider is an OpenID Connect provider users can sign in with.
type Provider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type Providers map[string]Provider

// MakeProviders discovers the configured providers. Providers without a
// client id are left out. ctx must stay alive as long as the providers are
// used since signing keys are fetched with it.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (Providers, error) {
	provs := make(Providers, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Client == "" {
			continue
		}

		p, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider %s at %s: %w", cfg.Name, cfg.URL, err)
		}

		provs[cfg.Name] = Provider{
			oauth: oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "email"},
			},
			verifier: p.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}
	return provs, nil
}

func provider(provs Providers, r *http.Request) (Provider, error) {
	name := web.Param(r, "provider")
	p, ok := provs[name]
	if !ok {
		return Provider{}, weberr.NotFound(fmt.Errorf("unknown oauth provider %q", name))
	}
	return p, nil
}

// HandleOauthLogin sends the user to the provider's consent page.
func HandleOauthLogin(sm *scs.SessionManager, provs Providers) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := provider(provs, r)
		if err != nil {
			return err
		}

		state := validate.GenerateID()
		sm.Put(ctx, oauthStateKey, state)

		http.Redirect(w, r, p.oauth.AuthCodeURL(state), http.StatusFound)
		return nil
	}
}

type idClaims struct {
	Email    string `json:"email"`
	Verified bool   `json:"email_verified"`
}

// HandleOauthCallback signs in the user the provider vouches for, creating
// the account on first sign in, and redirects to redirectURL. The login hooks
// run as for a password login.
func HandleOauthCallback(db *sqlx.DB, sm *scs.SessionManager, provs Providers, redirectURL string, log logrus.FieldLogger, hooks ...LoginHook) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := provider(provs, r)
		if err != nil {
			return err
		}

		q := r.URL.Query()
		state := sm.PopString(ctx, oauthStateKey)
		if state == "" || q.Get("state") != state {
			return weberr.NotAuthorized(errors.New("oauth state mismatch"))
		}

		tok, err := p.oauth.Exchange(ctx, q.Get("code"))
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("exchanging oauth code: %w", err))
		}

		raw, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.NotAuthorized(errors.New("no id token in the oauth token response"))
		}

		idt, err := p.verifier.Verify(ctx, raw)
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("verifying id token: %w", err))
		}

		var cl idClaims
		if err := idt.Claims(&cl); err != nil {
			return weberr.NotAuthorized(fmt.Errorf("decoding id token claims: %w", err))
		}
		if cl.Email == "" || !cl.Verified {
			return weberr.NotAuthorized(fmt.Errorf("id token of subject[%s] has no verified email", idt.Subject))
		}

		u, err := oauthUser(ctx, db, cl.Email)
		if err != nil {
			return err
		}

		if err := signIn(ctx, sm, u, log, hooks); err != nil {
			return err
		}

		http.Redirect(w, r, redirectURL, http.StatusFound)
		return nil
	}
}

// oauthUser returns the user with email, creating it when unknown. Accounts
// created this way get a random password.
func oauthUser(ctx context.Context, db *sqlx.DB, email string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := user.FetchByEmail(ctx, db, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, fmt.Errorf("fetching user: %w", err)
	}

	u, err = NewUser(email, validate.GenerateID(), claims.RoleUser)
	if err != nil {
		return user.User{}, err
	}
	err = user.Create(ctx, db, u)
	if errors.Is(err, database.ErrDBDuplicatedEntry) {
		// signed in concurrently for the first time
		return user.FetchByEmail(ctx, db, email)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("creating user from oauth login: %w", err)
	}
	return u, nil
}
