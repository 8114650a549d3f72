package test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/validate"
)

const (
	oidcClientID = "cart-client"
	oidcKeyID    = "test-key"
)

// mockOIDC is an OpenID Connect provider that approves every consent
// request for the email set with signInAs.
type mockOIDC struct {
	*httptest.Server
	key *rsa.PrivateKey

	mu    sync.Mutex
	email string
	codes map[string]string
}

func newMockOIDC(t *testing.T) *mockOIDC {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating oidc key: %v", err)
	}

	m := &mockOIDC{key: key, codes: make(map[string]string)}
	m.Server = httptest.NewServer(m.handle())
	t.Cleanup(m.Close)
	return m
}

func (m *mockOIDC) signInAs(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.email = email
}

func (m *mockOIDC) handle() http.Handler {
	discovery := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{
			"issuer":                                m.URL,
			"authorization_endpoint":                m.URL + "/authorize",
			"token_endpoint":                        m.URL + "/token",
			"jwks_uri":                              m.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		}
		web.Respond(context.Background(), w, doc, http.StatusOK)
	})

	keys := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &m.key.PublicKey,
			KeyID:     oidcKeyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}}
		web.Respond(context.Background(), w, set, http.StatusOK)
	})

	authorize := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("client_id") != oidcClientID {
			http.Error(w, "unknown client", http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		code := "code-" + validate.GenerateID()
		m.codes[code] = m.email
		m.mu.Unlock()

		back, err := url.Parse(q.Get("redirect_uri"))
		if err != nil {
			http.Error(w, "bad redirect", http.StatusBadRequest)
			return
		}
		v := back.Query()
		v.Set("code", code)
		v.Set("state", q.Get("state"))
		back.RawQuery = v.Encode()

		http.Redirect(w, r, back.String(), http.StatusFound)
	})

	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		email, ok := m.codes[r.PostForm.Get("code")]
		delete(m.codes, r.PostForm.Get("code"))
		m.mu.Unlock()
		if !ok {
			web.Respond(context.Background(), w, map[string]string{"error": "invalid_grant"}, http.StatusBadRequest)
			return
		}

		idt, err := m.idToken(email)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		tok := map[string]any{
			"access_token": "access-" + validate.GenerateID(),
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idt,
		}
		web.Respond(context.Background(), w, tok, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/.well-known/openid-configuration", discovery).Methods("GET")
	r.Handle("/keys", keys).Methods("GET")
	r.Handle("/authorize", authorize).Methods("GET")
	r.Handle("/token", token).Methods("POST")
	return r
}

func (m *mockOIDC) idToken(email string) (string, error) {
	opts := (&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", oidcKeyID)
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: m.key}, opts)
	if err != nil {
		return "", err
	}

	now := time.Now()
	std := jwt.Claims{
		Issuer:   m.URL,
		Subject:  "subject-" + email,
		Audience: jwt.Audience{oidcClientID},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
	}
	extra := map[string]any{
		"email":          email,
		"email_verified": true,
	}
	return jwt.Signed(sig).Claims(std).Claims(extra).CompactSerialize()
}
