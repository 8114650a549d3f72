package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/api/weberr"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/irsalhamdi/enrol-cart/core/user"
	"github.com/irsalhamdi/enrol-cart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	userIDKey = "auth.user_id"
	roleKey   = "auth.role"
)

// LoginHook runs right after a user signed in, with the user's claims in ctx.
type LoginHook func(ctx context.Context) error

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Claims loads the claims of the signed-in user from the session. Requests
// without a signed-in user carry no claims.
func Claims(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if id := sm.GetString(ctx, userIDKey); id != "" {
				ctx = claims.Set(ctx, claims.Claims{
					UserID: id,
					Role:   sm.GetString(ctx, roleKey),
				})
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Authenticate() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, ok := claims.UserID(ctx); !ok {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Admin() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, ok := claims.UserID(ctx); !ok {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			if !claims.IsAdmin(ctx) {
				return weberr.Forbidden(errors.New("user is not an admin"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func HandleLogin(db *sqlx.DB, sm *scs.SessionManager, log logrus.FieldLogger, hooks ...LoginHook) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in Credentials
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.Invalid(err)
		}

		email := strings.ToLower(strings.TrimSpace(in.Email))
		u, err := user.FetchByEmail(ctx, db, email)
		if errors.Is(err, user.ErrNotFound) {
			return weberr.NotAuthorized(fmt.Errorf("unknown email[%s]", email))
		}
		if err != nil {
			return fmt.Errorf("fetching user: %w", err)
		}

		if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(in.Password)); err != nil {
			return weberr.NotAuthorized(fmt.Errorf("wrong password for user[%s]", u.ID))
		}

		if err := signIn(ctx, sm, u, log, hooks); err != nil {
			return err
		}
		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

// signIn stores the user in a fresh session and runs the login hooks with
// the user's claims. Hook failures are logged and do not fail the login.
func signIn(ctx context.Context, sm *scs.SessionManager, u user.User, log logrus.FieldLogger, hooks []LoginHook) error {
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	sm.Put(ctx, userIDKey, u.ID)
	sm.Put(ctx, roleKey, u.Role)

	ctx = claims.Set(ctx, claims.Claims{UserID: u.ID, Role: u.Role})
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			log.WithField("user_id", u.ID).Errorf("login hook: %v", err)
		}
	}
	return nil
}

func HandleLogout(sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := sm.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HashPassword hashes a password for storage.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// NewUser builds a user ready to be stored.
func NewUser(email, password, role string) (user.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return user.User{}, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	return user.User{
		ID:           validate.GenerateID(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
