package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/irsalhamdi/enrol-cart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Resolver finds the cart a request works on: the cookie cart for visitors
// and the current stored cart for signed-in users.
type Resolver struct {
	db      *sqlx.DB
	cookies *CookieStore
	deps    Deps
}

func NewResolver(db *sqlx.DB, cookies *CookieStore, deps Deps) *Resolver {
	return &Resolver{
		db:      db,
		cookies: cookies,
		deps:    deps,
	}
}

type scopeKey int

const currentKey scopeKey = 1

type scope struct {
	cart Cart
}

// Scope makes Current resolve the cart at most once per request.
func (r *Resolver) Scope() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, req *http.Request) error {
			ctx = context.WithValue(ctx, currentKey, &scope{})
			return handler(ctx, w, req)
		}
		return h
	}
	return m
}

// Current returns the cart of the caller. For a signed-in user without a
// current cart it returns ErrNotFound, unless forceNew asks to create one.
func (r *Resolver) Current(ctx context.Context, forceNew bool) (Cart, error) {
	sc, _ := ctx.Value(currentKey).(*scope)
	if sc != nil && sc.cart != nil {
		return sc.cart, nil
	}

	var c Cart
	userID, ok := claims.UserID(ctx)
	if !ok {
		c = r.Cookie()
	} else {
		s, err := r.current(ctx, userID, forceNew)
		if err != nil {
			return nil, err
		}
		c = s
	}

	if sc != nil {
		sc.cart = c
	}
	return c, nil
}

func (r *Resolver) Cookie() *Cookie {
	return NewCookie(r.cookies, r.deps.Catalog, r.deps.Settings)
}

// Find loads a stored cart by id, whatever its status.
func (r *Resolver) Find(ctx context.Context, id string) (*Stored, error) {
	if validate.CheckID(id) != nil {
		return nil, ErrNotFound
	}

	rec, err := Fetch(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return newStored(r.db, r.deps, rec), nil
}

func (r *Resolver) current(ctx context.Context, userID string, forceNew bool) (*Stored, error) {
	rec, err := FetchCurrent(ctx, r.db, userID)
	if err == nil {
		return newStored(r.db, r.deps, rec), nil
	}
	if !errors.Is(err, ErrNotFound) || !forceNew {
		return nil, err
	}

	now := time.Now().UTC()
	rec = Record{
		ID:        validate.GenerateID(),
		UserID:    userID,
		Status:    Current,
		Price:     decimal.Zero,
		Payable:   decimal.Zero,
		CreatedAt: now,
		CreatedBy: userID,
		UpdatedAt: now,
		UpdatedBy: userID,
	}

	if err := Create(ctx, r.db, rec); err != nil {
		if !errors.Is(err, database.ErrDBDuplicatedEntry) {
			return nil, err
		}

		// another request created the current cart first
		rec, err = FetchCurrent(ctx, r.db, userID)
		if err != nil {
			return nil, err
		}
	}

	return newStored(r.db, r.deps, rec), nil
}

// MoveCookieCartToDB moves the visitor's cookie cart into the current
// stored cart of the user who just signed in. Each item goes through
// AddItem, so duplicates and offers that can no longer be bought are
// dropped. The cookie cart is emptied afterwards. It reports how many
// items were moved.
func (r *Resolver) MoveCookieCartToDB(ctx context.Context) (int, error) {
	userID, ok := claims.UserID(ctx)
	if !ok {
		return 0, nil
	}

	cookie := r.Cookie()
	items, err := cookie.Items(ctx)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	c, err := r.current(ctx, userID, true)
	if err != nil {
		return 0, fmt.Errorf("resolving current cart of user[%s]: %w", userID, err)
	}

	moved := 0
	for _, it := range items {
		ok, err := c.AddItem(ctx, it.InstanceID)
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}

	cookie.Flush(ctx)

	r.deps.Log.WithField("cart_id", c.ID()).Infof("moved %d of %d cookie cart items", moved, len(items))
	return moved, nil
}
