package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/api/weberr"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/irsalhamdi/enrol-cart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func emptySummary(cur string) Summary {
	return Summary{
		Status:        Current.String(),
		Price:         decimal.Zero,
		PriceString:   Free,
		Payable:       decimal.Zero,
		PayableString: Free,
		Currency:      cur,
		Items:         []Item{},
	}
}

// HandleShow renders the caller's current cart after validating its items.
func HandleShow(res *Resolver) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := res.Current(ctx, false)
		if errors.Is(err, ErrNotFound) {
			return web.Respond(ctx, w, emptySummary(res.deps.Settings.Currency()), http.StatusOK)
		}
		if err != nil {
			return fmt.Errorf("resolving current cart: %w", err)
		}

		items, err := c.Items(ctx)
		if err != nil {
			return fmt.Errorf("loading cart items: %w", err)
		}

		if len(items) > 0 {
			if err := c.Refresh(ctx); err != nil {
				return err
			}
		}

		s, err := c.Summary(ctx)
		if err != nil {
			return fmt.Errorf("summarizing cart: %w", err)
		}
		return web.Respond(ctx, w, s, http.StatusOK)
	}
}

func HandleCreateItem(res *Resolver) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.Invalid(err)
		}

		c, err := res.Current(ctx, true)
		if err != nil {
			return fmt.Errorf("resolving current cart: %w", err)
		}

		var ok bool
		if in.InstanceID != "" {
			ok, err = c.AddItem(ctx, in.InstanceID)
		} else {
			ok, err = c.AddCourse(ctx, in.CourseID)
		}
		if err != nil {
			return err
		}

		if !ok {
			err := errors.New("the item could not be added to the cart")
			return weberr.Unprocessable(err, err.Error())
		}

		return respondSummary(ctx, w, c)
	}
}

func HandleDeleteItem(res *Resolver) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return remove(ctx, w, res, func(c Cart) (bool, error) {
			return c.RemoveItem(ctx, web.Param(r, "instance_id"))
		})
	}
}

func HandleDeleteCourse(res *Resolver) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return remove(ctx, w, res, func(c Cart) (bool, error) {
			return c.RemoveCourse(ctx, web.Param(r, "course_id"))
		})
	}
}

func remove(ctx context.Context, w http.ResponseWriter, res *Resolver, f func(Cart) (bool, error)) error {
	c, err := res.Current(ctx, false)
	if errors.Is(err, ErrNotFound) {
		return weberr.NotFound(errors.New("no current cart"))
	}
	if err != nil {
		return fmt.Errorf("resolving current cart: %w", err)
	}

	ok, err := f(c)
	if err != nil {
		return err
	}
	if !ok {
		err := errors.New("the item could not be removed from the cart")
		return weberr.Unprocessable(err, err.Error())
	}

	return respondSummary(ctx, w, c)
}

func respondSummary(ctx context.Context, w http.ResponseWriter, c Cart) error {
	s, err := c.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summarizing cart: %w", err)
	}
	return web.Respond(ctx, w, s, http.StatusOK)
}

type CheckoutResult struct {
	Cart            Summary `json:"cart"`
	PaymentRequired bool    `json:"paymentRequired"`
	Delivered       bool    `json:"delivered"`
}

// HandleCheckout validates the current cart before payment. Carts that have
// nothing to pay are checked out and delivered at once.
func HandleCheckout(res *Resolver) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if _, err := claims.Get(ctx); err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		c, err := res.Current(ctx, false)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("resolving current cart: %w", err)
		}

		var items []Item
		if c != nil {
			if items, err = c.Items(ctx); err != nil {
				return fmt.Errorf("loading cart items: %w", err)
			}
		}
		if len(items) == 0 {
			err := errors.New("no items to checkout")
			return weberr.Unprocessable(err, err.Error())
		}

		if err := c.Refresh(ctx); err != nil {
			return err
		}

		s, err := c.Summary(ctx)
		if err != nil {
			return fmt.Errorf("summarizing cart: %w", err)
		}
		if s.IsEmpty() {
			err := errors.New("no items left to checkout")
			return weberr.Unprocessable(err, err.Error())
		}

		if s.Payable.IsPositive() {
			return web.Respond(ctx, w, CheckoutResult{Cart: s, PaymentRequired: true}, http.StatusOK)
		}

		ok, err := c.Checkout(ctx)
		if err != nil {
			return err
		}
		if !ok {
			err := fmt.Errorf("free cart[%s] is no longer current", s.ID)
			return weberr.NewError(err, "the cart could not be checked out", http.StatusConflict)
		}

		ok, err = c.Deliver(ctx)
		if err != nil {
			return weberr.InternalError(err)
		}
		if !ok {
			return weberr.InternalError(fmt.Errorf("free cart[%s] was not delivered", s.ID))
		}

		if s, err = c.Summary(ctx); err != nil {
			return fmt.Errorf("summarizing cart: %w", err)
		}
		return web.Respond(ctx, w, CheckoutResult{Cart: s, Delivered: true}, http.StatusOK)
	}
}

// owned loads the cart named in the path when the caller may see it.
// Carts of other users are reported as missing.
func owned(ctx context.Context, res *Resolver, r *http.Request) (*Stored, error) {
	clm, err := claims.Get(ctx)
	if err != nil {
		return nil, weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	id := web.Param(r, "id")
	c, err := res.Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, weberr.NotFound(fmt.Errorf("cart[%s] not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("fetching cart[%s]: %w", id, err)
	}

	if !claims.CanAccess(ctx, c.UserID()) {
		return nil, weberr.NotFound(fmt.Errorf("cart[%s] of user[%s] requested by user[%s]", id, c.UserID(), clm.UserID))
	}
	return c, nil
}

func HandleShowByID(res *Resolver) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := owned(ctx, res, r)
		if err != nil {
			return err
		}
		return respondSummary(ctx, w, c)
	}
}

// CancelHook runs after a cart has been canceled.
type CancelHook func(ctx context.Context, c *Stored) error

// HandleCancel cancels the cart named in the path. Hook failures are logged
// and do not undo the cancellation.
func HandleCancel(res *Resolver, hooks ...CancelHook) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := owned(ctx, res, r)
		if err != nil {
			return err
		}

		ok, err := c.Cancel(ctx)
		if err != nil {
			return err
		}
		if !ok {
			err := fmt.Errorf("cart in status %s can not be canceled", c.Status())
			return weberr.Unprocessable(err, err.Error())
		}

		for _, hook := range hooks {
			if err := hook(ctx, c); err != nil {
				res.deps.Log.WithField("cart_id", c.ID()).Errorf("cancel hook: %v", err)
			}
		}
		return respondSummary(ctx, w, c)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		recs, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing carts: %w", err)
		}
		return web.Respond(ctx, w, recs, http.StatusOK)
	}
}

// RequireEnabled refuses every request while carts are disabled.
func RequireEnabled(settings *Settings) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !settings.Enabled() {
				return weberr.NewError(errors.New("carts are disabled"), "the cart is disabled", http.StatusForbidden)
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

type SettingsUp struct {
	Enabled        *bool   `json:"enabled"`
	Currency       *string `json:"currency" validate:"omitempty,len=3"`
	PaymentAccount *string `json:"paymentAccount" validate:"omitempty,min=1"`
}

type SettingsView struct {
	Enabled        bool   `json:"enabled"`
	Currency       string `json:"currency"`
	PaymentAccount string `json:"paymentAccount"`
}

// HandleUpdateSettings switches carts on or off and changes the store
// currency or payment account. Carts already checked out keep the currency
// they were frozen with.
func HandleUpdateSettings(settings *Settings) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in SettingsUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.Invalid(err)
		}

		if in.Currency != nil {
			if err := settings.SetCurrency(*in.Currency); err != nil {
				return weberr.Invalid(err)
			}
		}
		if in.PaymentAccount != nil {
			settings.SetPaymentAccount(*in.PaymentAccount)
		}
		if in.Enabled != nil {
			settings.SetEnabled(*in.Enabled)
		}

		out := SettingsView{
			Enabled:        settings.Enabled(),
			Currency:       settings.Currency(),
			PaymentAccount: settings.PaymentAccount(),
		}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
