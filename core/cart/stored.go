package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators shared by every cart.
type Deps struct {
	Catalog  Catalog
	Enroller Enroller
	Settings *Settings
	Log      logrus.FieldLogger
}

// Stored is the cart of a signed-in user, persisted in the carts table.
// Each mutation runs in its own transaction holding the cart's row lock.
type Stored struct {
	db   *sqlx.DB
	deps Deps
	rec  Record

	items  []Item
	loaded bool
}

func newStored(db *sqlx.DB, deps Deps, rec Record) *Stored {
	return &Stored{
		db:   db,
		deps: deps,
		rec:  rec,
	}
}

func (c *Stored) Record() Record { return c.rec }

func (c *Stored) ID() string { return c.rec.ID }

func (c *Stored) UserID() string { return c.rec.UserID }

func (c *Stored) Status() Status { return c.rec.Status }

// Currency is frozen on the cart at checkout; before that the configured one applies.
func (c *Stored) Currency() string {
	if c.rec.Currency != "" {
		return c.rec.Currency
	}
	return c.deps.Settings.Currency()
}

func (c *Stored) invalidate() {
	c.items = nil
	c.loaded = false
}

func (c *Stored) Items(ctx context.Context) ([]Item, error) {
	if !c.loaded {
		items, err := FetchItems(ctx, c.db, c.rec.ID)
		if err != nil {
			return nil, err
		}
		c.items = items
		c.loaded = true
	}
	return c.items, nil
}

func (c *Stored) HasItem(ctx context.Context, instanceID string) (bool, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return false, err
	}
	_, ok := findItem(items, instanceID)
	return ok, nil
}

// locked runs f in a transaction that holds the cart row lock. The cached
// record is replaced only when the transaction commits.
func (c *Stored) locked(ctx context.Context, f func(tx sqlx.ExtContext, rec *Record) error) error {
	var rec Record
	err := database.Transaction(ctx, c.db, func(tx sqlx.ExtContext) error {
		var err error
		rec, err = FetchForUpdate(ctx, tx, c.rec.ID)
		if err != nil {
			return err
		}
		return f(tx, &rec)
	})
	c.invalidate()
	if err != nil {
		return err
	}

	c.rec = rec
	return nil
}

func (c *Stored) actor(ctx context.Context) string {
	if id, ok := claims.UserID(ctx); ok {
		return id
	}
	return c.rec.UserID
}

// refresh drops the items whose offer can no longer be bought and stores
// the totals of the remaining ones. Carts past checkout keep their snapshot.
func (c *Stored) refresh(ctx context.Context, tx sqlx.ExtContext, rec *Record, now time.Time) error {
	if rec.Status != Current {
		return nil
	}

	st := dbItems{db: tx, cartID: rec.ID}
	items, err := st.Items(ctx)
	if err != nil {
		return err
	}

	kept, err := prune(ctx, c.deps.Catalog, st, items, now)
	if err != nil {
		return err
	}

	rec.Price, rec.Payable = totals(kept)
	rec.UpdatedAt = now
	rec.UpdatedBy = c.actor(ctx)

	return UpdateTotals(ctx, tx, TotalsUp{
		ID:        rec.ID,
		Price:     rec.Price,
		Payable:   rec.Payable,
		UpdatedAt: rec.UpdatedAt,
		UpdatedBy: rec.UpdatedBy,
	})
}

func (c *Stored) Refresh(ctx context.Context) error {
	err := c.locked(ctx, func(tx sqlx.ExtContext, rec *Record) error {
		return c.refresh(ctx, tx, rec, time.Now().UTC())
	})
	if err != nil {
		return fmt.Errorf("refreshing cart[%s]: %w", c.rec.ID, err)
	}
	return nil
}

func (c *Stored) AddItem(ctx context.Context, instanceID string) (bool, error) {
	var added bool
	err := c.locked(ctx, func(tx sqlx.ExtContext, rec *Record) error {
		if rec.Status != Current {
			return nil
		}

		now := time.Now().UTC()
		st := dbItems{db: tx, cartID: rec.ID}
		items, err := st.Items(ctx)
		if err != nil {
			return err
		}

		added, err = addItem(ctx, c.deps.Catalog, st, items, rec.ID, instanceID, now)
		if err != nil || !added {
			return err
		}
		return c.refresh(ctx, tx, rec, now)
	})
	if err != nil {
		return false, fmt.Errorf("adding offer[%s] to cart[%s]: %w", instanceID, c.rec.ID, err)
	}
	return added, nil
}

func (c *Stored) RemoveItem(ctx context.Context, instanceID string) (bool, error) {
	var removed bool
	err := c.locked(ctx, func(tx sqlx.ExtContext, rec *Record) error {
		if rec.Status != Current {
			return nil
		}

		st := dbItems{db: tx, cartID: rec.ID}
		items, err := st.Items(ctx)
		if err != nil {
			return err
		}

		removed, err = removeItem(ctx, st, items, instanceID)
		if err != nil || !removed {
			return err
		}
		return c.refresh(ctx, tx, rec, time.Now().UTC())
	})
	if err != nil {
		return false, fmt.Errorf("removing offer[%s] from cart[%s]: %w", instanceID, c.rec.ID, err)
	}
	return removed, nil
}

func (c *Stored) AddCourse(ctx context.Context, courseID string) (bool, error) {
	id, ok, err := courseInstance(ctx, c.deps.Catalog, courseID)
	if err != nil || !ok {
		return false, err
	}
	return c.AddItem(ctx, id)
}

func (c *Stored) RemoveCourse(ctx context.Context, courseID string) (bool, error) {
	id, ok, err := courseInstance(ctx, c.deps.Catalog, courseID)
	if err != nil || !ok {
		return false, err
	}
	return c.RemoveItem(ctx, id)
}

// setStatus moves the locked cart to status. It must only be called from
// within locked.
func (c *Stored) setStatus(ctx context.Context, tx sqlx.ExtContext, rec *Record, status Status, freezeCurrency bool) (bool, error) {
	up := StatusUp{
		ID:        rec.ID,
		Expected:  rec.Status,
		Status:    status,
		Currency:  rec.Currency,
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: c.actor(ctx),
	}
	if freezeCurrency {
		up.Currency = c.deps.Settings.Currency()
	}

	ok, err := UpdateStatus(ctx, tx, up)
	if err != nil || !ok {
		return false, err
	}

	rec.Status = up.Status
	rec.Currency = up.Currency
	rec.UpdatedAt = up.UpdatedAt
	rec.UpdatedBy = up.UpdatedBy
	return true, nil
}

// Checkout freezes the cart for payment. The configured currency is stamped
// on the cart so later configuration changes do not affect it.
func (c *Stored) Checkout(ctx context.Context) (bool, error) {
	var ok bool
	err := c.locked(ctx, func(tx sqlx.ExtContext, rec *Record) error {
		if rec.Status != Current {
			return nil
		}

		var err error
		ok, err = c.setStatus(ctx, tx, rec, Checkout, true)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("checking out cart[%s]: %w", c.rec.ID, err)
	}
	return ok, nil
}

func (c *Stored) Cancel(ctx context.Context) (bool, error) {
	var ok bool
	err := c.locked(ctx, func(tx sqlx.ExtContext, rec *Record) error {
		if rec.Status != Current && rec.Status != Checkout {
			return nil
		}

		var err error
		ok, err = c.setStatus(ctx, tx, rec, Canceled, false)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("canceling cart[%s]: %w", c.rec.ID, err)
	}
	return ok, nil
}

// Deliver enrols the owner in every course of a checked out cart and marks
// it delivered, all in one transaction: either every enrolment is applied
// and the cart is delivered, or nothing changes. Delivering an already
// delivered cart succeeds without enrolling again.
func (c *Stored) Deliver(ctx context.Context) (bool, error) {
	var ok bool
	err := c.locked(ctx, func(tx sqlx.ExtContext, rec *Record) error {
		switch rec.Status {
		case Delivered:
			ok = true
			return nil
		case Checkout:
		default:
			return nil
		}

		items, err := FetchItems(ctx, tx, rec.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, it := range items {
			o, err := catalog.FetchOffer(ctx, tx, it.InstanceID)
			if err != nil {
				return fmt.Errorf("loading offer[%s]: %w", it.InstanceID, err)
			}

			start, end := o.Window(now)
			if err := c.deps.Enroller.EnrolUser(ctx, tx, o, rec.UserID, o.RoleID, start, end); err != nil {
				return err
			}
		}

		ok, err = c.setStatus(ctx, tx, rec, Delivered, false)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delivering cart[%s]: %w", c.rec.ID, err)
	}
	return ok, nil
}

func (c *Stored) Summary(ctx context.Context) (Summary, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return Summary{}, err
	}

	// totals are stored while the cart is current and frozen afterwards
	price, payable := c.rec.Price, c.rec.Payable
	if price.IsZero() && payable.IsZero() {
		price, payable = totals(items)
	}

	cur := c.Currency()
	return Summary{
		ID:            c.rec.ID,
		UserID:        c.rec.UserID,
		Status:        c.rec.Status.String(),
		Price:         price,
		PriceString:   FormatCost(price, cur),
		Payable:       payable,
		PayableString: FormatCost(payable, cur),
		Currency:      cur,
		Count:         len(items),
		Items:         summarize(items, cur),
	}, nil
}
