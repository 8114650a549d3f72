package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexedwards/scs/v2"
)

const itemsKey = "cart.items"

// CookieStore keeps the items of an anonymous visitor as one serialized
// value in the visitor's session, which the client identifies by cookie.
type CookieStore struct {
	session *scs.SessionManager
}

func NewCookieStore(sm *scs.SessionManager) *CookieStore {
	return &CookieStore{session: sm}
}

func (s *CookieStore) Items(ctx context.Context) ([]Item, error) {
	raw := s.session.GetString(ctx, itemsKey)
	if raw == "" {
		return []Item{}, nil
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decoding cookie cart: %w", err)
	}
	return items, nil
}

func (s *CookieStore) Insert(ctx context.Context, it Item) error {
	items, err := s.Items(ctx)
	if err != nil {
		return err
	}
	return s.Replace(ctx, append(items, it))
}

func (s *CookieStore) Delete(ctx context.Context, it Item) error {
	items, err := s.Items(ctx)
	if err != nil {
		return err
	}

	kept := items[:0]
	for _, v := range items {
		if v.ID != it.ID {
			kept = append(kept, v)
		}
	}
	return s.Replace(ctx, kept)
}

// Replace overwrites the whole item list.
func (s *CookieStore) Replace(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		s.Clear(ctx)
		return nil
	}

	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding cookie cart: %w", err)
	}
	s.session.Put(ctx, itemsKey, string(b))
	return nil
}

func (s *CookieStore) Clear(ctx context.Context) {
	s.session.Remove(ctx, itemsKey)
}

// Cookie is the cart of a visitor who is not signed in. It has no identity
// on the server, is always current and can not be checked out.
type Cookie struct {
	store    *CookieStore
	catalog  Catalog
	settings *Settings

	items  []Item
	loaded bool
}

func NewCookie(store *CookieStore, cat Catalog, settings *Settings) *Cookie {
	return &Cookie{
		store:    store,
		catalog:  cat,
		settings: settings,
	}
}

func (c *Cookie) invalidate() {
	c.items = nil
	c.loaded = false
}

func (c *Cookie) Items(ctx context.Context) ([]Item, error) {
	if !c.loaded {
		items, err := c.store.Items(ctx)
		if err != nil {
			return nil, err
		}
		c.items = items
		c.loaded = true
	}
	return c.items, nil
}

func (c *Cookie) HasItem(ctx context.Context, instanceID string) (bool, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return false, err
	}
	_, ok := findItem(items, instanceID)
	return ok, nil
}

func (c *Cookie) AddItem(ctx context.Context, instanceID string) (bool, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return false, err
	}
	defer c.invalidate()

	return addItem(ctx, c.catalog, c.store, items, "", instanceID, time.Now().UTC())
}

func (c *Cookie) RemoveItem(ctx context.Context, instanceID string) (bool, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return false, err
	}
	defer c.invalidate()

	return removeItem(ctx, c.store, items, instanceID)
}

func (c *Cookie) AddCourse(ctx context.Context, courseID string) (bool, error) {
	id, ok, err := courseInstance(ctx, c.catalog, courseID)
	if err != nil || !ok {
		return false, err
	}
	return c.AddItem(ctx, id)
}

func (c *Cookie) RemoveCourse(ctx context.Context, courseID string) (bool, error) {
	id, ok, err := courseInstance(ctx, c.catalog, courseID)
	if err != nil || !ok {
		return false, err
	}
	return c.RemoveItem(ctx, id)
}

// Refresh drops the items whose offer can no longer be bought.
func (c *Cookie) Refresh(ctx context.Context) error {
	c.invalidate()

	items, err := c.store.Items(ctx)
	if err != nil {
		return err
	}

	kept, err := prune(ctx, c.catalog, c.store, items, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pruning cookie cart: %w", err)
	}

	c.items = kept
	c.loaded = true
	return nil
}

func (c *Cookie) Checkout(ctx context.Context) (bool, error) { return false, nil }

func (c *Cookie) Cancel(ctx context.Context) (bool, error) { return false, nil }

func (c *Cookie) Deliver(ctx context.Context) (bool, error) { return false, nil }

func (c *Cookie) Status() Status { return Current }

func (c *Cookie) Currency() string { return c.settings.Currency() }

func (c *Cookie) Summary(ctx context.Context) (Summary, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return Summary{}, err
	}

	cur := c.Currency()
	price, payable := totals(items)
	return Summary{
		Status:        Current.String(),
		Price:         price,
		PriceString:   FormatCost(price, cur),
		Payable:       payable,
		PayableString: FormatCost(payable, cur),
		Currency:      cur,
		Count:         len(items),
		Items:         summarize(items, cur),
	}, nil
}

// Flush forgets every item of the cart.
func (c *Cookie) Flush(ctx context.Context) {
	c.store.Clear(ctx)
	c.invalidate()
}
