package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/irsalhamdi/enrol-cart/validate"
)

// ItemStore persists the items of a single cart.
type ItemStore interface {
	Items(ctx context.Context) ([]Item, error)
	Insert(ctx context.Context, it Item) error
	Delete(ctx context.Context, it Item) error
}

// availableOffer resolves an offer that can be bought right now. A missing
// or unavailable offer is not an error.
func availableOffer(ctx context.Context, cat Catalog, id string, now time.Time) (catalog.Offer, bool, error) {
	if validate.CheckID(id) != nil {
		return catalog.Offer{}, false, nil
	}

	o, err := cat.Offer(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Offer{}, false, nil
	}
	if err != nil {
		return catalog.Offer{}, false, fmt.Errorf("resolving offer[%s]: %w", id, err)
	}

	return o, o.Available(now), nil
}

// addItem stores a new item for instanceID unless items already holds it or
// its offer cannot be bought.
func addItem(ctx context.Context, cat Catalog, st ItemStore, items []Item, cartID string, instanceID string, now time.Time) (bool, error) {
	if _, ok := findItem(items, instanceID); ok {
		return false, nil
	}

	o, ok, err := availableOffer(ctx, cat, instanceID, now)
	if err != nil || !ok {
		return false, err
	}

	it := Item{
		ID:         validate.GenerateID(),
		CartID:     cartID,
		InstanceID: o.ID,
		Price:      o.Cost,
		Payable:    o.Cost,
		CourseID:   o.CourseID,
		CourseName: o.CourseName,
		CreatedAt:  now,
	}

	if err := st.Insert(ctx, it); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return false, nil
		}
		return false, fmt.Errorf("inserting item for offer[%s]: %w", instanceID, err)
	}
	return true, nil
}

func removeItem(ctx context.Context, st ItemStore, items []Item, instanceID string) (bool, error) {
	it, ok := findItem(items, instanceID)
	if !ok {
		return false, nil
	}

	if err := st.Delete(ctx, it); err != nil {
		return false, fmt.Errorf("deleting item[%s]: %w", it.ID, err)
	}
	return true, nil
}

// prune deletes the items whose offer can no longer be bought and returns
// the remaining ones.
func prune(ctx context.Context, cat Catalog, st ItemStore, items []Item, now time.Time) ([]Item, error) {
	kept := make([]Item, 0, len(items))
	for _, it := range items {
		_, ok, err := availableOffer(ctx, cat, it.InstanceID, now)
		if err != nil {
			return nil, err
		}

		if ok {
			kept = append(kept, it)
			continue
		}

		if err := st.Delete(ctx, it); err != nil {
			return nil, fmt.Errorf("deleting stale item[%s]: %w", it.ID, err)
		}
	}
	return kept, nil
}

func courseInstance(ctx context.Context, cat Catalog, courseID string) (string, bool, error) {
	if validate.CheckID(courseID) != nil {
		return "", false, nil
	}

	o, err := cat.CourseOffer(ctx, courseID)
	if errors.Is(err, catalog.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolving offer of course[%s]: %w", courseID, err)
	}
	return o.ID, true, nil
}

func summarize(items []Item, cur string) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.Format(cur)
		out[i] = it
	}
	return out
}
