package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Catalog serves read-only offer lookups for the cart.
type Catalog struct {
	db    *sqlx.DB
	cache Cache
	log   logrus.FieldLogger
	sfg   singleflight.Group
	fetch func(ctx context.Context, id string) (Offer, error)

	// gen counts the invalidations of each offer. A load only fills the
	// cache when no invalidation happened since it read the row.
	mu  sync.Mutex
	gen map[string]uint64
}

// New builds a catalog. cache may be nil, in which case every lookup hits the database.
func New(db *sqlx.DB, cache Cache, log logrus.FieldLogger) *Catalog {
	return &Catalog{
		db:    db,
		cache: cache,
		log:   log,
		gen:   make(map[string]uint64),
		fetch: func(ctx context.Context, id string) (Offer, error) {
			return FetchOffer(ctx, db, id)
		},
	}
}

func (c *Catalog) generation(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[id]
}

// store caches o unless the offer was invalidated after generation gen was read.
func (c *Catalog) store(ctx context.Context, o Offer, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen[o.ID] != gen {
		return
	}
	if err := c.cache.Set(ctx, o); err != nil {
		c.log.WithField("offer_id", o.ID).Warnf("offer cache set: %v", err)
	}
}

func (c *Catalog) invalidate(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen[id]++
	c.sfg.Forget(id)
	if err := c.cache.Delete(ctx, id); err != nil {
		return fmt.Errorf("evicting offer[%s] from cache: %w", id, err)
	}
	return nil
}

func (c *Catalog) Offer(ctx context.Context, id string) (Offer, error) {
	if c.cache != nil {
		o, err := c.cache.Get(ctx, id)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.WithField("offer_id", id).Warnf("offer cache get: %v", err)
		}
	}

	v, err, _ := c.sfg.Do(id, func() (interface{}, error) {
		gen := c.generation(id)
		o, err := c.fetch(ctx, id)
		if err != nil {
			return Offer{}, err
		}

		if c.cache != nil {
			c.store(ctx, o, gen)
		}
		return o, nil
	})
	if err != nil {
		return Offer{}, err
	}

	return v.(Offer), nil
}

// Course returns the course with its current cart offer, if any.
func (c *Catalog) Course(ctx context.Context, id string) (CourseView, error) {
	course, err := FetchCourse(ctx, c.db, id)
	if err != nil {
		return CourseView{}, err
	}

	v := CourseView{Course: course}
	o, err := c.CourseOffer(ctx, id)
	switch {
	case err == nil:
		v.Offer = &o
	case !errors.Is(err, ErrNotFound):
		return CourseView{}, err
	}
	return v, nil
}

func (c *Catalog) CourseOffer(ctx context.Context, courseID string) (Offer, error) {
	return FetchCourseOffer(ctx, c.db, courseID)
}

// SetOfferEnabled toggles an offer and drops it from the cache, so carts
// see the change on their next refresh.
func (c *Catalog) SetOfferEnabled(ctx context.Context, id string, enabled bool) error {
	if _, err := FetchOffer(ctx, c.db, id); err != nil {
		return err
	}

	if err := SetOfferEnabled(ctx, c.db, id, enabled); err != nil {
		return err
	}

	if c.cache != nil {
		return c.invalidate(ctx, id)
	}
	return nil
}
