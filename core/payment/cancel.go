package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/enrol-cart/core/cart"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

// ExpirePayments is run when a cart is canceled. The pending payments of the
// cart are marked expired so they can no longer be captured, and their
// Stripe checkout sessions are expired so the buyer can not complete them.
func ExpirePayments(db *sqlx.DB, strp *stripecl.API) cart.CancelHook {
	return func(ctx context.Context, c *cart.Stored) error {
		ps, err := ListByCart(ctx, db, c.ID())
		if err != nil {
			return err
		}

		for _, p := range ps {
			if p.Status != Pending {
				continue
			}

			if p.Provider == ProviderStripe && strp != nil {
				if _, err := strp.CheckoutSessions.Expire(p.ProviderID, &stripe.CheckoutSessionExpireParams{}); err != nil {
					return fmt.Errorf("expiring stripe session[%s]: %w", p.ProviderID, err)
				}
			}

			if err := expire(ctx, db, p); err != nil {
				return err
			}
		}
		return nil
	}
}

func expire(ctx context.Context, db sqlx.ExtContext, p Payment) error {
	up := StatusUp{
		ID:        p.ID,
		Status:    Expired,
		UpdatedAt: time.Now().UTC(),
	}
	return UpdateStatus(ctx, db, up)
}
