package enrol

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/api/weberr"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/jmoiron/sqlx"
)

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		es, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing enrolments: %w", err)
		}

		return web.Respond(ctx, w, es, http.StatusOK)
	}
}
