package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/api/weberr"
	"github.com/irsalhamdi/enrol-cart/validate"
)

type OfferEnabledUp struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func HandleShowOffer(cat *Catalog) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NotFound(fmt.Errorf("offer[%s] not found", id))
		}

		o, err := cat.Offer(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(fmt.Errorf("offer[%s] not found", id))
		}
		if err != nil {
			return fmt.Errorf("fetching offer[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, o, http.StatusOK)
	}
}

func HandleShowCourse(cat *Catalog) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NotFound(fmt.Errorf("course[%s] not found", id))
		}

		v, err := cat.Course(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(fmt.Errorf("course[%s] not found", id))
		}
		if err != nil {
			return fmt.Errorf("fetching course[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleSetOfferEnabled(cat *Catalog) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NotFound(fmt.Errorf("offer[%s] not found", id))
		}

		var in OfferEnabledUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.Invalid(err)
		}

		err := cat.SetOfferEnabled(ctx, id, *in.Enabled)
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(fmt.Errorf("offer[%s] not found", id))
		}
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
