package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/irsalhamdi/enrol-cart/api/web"
	"github.com/irsalhamdi/enrol-cart/api/weberr"
	"github.com/irsalhamdi/enrol-cart/config"
	"github.com/irsalhamdi/enrol-cart/core/cart"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/irsalhamdi/enrol-cart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

func payable(ctx context.Context, svc *Service, r *http.Request) (Payable, string, error) {
	userID, ok := claims.UserID(ctx)
	if !ok {
		return Payable{}, "", weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	cartID := web.Param(r, "id")
	p, err := svc.ResolvePayable(ctx, cartID, userID)
	if err != nil {
		return Payable{}, "", fmt.Errorf("resolving payable of cart[%s]: %w", cartID, err)
	}

	if !p.IsPayable() {
		err := fmt.Errorf("cart[%s] has nothing to pay", cartID)
		return Payable{}, "", weberr.Unprocessable(err, "the cart can not be paid")
	}
	return p, cartID, nil
}

func record(ctx context.Context, db *sqlx.DB, cartID, userID, provider, providerID string, p Payable) error {
	now := time.Now().UTC()
	pay := Payment{
		ID:         validate.GenerateID(),
		CartID:     cartID,
		UserID:     userID,
		Provider:   provider,
		ProviderID: providerID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     Pending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := Create(ctx, db, pay); err != nil {
		return fmt.Errorf("recording payment[%s] of cart[%s]: %w", providerID, cartID, err)
	}
	return nil
}

// fulfill delivers the cart bound to a completed provider payment. Payments
// already fulfilled are left alone.
func fulfill(ctx context.Context, db *sqlx.DB, svc *Service, providerID string) error {
	pay, err := FetchByProviderID(ctx, db, providerID)
	if err != nil {
		return fmt.Errorf("fetching the payment bound to provider reference[%s]: %w", providerID, err)
	}
	if pay.Status == Success {
		return nil
	}

	if !svc.DeliverOrder(ctx, pay.CartID, pay.ID, pay.UserID) {
		err := fmt.Errorf("delivering cart[%s] paid by payment[%s] failed", pay.CartID, pay.ID)
		return weberr.InternalError(err, weberr.WithFields(map[string]any{
			"cart_id":     pay.CartID,
			"payment_id":  pay.ID,
			"provider":    pay.Provider,
			"provider_id": pay.ProviderID,
		}))
	}

	up := StatusUp{
		ID:        pay.ID,
		Status:    Success,
		UpdatedAt: time.Now().UTC(),
	}
	return UpdateStatus(ctx, db, up)
}

func HandlePaypalCheckout(db *sqlx.DB, svc *Service, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, cartID, err := payable(ctx, svc, r)
		if err != nil {
			return err
		}

		scale := cart.Scale(p.Currency)
		items := make([]paypal.Item, 0, len(p.Items))
		for _, it := range p.Items {
			if !it.Payable.IsPositive() {
				continue
			}

			items = append(items, paypal.Item{
				Quantity: "1",
				Name:     it.CourseName,
				SKU:      it.InstanceID,

				UnitAmount: &paypal.Money{
					Currency: p.Currency,
					Value:    it.Payable.StringFixed(scale),
				},
			})
		}

		total := p.Amount.StringFixed(scale)
		units := []paypal.PurchaseUnitRequest{{
			ReferenceID: cartID,
			Items:       items,

			Amount: &paypal.PurchaseUnitAmount{
				Currency: p.Currency,
				Value:    total,

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
					Currency: p.Currency,
					Value:    total,
				}},
			},
		}}

		app := &paypal.ApplicationContext{
			ReturnURL: svc.SuccessURL(cartID),
		}

		ord, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, app)
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		userID, _ := claims.UserID(ctx)
		if err := record(ctx, db, cartID, userID, ProviderPaypal, ord.ID, p); err != nil {
			return err
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, svc *Service, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		pay, err := FetchByProviderID(ctx, db, providerID)
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(fmt.Errorf("paypal order[%s] not found", providerID))
		}
		if err != nil {
			return err
		}
		if !claims.IsUser(ctx, pay.UserID) {
			return weberr.NotFound(fmt.Errorf("paypal order[%s] of user[%s] captured by another user", providerID, pay.UserID))
		}

		fields := weberr.WithFields(map[string]any{
			"cart_id":    pay.CartID,
			"payment_id": pay.ID,
		})
		switch pay.Status {
		case Success:
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		case Expired:
			err := fmt.Errorf("paypal order[%s] has expired", providerID)
			return weberr.Unprocessable(err, "the payment has expired", fields)
		}

		// nothing is captured unless the cart still waits for this payment
		ok, err := svc.AwaitsPayment(ctx, pay.CartID)
		if err != nil {
			return err
		}
		if !ok {
			err := fmt.Errorf("cart[%s] of paypal order[%s] no longer awaits payment", pay.CartID, providerID)
			return weberr.Unprocessable(err, "the cart can no longer be paid", fields)
		}

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", providerID, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		if err := fulfill(ctx, db, svc, providerID); err != nil {
			return fmt.Errorf("the cart was paid but its delivery failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleStripeCheckout(db *sqlx.DB, svc *Service, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, cartID, err := payable(ctx, svc, r)
		if err != nil {
			return err
		}

		cur := strings.ToLower(p.Currency)
		li := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.Items))
		for _, it := range p.Items {
			if !it.Payable.IsPositive() {
				continue
			}

			li = append(li, &stripe.CheckoutSessionLineItemParams{
				Quantity: stripe.Int64(1),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(cur),
					TaxBehavior: stripe.String("inclusive"),
					UnitAmount:  stripe.Int64(cart.MinorUnits(it.Payable, p.Currency)),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(it.CourseName),
					},
				},
			})
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL:        stripe.String(svc.SuccessURL(cartID)),
			CancelURL:         stripe.String(cfg.CancelURL),
			Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
			ClientReferenceID: stripe.String(cartID),
			LineItems:         li,
		}
		params.AddMetadata("account", p.AccountID)

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		userID, _ := claims.UserID(ctx)
		if err := record(ctx, db, cartID, userID, ProviderStripe, s.ID, p); err != nil {
			return err
		}

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func HandleStripeCapture(db *sqlx.DB, svc *Service, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" && event.Type != "checkout.session.expired" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if event.Type == "checkout.session.expired" {
			pay, err := FetchByProviderID(ctx, db, session.ID)
			if errors.Is(err, ErrNotFound) {
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}
			if err != nil {
				return err
			}
			if pay.Status == Pending {
				if err := expire(ctx, db, pay); err != nil {
					return err
				}
			}
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := fulfill(ctx, db, svc, session.ID); err != nil {
			return fmt.Errorf("the cart was paid but its delivery failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
