package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/enrol-cart/core/cart"
	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/irsalhamdi/enrol-cart/core/claims"
	"github.com/irsalhamdi/enrol-cart/core/enrol"
	"github.com/irsalhamdi/enrol-cart/core/payment"
	"github.com/irsalhamdi/enrol-cart/core/user"
	"github.com/irsalhamdi/enrol-cart/database/dbtest"
	"github.com/irsalhamdi/enrol-cart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestSuccessURL(t *testing.T) {
	log, _ := test.NewNullLogger()
	svc := payment.NewService(nil, nil, "https://shop.example.com/carts", log)

	if got := svc.SuccessURL("c-1"); got != "https://shop.example.com/carts/c-1" {
		t.Fatalf("unexpected success url %q", got)
	}
}

func seed(t *testing.T, db *sqlx.DB, cost string) (userID string, offerID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	u := user.User{
		ID:           validate.GenerateID(),
		PasswordHash: []byte("-"),
		Role:         claims.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.Email = u.ID + "@example.com"
	if err := user.Create(ctx, db, u); err != nil {
		t.Fatal(err)
	}

	c := catalog.Course{ID: validate.GenerateID(), Name: "course", CreatedAt: now, UpdatedAt: now}
	if err := catalog.CreateCourse(ctx, db, c); err != nil {
		t.Fatal(err)
	}

	o := catalog.Offer{
		ID:       validate.GenerateID(),
		CourseID: c.ID,
		Cost:     decimal.RequireFromString(cost),
		Enabled:  true,
		RoleID:   "student",
	}
	if err := catalog.CreateOffer(ctx, db, o); err != nil {
		t.Fatal(err)
	}
	return u.ID, o.ID
}

func TestService(t *testing.T) {
	db := dbtest.NewDatabase(t, "payment_test")
	log, _ := test.NewNullLogger()

	settings, err := cart.NewSettings("EUR", "acct-7")
	if err != nil {
		t.Fatal(err)
	}
	carts := cart.NewResolver(db, cart.NewCookieStore(scs.New()), cart.Deps{
		Catalog:  catalog.New(db, nil, log),
		Enroller: enrol.Applier{},
		Settings: settings,
		Log:      log,
	})
	svc := payment.NewService(carts, settings, "https://shop.example.com/carts", log)

	fill := func(cost string) (string, string) {
		userID, offerID := seed(t, db, cost)
		ctx := claims.Set(context.Background(), claims.Claims{UserID: userID})

		c, err := carts.Current(ctx, true)
		if err != nil {
			t.Fatal(err)
		}
		if ok, err := c.AddItem(ctx, offerID); err != nil || !ok {
			t.Fatalf("adding offer: ok %v err %v", ok, err)
		}
		return userID, c.(*cart.Stored).ID()
	}

	t.Run("payable", func(t *testing.T) {
		userID, cartID := fill("19.90")
		ctx := context.Background()

		p, err := svc.ResolvePayable(ctx, cartID, userID)
		if err != nil {
			t.Fatal(err)
		}
		if !p.Amount.Equal(decimal.RequireFromString("19.9")) || p.Currency != "EUR" || p.AccountID != "acct-7" {
			t.Fatalf("unexpected payable %+v", p)
		}
		if len(p.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(p.Items))
		}

		c, err := carts.Find(ctx, cartID)
		if err != nil {
			t.Fatal(err)
		}
		if c.Status() != cart.Checkout {
			t.Fatalf("expected the cart in checkout, got %s", c.Status())
		}

		// resolving again keeps the checked out cart payable
		if p, err = svc.ResolvePayable(ctx, cartID, userID); err != nil || !p.IsPayable() {
			t.Fatalf("second resolve: %+v %v", p, err)
		}

		if !svc.DeliverOrder(ctx, cartID, validate.GenerateID(), userID) {
			t.Fatal("expected the paid cart to be delivered")
		}
		if p, err = svc.ResolvePayable(ctx, cartID, userID); err != nil || p.IsPayable() {
			t.Fatalf("delivered cart still payable: %+v %v", p, err)
		}
	})

	t.Run("not payable", func(t *testing.T) {
		ctx := context.Background()

		userID, cartID := fill("0")
		p, err := svc.ResolvePayable(ctx, cartID, userID)
		if err != nil {
			t.Fatal(err)
		}
		if !p.Amount.Equal(payment.NotPayable) {
			t.Fatalf("expected a free cart to be not payable, got %s", p.Amount)
		}

		_, paid := fill("10")
		if p, err = svc.ResolvePayable(ctx, paid, userID); err != nil || p.IsPayable() {
			t.Fatalf("cart of another user resolved as payable: %+v %v", p, err)
		}
		if svc.DeliverOrder(ctx, paid, validate.GenerateID(), userID) {
			t.Fatal("cart of another user delivered")
		}

		if p, err = svc.ResolvePayable(ctx, validate.GenerateID(), userID); err != nil || p.IsPayable() {
			t.Fatalf("unknown cart resolved as payable: %+v %v", p, err)
		}
	})

	t.Run("awaits payment", func(t *testing.T) {
		ctx := context.Background()

		awaits := func(cartID string, want bool) {
			t.Helper()
			got, err := svc.AwaitsPayment(ctx, cartID)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Fatalf("cart[%s] awaits payment: expected %v, got %v", cartID, want, got)
			}
		}

		userID, cartID := fill("15")
		awaits(cartID, false)
		if _, err := svc.ResolvePayable(ctx, cartID, userID); err != nil {
			t.Fatal(err)
		}
		awaits(cartID, true)

		c, err := carts.Find(ctx, cartID)
		if err != nil {
			t.Fatal(err)
		}
		if ok, err := c.Cancel(claims.Set(ctx, claims.Claims{UserID: userID})); err != nil || !ok {
			t.Fatalf("cancel: ok %v err %v", ok, err)
		}
		awaits(cartID, false)

		userID, cartID = fill("15")
		if _, err := svc.ResolvePayable(ctx, cartID, userID); err != nil {
			t.Fatal(err)
		}
		if !svc.DeliverOrder(ctx, cartID, validate.GenerateID(), userID) {
			t.Fatal("expected the paid cart to be delivered")
		}
		awaits(cartID, false)

		awaits(validate.GenerateID(), false)
	})
}
