package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/irsalhamdi/enrol-cart/core/cart"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// NotPayable is the amount of a Payable for carts that can not be paid.
var NotPayable = decimal.NewFromInt(-1)

// Payable is what a payment provider has to collect for a cart.
type Payable struct {
	Amount    decimal.Decimal
	Currency  string
	AccountID string
	Items     []cart.Item
}

// IsPayable reports whether a provider can collect the amount.
func (p Payable) IsPayable() bool {
	return p.Amount.IsPositive()
}

// Carts finds stored carts by id.
type Carts interface {
	Find(ctx context.Context, id string) (*cart.Stored, error)
}

// Service is the boundary between carts and payment providers.
type Service struct {
	carts    Carts
	settings *cart.Settings
	viewURL  string
	log      logrus.FieldLogger
}

func NewService(carts Carts, settings *cart.Settings, viewURL string, log logrus.FieldLogger) *Service {
	return &Service{
		carts:    carts,
		settings: settings,
		viewURL:  viewURL,
		log:      log,
	}
}

func notPayable() Payable {
	return Payable{Amount: NotPayable}
}

// ResolvePayable checks the cart out for payment and returns the amount to
// collect. Carts that are not owned by userID, have nothing to pay or are
// past checkout resolve to NotPayable.
func (s *Service) ResolvePayable(ctx context.Context, cartID, userID string) (Payable, error) {
	c, err := s.carts.Find(ctx, cartID)
	if errors.Is(err, cart.ErrNotFound) {
		return notPayable(), nil
	}
	if err != nil {
		return Payable{}, fmt.Errorf("fetching cart[%s]: %w", cartID, err)
	}

	if c.UserID() != userID {
		return notPayable(), nil
	}

	if err := c.Refresh(ctx); err != nil {
		return Payable{}, err
	}

	sum, err := c.Summary(ctx)
	if err != nil {
		return Payable{}, fmt.Errorf("summarizing cart[%s]: %w", cartID, err)
	}
	if !sum.Payable.IsPositive() {
		return notPayable(), nil
	}

	switch c.Status() {
	case cart.Current:
		ok, err := c.Checkout(ctx)
		if err != nil {
			return Payable{}, err
		}
		if !ok {
			return notPayable(), nil
		}
	case cart.Checkout:
	default:
		return notPayable(), nil
	}

	items, err := c.Items(ctx)
	if err != nil {
		return Payable{}, fmt.Errorf("loading items of cart[%s]: %w", cartID, err)
	}

	return Payable{
		Amount:    sum.Payable,
		Currency:  c.Currency(),
		AccountID: s.settings.PaymentAccount(),
		Items:     items,
	}, nil
}

// SuccessURL is where the buyer lands after paying for the cart.
func (s *Service) SuccessURL(cartID string) string {
	u, err := url.JoinPath(s.viewURL, url.PathEscape(cartID))
	if err != nil {
		return s.viewURL
	}
	return u
}

// DeliverOrder delivers a paid cart to its owner. Failures are logged and
// reported as false so providers can retry the notification.
func (s *Service) DeliverOrder(ctx context.Context, cartID, paymentID, userID string) bool {
	log := s.log.WithFields(logrus.Fields{
		"cart_id":    cartID,
		"payment_id": paymentID,
	})

	c, err := s.carts.Find(ctx, cartID)
	if err != nil {
		log.Errorf("fetching paid cart: %v", err)
		return false
	}

	if c.UserID() != userID {
		log.Errorf("paid cart belongs to user[%s], payment made by user[%s]", c.UserID(), userID)
		return false
	}

	ok, err := c.Deliver(ctx)
	if err != nil {
		log.Errorf("delivering paid cart: %v", err)
		return false
	}
	if !ok {
		log.Errorf("paid cart in status %s was not delivered", c.Status())
		return false
	}

	log.Info("paid cart delivered")
	return true
}

// AwaitsPayment reports whether the cart is checked out and still waiting for
// its payment. Canceled and delivered carts must not be charged again.
func (s *Service) AwaitsPayment(ctx context.Context, cartID string) (bool, error) {
	c, err := s.carts.Find(ctx, cartID)
	if errors.Is(err, cart.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetching cart[%s]: %w", cartID, err)
	}
	return c.Status() == cart.Checkout, nil
}
