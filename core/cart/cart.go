package cart

import (
	"context"
	"errors"
	"time"

	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("cart not found")

type Status int

// The gaps between values are kept free for intermediate states.
const (
	Current   Status = 0
	Checkout  Status = 10
	Canceled  Status = 70
	Delivered Status = 90
)

func (s Status) String() string {
	switch s {
	case Current:
		return "current"
	case Checkout:
		return "checkout"
	case Canceled:
		return "canceled"
	case Delivered:
		return "delivered"
	}
	return "unknown"
}

func (s Status) Valid() bool {
	return s.String() != "unknown"
}

// Final reports whether a cart in this status can no longer change.
func (s Status) Final() bool {
	return s == Canceled || s == Delivered
}

// Cart is the shopping cart of one visitor. Rule violations (a duplicated
// item, an unavailable offer, a cart that is no longer editable) are
// reported with a false result and a nil error; errors are reserved for
// storage and enrolment failures.
type Cart interface {
	Items(ctx context.Context) ([]Item, error)
	HasItem(ctx context.Context, instanceID string) (bool, error)
	AddItem(ctx context.Context, instanceID string) (bool, error)
	RemoveItem(ctx context.Context, instanceID string) (bool, error)
	AddCourse(ctx context.Context, courseID string) (bool, error)
	RemoveCourse(ctx context.Context, courseID string) (bool, error)
	Refresh(ctx context.Context) error
	Checkout(ctx context.Context) (bool, error)
	Cancel(ctx context.Context) (bool, error)
	Deliver(ctx context.Context) (bool, error)
	Summary(ctx context.Context) (Summary, error)
	Status() Status
	Currency() string
}

// Summary is the priced view of a cart.
type Summary struct {
	ID            string          `json:"id,omitempty"`
	UserID        string          `json:"userId,omitempty"`
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	PriceString   string          `json:"priceString"`
	Payable       decimal.Decimal `json:"payable"`
	PayableString string          `json:"payableString"`
	Currency      string          `json:"currency"`
	Count         int             `json:"count"`
	Items         []Item          `json:"items"`
}

func (s Summary) IsEmpty() bool {
	return s.Count == 0
}

// Catalog resolves the offers a cart refers to.
type Catalog interface {
	Offer(ctx context.Context, id string) (catalog.Offer, error)
	CourseOffer(ctx context.Context, courseID string) (catalog.Offer, error)
}

// Enroller applies one enrolment inside the delivery transaction.
type Enroller interface {
	EnrolUser(ctx context.Context, tx sqlx.ExtContext, o catalog.Offer, userID string, roleID string, start, end time.Time) error
}
