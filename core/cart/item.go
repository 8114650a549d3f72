package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Item is one enrolment offer in a cart. Price and Payable are taken from
// the offer when the item is added and are never looked up again.
type Item struct {
	ID         string          `json:"id" db:"item_id"`
	CartID     string          `json:"cartId,omitempty" db:"cart_id"`
	InstanceID string          `json:"instanceId" db:"instance_id"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Payable    decimal.Decimal `json:"payable" db:"payable"`
	CourseID   string          `json:"courseId" db:"course_id"`
	CourseName string          `json:"courseName" db:"course_name"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`

	PriceString   string `json:"priceString,omitempty" db:"-"`
	PayableString string `json:"payableString,omitempty" db:"-"`
}

type ItemNew struct {
	InstanceID string `json:"instanceId" validate:"required_without=CourseID,omitempty,uuid4"`
	CourseID   string `json:"courseId" validate:"required_without=InstanceID,omitempty,uuid4"`
}

// Format fills the human readable amounts of the item.
func (it *Item) Format(cur string) {
	it.PriceString = FormatCost(it.Price, cur)
	it.PayableString = FormatCost(it.Payable, cur)
}

// Free is shown for amounts that need no payment.
const Free = "Free"

// FormatCost renders amount with the number of decimals customary for cur.
func FormatCost(amount decimal.Decimal, cur string) string {
	if !amount.IsPositive() {
		return Free
	}
	return amount.StringFixed(Scale(cur)) + " " + cur
}

// Scale returns the number of minor-unit digits of an ISO 4217 currency,
// defaulting to two for codes x/text does not know.
func Scale(cur string) int32 {
	unit, err := currency.ParseISO(cur)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// MinorUnits converts amount to an integer count of the currency's minor unit.
func MinorUnits(amount decimal.Decimal, cur string) int64 {
	return amount.Shift(Scale(cur)).Round(0).IntPart()
}

func totals(items []Item) (price, payable decimal.Decimal) {
	price, payable = decimal.Zero, decimal.Zero
	for _, it := range items {
		price = price.Add(it.Price)
		payable = payable.Add(it.Payable)
	}
	return price, payable
}

func findItem(items []Item, instanceID string) (Item, bool) {
	for _, it := range items {
		if it.InstanceID == instanceID {
			return it, true
		}
	}
	return Item{}, false
}
