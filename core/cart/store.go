package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Record is the database row of a signed-in user's cart.
type Record struct {
	ID        string          `json:"id" db:"cart_id"`
	UserID    string          `json:"userId" db:"user_id"`
	Status    Status          `json:"status" db:"status"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Payable   decimal.Decimal `json:"payable" db:"payable"`
	Currency  string          `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	CreatedBy string          `json:"createdBy" db:"created_by"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
	UpdatedBy string          `json:"updatedBy" db:"updated_by"`
}

type TotalsUp struct {
	ID        string          `db:"cart_id"`
	Price     decimal.Decimal `db:"price"`
	Payable   decimal.Decimal `db:"payable"`
	UpdatedAt time.Time       `db:"updated_at"`
	UpdatedBy string          `db:"updated_by"`
}

type StatusUp struct {
	ID        string    `db:"cart_id"`
	Expected  Status    `db:"expected"`
	Status    Status    `db:"status"`
	Currency  string    `db:"currency"`
	UpdatedAt time.Time `db:"updated_at"`
	UpdatedBy string    `db:"updated_by"`
}

func Create(ctx context.Context, db sqlx.ExtContext, rec Record) error {
	const q = `
	INSERT INTO carts
		(cart_id, user_id, status, price, payable, currency, created_at, created_by, updated_at, updated_by)
	VALUES
		(:cart_id, :user_id, :status, :price, :payable, :currency, :created_at, :created_by, :updated_at, :updated_by)`

	if err := database.NamedExecContext(ctx, db, q, rec); err != nil {
		return fmt.Errorf("inserting cart: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Record, error) {
	return fetch(ctx, db, id, false)
}

// FetchForUpdate reads a cart and locks its row until the enclosing
// transaction ends. It serializes every mutation of one cart.
func FetchForUpdate(ctx context.Context, tx sqlx.ExtContext, id string) (Record, error) {
	return fetch(ctx, tx, id, true)
}

func fetch(ctx context.Context, db sqlx.ExtContext, id string, lock bool) (Record, error) {
	in := struct {
		ID string `db:"cart_id"`
	}{
		ID: id,
	}

	q := `
	SELECT *
	FROM carts
	WHERE cart_id = :cart_id`
	if lock {
		q += `
	FOR UPDATE`
	}

	var rec Record
	if err := database.NamedQueryStruct(ctx, db, q, in, &rec); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("selecting cart[%s]: %w", id, err)
	}
	return rec, nil
}

func FetchCurrent(ctx context.Context, db sqlx.ExtContext, userID string) (Record, error) {
	in := struct {
		UserID string `db:"user_id"`
		Status Status `db:"status"`
	}{
		UserID: userID,
		Status: Current,
	}

	const q = `
	SELECT *
	FROM carts
	WHERE user_id = :user_id AND status = :status`

	var rec Record
	if err := database.NamedQueryStruct(ctx, db, q, in, &rec); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("selecting current cart of user[%s]: %w", userID, err)
	}
	return rec, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Record, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{
		UserID: userID,
	}

	const q = `
	SELECT *
	FROM carts
	WHERE user_id = :user_id
	ORDER BY created_at DESC`

	var recs []Record
	if err := database.NamedQuerySlice(ctx, db, q, in, &recs); err != nil {
		return nil, fmt.Errorf("selecting carts of user[%s]: %w", userID, err)
	}
	return recs, nil
}

func UpdateTotals(ctx context.Context, db sqlx.ExtContext, up TotalsUp) error {
	const q = `
	UPDATE carts SET
		price = :price,
		payable = :payable,
		updated_at = :updated_at,
		updated_by = :updated_by
	WHERE cart_id = :cart_id`

	if err := database.NamedExecContext(ctx, db, q, up); err != nil {
		return fmt.Errorf("updating totals of cart[%s]: %w", up.ID, err)
	}
	return nil
}

// UpdateStatus moves a cart out of the Expected status. It reports false
// when the cart was no longer in that status.
func UpdateStatus(ctx context.Context, db sqlx.ExtContext, up StatusUp) (bool, error) {
	const q = `
	UPDATE carts SET
		status = :status,
		currency = :currency,
		updated_at = :updated_at,
		updated_by = :updated_by
	WHERE cart_id = :cart_id AND status = :expected`

	n, err := database.NamedExecResult(ctx, db, q, up)
	if err != nil {
		return false, fmt.Errorf("updating status of cart[%s]: %w", up.ID, err)
	}
	return n == 1, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, cartID string) ([]Item, error) {
	in := struct {
		CartID string `db:"cart_id"`
	}{
		CartID: cartID,
	}

	const q = `
	SELECT
		i.item_id, i.cart_id, i.instance_id, i.price, i.payable, i.created_at,
		COALESCE(o.course_id::text, '') AS course_id,
		COALESCE(c.name, '') AS course_name
	FROM cart_items i
	LEFT JOIN offers o ON o.offer_id = i.instance_id
	LEFT JOIN courses c ON c.course_id = o.course_id
	WHERE i.cart_id = :cart_id
	ORDER BY i.created_at ASC, i.item_id ASC`

	var items []Item
	if err := database.NamedQuerySlice(ctx, db, q, in, &items); err != nil {
		return nil, fmt.Errorf("selecting items of cart[%s]: %w", cartID, err)
	}
	return items, nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO cart_items
		(item_id, cart_id, instance_id, price, payable, created_at)
	VALUES
		(:item_id, :cart_id, :instance_id, :price, :payable, :created_at)`

	if err := database.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}
	return nil
}

func DeleteItem(ctx context.Context, db sqlx.ExtContext, id string) error {
	in := struct {
		ID string `db:"item_id"`
	}{
		ID: id,
	}

	const q = `
	DELETE FROM cart_items
	WHERE item_id = :item_id`

	if err := database.NamedExecContext(ctx, db, q, in); err != nil {
		return fmt.Errorf("deleting cart item[%s]: %w", id, err)
	}
	return nil
}

// dbItems is the ItemStore of a stored cart, bound to one transaction.
type dbItems struct {
	db     sqlx.ExtContext
	cartID string
}

func (s dbItems) Items(ctx context.Context) ([]Item, error) {
	return FetchItems(ctx, s.db, s.cartID)
}

func (s dbItems) Insert(ctx context.Context, it Item) error {
	it.CartID = s.cartID
	return CreateItem(ctx, s.db, it)
}

func (s dbItems) Delete(ctx context.Context, it Item) error {
	return DeleteItem(ctx, s.db, it.ID)
}
