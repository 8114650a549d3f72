package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("payment not found")

type Status string

const (
	Pending Status = "pending"
	Success Status = "success"
	Expired Status = "expired"
)

const (
	ProviderStripe = "stripe"
	ProviderPaypal = "paypal"
)

// Payment binds the reference of a payment provider to the cart it pays.
type Payment struct {
	ID         string          `json:"id" db:"payment_id"`
	CartID     string          `json:"cartId" db:"cart_id"`
	UserID     string          `json:"userId" db:"user_id"`
	Provider   string          `json:"provider" db:"provider"`
	ProviderID string          `json:"providerId" db:"provider_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Currency   string          `json:"currency" db:"currency"`
	Status     Status          `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

type StatusUp struct {
	ID        string    `db:"payment_id"`
	Status    Status    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

func Create(ctx context.Context, db sqlx.ExtContext, p Payment) error {
	const q = `
	INSERT INTO payments
		(payment_id, cart_id, user_id, provider, provider_id, amount, currency, status, created_at, updated_at)
	VALUES
		(:payment_id, :cart_id, :user_id, :provider, :provider_id, :amount, :currency, :status, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

func FetchByProviderID(ctx context.Context, db sqlx.ExtContext, providerID string) (Payment, error) {
	in := struct {
		ProviderID string `db:"provider_id"`
	}{
		ProviderID: providerID,
	}

	const q = `
	SELECT *
	FROM payments
	WHERE provider_id = :provider_id`

	var p Payment
	if err := database.NamedQueryStruct(ctx, db, q, in, &p); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, fmt.Errorf("selecting payment of provider reference[%s]: %w", providerID, err)
	}
	return p, nil
}

func ListByCart(ctx context.Context, db sqlx.ExtContext, cartID string) ([]Payment, error) {
	in := struct {
		CartID string `db:"cart_id"`
	}{
		CartID: cartID,
	}

	const q = `
	SELECT *
	FROM payments
	WHERE cart_id = :cart_id
	ORDER BY created_at`

	var ps []Payment
	if err := database.NamedQuerySlice(ctx, db, q, in, &ps); err != nil {
		return nil, fmt.Errorf("selecting payments of cart[%s]: %w", cartID, err)
	}
	return ps, nil
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, up StatusUp) error {
	const q = `
	UPDATE payments SET
		status = :status,
		updated_at = :updated_at
	WHERE payment_id = :payment_id`

	if err := database.NamedExecContext(ctx, db, q, up); err != nil {
		return fmt.Errorf("updating payment[%s] status: %w", up.ID, err)
	}
	return nil
}
