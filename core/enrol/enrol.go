package enrol

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/enrol-cart/core/catalog"
	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/jmoiron/sqlx"
)

// Enrolment grants a user access to the course behind an offer.
// Nil bounds mean the access never starts late or never ends.
type Enrolment struct {
	UserID    string     `json:"userId" db:"user_id"`
	OfferID   string     `json:"offerId" db:"offer_id"`
	CourseID  string     `json:"courseId" db:"course_id"`
	RoleID    string     `json:"roleId" db:"role_id"`
	TimeStart *time.Time `json:"timeStart,omitempty" db:"time_start"`
	TimeEnd   *time.Time `json:"timeEnd,omitempty" db:"time_end"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// Applier writes enrolments within the caller's transaction.
type Applier struct{}

// EnrolUser enrols a user through an offer. Enrolling again through the same
// offer replaces the role and the access window.
func (Applier) EnrolUser(ctx context.Context, tx sqlx.ExtContext, o catalog.Offer, userID string, roleID string, start, end time.Time) error {
	now := time.Now().UTC()
	e := Enrolment{
		UserID:    userID,
		OfferID:   o.ID,
		CourseID:  o.CourseID,
		RoleID:    roleID,
		TimeStart: bound(start),
		TimeEnd:   bound(end),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := Upsert(ctx, tx, e); err != nil {
		return fmt.Errorf("enrolling user[%s] through offer[%s]: %w", userID, o.ID, err)
	}
	return nil
}

func bound(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func Upsert(ctx context.Context, db sqlx.ExtContext, e Enrolment) error {
	const q = `
	INSERT INTO enrolments
		(user_id, offer_id, course_id, role_id, time_start, time_end, created_at, updated_at)
	VALUES
		(:user_id, :offer_id, :course_id, :role_id, :time_start, :time_end, :created_at, :updated_at)
	ON CONFLICT (user_id, offer_id) DO UPDATE SET
		role_id = EXCLUDED.role_id,
		time_start = EXCLUDED.time_start,
		time_end = EXCLUDED.time_end,
		updated_at = EXCLUDED.updated_at`

	if err := database.NamedExecContext(ctx, db, q, e); err != nil {
		return fmt.Errorf("upserting enrolment: %w", err)
	}
	return nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Enrolment, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{
		UserID: userID,
	}

	const q = `
	SELECT *
	FROM enrolments
	WHERE user_id = :user_id
	ORDER BY created_at ASC, offer_id ASC`

	var es []Enrolment
	if err := database.NamedQuerySlice(ctx, db, q, in, &es); err != nil {
		return nil, fmt.Errorf("selecting enrolments of user[%s]: %w", userID, err)
	}
	return es, nil
}
