package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/enrol-cart/database"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("offer not found")

const offerColumns = `
	o.offer_id, o.course_id, c.name AS course_name, o.cost, o.enabled, o.role_id,
	o.enrol_period, o.enrol_start, o.enrol_end, o.sort_order`

func FetchOffer(ctx context.Context, db sqlx.ExtContext, id string) (Offer, error) {
	in := struct {
		ID string `db:"offer_id"`
	}{
		ID: id,
	}

	q := `
	SELECT` + offerColumns + `
	FROM offers o
	JOIN courses c ON c.course_id = o.course_id
	WHERE o.offer_id = :offer_id`

	var o Offer
	if err := database.NamedQueryStruct(ctx, db, q, in, &o); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Offer{}, ErrNotFound
		}
		return Offer{}, fmt.Errorf("selecting offer[%s]: %w", id, err)
	}
	return o, nil
}

// FetchCourseOffer returns the first enabled offer of a course.
func FetchCourseOffer(ctx context.Context, db sqlx.ExtContext, courseID string) (Offer, error) {
	in := struct {
		CourseID string `db:"course_id"`
	}{
		CourseID: courseID,
	}

	q := `
	SELECT` + offerColumns + `
	FROM offers o
	JOIN courses c ON c.course_id = o.course_id
	WHERE o.course_id = :course_id AND o.enabled
	ORDER BY o.sort_order ASC, o.offer_id ASC
	LIMIT 1`

	var o Offer
	if err := database.NamedQueryStruct(ctx, db, q, in, &o); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Offer{}, ErrNotFound
		}
		return Offer{}, fmt.Errorf("selecting offer of course[%s]: %w", courseID, err)
	}
	return o, nil
}

func FetchCourse(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	in := struct {
		ID string `db:"course_id"`
	}{
		ID: id,
	}

	const q = `
	SELECT *
	FROM courses
	WHERE course_id = :course_id`

	var c Course
	if err := database.NamedQueryStruct(ctx, db, q, in, &c); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

func CreateCourse(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, name, description, created_at, updated_at)
	VALUES
		(:course_id, :name, :description, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

func CreateOffer(ctx context.Context, db sqlx.ExtContext, o Offer) error {
	const q = `
	INSERT INTO offers
		(offer_id, course_id, cost, enabled, role_id, enrol_period, enrol_start, enrol_end, sort_order)
	VALUES
		(:offer_id, :course_id, :cost, :enabled, :role_id, :enrol_period, :enrol_start, :enrol_end, :sort_order)`

	if err := database.NamedExecContext(ctx, db, q, o); err != nil {
		return fmt.Errorf("inserting offer: %w", err)
	}
	return nil
}

// SetOfferEnabled toggles an offer in the database only; use Catalog.SetOfferEnabled to keep the cache in sync.
func SetOfferEnabled(ctx context.Context, db sqlx.ExtContext, id string, enabled bool) error {
	in := struct {
		ID      string `db:"offer_id"`
		Enabled bool   `db:"enabled"`
	}{
		ID:      id,
		Enabled: enabled,
	}

	const q = `
	UPDATE offers SET
		enabled = :enabled
	WHERE offer_id = :offer_id`

	if err := database.NamedExecContext(ctx, db, q, in); err != nil {
		return fmt.Errorf("updating offer[%s]: %w", id, err)
	}
	return nil
}
