package catalog

import "time"

type Course struct {
	ID          string    `json:"id" db:"course_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// CourseView is a course with the offer adding it to a cart buys. Offer is
// nil when the course can not be bought.
type CourseView struct {
	Course
	Offer *Offer `json:"offer"`
}
