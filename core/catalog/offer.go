package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer is a purchasable enrolment instance of a course.
type Offer struct {
	ID         string          `json:"id" db:"offer_id"`
	CourseID   string          `json:"courseId" db:"course_id"`
	CourseName string          `json:"courseName" db:"course_name"`
	Cost       decimal.Decimal `json:"cost" db:"cost"`
	Enabled    bool            `json:"enabled" db:"enabled"`
	RoleID     string          `json:"roleId" db:"role_id"`
	// Seconds of access granted on enrolment, zero for unlimited.
	EnrolPeriod int64      `json:"enrolPeriod" db:"enrol_period"`
	EnrolStart  *time.Time `json:"enrolStart,omitempty" db:"enrol_start"`
	EnrolEnd    *time.Time `json:"enrolEnd,omitempty" db:"enrol_end"`
	SortOrder   int        `json:"sortOrder" db:"sort_order"`
}

type OfferNew struct {
	CourseID    string          `json:"courseId" validate:"required,uuid4"`
	Cost        decimal.Decimal `json:"cost"`
	Enabled     bool            `json:"enabled"`
	RoleID      string          `json:"roleId" validate:"required"`
	EnrolPeriod int64           `json:"enrolPeriod" validate:"gte=0"`
	EnrolStart  *time.Time      `json:"enrolStart"`
	EnrolEnd    *time.Time      `json:"enrolEnd"`
	SortOrder   int             `json:"sortOrder"`
}

// Available reports whether the offer can be bought at now.
func (o Offer) Available(now time.Time) bool {
	if !o.Enabled {
		return false
	}
	if o.EnrolStart != nil && !o.EnrolStart.IsZero() && !o.EnrolStart.Before(now) {
		return false
	}
	if o.EnrolEnd != nil && !o.EnrolEnd.IsZero() && !o.EnrolEnd.After(now) {
		return false
	}
	return true
}

// Window returns the enrolment bounds for an enrolment starting at now.
// Both bounds are zero when the offer grants unlimited access.
func (o Offer) Window(now time.Time) (start, end time.Time) {
	if o.EnrolPeriod <= 0 {
		return time.Time{}, time.Time{}
	}
	return now, now.Add(time.Duration(o.EnrolPeriod) * time.Second)
}
