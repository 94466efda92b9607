package core

import (
	"errors"
	"strings"
	"time"

	"rewards/internal/rewards"
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Customer is an entry of the customer picker.
	Customer struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// DateRange is an inclusive range of calendar days. A zero bound is open.
	DateRange struct {
		From Date
		To   Date
	}

	// NewTransaction is a purchase submitted for recording.
	NewTransaction struct {
		CustomerID string
		Amount     Money
		Date       Date
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidRange  = errors.New("start date must not be after end date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCustomer = errors.New("empty customer")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string. Blank input yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when empty.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Label returns the name shown in the customer picker.
func (c Customer) Label() string {
	if strings.TrimSpace(c.Name) == "" {
		return c.ID
	}
	return c.Name
}

func (r DateRange) Validate() error {
	if !r.From.IsEmpty() && !r.To.IsEmpty() && r.From.After(r.To.Time) {
		return ErrInvalidRange
	}
	return nil
}

// IsOpen reports whether neither bound is set.
func (r DateRange) IsOpen() bool {
	return r.From.IsEmpty() && r.To.IsEmpty()
}

// Key identifies the range in cache keys.
func (r DateRange) Key() string {
	return r.From.String() + ".." + r.To.String()
}

// Contains reports whether the calendar day of t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if !r.From.IsEmpty() && day.Before(r.From.Time) {
		return false
	}
	if !r.To.IsEmpty() && day.After(r.To.Time) {
		return false
	}
	return true
}

// Includes applies the range to a transaction date read on loc's calendar.
// An open range keeps every record, including undated ones; a bounded range
// drops records whose date is missing or unparseable.
func (r DateRange) Includes(d rewards.Date, loc *time.Location) bool {
	if r.IsOpen() {
		return true
	}
	t, ok := d.In(loc)
	if !ok {
		return false
	}
	return r.Contains(t)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (tx NewTransaction) Validate() error {
	if strings.TrimSpace(tx.CustomerID) == "" {
		return ErrEmptyCustomer
	}
	if len(tx.CustomerID) > 64 {
		return errors.New("customer id too long (max 64 characters)")
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if err := tx.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// Transaction converts the submission into an engine record with the given ID.
func (tx NewTransaction) Transaction(id string) rewards.Transaction {
	return rewards.Transaction{
		TransactionID: id,
		CustomerID:    strings.TrimSpace(tx.CustomerID),
		Amount:        rewards.Number(tx.Amount.Units()),
		Date:          rewards.CivilDate(tx.Date.Year(), tx.Date.Month(), tx.Date.Day()),
	}
}
