package rewards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Transaction is a purchase record as supplied by a data source.
// Amount and Date keep whatever the source contained, so a malformed
// record survives decoding and is judged by the engine operations.
type Transaction struct {
	TransactionID string `json:"transactionId"`
	CustomerID    string `json:"customerId"`
	Amount        Amount `json:"amount"`
	Date          Date   `json:"date"`
}

// Amount is a purchase total in currency units. The zero value is a
// missing amount.
type Amount struct {
	value   float64
	numeric bool
	raw     any
}

// Number returns a numeric amount. It may still be invalid (NaN, negative).
func Number(v float64) Amount {
	return Amount{value: v, numeric: true}
}

// NonNumeric returns an amount that holds a value of the wrong type,
// such as the string "invalid".
func NonNumeric(raw any) Amount {
	return Amount{raw: raw}
}

// Float64 returns the numeric value and whether the amount is a number at all.
func (a Amount) Float64() (float64, bool) {
	return a.value, a.numeric
}

// Valid reports whether the amount is a finite, non-negative number.
func (a Amount) Valid() bool {
	return a.numeric && IsValidAmount(a.value)
}

// Value returns the amount as it was supplied: a float64 for numbers,
// the original value otherwise (nil when missing).
func (a Amount) Value() any {
	if a.numeric {
		return a.value
	}
	return a.raw
}

// Points computes the points for this amount, rejecting non-numeric
// values the same way ComputePoints rejects invalid numbers.
func (a Amount) Points() (int, error) {
	if !a.numeric {
		return 0, &AmountError{Value: a.raw}
	}
	return ComputePoints(a.value)
}

func (a Amount) String() string {
	return fmt.Sprint(a.Value())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if f, ok := v.(float64); ok {
		*a = Number(f)
		return nil
	}
	*a = NonNumeric(v)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.numeric {
		if math.IsNaN(a.value) || math.IsInf(a.value, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(a.value)
	}
	return json.Marshal(a.raw)
}

// Date is the calendar date of a transaction. A civil date (no zone,
// e.g. "2025-01-15") keeps its calendar fields as written; an instant
// (RFC 3339 or epoch milliseconds) is placed on the calendar of the
// location used for grouping.
type Date struct {
	t     time.Time
	ok    bool
	civil bool
	raw   any
}

var civilLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// ParseDate parses a date string. Unparseable input yields a Date whose
// Valid method reports false; the original text is retained.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{raw: s}
	}
	for _, layout := range civilLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{t: t, ok: true, civil: true, raw: s}
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Date{t: t, ok: true, raw: s}
	}
	return Date{raw: s}
}

// CivilDate returns the calendar date year-month-day.
func CivilDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), ok: true, civil: true}
}

// DateAt returns the date of an instant.
func DateAt(t time.Time) Date {
	return Date{t: t, ok: !t.IsZero()}
}

// Valid reports whether the date was present and parseable.
func (d Date) Valid() bool {
	return d.ok
}

// In returns the date's calendar time in loc. Civil dates ignore loc.
func (d Date) In(loc *time.Location) (time.Time, bool) {
	if !d.ok {
		return time.Time{}, false
	}
	if d.civil || loc == nil {
		return d.t, true
	}
	return d.t.In(loc), true
}

// Raw returns the value the date was decoded from, if any.
func (d Date) Raw() any {
	return d.raw
}

func (d Date) String() string {
	if !d.ok {
		if d.raw == nil {
			return ""
		}
		return fmt.Sprint(d.raw)
	}
	if d.civil {
		return d.t.Format("2006-01-02")
	}
	return d.t.Format(time.RFC3339)
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		*d = ParseDate(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			*d = Date{raw: val}
			return nil
		}
		*d = Date{t: time.UnixMilli(int64(val)).UTC(), ok: true, raw: val}
	default:
		*d = Date{raw: v}
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.raw != nil {
		return json.Marshal(d.raw)
	}
	if !d.ok {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}
