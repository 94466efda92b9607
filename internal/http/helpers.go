package http

import (
	"strconv"
	"strings"
	"time"

	"rewards/internal/rewards"
)

// formatAmount renders a transaction amount for the table. Non-numeric
// amounts are shown as received.
func formatAmount(a rewards.Amount) string {
	if v, ok := a.Float64(); ok {
		return "$" + strconv.FormatFloat(v, 'f', 2, 64)
	}
	if a.Value() == nil {
		return "-"
	}
	return a.String()
}

func formatMoney(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

// formatDate shows the calendar day of a transaction on loc's calendar.
// Unparseable dates are shown as received, missing ones as "-".
func formatDate(d rewards.Date, loc *time.Location) string {
	if t, ok := d.In(loc); ok {
		return t.Format("2006-01-02")
	}
	if s := d.String(); s != "" {
		return s
	}
	return "-"
}

// sanitizeInput trims and drops control characters other than tab,
// newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
