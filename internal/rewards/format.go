package rewards

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const invalidMonthKey = "Invalid Date"

// MonthKey returns the "YYYY-MM" key of t's calendar month.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// FormatMonthKey turns "2025-01" into "January 2025". The key must be four
// ASCII digits, a dash and one or two ASCII digits, otherwise the result is
// "Invalid Date"; a well-formed month outside 1-12 yields "Unknown <year>".
func FormatMonthKey(key string) string {
	year, month, ok := strings.Cut(key, "-")
	if !ok || len(year) != 4 || len(month) < 1 || len(month) > 2 ||
		!asciiDigits(year) || !asciiDigits(month) {
		return invalidMonthKey
	}
	m, _ := strconv.Atoi(month)
	if m < 1 || m > 12 {
		return "Unknown " + year
	}
	return time.Month(m).String() + " " + year
}

func asciiDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
