package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical textual date produced by Birthdate.
const DateLayout = "2006-01-02"

// Spreadsheet day serials count from 1899-12-30 (the 1900 leap-year bug is
// absorbed by starting one day early).
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxSerial = 2958465 // 9999-12-31

var serialRe = regexp.MustCompile(`^\d{1,7}(\.\d+)?$`)

var dateLayouts = []string{
	"2006-01-02", "2006-1-2",
	"2006.01.02", "2006.1.2",
	"2006/01/02", "2006/1/2",
	"20060102",
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"2006/01/02 15:04:05",
}

// Birthdate normalizes a birthdate cell to "YYYY-MM-DD". It accepts
// time.Time values, numeric day serials, "YYYY.MM.DD", "YYYY-MM-DD",
// "YYYY/MM/DD" and date-with-time strings. Unparseable input yields "".
// Normalizing an already normalized value returns it unchanged.
func Birthdate(v any) string {
	t, ok := ParseDate(v)
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate converts a cell value to a UTC midnight date.
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC), true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return ParseDate(*x)
	case float64:
		return fromSerial(x)
	case float32:
		return fromSerial(float64(x))
	case int:
		return fromSerial(float64(x))
	case int64:
		return fromSerial(float64(x))
	case string:
		return parseDateString(x)
	default:
		return time.Time{}, false
	}
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Day serials carry at most seven integer digits, so a compact
	// YYYYMMDD value never reaches this branch.
	if serialRe.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromSerial(f)
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ParseDate(t)
		}
	}

	datePart := s
	if i := strings.IndexAny(s, " T"); i > 0 {
		datePart = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, datePart); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fromSerial(f float64) (time.Time, bool) {
	if math.IsNaN(f) || f < 1 || f > maxSerial {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(f)), true
}

// SplitDate returns the year, month and day of a canonical date string.
func SplitDate(s string) (year, month, day int, ok bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, 0, 0, false
	}
	return t.Year(), int(t.Month()), t.Day(), true
}

// Age returns the completed years between birth and at, and the year-granular
// age (at.Year() - birth.Year()) used for age-group reporting.
func Age(birth, at time.Time) (years, yearAge int) {
	yearAge = at.Year() - birth.Year()
	years = yearAge
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return years, yearAge
}
