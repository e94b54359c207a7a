package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const secondsPerDay = 86400

// ParseDuration converts a swim time to seconds, rounded to hundredths.
//
// Accepted forms are "mm:ss.cc", "h:mm:ss.cc", bare seconds ("29.87") and the
// day-fraction artifact left behind when a spreadsheet stores a duration as a
// fraction of a day (any bare value below one second). Commas are accepted as
// decimal separators. The second return value is false for anything else,
// including blanks and status codes such as "DQ" or "N/A".
func ParseDuration(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}

	parts := strings.Split(s, ":")
	var total float64
	switch len(parts) {
	case 1:
		v, ok := parseSeconds(parts[0], false)
		if !ok {
			return 0, false
		}
		if v < 1 {
			v *= secondsPerDay
		}
		total = v
	case 2:
		m, ok := parseWhole(parts[0])
		if !ok {
			return 0, false
		}
		sec, ok := parseSeconds(parts[1], true)
		if !ok {
			return 0, false
		}
		total = float64(m)*60 + sec
	case 3:
		h, ok := parseWhole(parts[0])
		if !ok {
			return 0, false
		}
		m, ok := parseWhole(parts[1])
		if !ok || m >= 60 {
			return 0, false
		}
		sec, ok := parseSeconds(parts[2], true)
		if !ok {
			return 0, false
		}
		total = float64(h)*3600 + float64(m)*60 + sec
	default:
		return 0, false
	}

	total = math.Round(total*100) / 100
	if total <= 0 {
		return 0, false
	}
	return total, true
}

// FormatDuration renders seconds as "mm:ss.cc", or "h:mm:ss.cc" from one hour up.
func FormatDuration(seconds float64) string {
	cents := int64(math.Round(seconds * 100))
	h := cents / 360000
	m := (cents / 6000) % 60
	s := (cents / 100) % 60
	c := cents % 100
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, c)
	}
	return fmt.Sprintf("%02d:%02d.%02d", m, s, c)
}

func parseWhole(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func parseSeconds(s string, bounded bool) (float64, bool) {
	if s == "" {
		return 0, false
	}
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r < '0' || r > '9':
			return 0, false
		}
	}
	if dots > 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	if bounded && v >= 60 {
		return 0, false
	}
	return v, true
}
