package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Course is the pool length a swim was recorded in.
type Course string

const (
	CourseLCM Course = "LCM"
	CourseSCM Course = "SCM"
)

// Gender is the competition category of a result or athlete.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Stroke is the canonical stroke token.
type Stroke string

const (
	StrokeFree   Stroke = "FREE"
	StrokeBack   Stroke = "BACK"
	StrokeBreast Stroke = "BREAST"
	StrokeFly    Stroke = "FLY"
	StrokeIM     Stroke = "IM"
)

var courseAliases = map[string]Course{
	"LCM": CourseLCM, "LC": CourseLCM, "L": CourseLCM, "LONG": CourseLCM,
	"LONG COURSE": CourseLCM, "LONG COURSE METERS": CourseLCM, "50M": CourseLCM, "50 M": CourseLCM,
	"SCM": CourseSCM, "SC": CourseSCM, "S": CourseSCM, "SHORT": CourseSCM,
	"SHORT COURSE": CourseSCM, "SHORT COURSE METERS": CourseSCM, "25M": CourseSCM, "25 M": CourseSCM,
}

var genderAliases = map[string]Gender{
	"M": GenderMale, "MALE": GenderMale, "MEN": GenderMale, "MENS": GenderMale,
	"BOY": GenderMale, "BOYS": GenderMale, "LELAKI": GenderMale,
	"F": GenderFemale, "W": GenderFemale, "FEMALE": GenderFemale, "WOMEN": GenderFemale,
	"WOMENS": GenderFemale, "GIRL": GenderFemale, "GIRLS": GenderFemale, "PEREMPUAN": GenderFemale,
}

var strokeAliases = map[string]Stroke{
	"FREE": StrokeFree, "FREESTYLE": StrokeFree, "FREE STYLE": StrokeFree, "FR": StrokeFree,
	"FS": StrokeFree, "BEBAS": StrokeFree,
	"BACK": StrokeBack, "BACKSTROKE": StrokeBack, "BACK STROKE": StrokeBack, "BK": StrokeBack,
	"KUAK LENTANG": StrokeBack,
	"BREAST": StrokeBreast, "BREASTSTROKE": StrokeBreast, "BREAST STROKE": StrokeBreast,
	"BR": StrokeBreast, "KUAK DADA": StrokeBreast,
	"FLY": StrokeFly, "BUTTERFLY": StrokeFly, "BF": StrokeFly, "FL": StrokeFly,
	"KUAK KUPU KUPU": StrokeFly,
	"IM": StrokeIM, "MEDLEY": StrokeIM, "INDIVIDUAL MEDLEY": StrokeIM, "IND MEDLEY": StrokeIM,
	"MEDLEY INDIVIDU": StrokeIM,
}

var (
	distanceRe   = regexp.MustCompile(`^(\d{2,4})(?:\s*(?:M|METERS?|METRES?))?$`)
	relayRe      = regexp.MustCompile(`(?i)\b4\s*[x×]\s*\d+`)
	relayWordRe  = regexp.MustCompile(`(?i)\brelay\b`)
	relaySheetRe = regexp.MustCompile(`(?i)\d\s*[x×]\s*\d`)
)

// vocabKey upper-cases s and reduces punctuation to single spaces.
func vocabKey(s string) string {
	return MatchKey(s)
}

// ParseCourse maps a course cell to LCM or SCM.
func ParseCourse(s string) (Course, bool) {
	c, ok := courseAliases[vocabKey(s)]
	return c, ok
}

// ParseGender maps a gender cell to M or F.
func ParseGender(s string) (Gender, bool) {
	g, ok := genderAliases[vocabKey(s)]
	return g, ok
}

// ParseStroke maps a stroke cell to its canonical token.
func ParseStroke(s string) (Stroke, bool) {
	st, ok := strokeAliases[vocabKey(s)]
	return st, ok
}

// ParseDistance extracts the integer distance from cells such as "50",
// "50m", "100 M" or a numeric "200.0".
func ParseDistance(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || IsRelay(s) {
		return 0, false
	}
	if m := distanceRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil && n > 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}

// IsRelay reports whether any of the given texts names a relay event
// ("4x100", "4 X 50", "Relay").
func IsRelay(texts ...string) bool {
	for _, t := range texts {
		if relayRe.MatchString(t) || relayWordRe.MatchString(t) {
			return true
		}
	}
	return false
}

// LooksLikeRelaySheet applies the looser sheet-name pattern (any "NxM").
func LooksLikeRelaySheet(name string) bool {
	return relaySheetRe.MatchString(name) || relayWordRe.MatchString(name)
}
