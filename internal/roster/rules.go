package roster

import (
	"errors"
	"fmt"
	"strings"
)

// Rules holds the tunable matching thresholds and dictionaries. The zero
// value is not useful; start from DefaultRules and override.
type Rules struct {
	// Fuzzy athlete matching.
	FuzzyMinOverlap  int `koanf:"fuzzy_min_overlap" json:"fuzzy_min_overlap"`
	FuzzyAllWordsMax int `koanf:"fuzzy_all_words_max" json:"fuzzy_all_words_max"`
	FuzzyMinWords    int `koanf:"fuzzy_min_words" json:"fuzzy_min_words"`

	// Birthdate tolerance on exact name hits.
	AllowDayMonthSwap    bool `koanf:"allow_day_month_swap" json:"allow_day_month_swap"`
	AllowSingleFieldDiff bool `koanf:"allow_single_field_diff" json:"allow_single_field_diff"`
	FillMissingBirthdate bool `koanf:"fill_missing_birthdate" json:"fill_missing_birthdate"`

	// Nation values treated as "unknown" and therefore correctable.
	PlaceholderNations []string `koanf:"placeholder_nations" json:"placeholder_nations"`

	// Club resolution.
	ClubContainMinLen int               `koanf:"club_contain_min_len" json:"club_contain_min_len"`
	ClubSuffixes      []string          `koanf:"club_suffixes" json:"club_suffixes"`
	StateCodes        map[string]string `koanf:"state_codes" json:"state_codes"`
	StateNames        map[string]string `koanf:"state_names" json:"state_names"`

	// Events only valid in a short-course pool, as "distance stroke" ("100 IM").
	ShortCourseOnly []string `koanf:"short_course_only" json:"short_course_only"`

	// Sheet-name tokens that mark non-result sheets (splits, open water).
	SheetSkipTokens []string `koanf:"sheet_skip_tokens" json:"sheet_skip_tokens"`
}

// DefaultRules returns the built-in matching configuration.
func DefaultRules() Rules {
	return Rules{
		FuzzyMinOverlap:      3,
		FuzzyAllWordsMax:     3,
		FuzzyMinWords:        2,
		AllowDayMonthSwap:    true,
		AllowSingleFieldDiff: true,
		FillMissingBirthdate: false,
		PlaceholderNations:   []string{"UNK", "XXX"},
		ClubContainMinLen:    6,
		ClubSuffixes:         []string{"CLUB", "SWIMMING", "SWIM", "SCHOOL", "ACADEMY", "TEAM"},
		StateCodes: map[string]string{
			"JHR": "JHR", "KDH": "KDH", "KTN": "KTN", "MLK": "MLK",
			"NSN": "NSN", "NS": "NSN", "PHG": "PHG", "PRK": "PRK",
			"PLS": "PLS", "PNG": "PNG", "SBH": "SBH", "SWK": "SWK",
			"SGR": "SGR", "TRG": "TRG", "KL": "KL", "KUL": "KL",
			"LBN": "LBN", "PJY": "PJY",
		},
		StateNames: map[string]string{
			"JOHOR": "JHR", "KEDAH": "KDH", "KELANTAN": "KTN",
			"MELAKA": "MLK", "MALACCA": "MLK", "NEGERI SEMBILAN": "NSN",
			"PAHANG": "PHG", "PERAK": "PRK", "PERLIS": "PLS",
			"PULAU PINANG": "PNG", "PENANG": "PNG", "SABAH": "SBH",
			"SARAWAK": "SWK", "SELANGOR": "SGR", "TERENGGANU": "TRG",
			"KUALA LUMPUR": "KL", "WILAYAH PERSEKUTUAN KUALA LUMPUR": "KL",
			"LABUAN": "LBN", "PUTRAJAYA": "PJY",
		},
		ShortCourseOnly: []string{"100 IM"},
		SheetSkipTokens: []string{"LAP", "LAPS", "SPLIT", "SPLITS", "TOP", "OPEN WATER", "OW"},
	}
}

// Validate checks the rules for values that would make matching unsafe.
// All problems are reported together.
func (r Rules) Validate() error {
	var errs []error
	if r.FuzzyMinOverlap < 1 {
		errs = append(errs, fmt.Errorf("fuzzy_min_overlap must be at least 1, got %d", r.FuzzyMinOverlap))
	}
	if r.FuzzyMinWords < 1 {
		errs = append(errs, fmt.Errorf("fuzzy_min_words must be at least 1, got %d", r.FuzzyMinWords))
	}
	if r.FuzzyAllWordsMax < 0 {
		errs = append(errs, fmt.Errorf("fuzzy_all_words_max must not be negative, got %d", r.FuzzyAllWordsMax))
	}
	if r.ClubContainMinLen < 1 {
		errs = append(errs, fmt.Errorf("club_contain_min_len must be at least 1, got %d", r.ClubContainMinLen))
	}
	for alias, code := range r.StateCodes {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(code) == "" {
			errs = append(errs, fmt.Errorf("state_codes has an empty entry (%q: %q)", alias, code))
		}
	}
	for _, ev := range r.ShortCourseOnly {
		if _, _, ok := parseEventShape(ev); !ok {
			errs = append(errs, fmt.Errorf("short_course_only entry %q must look like \"100 IM\"", ev))
		}
	}
	return errors.Join(errs...)
}

// IsPlaceholderNation reports whether nation is empty or a configured
// placeholder value.
func (r Rules) IsPlaceholderNation(nation string) bool {
	n := strings.ToUpper(strings.TrimSpace(nation))
	if n == "" {
		return true
	}
	for _, p := range r.PlaceholderNations {
		if strings.EqualFold(p, n) {
			return true
		}
	}
	return false
}
