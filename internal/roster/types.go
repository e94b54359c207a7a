// Package roster resolves free-text spreadsheet values against the canonical
// athlete, club and event tables.
//
// Indices are built once per run from a Roster snapshot and are read-only
// afterwards, so a single index may be shared by concurrent sheet workers.
package roster

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/swimresults/internal/normalize"
)

// MaxAliases is the number of alternate-name slots an athlete record carries.
const MaxAliases = 2

// Athlete is a canonical athlete record.
type Athlete struct {
	ID        int64
	Name      string
	Aliases   []string
	Birthdate string // YYYY-MM-DD, "" when unknown
	Gender    normalize.Gender
	Nation    string
	ClubCode  string
	ClubName  string
}

// Club is a canonical club record.
type Club struct {
	ID        int64
	Name      string
	Code      string
	StateCode string
	Nation    string
}

// Event is a canonical individual event.
type Event struct {
	ID       int64
	Course   normalize.Course
	Distance int
	Stroke   normalize.Stroke
	Gender   normalize.Gender
}

// Roster is the snapshot of canonical tables that indices are built from.
type Roster struct {
	Athletes []Athlete
	Clubs    []Club
	Events   []Event
}

// CorrectionKind names the athlete field a correction rewrites.
type CorrectionKind string

const (
	CorrectName      CorrectionKind = "name"
	CorrectBirthdate CorrectionKind = "birthdate"
	CorrectNation    CorrectionKind = "nation"
)

// CorrectionOrder is the order corrections are applied within a commit.
var CorrectionOrder = []CorrectionKind{CorrectName, CorrectBirthdate, CorrectNation}

// Correction is a pending update to a canonical athlete record.
type Correction struct {
	Kind        CorrectionKind `json:"kind"`
	AthleteID   int64          `json:"athlete_id"`
	AthleteName string         `json:"athlete_name"`
	Old         string         `json:"old"`
	New         string         `json:"new"`
}

type eventShape struct {
	distance int
	stroke   normalize.Stroke
}

// parseEventShape parses "100 IM" style rule entries.
func parseEventShape(s string) (int, normalize.Stroke, bool) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return 0, "", false
	}
	d, err := strconv.Atoi(strings.TrimSuffix(strings.ToUpper(fields[0]), "M"))
	if err != nil || d <= 0 {
		return 0, "", false
	}
	st, ok := normalize.ParseStroke(strings.Join(fields[1:], " "))
	if !ok {
		return 0, "", false
	}
	return d, st, true
}

// CourseRestrictions answers whether an event may be swum in a given course.
type CourseRestrictions struct {
	scmOnly map[eventShape]struct{}
}

// NewCourseRestrictions builds the restriction set from rules. Malformed
// entries are ignored; Rules.Validate reports them.
func NewCourseRestrictions(rules Rules) CourseRestrictions {
	cr := CourseRestrictions{scmOnly: make(map[eventShape]struct{})}
	for _, s := range rules.ShortCourseOnly {
		if d, st, ok := parseEventShape(s); ok {
			cr.scmOnly[eventShape{d, st}] = struct{}{}
		}
	}
	return cr
}

// Allowed reports whether distance/stroke may be recorded in course.
func (cr CourseRestrictions) Allowed(course normalize.Course, distance int, stroke normalize.Stroke) bool {
	if _, ok := cr.scmOnly[eventShape{distance, stroke}]; ok {
		return course == normalize.CourseSCM
	}
	return true
}

// Indices bundles the lookups built from one roster snapshot.
type Indices struct {
	Athletes *AthleteIndex
	Clubs    *ClubIndex
	Events   *EventIndex
	Courses  CourseRestrictions
}

// BuildIndices indexes every table of r under rules.
func BuildIndices(r *Roster, rules Rules) *Indices {
	return &Indices{
		Athletes: NewAthleteIndex(r.Athletes, rules),
		Clubs:    NewClubIndex(r.Clubs, rules),
		Events:   NewEventIndex(r.Events),
		Courses:  NewCourseRestrictions(rules),
	}
}
