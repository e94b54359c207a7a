package core

// validation.go collects the data-quality issues found while processing a
// file. Issues never stop processing on their own; the caller decides which
// kinds block a commit (see BlockingKinds).

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// IssueKind identifies a category of issue.
type IssueKind string

const (
	KindMissingAthlete     IssueKind = "missing_athlete"
	KindBirthdateMismatch  IssueKind = "birthdate_mismatch"
	KindNationMismatch     IssueKind = "nation_mismatch"
	KindGenderMismatch     IssueKind = "gender_mismatch"
	KindNameFormatMismatch IssueKind = "name_format_mismatch"
	KindClubMiss           IssueKind = "club_miss"
	KindEventMiss          IssueKind = "event_miss"
	KindTimeParseError     IssueKind = "time_parse_error"
	KindDuplicateSkipped   IssueKind = "duplicate_skipped"
)

// IssueKinds lists every kind in report order.
var IssueKinds = []IssueKind{
	KindMissingAthlete,
	KindBirthdateMismatch,
	KindNationMismatch,
	KindGenderMismatch,
	KindNameFormatMismatch,
	KindClubMiss,
	KindEventMiss,
	KindTimeParseError,
	KindDuplicateSkipped,
}

// BlockingKinds are the issue kinds that prevent a commit by default.
var BlockingKinds = []IssueKind{KindMissingAthlete}

// IssueContext locates an issue in the source file.
type IssueContext struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Where returns the issue's location.
func (c IssueContext) Where() IssueContext { return c }

func (IssueContext) issue() {}

// Issue is one of the concrete issue types below.
type Issue interface {
	Kind() IssueKind
	Where() IssueContext
	issue()
}

// MissingAthlete: no canonical athlete could be matched. Blocks commit.
type MissingAthlete struct {
	IssueContext
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
	Gender    string `json:"gender"`
	Club      string `json:"club,omitempty"`
	MeetName  string `json:"meet_name,omitempty"`
	Reason    string `json:"reason"`
}

// BirthdateMismatch: an athlete was matched despite a birthdate that
// differs from the record, or an exact name hit was rejected on birthdate.
type BirthdateMismatch struct {
	IssueContext
	AthleteID int64  `json:"athlete_id"`
	Name      string `json:"name"`
	OnFile    string `json:"on_file"`
	Incoming  string `json:"incoming"`
	Accepted  bool   `json:"accepted"`
}

// NationMismatch: the row's nation disagrees with a non-placeholder record.
type NationMismatch struct {
	IssueContext
	AthleteID int64  `json:"athlete_id"`
	Name      string `json:"name"`
	OnFile    string `json:"on_file"`
	Incoming  string `json:"incoming"`
}

// GenderMismatch: a candidate athlete was rejected on gender.
type GenderMismatch struct {
	IssueContext
	AthleteID int64  `json:"athlete_id"`
	Name      string `json:"name"`
	OnFile    string `json:"on_file"`
	Incoming  string `json:"incoming"`
}

// NameFormatMismatch: matched name differs from the record in case or punctuation.
type NameFormatMismatch struct {
	IssueContext
	AthleteID int64  `json:"athlete_id"`
	OnFile    string `json:"on_file"`
	Incoming  string `json:"incoming"`
}

// ClubMiss: the row's club could not be resolved. The row is kept.
type ClubMiss struct {
	IssueContext
	Club  string `json:"club"`
	State string `json:"state,omitempty"`
}

// EventMiss: the row's event could not be resolved.
type EventMiss struct {
	IssueContext
	Course   string `json:"course"`
	Distance string `json:"distance"`
	Stroke   string `json:"stroke"`
	Gender   string `json:"gender"`
}

// TimeParseError: neither time field held a usable time.
type TimeParseError struct {
	IssueContext
	DisplayTime string `json:"display_time"`
	NumericTime string `json:"numeric_time"`
}

// DuplicateSkipped: the result already exists for this meet and was not inserted.
type DuplicateSkipped struct {
	IssueContext
	MeetID    int64  `json:"meet_id"`
	EventID   int64  `json:"event_id"`
	AthleteID int64  `json:"athlete_id"`
	Name      string `json:"name"`
}

func (MissingAthlete) Kind() IssueKind     { return KindMissingAthlete }
func (BirthdateMismatch) Kind() IssueKind  { return KindBirthdateMismatch }
func (NationMismatch) Kind() IssueKind     { return KindNationMismatch }
func (GenderMismatch) Kind() IssueKind     { return KindGenderMismatch }
func (NameFormatMismatch) Kind() IssueKind { return KindNameFormatMismatch }
func (ClubMiss) Kind() IssueKind           { return KindClubMiss }
func (EventMiss) Kind() IssueKind          { return KindEventMiss }
func (TimeParseError) Kind() IssueKind     { return KindTimeParseError }
func (DuplicateSkipped) Kind() IssueKind   { return KindDuplicateSkipped }

// Describe renders a one-line description of an issue.
func Describe(is Issue) string {
	switch v := is.(type) {
	case MissingAthlete:
		return fmt.Sprintf("%s (%s, %s): %s", v.Name, orDash(v.Birthdate), orDash(v.Gender), v.Reason)
	case BirthdateMismatch:
		if v.Accepted {
			return fmt.Sprintf("%s: birthdate %s on file, %s on row (corrected)", v.Name, v.OnFile, v.Incoming)
		}
		return fmt.Sprintf("%s: birthdate %s on file, %s on row", v.Name, orDash(v.OnFile), orDash(v.Incoming))
	case NationMismatch:
		return fmt.Sprintf("%s: nation %s on file, %s on row", v.Name, v.OnFile, v.Incoming)
	case GenderMismatch:
		return fmt.Sprintf("%s: gender %s on file, %s on row", v.Name, v.OnFile, v.Incoming)
	case NameFormatMismatch:
		return fmt.Sprintf("name %q on file, %q on row", v.OnFile, v.Incoming)
	case ClubMiss:
		if v.State != "" {
			return fmt.Sprintf("club %q not found (state %s)", v.Club, v.State)
		}
		return fmt.Sprintf("club %q not found", v.Club)
	case EventMiss:
		return fmt.Sprintf("no event for %s %s %s %s", v.Course, v.Distance, v.Stroke, v.Gender)
	case TimeParseError:
		return fmt.Sprintf("unreadable time %q / %q", v.DisplayTime, v.NumericTime)
	case DuplicateSkipped:
		return fmt.Sprintf("%s: result already recorded for event %d", v.Name, v.EventID)
	default:
		return is.Where().Message
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Collector accumulates issues by kind. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	issues map[IssueKind][]Issue
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{issues: make(map[IssueKind][]Issue)}
}

// Add records an issue.
func (c *Collector) Add(is Issue) {
	c.mu.Lock()
	c.issues[is.Kind()] = append(c.issues[is.Kind()], is)
	c.mu.Unlock()
}

// Merge appends every issue from other, preserving other's order per kind.
func (c *Collector) Merge(other *Collector) {
	if other == nil || other == c {
		return
	}
	other.mu.Lock()
	snapshot := make(map[IssueKind][]Issue, len(other.issues))
	for k, v := range other.issues {
		snapshot[k] = append([]Issue(nil), v...)
	}
	other.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range IssueKinds {
		c.issues[k] = append(c.issues[k], snapshot[k]...)
	}
}

// Count returns the number of issues of kind.
func (c *Collector) Count(kind IssueKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues[kind])
}

// Total returns the number of issues of every kind.
func (c *Collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.issues {
		n += len(v)
	}
	return n
}

// HasIssues reports whether anything was collected.
func (c *Collector) HasIssues() bool { return c.Total() > 0 }

// HasAny reports whether at least one issue of the given kinds exists.
func (c *Collector) HasAny(kinds ...IssueKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range kinds {
		if len(c.issues[k]) > 0 {
			return true
		}
	}
	return false
}

// HasBlocking reports whether any BlockingKinds issue was collected.
func (c *Collector) HasBlocking() bool { return c.HasAny(BlockingKinds...) }

// ByKind returns a copy of the issues of kind.
func (c *Collector) ByKind(kind IssueKind) []Issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Issue(nil), c.issues[kind]...)
}

// Counts returns the per-kind totals, omitting empty kinds.
func (c *Collector) Counts() map[IssueKind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[IssueKind]int, len(c.issues))
	for k, v := range c.issues {
		if len(v) > 0 {
			out[k] = len(v)
		}
	}
	return out
}

// Summary renders a human-readable report grouped by kind, listing at most
// perKind issues per group (0 lists all).
func (c *Collector) Summary(perKind int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	total := 0
	for _, v := range c.issues {
		total += len(v)
	}
	fmt.Fprintf(&b, "%d issue(s)\n", total)

	for _, k := range IssueKinds {
		list := c.issues[k]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (%d):\n", k, len(list))
		for i, is := range list {
			if perKind > 0 && i == perKind {
				fmt.Fprintf(&b, "  ... %d more\n", len(list)-perKind)
				break
			}
			w := is.Where()
			msg := w.Message
			if msg == "" {
				msg = Describe(is)
			}
			fmt.Fprintf(&b, "  [%s row %d] %s\n", w.Sheet, w.Row, msg)
		}
	}
	return b.String()
}

// MarshalJSON encodes the issues as an object keyed by kind.
func (c *Collector) MarshalJSON() ([]byte, error) {
	c.mu.Lock()
	out := make(map[IssueKind][]Issue, len(c.issues))
	for k, v := range c.issues {
		if len(v) > 0 {
			out[k] = append([]Issue(nil), v...)
		}
	}
	c.mu.Unlock()
	return json.Marshal(out)
}
