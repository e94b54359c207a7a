package core

import (
	"time"

	"github.com/JonMunkholm/swimresults/internal/normalize"
	"github.com/JonMunkholm/swimresults/internal/roster"
)

// RawRow is one spreadsheet row with its cells assigned to named fields.
// An empty string means the cell was missing or blank.
type RawRow struct {
	Sheet string
	Row   int // 1-based row number within the sheet

	Course   string
	Gender   string
	Distance string
	Stroke   string

	FullName  string
	Birthdate string
	Nation    string
	ClubCode  string
	ClubName  string

	DisplayTime     string
	NumericTime     string
	Points          string
	SecondaryPoints string
	Place           string

	MeetDate string
	MeetCity string
	MeetName string
}

// MeetInfo identifies the meet a group of results belongs to.
type MeetInfo struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	City      string `json:"city,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Result is an accepted, fully resolved result row ready for insertion.
type Result struct {
	AthleteID   int64  `json:"athlete_id"`
	AthleteName string `json:"athlete_name"`
	EventID     int64  `json:"event_id"`
	MeetKey     string `json:"meet_key"`

	Course   normalize.Course `json:"course"`
	Gender   normalize.Gender `json:"gender"`
	Distance int              `json:"distance"`
	Stroke   normalize.Stroke `json:"stroke"`

	TimeSeconds     float64  `json:"time_seconds"`
	TimeText        string   `json:"time_text"`
	Place           *int     `json:"place,omitempty"`
	Points          *float64 `json:"points,omitempty"`
	SecondaryPoints *float64 `json:"secondary_points,omitempty"`

	ClubID    *int64 `json:"club_id,omitempty"`
	ClubName  string `json:"club_name,omitempty"`
	ClubCode  string `json:"club_code,omitempty"`
	StateCode string `json:"state_code,omitempty"`
	Nation    string `json:"nation,omitempty"`

	Age     *int `json:"age,omitempty"`
	YearAge *int `json:"year_age,omitempty"`

	// Provenance.
	Sheet    string `json:"sheet"`
	Row      int    `json:"row"`
	MeetName string `json:"meet_name,omitempty"`
	MeetDate string `json:"meet_date,omitempty"`
	MeetCity string `json:"meet_city,omitempty"`
	RawClub  string `json:"raw_club,omitempty"`
}

// ResultKey is the identity used to deduplicate results within a meet.
type ResultKey struct {
	MeetID    int64
	EventID   int64
	AthleteID int64
}

// SkipReason names why a row produced no result.
type SkipReason string

const (
	SkipNoFullName        SkipReason = "no_fullname"
	SkipNoCourse          SkipReason = "no_course"
	SkipNoGender          SkipReason = "no_gender"
	SkipRelay             SkipReason = "relay"
	SkipNoEvent           SkipReason = "no_event"
	SkipCourseRestriction SkipReason = "course_restriction"
	SkipNoTime            SkipReason = "no_time"
	SkipNoAthlete         SkipReason = "no_athlete"
)

// SkippedRow records a row that was dropped and why.
type SkippedRow struct {
	Sheet  string     `json:"sheet"`
	Row    int        `json:"row"`
	Reason SkipReason `json:"reason"`
	Name   string     `json:"name,omitempty"`
}

// RowState tracks how far a row got through processing.
type RowState int

const (
	StateRaw RowState = iota
	StateExtracted
	StateEventResolved
	StateIdentityResolved
	StateDerived
	StateAccepted
	StateSkipped
)

func (s RowState) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateExtracted:
		return "extracted"
	case StateEventResolved:
		return "event_resolved"
	case StateIdentityResolved:
		return "identity_resolved"
	case StateDerived:
		return "derived"
	case StateAccepted:
		return "accepted"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// QueuedCorrection is an athlete correction with the row that produced it.
type QueuedCorrection struct {
	roster.Correction
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	MeetKey string `json:"meet_key"`
}

// MeetBatch is the unit of commit: one meet grouping with its results and
// the corrections raised by those results.
type MeetBatch struct {
	Meet        MeetInfo           `json:"meet"`
	Results     []Result           `json:"results"`
	Corrections []QueuedCorrection `json:"corrections,omitempty"`
}

// SheetSummary counts what happened to one sheet's rows.
type SheetSummary struct {
	Name     string `json:"name"`
	Rows     int    `json:"rows"`
	Accepted int    `json:"accepted"`
	Skipped  int    `json:"skipped"`
}

// SkippedSheet is a worksheet excluded before row processing.
type SkippedSheet struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report is the outcome of analysing one file. Preview returns it as is;
// Commit inserts its batches when no blocking issue is present.
type Report struct {
	FileName      string             `json:"file_name"`
	Meet          MeetInfo           `json:"meet"`
	Sheets        []SheetSummary     `json:"sheets"`
	SkippedSheets []SkippedSheet     `json:"skipped_sheets,omitempty"`
	Results       []Result           `json:"results"`
	Skipped       []SkippedRow       `json:"skipped,omitempty"`
	Corrections   []QueuedCorrection `json:"corrections,omitempty"`
	Batches       []MeetBatch        `json:"-"`
	Issues        *Collector         `json:"issues"`
	Duration      time.Duration      `json:"duration"`
}

// SkipCounts tallies skipped rows by reason.
func (r *Report) SkipCounts() map[SkipReason]int {
	counts := make(map[SkipReason]int)
	for _, s := range r.Skipped {
		counts[s.Reason]++
	}
	return counts
}

// BatchResult reports the commit of a single meet grouping.
type BatchResult struct {
	Meet               MeetInfo `json:"meet"`
	MeetID             int64    `json:"meet_id"`
	Inserted           int      `json:"inserted"`
	Duplicates         int      `json:"duplicates"`
	CorrectionsApplied int      `json:"corrections_applied"`
	CorrectionsSkipped int      `json:"corrections_skipped"`
}

// CommitResult is the outcome of a commit run. Error is set when the run
// stopped after writing some meets; Batches then lists only those.
type CommitResult struct {
	UploadID string        `json:"upload_id"`
	Report   *Report       `json:"report"`
	Batches  []BatchResult `json:"batches"`
	Blocked  bool          `json:"blocked"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Inserted sums inserted rows across batches.
func (c *CommitResult) Inserted() int {
	n := 0
	for _, b := range c.Batches {
		n += b.Inserted
	}
	return n
}

// Duplicates sums duplicate rows across batches.
func (c *CommitResult) Duplicates() int {
	n := 0
	for _, b := range c.Batches {
		n += b.Duplicates
	}
	return n
}

// UploadRecord is one commit attempt kept in the upload history.
type UploadRecord struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	Source      string    `json:"source,omitempty"`
	Meets       int       `json:"meets"`
	Inserted    int       `json:"inserted"`
	Duplicates  int       `json:"duplicates"`
	Corrections int       `json:"corrections"`
	Issues      int       `json:"issues"`
	Blocked     bool      `json:"blocked"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record summarises the commit for the upload history.
func (c *CommitResult) Record(fileName, source string) UploadRecord {
	rec := UploadRecord{
		ID:         c.UploadID,
		FileName:   fileName,
		Source:     source,
		Meets:      len(c.Batches),
		Inserted:   c.Inserted(),
		Duplicates: c.Duplicates(),
		Blocked:    c.Blocked,
	}
	for _, b := range c.Batches {
		rec.Corrections += b.CorrectionsApplied
	}
	if c.Report != nil {
		rec.Issues = c.Report.Issues.Total()
	}
	return rec
}
