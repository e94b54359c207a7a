package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/swimresults/internal/normalize"
	"github.com/JonMunkholm/swimresults/internal/roster"
)

// RowOutcome is what processing one row produced.
type RowOutcome struct {
	State       RowState
	Reached     RowState // last state reached before a skip
	Skip        SkipReason
	Result      *Result
	Corrections []QueuedCorrection
}

func skipped(reached RowState, reason SkipReason) RowOutcome {
	return RowOutcome{State: StateSkipped, Reached: reached, Skip: reason}
}

// RowProcessor turns one RawRow into a Result or a skip, reporting issues.
// It only reads the indices and is safe for concurrent use.
type RowProcessor struct {
	idx   *roster.Indices
	rules roster.Rules
}

// NewRowProcessor returns a processor over the given indices.
func NewRowProcessor(idx *roster.Indices, rules roster.Rules) *RowProcessor {
	return &RowProcessor{idx: idx, rules: rules}
}

// Process runs the row through extraction checks, event resolution, identity
// resolution and derivation. Meet fields on row are expected to already carry
// any file-level fallback.
func (p *RowProcessor) Process(row RawRow, issues *Collector) RowOutcome {
	at := IssueContext{Sheet: row.Sheet, Row: row.Row}
	state := StateRaw

	name := normalize.Name(row.FullName)
	if name == "" {
		return skipped(state, SkipNoFullName)
	}
	course, ok := normalize.ParseCourse(row.Course)
	if !ok {
		return skipped(state, SkipNoCourse)
	}
	gender, ok := normalize.ParseGender(row.Gender)
	if !ok {
		return skipped(state, SkipNoGender)
	}
	if normalize.IsRelay(row.Distance, row.Stroke) {
		return skipped(state, SkipRelay)
	}
	state = StateExtracted

	distance, okDist := normalize.ParseDistance(row.Distance)
	stroke, okStroke := normalize.ParseStroke(row.Stroke)
	if !okDist || !okStroke {
		issues.Add(EventMiss{IssueContext: at, Course: string(course), Distance: row.Distance, Stroke: row.Stroke, Gender: string(gender)})
		return skipped(state, SkipNoEvent)
	}
	if !p.idx.Courses.Allowed(course, distance, stroke) {
		return skipped(state, SkipCourseRestriction)
	}
	event, ok := p.idx.Events.Lookup(course, distance, stroke, gender)
	if !ok {
		issues.Add(EventMiss{IssueContext: at, Course: string(course), Distance: row.Distance, Stroke: row.Stroke, Gender: string(gender)})
		return skipped(state, SkipNoEvent)
	}

	seconds, timeText, ok := resolveTime(row.DisplayTime, row.NumericTime)
	if !ok {
		if row.DisplayTime != "" || row.NumericTime != "" {
			issues.Add(TimeParseError{IssueContext: at, DisplayTime: row.DisplayTime, NumericTime: row.NumericTime})
		}
		return skipped(state, SkipNoTime)
	}
	state = StateEventResolved

	birthdate := normalize.Birthdate(row.Birthdate)
	nation := strings.ToUpper(strings.TrimSpace(row.Nation))
	match := p.idx.Athletes.Resolve(roster.AthleteQuery{
		Name:      name,
		Birthdate: birthdate,
		Gender:    gender,
		Nation:    nation,
	})
	for _, a := range match.GenderConflicts {
		issues.Add(GenderMismatch{IssueContext: at, AthleteID: a.ID, Name: a.Name, OnFile: string(a.Gender), Incoming: string(gender)})
	}
	if !match.Found() {
		for _, a := range match.DateConflicts {
			issues.Add(BirthdateMismatch{IssueContext: at, AthleteID: a.ID, Name: a.Name, OnFile: a.Birthdate, Incoming: birthdate})
		}
		issues.Add(MissingAthlete{
			IssueContext: at,
			Name:         name,
			Birthdate:    birthdate,
			Gender:       string(gender),
			Club:         firstNonEmpty(row.ClubName, row.ClubCode),
			MeetName:     row.MeetName,
			Reason:       missingReason(match, birthdate),
		})
		return skipped(state, SkipNoAthlete)
	}
	athlete := match.Athlete

	if match.NameFormatMismatch {
		issues.Add(NameFormatMismatch{IssueContext: at, AthleteID: athlete.ID, OnFile: athlete.Name, Incoming: name})
	}
	if match.Relation == roster.DateDayDiffers || match.Relation == roster.DateMonthDiffers {
		issues.Add(BirthdateMismatch{IssueContext: at, AthleteID: athlete.ID, Name: athlete.Name, OnFile: athlete.Birthdate, Incoming: birthdate, Accepted: true})
	}
	if match.NationMismatch {
		issues.Add(NationMismatch{IssueContext: at, AthleteID: athlete.ID, Name: athlete.Name, OnFile: athlete.Nation, Incoming: nation})
	}

	meetKey := meetKeyFor(row.MeetName)
	res := &Result{
		AthleteID:   athlete.ID,
		AthleteName: athlete.Name,
		EventID:     event.ID,
		MeetKey:     meetKey,
		Course:      course,
		Gender:      gender,
		Distance:    distance,
		Stroke:      stroke,
		TimeSeconds: seconds,
		TimeText:    timeText,
		Place:       parsePlace(row.Place),
		Points:      parsePoints(row.Points),
		Nation:      nation,
		Sheet:       row.Sheet,
		Row:         row.Row,
		MeetName:    row.MeetName,
		MeetDate:    normalize.Birthdate(row.MeetDate),
		MeetCity:    row.MeetCity,
		RawClub:     firstNonEmpty(row.ClubName, row.ClubCode),
	}
	res.SecondaryPoints = parsePoints(row.SecondaryPoints)
	if p.rules.IsPlaceholderNation(nation) {
		res.Nation = athlete.Nation
	}

	p.resolveClub(res, row, at, issues)
	deriveAge(res, athlete.Birthdate, birthdate)

	out := RowOutcome{State: StateAccepted, Reached: StateDerived, Result: res}
	for _, c := range match.Corrections {
		out.Corrections = append(out.Corrections, QueuedCorrection{
			Correction: c, Sheet: row.Sheet, Row: row.Row, MeetKey: meetKey,
		})
	}
	return out
}

func (p *RowProcessor) resolveClub(res *Result, row RawRow, at IssueContext, issues *Collector) {
	if row.ClubName == "" && row.ClubCode == "" {
		return
	}
	var m roster.ClubMatch
	if row.ClubCode != "" {
		m = p.idx.Clubs.ResolveCode(row.ClubCode)
	}
	if !m.Found() && row.ClubName != "" {
		m = p.idx.Clubs.Resolve(row.ClubName)
	}
	if !m.Found() {
		issues.Add(ClubMiss{IssueContext: at, Club: res.RawClub, State: m.StateCode})
		res.StateCode = m.StateCode
		return
	}
	id := m.Club.ID
	res.ClubID = &id
	res.ClubName = m.Club.Name
	res.ClubCode = m.Club.Code
	res.StateCode = m.StateCode
}

// resolveTime prefers the display text and falls back to the numeric cell.
func resolveTime(display, numeric string) (float64, string, bool) {
	if secs, ok := normalize.ParseDuration(display); ok {
		if strings.Contains(display, ":") {
			return secs, strings.TrimSpace(display), true
		}
		return secs, normalize.FormatDuration(secs), true
	}
	if secs, ok := normalize.ParseDuration(numeric); ok {
		return secs, normalize.FormatDuration(secs), true
	}
	return 0, "", false
}

// deriveAge fills exact and year ages at the competition date from the
// resolved athlete's birthdate. The row's birthdate is used only when the
// roster has none.
func deriveAge(res *Result, onFile, incoming string) {
	comp, ok := normalize.ParseDate(res.MeetDate)
	if !ok {
		return
	}
	birth, ok := normalize.ParseDate(firstNonEmpty(onFile, incoming))
	if !ok || birth.After(comp) {
		return
	}
	years, yearAge := normalize.Age(birth, comp)
	res.Age = &years
	res.YearAge = &yearAge
}

func missingReason(m roster.AthleteMatch, birthdate string) string {
	switch {
	case birthdate == "":
		return "no usable birthdate on row"
	case len(m.Ambiguous) > 1:
		return fmt.Sprintf("%d candidate athletes, none unique", len(m.Ambiguous))
	case len(m.DateConflicts) > 0:
		return "name matched but birthdate outside tolerance"
	case len(m.GenderConflicts) > 0:
		return "name matched but gender differs"
	default:
		return "no athlete matched"
	}
}

func parsePlace(s string) *int {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return nil
		}
		n = int(f)
	}
	if n <= 0 {
		return nil
	}
	return &n
}

func parsePoints(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func meetKeyFor(name string) string {
	return normalize.MatchKey(name)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
