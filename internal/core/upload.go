package core

// upload.go turns workbook sheets into RawRows: sheet selection, header
// detection and cell extraction.

import (
	"regexp"
	"strings"

	"github.com/JonMunkholm/swimresults/internal/normalize"
	"github.com/JonMunkholm/swimresults/internal/roster"
	"github.com/JonMunkholm/swimresults/internal/workbook"
)

// MaxHeaderSearchRows is the maximum number of rows to scan for the header.
var MaxHeaderSearchRows = 20

// ContextCheckInterval is how often row loops check for cancellation.
var ContextCheckInterval = 100

// minHeaderRoles is how many recognised column titles a row needs to be
// taken as the header.
const minHeaderRoles = 4

// Column is a semantic column role.
type Column int

const (
	ColCourse Column = iota
	ColGender
	ColDistance
	ColStroke
	ColFullName
	ColBirthdate
	ColNation
	ColClubCode
	ColDisplayTime
	ColNumericTime
	ColPoints
	ColSecondaryPoints
	ColPlace
	ColMeetDate
	ColMeetCity
	ColMeetName
	ColClubName
	numColumns
)

// ColumnMap gives the cell index of each role, or -1 when absent.
type ColumnMap [numColumns]int

// DefaultColumnMap is the fixed positional layout used when a sheet has no
// recognisable header row.
func DefaultColumnMap() ColumnMap {
	var cm ColumnMap
	for i := range cm {
		cm[i] = i
	}
	return cm
}

// TemplateHeaders is the canonical header row, one title per role in
// positional order. Blank templates handed to meet organisers use it.
var TemplateHeaders = []string{
	"Course", "Gender", "Distance", "Stroke", "Full Name", "Birthdate", "Nation",
	"Club Code", "Time", "Time Seconds", "Points", "Secondary Points", "Place",
	"Meet Date", "Meet City", "Meet Name", "Club",
}

// headerAliases lists the header titles (as match keys) recognised per role.
var headerAliases = map[string]Column{
	"COURSE": ColCourse, "POOL": ColCourse, "POOL LENGTH": ColCourse,
	"GENDER": ColGender, "SEX": ColGender,
	"DISTANCE": ColDistance, "DIST": ColDistance,
	"STROKE": ColStroke, "STYLE": ColStroke,
	"FULL NAME": ColFullName, "FULLNAME": ColFullName, "NAME": ColFullName,
	"SWIMMER": ColFullName, "ATHLETE": ColFullName, "ATHLETE NAME": ColFullName,
	"BIRTHDATE": ColBirthdate, "BIRTH DATE": ColBirthdate, "DOB": ColBirthdate,
	"DATE OF BIRTH": ColBirthdate, "BIRTHDAY": ColBirthdate,
	"NATION": ColNation, "NAT": ColNation, "NATIONALITY": ColNation, "COUNTRY": ColNation, "NOC": ColNation,
	"CLUB CODE": ColClubCode, "CLUBCODE": ColClubCode, "TEAM CODE": ColClubCode,
	"TIME": ColDisplayTime, "SWIM TIME": ColDisplayTime, "SWIMTIME": ColDisplayTime,
	"RESULT": ColDisplayTime, "FINAL TIME": ColDisplayTime, "DISPLAY TIME": ColDisplayTime,
	"TIME SECONDS": ColNumericTime, "SECONDS": ColNumericTime, "NUMERIC TIME": ColNumericTime,
	"TIME S": ColNumericTime, "TIME NUM": ColNumericTime,
	"POINTS": ColPoints, "PTS": ColPoints, "FINA POINTS": ColPoints, "WA POINTS": ColPoints,
	"SECONDARY POINTS": ColSecondaryPoints, "POINTS 2": ColSecondaryPoints, "AQUA POINTS": ColSecondaryPoints,
	"PLACE": ColPlace, "RANK": ColPlace, "POS": ColPlace, "POSITION": ColPlace,
	"MEET DATE": ColMeetDate, "DATE": ColMeetDate, "COMPETITION DATE": ColMeetDate,
	"MEET CITY": ColMeetCity, "CITY": ColMeetCity, "VENUE": ColMeetCity,
	"MEET NAME": ColMeetName, "MEET": ColMeetName, "COMPETITION": ColMeetName,
	"CLUB": ColClubName, "CLUB NAME": ColClubName, "TEAM": ColClubName, "TEAM NAME": ColClubName,
}

// DetectColumns scans the first MaxHeaderSearchRows rows for a header. It
// returns the column map and the header's row index, or the default layout
// and -1 when no header is found.
func DetectColumns(rows [][]string) (ColumnMap, int) {
	limit := MaxHeaderSearchRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		if cm, ok := headerColumns(rows[i]); ok {
			return cm, i
		}
	}
	return DefaultColumnMap(), -1
}

func headerColumns(row []string) (ColumnMap, bool) {
	var cm ColumnMap
	for i := range cm {
		cm[i] = -1
	}
	found := 0
	for pos, cell := range row {
		col, ok := headerAliases[normalize.MatchKey(workbook.CleanCell(cell))]
		if !ok || cm[col] != -1 {
			continue
		}
		cm[col] = pos
		found++
	}
	if found < minHeaderRoles || cm[ColFullName] == -1 {
		return cm, false
	}
	return cm, true
}

// ExtractRow assigns the cells of one row to named fields.
func ExtractRow(sheet string, rowNum int, cells []string, cm ColumnMap) RawRow {
	get := func(c Column) string {
		pos := cm[c]
		if pos < 0 || pos >= len(cells) {
			return ""
		}
		return workbook.CleanCell(cells[pos])
	}
	return RawRow{
		Sheet:           sheet,
		Row:             rowNum,
		Course:          get(ColCourse),
		Gender:          get(ColGender),
		Distance:        get(ColDistance),
		Stroke:          get(ColStroke),
		FullName:        get(ColFullName),
		Birthdate:       get(ColBirthdate),
		Nation:          get(ColNation),
		ClubCode:        get(ColClubCode),
		ClubName:        get(ColClubName),
		DisplayTime:     get(ColDisplayTime),
		NumericTime:     get(ColNumericTime),
		Points:          get(ColPoints),
		SecondaryPoints: get(ColSecondaryPoints),
		Place:           get(ColPlace),
		MeetDate:        get(ColMeetDate),
		MeetCity:        get(ColMeetCity),
		MeetName:        get(ColMeetName),
	}
}

// ExtractSheet converts every non-empty data row of a sheet.
func ExtractSheet(sh workbook.Sheet) []RawRow {
	cm, header := DetectColumns(sh.Rows)
	out := make([]RawRow, 0, len(sh.Rows))
	for i := header + 1; i < len(sh.Rows); i++ {
		if workbook.IsEmptyRow(sh.Rows[i]) {
			continue
		}
		out = append(out, ExtractRow(sh.Name, i+1, sh.Rows[i], cm))
	}
	return out
}

var sizeTokenRe = regexp.MustCompile(`^\d+K(M)?$`)

// SheetFilter decides which worksheets hold individual event results.
type SheetFilter struct {
	tokens map[string]struct{}
}

// NewSheetFilter builds a filter from the configured skip tokens.
func NewSheetFilter(rules roster.Rules) SheetFilter {
	f := SheetFilter{tokens: make(map[string]struct{}, len(rules.SheetSkipTokens))}
	for _, t := range rules.SheetSkipTokens {
		f.tokens[normalize.MatchKey(t)] = struct{}{}
	}
	return f
}

// Skip returns a reason when the sheet should be excluded.
func (f SheetFilter) Skip(name string) (string, bool) {
	if normalize.LooksLikeRelaySheet(name) {
		return "relay sheet", true
	}
	key := normalize.MatchKey(name)
	words := strings.Fields(key)
	for _, w := range words {
		if _, ok := f.tokens[w]; ok {
			return "name token " + w, true
		}
		if sizeTokenRe.MatchString(w) {
			return "name token " + w, true
		}
	}
	// Multi-word tokens ("OPEN WATER").
	padded := " " + key + " "
	for t := range f.tokens {
		if strings.Contains(t, " ") && strings.Contains(padded, " "+t+" ") {
			return "name token " + t, true
		}
	}
	return "", false
}
