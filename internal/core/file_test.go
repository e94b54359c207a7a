package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/swimresults/internal/roster"
	"github.com/JonMunkholm/swimresults/internal/workbook"
)

var headerRow = TemplateHeaders

// resultCells builds a data row in header order.
func resultCells(course, gender, dist, stroke, name, birth, timeText, meetDate, meetName string) []string {
	return []string{course, gender, dist, stroke, name, birth, "MAS", "", timeText, "", "", "", "1", meetDate, "Kuala Lumpur", meetName, ""}
}

func newTestFileProcessor() *FileProcessor {
	rules := roster.DefaultRules()
	return NewFileProcessor(roster.BuildIndices(testRoster(), rules), rules, 2)
}

func TestDetectColumns(t *testing.T) {
	t.Run("header below title rows", func(t *testing.T) {
		rows := [][]string{
			{"MALAYSIA OPEN 2024"},
			{"Results"},
			headerRow,
			resultCells("LCM", "F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "2024-06-01", "Malaysia Open"),
		}
		cm, idx := DetectColumns(rows)
		assert.Equal(t, 2, idx)
		assert.Equal(t, 4, cm[ColFullName])
		assert.Equal(t, 8, cm[ColDisplayTime])
		assert.Equal(t, 9, cm[ColNumericTime])
		assert.Equal(t, 16, cm[ColClubName])
	})

	t.Run("reordered header", func(t *testing.T) {
		cm, idx := DetectColumns([][]string{{"Name", "DOB", "Event Time", "Stroke", "Distance", "Sex"}})
		assert.Equal(t, 0, idx)
		assert.Equal(t, 0, cm[ColFullName])
		assert.Equal(t, 1, cm[ColBirthdate])
		assert.Equal(t, 3, cm[ColStroke])
		assert.Equal(t, 5, cm[ColGender])
		assert.Equal(t, -1, cm[ColCourse])
	})

	t.Run("template header matches positional layout", func(t *testing.T) {
		cm, idx := DetectColumns([][]string{TemplateHeaders})
		assert.Equal(t, 0, idx)
		assert.Equal(t, DefaultColumnMap(), cm)
	})

	t.Run("no header falls back to positions", func(t *testing.T) {
		cm, idx := DetectColumns([][]string{
			resultCells("LCM", "F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "2024-06-01", "Malaysia Open"),
		})
		assert.Equal(t, -1, idx)
		assert.Equal(t, DefaultColumnMap(), cm)
	})
}

func TestSheetFilter(t *testing.T) {
	f := NewSheetFilter(roster.DefaultRules())
	tests := []struct {
		name string
		skip bool
	}{
		{"50 Free", false},
		{"100m Backstroke Girls", false},
		{"4 x 100 Free Relay", true},
		{"4x50 Medley", true},
		{"Mixed Relay", true},
		{"Lap Times", true},
		{"Splits", true},
		{"Top 10", true},
		{"Open Water", true},
		{"5K", true},
		{"10KM", true},
		{"Day 2 Finals", false},
	}
	for _, tt := range tests {
		_, got := f.Skip(tt.name)
		assert.Equal(t, tt.skip, got, tt.name)
	}
}

func TestFileProcessor_Process(t *testing.T) {
	sheets := []workbook.Sheet{
		{Name: "50 Free", Rows: [][]string{
			headerRow,
			resultCells("LCM", "F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "2024-06-02", "Malaysia Open"),
			{},
			resultCells("LCM", "F", "50", "Free", "CHONG KAH HOE", "2008-01-01", "30.12", "2024-06-02", "Malaysia Open"),
		}},
		{Name: "4 x 100 Free Relay", Rows: [][]string{
			headerRow,
			resultCells("LCM", "F", "400", "Free", "TAN, MEI LING", "2008-03-05", "4:01.00", "2024-06-01", "Malaysia Open"),
		}},
		{Name: "100 Free", Rows: [][]string{
			headerRow,
			resultCells("LCM", "F", "100", "Free", "TAN, MEI LING", "2008-05-03", "1:04.50", "2024-06-01", "Malaysia Open"),
			resultCells("LCM", "F", "100", "Free", "TAN, MEI LING", "2008-05-03", "1:05.10", "2024-06-03", "Malaysia Open"),
		}},
		{Name: "Lap Times", Rows: [][]string{headerRow}},
	}

	report, err := newTestFileProcessor().Process(context.Background(), "malaysia-open.xlsx", sheets)
	require.NoError(t, err)

	assert.Equal(t, "Malaysia Open", report.Meet.Name)
	assert.Equal(t, "Kuala Lumpur", report.Meet.City)
	assert.Equal(t, "2024-06-01", report.Meet.StartDate)
	assert.Equal(t, "2024-06-03", report.Meet.EndDate)

	require.Len(t, report.Sheets, 2)
	assert.Equal(t, "50 Free", report.Sheets[0].Name)
	assert.Equal(t, "100 Free", report.Sheets[1].Name)
	require.Len(t, report.SkippedSheets, 2)

	assert.Len(t, report.Results, 3)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, SkippedRow{Sheet: "50 Free", Row: 4, Reason: SkipNoAthlete, Name: "CHONG KAH HOE"}, report.Skipped[0])
	assert.Zero(t, report.SkipCounts()[SkipRelay], "relay sheet rows must not count as skips")
	assert.Equal(t, 1, report.Issues.Count(KindMissingAthlete))

	// Two swapped-birthdate rows queue one correction.
	require.Len(t, report.Corrections, 1)
	assert.Equal(t, roster.CorrectBirthdate, report.Corrections[0].Kind)
	assert.Equal(t, "100 Free", report.Corrections[0].Sheet)

	require.Len(t, report.Batches, 1)
	b := report.Batches[0]
	assert.Equal(t, "MALAYSIA OPEN", b.Meet.Key)
	assert.Len(t, b.Results, 3)
	assert.Len(t, b.Corrections, 1)
}

func TestFileProcessor_MeetGroupings(t *testing.T) {
	sheets := []workbook.Sheet{
		{Name: "50 Free", Rows: [][]string{
			headerRow,
			resultCells("LCM", "F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "2024-06-01", "Malaysia Open"),
			resultCells("LCM", "F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.55", "2024-08-10", "SEA Age Group"),
			resultCells("LCM", "F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.60", "", ""),
		}},
	}

	report, err := newTestFileProcessor().Process(context.Background(), "season.xlsx", sheets)
	require.NoError(t, err)

	require.Len(t, report.Batches, 2)
	assert.Equal(t, "Malaysia Open", report.Batches[0].Meet.Name)
	assert.Len(t, report.Batches[0].Results, 2, "row without a meet joins the workbook meet")
	assert.Equal(t, "SEA Age Group", report.Batches[1].Meet.Name)
	assert.Equal(t, "2024-08-10", report.Batches[1].Meet.StartDate)
}

func TestFileProcessor_FileNameFallback(t *testing.T) {
	sheets := []workbook.Sheet{
		{Name: "Results", Rows: [][]string{
			headerRow,
			resultCells("LCM", "F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "", ""),
		}},
	}

	report, err := newTestFileProcessor().Process(context.Background(), "/tmp/State Championships.xlsx", sheets)
	require.NoError(t, err)
	assert.Equal(t, "State Championships", report.Meet.Name)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "STATE CHAMPIONSHIPS", report.Results[0].MeetKey)
	assert.Nil(t, report.Results[0].Age, "no competition date, no age")
}

func TestFileProcessor_Errors(t *testing.T) {
	fp := newTestFileProcessor()

	_, err := fp.Process(context.Background(), "relays.xlsx", []workbook.Sheet{
		{Name: "4x100 Free"}, {Name: "Top 8"},
	})
	assert.ErrorIs(t, err, ErrEmptyWorkbook)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fp.Process(ctx, "meet.xlsx", []workbook.Sheet{
		{Name: "50 Free", Rows: [][]string{
			headerRow,
			resultCells("LCM", "F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "2024-06-01", "Malaysia Open"),
		}},
	})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
