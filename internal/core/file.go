package core

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/swimresults/internal/logging"
	"github.com/JonMunkholm/swimresults/internal/normalize"
	"github.com/JonMunkholm/swimresults/internal/roster"
	"github.com/JonMunkholm/swimresults/internal/workbook"
)

// DefaultSheetWorkers is used when no worker count is configured.
const DefaultSheetWorkers = 4

// FileProcessor runs every event sheet of a workbook through a RowProcessor.
type FileProcessor struct {
	rows    *RowProcessor
	filter  SheetFilter
	workers int
}

// NewFileProcessor returns a processor that handles up to workers sheets
// concurrently.
func NewFileProcessor(idx *roster.Indices, rules roster.Rules, workers int) *FileProcessor {
	if workers <= 0 {
		workers = DefaultSheetWorkers
	}
	return &FileProcessor{
		rows:    NewRowProcessor(idx, rules),
		filter:  NewSheetFilter(rules),
		workers: workers,
	}
}

type sheetOutcome struct {
	summary     SheetSummary
	results     []Result
	skipped     []SkippedRow
	corrections []QueuedCorrection
	issues      *Collector
}

// Process analyses a workbook. It does not touch storage; the returned
// report carries accepted results grouped into meet batches, the skip
// ledger, queued corrections and all issues.
func (fp *FileProcessor) Process(ctx context.Context, fileName string, sheets []workbook.Sheet) (*Report, error) {
	start := time.Now()
	logger := logging.FromContext(ctx)
	report := &Report{FileName: fileName, Issues: NewCollector()}

	var kept []workbook.Sheet
	for _, sh := range sheets {
		if reason, skip := fp.filter.Skip(sh.Name); skip {
			logger.Debug("sheet skipped", "sheet", sh.Name, "reason", reason)
			report.SkippedSheets = append(report.SkippedSheets, SkippedSheet{Name: sh.Name, Reason: reason})
			continue
		}
		kept = append(kept, sh)
	}
	if len(kept) == 0 {
		return nil, ErrEmptyWorkbook
	}

	extracted := make([][]RawRow, len(kept))
	for i, sh := range kept {
		extracted[i] = ExtractSheet(sh)
	}
	report.Meet = aggregateMeet(extracted, fileName)
	for _, rows := range extracted {
		for j := range rows {
			applyMeetFallback(&rows[j], report.Meet)
		}
	}

	outcomes := make([]sheetOutcome, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fp.workers)
	for i := range kept {
		g.Go(func() error {
			out, err := fp.processSheet(gctx, kept[i].Name, extracted[i])
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var corrections []QueuedCorrection
	for _, out := range outcomes {
		report.Sheets = append(report.Sheets, out.summary)
		report.Results = append(report.Results, out.results...)
		report.Skipped = append(report.Skipped, out.skipped...)
		corrections = append(corrections, out.corrections...)
		report.Issues.Merge(out.issues)
		logger.Info("sheet processed",
			"sheet", out.summary.Name,
			"rows", out.summary.Rows,
			"accepted", out.summary.Accepted,
			"skipped", out.summary.Skipped,
		)
	}
	report.Corrections = dedupeCorrections(corrections)
	report.Batches = groupBatches(report.Results, report.Corrections, report.Meet)
	report.Duration = time.Since(start)
	return report, nil
}

func (fp *FileProcessor) processSheet(ctx context.Context, name string, rows []RawRow) (sheetOutcome, error) {
	out := sheetOutcome{
		summary: SheetSummary{Name: name, Rows: len(rows)},
		issues:  NewCollector(),
	}
	for i, row := range rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return sheetOutcome{}, err
			}
		}
		res := fp.rows.Process(row, out.issues)
		if res.State != StateAccepted {
			out.summary.Skipped++
			out.skipped = append(out.skipped, SkippedRow{
				Sheet:  row.Sheet,
				Row:    row.Row,
				Reason: res.Skip,
				Name:   normalize.Name(row.FullName),
			})
			continue
		}
		out.summary.Accepted++
		out.results = append(out.results, *res.Result)
		out.corrections = append(out.corrections, res.Corrections...)
	}
	return out, nil
}

// aggregateMeet takes the first non-empty name and city and the date span
// over every row. The file name stands in when no row names a meet.
func aggregateMeet(sheets [][]RawRow, fileName string) MeetInfo {
	var m MeetInfo
	for _, rows := range sheets {
		for _, r := range rows {
			if m.Name == "" {
				m.Name = strings.TrimSpace(r.MeetName)
			}
			if m.City == "" {
				m.City = strings.TrimSpace(r.MeetCity)
			}
			widenDates(&m, normalize.Birthdate(r.MeetDate))
		}
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}
	m.Key = meetKeyFor(m.Name)
	return m
}

func widenDates(m *MeetInfo, date string) {
	if date == "" {
		return
	}
	if m.StartDate == "" || date < m.StartDate {
		m.StartDate = date
	}
	if m.EndDate == "" || date > m.EndDate {
		m.EndDate = date
	}
}

func applyMeetFallback(r *RawRow, m MeetInfo) {
	if strings.TrimSpace(r.MeetName) == "" {
		r.MeetName = m.Name
	}
	if strings.TrimSpace(r.MeetCity) == "" {
		r.MeetCity = m.City
	}
	if normalize.Birthdate(r.MeetDate) == "" {
		r.MeetDate = m.StartDate
	}
}

type correctionKey struct {
	athleteID int64
	kind      roster.CorrectionKind
}

// dedupeCorrections keeps the first correction per athlete and kind.
func dedupeCorrections(in []QueuedCorrection) []QueuedCorrection {
	seen := make(map[correctionKey]struct{}, len(in))
	out := make([]QueuedCorrection, 0, len(in))
	for _, c := range in {
		k := correctionKey{c.AthleteID, c.Kind}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// groupBatches splits results into meet groupings in first-seen order.
func groupBatches(results []Result, corrections []QueuedCorrection, fileMeet MeetInfo) []MeetBatch {
	var batches []MeetBatch
	index := make(map[string]int)
	for _, r := range results {
		i, ok := index[r.MeetKey]
		if !ok {
			i = len(batches)
			index[r.MeetKey] = i
			batches = append(batches, MeetBatch{Meet: MeetInfo{Key: r.MeetKey}})
		}
		b := &batches[i]
		if b.Meet.Name == "" {
			b.Meet.Name = r.MeetName
		}
		if b.Meet.City == "" {
			b.Meet.City = r.MeetCity
		}
		widenDates(&b.Meet, r.MeetDate)
		b.Results = append(b.Results, r)
	}
	for i := range batches {
		if batches[i].Meet.Name == "" {
			batches[i].Meet.Name = fileMeet.Name
		}
	}
	for _, c := range corrections {
		i, ok := index[c.MeetKey]
		if !ok {
			continue
		}
		batches[i].Corrections = append(batches[i].Corrections, c)
	}
	return batches
}
