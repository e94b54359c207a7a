package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/swimresults/internal/logging"
	"github.com/JonMunkholm/swimresults/internal/roster"
)

// ResultWriter is the storage surface used inside one commit transaction.
type ResultWriter interface {
	EnsureMeet(ctx context.Context, meet MeetInfo) (int64, error)
	ExistingResultKeys(ctx context.Context, meetID int64) ([]ResultKey, error)
	InsertResults(ctx context.Context, meetID int64, uploadID uuid.UUID, results []Result) (int64, error)

	// Corrections report whether a row changed; a false return means the
	// record no longer holds the old value and the correction was skipped.
	RenameAthlete(ctx context.Context, athleteID int64, oldName, newName string) (bool, error)
	SetAthleteBirthdate(ctx context.Context, athleteID int64, oldDate, newDate string) (bool, error)
	SetAthleteNation(ctx context.Context, athleteID int64, oldNation, newNation string) (bool, error)
}

// TxRunner runs fn inside a transaction, committing when fn returns nil
// and rolling back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(w ResultWriter) error) error
}

// BatchInserter commits one meet grouping at a time.
type BatchInserter struct {
	tx       TxRunner
	uploadID uuid.UUID
}

// NewBatchInserter returns an inserter writing through tx.
func NewBatchInserter(tx TxRunner) *BatchInserter {
	return &BatchInserter{tx: tx}
}

// WithUploadID tags inserted rows with the given upload id.
func (b *BatchInserter) WithUploadID(id uuid.UUID) *BatchInserter {
	b.uploadID = id
	return b
}

// Insert ensures the meet exists, drops results already stored for the
// same (meet, event, athlete), inserts the rest and applies the batch's
// corrections, all in one transaction. Duplicates are reported to issues
// only after the transaction commits; a nil issues drops them.
func (b *BatchInserter) Insert(ctx context.Context, batch MeetBatch, issues *Collector) (BatchResult, error) {
	var (
		res        BatchResult
		duplicates []Issue
	)
	res.Meet = batch.Meet

	err := b.tx.WithTx(ctx, func(w ResultWriter) error {
		res = BatchResult{Meet: batch.Meet}
		duplicates = duplicates[:0]

		meetID, err := w.EnsureMeet(ctx, batch.Meet)
		if err != nil {
			return fmt.Errorf("ensure meet %q: %w", batch.Meet.Name, err)
		}
		res.MeetID = meetID

		existing, err := w.ExistingResultKeys(ctx, meetID)
		if err != nil {
			return fmt.Errorf("load existing results: %w", err)
		}
		seen := make(map[ResultKey]struct{}, len(existing)+len(batch.Results))
		for _, k := range existing {
			seen[k] = struct{}{}
		}

		fresh := make([]Result, 0, len(batch.Results))
		for i, r := range batch.Results {
			if i%ContextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			k := ResultKey{MeetID: meetID, EventID: r.EventID, AthleteID: r.AthleteID}
			if _, dup := seen[k]; dup {
				res.Duplicates++
				duplicates = append(duplicates, DuplicateSkipped{
					IssueContext: IssueContext{Sheet: r.Sheet, Row: r.Row},
					MeetID:       meetID,
					EventID:      r.EventID,
					AthleteID:    r.AthleteID,
					Name:         r.AthleteName,
				})
				continue
			}
			seen[k] = struct{}{}
			fresh = append(fresh, r)
		}

		if len(fresh) > 0 {
			n, err := w.InsertResults(ctx, meetID, b.uploadID, fresh)
			if err != nil {
				return fmt.Errorf("insert results: %w", err)
			}
			res.Inserted = int(n)
		}

		applied, skippedCount, err := applyCorrections(ctx, w, batch.Corrections)
		if err != nil {
			return err
		}
		res.CorrectionsApplied = applied
		res.CorrectionsSkipped = skippedCount
		return nil
	})
	if err != nil {
		return BatchResult{Meet: batch.Meet}, err
	}

	if issues != nil {
		for _, d := range duplicates {
			issues.Add(d)
		}
	}
	logging.WithFields(ctx, "meet", batch.Meet.Name, "meet_id", res.MeetID).Info("meet committed",
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"corrections", res.CorrectionsApplied,
	)
	return res, nil
}

// applyCorrections applies name, then birthdate, then nation corrections.
func applyCorrections(ctx context.Context, w ResultWriter, corrections []QueuedCorrection) (applied, skipped int, err error) {
	for _, kind := range roster.CorrectionOrder {
		for _, c := range corrections {
			if c.Kind != kind {
				continue
			}
			var changed bool
			switch kind {
			case roster.CorrectName:
				changed, err = w.RenameAthlete(ctx, c.AthleteID, c.Old, c.New)
			case roster.CorrectBirthdate:
				changed, err = w.SetAthleteBirthdate(ctx, c.AthleteID, c.Old, c.New)
			case roster.CorrectNation:
				changed, err = w.SetAthleteNation(ctx, c.AthleteID, c.Old, c.New)
			}
			if err != nil {
				return applied, skipped, fmt.Errorf("apply %s correction for athlete %d: %w", kind, c.AthleteID, err)
			}
			if changed {
				applied++
			} else {
				skipped++
			}
		}
	}
	return applied, skipped, nil
}
