package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/swimresults/internal/core"
	"github.com/JonMunkholm/swimresults/internal/normalize"
	"github.com/JonMunkholm/swimresults/internal/roster"
)

// Queries runs statements against a pool or a transaction.
type Queries struct {
	db DBTX
}

// NewQueries binds queries to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

var _ core.ResultWriter = (*Queries)(nil)

const listAthletes = `
SELECT id, full_name, aliases, birthdate, gender, nation, club_code, club_name
FROM athletes
ORDER BY id`

// ListAthletes returns every canonical athlete.
func (q *Queries) ListAthletes(ctx context.Context) ([]roster.Athlete, error) {
	rows, err := q.db.Query(ctx, listAthletes)
	if err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	defer rows.Close()

	var out []roster.Athlete
	for rows.Next() {
		var (
			a                               roster.Athlete
			birth                           pgtype.Date
			gender, nation, clubCode, clubN pgtype.Text
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Aliases, &birth, &gender, &nation, &clubCode, &clubN); err != nil {
			return nil, fmt.Errorf("scan athlete: %w", err)
		}
		a.Birthdate = dateString(birth)
		a.Gender = normalize.Gender(textString(gender))
		a.Nation = textString(nation)
		a.ClubCode = textString(clubCode)
		a.ClubName = textString(clubN)
		out = append(out, a)
	}
	return out, rows.Err()
}

const listClubs = `
SELECT id, name, code, state_code, nation
FROM clubs
ORDER BY id`

// ListClubs returns every canonical club.
func (q *Queries) ListClubs(ctx context.Context) ([]roster.Club, error) {
	rows, err := q.db.Query(ctx, listClubs)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()

	var out []roster.Club
	for rows.Next() {
		var (
			c                   roster.Club
			code, state, nation pgtype.Text
		)
		if err := rows.Scan(&c.ID, &c.Name, &code, &state, &nation); err != nil {
			return nil, fmt.Errorf("scan club: %w", err)
		}
		c.Code = textString(code)
		c.StateCode = textString(state)
		c.Nation = textString(nation)
		out = append(out, c)
	}
	return out, rows.Err()
}

const listEvents = `
SELECT id, course, distance, stroke, gender
FROM events
ORDER BY id`

// ListEvents returns the event catalogue.
func (q *Queries) ListEvents(ctx context.Context) ([]roster.Event, error) {
	rows, err := q.db.Query(ctx, listEvents)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []roster.Event
	for rows.Next() {
		var (
			e                      roster.Event
			course, stroke, gender string
			distance               int32
		)
		if err := rows.Scan(&e.ID, &course, &distance, &stroke, &gender); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Course = normalize.Course(course)
		e.Distance = int(distance)
		e.Stroke = normalize.Stroke(stroke)
		e.Gender = normalize.Gender(gender)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Meets created before match_key existed fall back to a case-insensitive
// name comparison.
const findMeet = `
SELECT id FROM meets
WHERE (match_key = $1 OR (match_key IS NULL AND upper(name) = upper($3)))
  AND start_date IS NOT DISTINCT FROM $2
ORDER BY id
LIMIT 1`

const lockMeet = `SELECT pg_advisory_xact_lock(hashtext($1))`

const widenMeet = `
UPDATE meets
SET end_date = GREATEST(end_date, $2),
    city = COALESCE(city, $3),
    match_key = COALESCE(match_key, $4)
WHERE id = $1`

const insertMeet = `
INSERT INTO meets (name, match_key, city, start_date, end_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

// EnsureMeet finds the meet by match key and start date or creates it. An
// existing meet's end date is widened to cover the new grouping.
//
// The lookup holds a transaction-scoped advisory lock on the key, so
// concurrent commits of one meet serialize and share a single meet row.
// Callers outside WithTx get no such guarantee.
func (q *Queries) EnsureMeet(ctx context.Context, meet core.MeetInfo) (int64, error) {
	key := meet.Key
	if key == "" {
		key = normalize.MatchKey(meet.Name)
	}
	start := toPgDate(meet.StartDate)
	end := toPgDate(meet.EndDate)

	if _, err := q.db.Exec(ctx, lockMeet, key+"|"+meet.StartDate); err != nil {
		return 0, fmt.Errorf("lock meet: %w", err)
	}

	var id int64
	err := q.db.QueryRow(ctx, findMeet, key, start, meet.Name).Scan(&id)
	switch {
	case err == nil:
		if _, err := q.db.Exec(ctx, widenMeet, id, end, toPgText(meet.City), key); err != nil {
			return 0, fmt.Errorf("update meet: %w", err)
		}
		return id, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return 0, fmt.Errorf("find meet: %w", err)
	}

	if err := q.db.QueryRow(ctx, insertMeet, meet.Name, key, toPgText(meet.City), start, end).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert meet: %w", err)
	}
	return id, nil
}

const getMeet = `
SELECT id, name, city, start_date, end_date
FROM meets
WHERE id = $1`

// GetMeet returns the meet with id or ErrNotFound.
func (q *Queries) GetMeet(ctx context.Context, id int64) (core.MeetInfo, error) {
	var (
		m          core.MeetInfo
		meetID     int64
		city       pgtype.Text
		start, end pgtype.Date
	)
	err := q.db.QueryRow(ctx, getMeet, id).Scan(&meetID, &m.Name, &city, &start, &end)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.MeetInfo{}, ErrNotFound
	}
	if err != nil {
		return core.MeetInfo{}, fmt.Errorf("get meet %d: %w", id, err)
	}
	m.Key = normalize.MatchKey(m.Name)
	m.City = textString(city)
	m.StartDate = dateString(start)
	m.EndDate = dateString(end)
	return m, nil
}

const existingResultKeys = `
SELECT event_id, athlete_id
FROM results
WHERE meet_id = $1`

// ExistingResultKeys loads the dedup keys already stored for a meet.
func (q *Queries) ExistingResultKeys(ctx context.Context, meetID int64) ([]core.ResultKey, error) {
	rows, err := q.db.Query(ctx, existingResultKeys, meetID)
	if err != nil {
		return nil, fmt.Errorf("load result keys: %w", err)
	}
	defer rows.Close()

	var keys []core.ResultKey
	for rows.Next() {
		k := core.ResultKey{MeetID: meetID}
		if err := rows.Scan(&k.EventID, &k.AthleteID); err != nil {
			return nil, fmt.Errorf("scan result key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

var resultColumns = []string{
	"meet_id", "event_id", "athlete_id", "upload_id",
	"time_seconds", "time_text", "place", "points", "secondary_points",
	"club_id", "club_name", "club_code", "state_code", "nation",
	"age", "year_age", "sheet", "source_row", "meet_name", "meet_date",
}

// resultRow orders a result's values to match resultColumns.
func resultRow(meetID int64, uploadID pgtype.UUID, r core.Result) []any {
	return []any{
		meetID, r.EventID, r.AthleteID, uploadID,
		r.TimeSeconds, r.TimeText, toPgInt4(r.Place), toPgFloat8(r.Points), toPgFloat8(r.SecondaryPoints),
		toPgInt8(r.ClubID), toPgText(r.ClubName), toPgText(r.ClubCode), toPgText(r.StateCode), toPgText(r.Nation),
		toPgInt4(r.Age), toPgInt4(r.YearAge), toPgText(r.Sheet), int32(r.Row), toPgText(r.MeetName), toPgDate(r.MeetDate),
	}
}

// InsertResults bulk-loads results with COPY.
func (q *Queries) InsertResults(ctx context.Context, meetID int64, uploadID uuid.UUID, results []core.Result) (int64, error) {
	up := pgtype.UUID{Bytes: uploadID, Valid: true}
	n, err := q.db.CopyFrom(ctx, pgx.Identifier{"results"}, resultColumns,
		pgx.CopyFromSlice(len(results), func(i int) ([]any, error) {
			return resultRow(meetID, up, results[i]), nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy results: %w", err)
	}
	return n, nil
}

// The correction updates are guarded by the old value so a replay, or a
// record changed since the roster snapshot, affects no rows.

const renameAthlete = `
UPDATE athletes
SET full_name = $3,
    aliases = CASE
        WHEN cardinality(aliases) < $4 AND NOT ($2 = ANY (aliases)) THEN array_append(aliases, $2)
        ELSE aliases
    END,
    updated_at = now()
WHERE id = $1 AND full_name = $2`

// RenameAthlete replaces the canonical name, keeping the old one as an
// alias while a slot is free.
func (q *Queries) RenameAthlete(ctx context.Context, athleteID int64, oldName, newName string) (bool, error) {
	tag, err := q.db.Exec(ctx, renameAthlete, athleteID, oldName, newName, roster.MaxAliases)
	if err != nil {
		return false, fmt.Errorf("rename athlete: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const setAthleteBirthdate = `
UPDATE athletes
SET birthdate = $3, updated_at = now()
WHERE id = $1 AND birthdate IS NOT DISTINCT FROM $2`

// SetAthleteBirthdate overwrites the birthdate when it still equals oldDate.
func (q *Queries) SetAthleteBirthdate(ctx context.Context, athleteID int64, oldDate, newDate string) (bool, error) {
	next := toPgDate(newDate)
	if !next.Valid {
		return false, fmt.Errorf("set birthdate: invalid date %q", newDate)
	}
	tag, err := q.db.Exec(ctx, setAthleteBirthdate, athleteID, toPgDate(oldDate), next)
	if err != nil {
		return false, fmt.Errorf("set birthdate: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const setAthleteNation = `
UPDATE athletes
SET nation = $3, updated_at = now()
WHERE id = $1 AND COALESCE(nation, '') = $2`

// SetAthleteNation overwrites the nation when it still equals oldNation.
func (q *Queries) SetAthleteNation(ctx context.Context, athleteID int64, oldNation, newNation string) (bool, error) {
	tag, err := q.db.Exec(ctx, setAthleteNation, athleteID, oldNation, newNation)
	if err != nil {
		return false, fmt.Errorf("set nation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const recordUpload = `
INSERT INTO uploads (id, file_name, source, meets, inserted, duplicates, corrections, issues, blocked)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

// RecordUpload appends a commit attempt to the upload history.
func (q *Queries) RecordUpload(ctx context.Context, rec core.UploadRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	_, err = q.db.Exec(ctx, recordUpload,
		toPgUUID(id), rec.FileName, toPgText(rec.Source), rec.Meets,
		rec.Inserted, rec.Duplicates, rec.Corrections, rec.Issues, rec.Blocked,
	)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

const recentUploads = `
SELECT id, file_name, source, meets, inserted, duplicates, corrections, issues, blocked, created_at
FROM uploads
ORDER BY created_at DESC
LIMIT $1`

// RecentUploads returns the newest upload history entries.
func (q *Queries) RecentUploads(ctx context.Context, limit int) ([]core.UploadRecord, error) {
	rows, err := q.db.Query(ctx, recentUploads, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var out []core.UploadRecord
	for rows.Next() {
		var (
			rec    core.UploadRecord
			id     pgtype.UUID
			source pgtype.Text
		)
		if err := rows.Scan(&id, &rec.FileName, &source, &rec.Meets, &rec.Inserted,
			&rec.Duplicates, &rec.Corrections, &rec.Issues, &rec.Blocked, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		rec.ID = pgUUIDToString(id)
		rec.Source = textString(source)
		out = append(out, rec)
	}
	return out, rows.Err()
}
