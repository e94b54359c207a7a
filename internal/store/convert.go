package store

// convert.go maps engine values to and from pgtype values. Empty strings
// and nil pointers become NULL.

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/swimresults/internal/normalize"
)

// toPgText converts a string to pgtype.Text, NULL when blank.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgDate converts a YYYY-MM-DD string to pgtype.Date.
func toPgDate(s string) pgtype.Date {
	t, err := time.Parse(normalize.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func toPgInt4(p *int) pgtype.Int4 {
	if p == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*p), Valid: true}
}

func toPgInt8(p *int64) pgtype.Int8 {
	if p == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *p, Valid: true}
}

func toPgFloat8(p *float64) pgtype.Float8 {
	if p == nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: *p, Valid: true}
}

// toPgUUID converts a uuid.UUID to pgtype.UUID; the zero UUID is NULL.
func toPgUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgUUIDToString returns "" for NULL.
func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// dateString renders a pgtype.Date as YYYY-MM-DD, "" for NULL.
func dateString(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(normalize.DateLayout)
}

func textString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
