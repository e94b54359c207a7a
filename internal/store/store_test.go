package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/swimresults/internal/core"
)

func TestToPgText(t *testing.T) {
	tests := []struct {
		in        string
		wantValid bool
		want      string
	}{
		{"", false, ""},
		{"   ", false, ""},
		{" KL ", true, "KL"},
	}
	for _, tt := range tests {
		got := toPgText(tt.in)
		if got.Valid != tt.wantValid || got.String != tt.want {
			t.Errorf("toPgText(%q) = %+v, want valid=%v %q", tt.in, got, tt.wantValid, tt.want)
		}
	}
}

func TestToPgDate(t *testing.T) {
	tests := []struct {
		in        string
		wantValid bool
	}{
		{"2008-03-05", true},
		{"", false},
		{"2008.03.05", false},
		{"2008-02-30", false},
	}
	for _, tt := range tests {
		got := toPgDate(tt.in)
		if got.Valid != tt.wantValid {
			t.Errorf("toPgDate(%q).Valid = %v, want %v", tt.in, got.Valid, tt.wantValid)
		}
		if got.Valid {
			if s := dateString(got); s != tt.in {
				t.Errorf("dateString(toPgDate(%q)) = %q", tt.in, s)
			}
		}
	}
	if s := dateString(pgtype.Date{}); s != "" {
		t.Errorf("dateString(NULL) = %q, want empty", s)
	}
}

func TestPointerConversions(t *testing.T) {
	place, points, club := 3, 612.5, int64(9)

	if got := toPgInt4(nil); got.Valid {
		t.Error("toPgInt4(nil) should be NULL")
	}
	if got := toPgInt4(&place); !got.Valid || got.Int32 != 3 {
		t.Errorf("toPgInt4(3) = %+v", got)
	}
	if got := toPgFloat8(&points); !got.Valid || got.Float64 != 612.5 {
		t.Errorf("toPgFloat8(612.5) = %+v", got)
	}
	if got := toPgInt8(&club); !got.Valid || got.Int64 != 9 {
		t.Errorf("toPgInt8(9) = %+v", got)
	}
	if got := toPgFloat8(nil); got.Valid {
		t.Error("toPgFloat8(nil) should be NULL")
	}
}

func TestUUIDConversions(t *testing.T) {
	if got := toPgUUID(uuid.Nil); got.Valid {
		t.Error("toPgUUID(Nil) should be NULL")
	}
	id := uuid.New()
	if got := pgUUIDToString(toPgUUID(id)); got != id.String() {
		t.Errorf("round trip = %q, want %q", got, id.String())
	}
	if got := pgUUIDToString(pgtype.UUID{}); got != "" {
		t.Errorf("pgUUIDToString(NULL) = %q, want empty", got)
	}
}

func TestResultRowMatchesColumns(t *testing.T) {
	place := 1
	r := core.Result{EventID: 10, AthleteID: 1, TimeSeconds: 29.87, TimeText: "00:29.87", Place: &place, Sheet: "50 Free", Row: 2}
	row := resultRow(7, pgtype.UUID{Bytes: uuid.New(), Valid: true}, r)

	if len(row) != len(resultColumns) {
		t.Fatalf("resultRow has %d values for %d columns", len(row), len(resultColumns))
	}
	if row[0] != int64(7) || row[1] != int64(10) || row[2] != int64(1) {
		t.Errorf("key values = %v %v %v", row[0], row[1], row[2])
	}
	if got := row[6].(pgtype.Int4); !got.Valid || got.Int32 != 1 {
		t.Errorf("place = %+v", got)
	}
	if got := row[9].(pgtype.Int8); got.Valid {
		t.Errorf("club_id should be NULL, got %+v", got)
	}
}

// TestStore_Integration runs against a scratch database named by
// SWIM_TEST_DATABASE_URL.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("SWIM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SWIM_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Connect(ctx, dsn, 4)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "schema must be re-runnable")

	var athleteID int64
	require.NoError(t, s.pool.QueryRow(ctx,
		`INSERT INTO athletes (full_name, birthdate, gender, nation) VALUES ($1, $2, 'F', 'UNK') RETURNING id`,
		"TEST, ATHLETE "+uuid.NewString()[:8], toPgDate("2008-03-05"),
	).Scan(&athleteID))

	r, err := s.LoadRoster(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, r.Events)

	var eventID int64
	for _, e := range r.Events {
		if e.Course == "LCM" && e.Distance == 50 && e.Stroke == "FREE" && e.Gender == "F" {
			eventID = e.ID
		}
	}
	require.NotZero(t, eventID)

	meet := core.MeetInfo{Name: "Integration Meet " + uuid.NewString()[:8], City: "Ipoh", StartDate: "2024-06-01", EndDate: "2024-06-01"}
	res := core.Result{EventID: eventID, AthleteID: athleteID, TimeSeconds: 29.87, TimeText: "00:29.87", Row: 2}

	err = s.WithTx(ctx, func(w core.ResultWriter) error {
		meetID, err := w.EnsureMeet(ctx, meet)
		if err != nil {
			return err
		}
		if _, err := w.InsertResults(ctx, meetID, uuid.New(), []core.Result{res}); err != nil {
			return err
		}
		ok, err := w.SetAthleteNation(ctx, athleteID, "UNK", "MAS")
		assert.True(t, ok)
		return err
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(w core.ResultWriter) error {
		meet.EndDate = "2024-06-03"
		meetID, err := w.EnsureMeet(ctx, meet)
		if err != nil {
			return err
		}
		keys, err := w.ExistingResultKeys(ctx, meetID)
		require.NoError(t, err)
		assert.Equal(t, []core.ResultKey{{MeetID: meetID, EventID: eventID, AthleteID: athleteID}}, keys)

		stored, err := s.GetMeet(ctx, meetID)
		require.NoError(t, err)
		assert.Equal(t, "2024-06-01", stored.StartDate)

		ok, err := w.SetAthleteNation(ctx, athleteID, "UNK", "SGP")
		assert.False(t, ok, "guarded update must not apply twice")
		return err
	})
	require.NoError(t, err)

	_, err = s.GetMeet(ctx, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EnsureMeetIdentity(t *testing.T) {
	dsn := os.Getenv("SWIM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SWIM_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Connect(ctx, dsn, 8)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	name := "Identity Meet " + uuid.NewString()[:8]
	ensure := func(m core.MeetInfo) (int64, error) {
		var id int64
		err := s.WithTx(ctx, func(w core.ResultWriter) error {
			var err error
			id, err = w.EnsureMeet(ctx, m)
			return err
		})
		return id, err
	}

	t.Run("case variants share a meet", func(t *testing.T) {
		first, err := ensure(core.MeetInfo{Name: name, StartDate: "2024-07-01", EndDate: "2024-07-01"})
		require.NoError(t, err)
		second, err := ensure(core.MeetInfo{Name: strings.ToUpper(name), StartDate: "2024-07-01", EndDate: "2024-07-02"})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("concurrent commits create one meet", func(t *testing.T) {
		meet := core.MeetInfo{Name: name + " Relay", StartDate: "2024-08-01", EndDate: "2024-08-01"}
		ids := make([]int64, 6)
		var g errgroup.Group
		for i := range ids {
			g.Go(func() error {
				id, err := ensure(meet)
				ids[i] = id
				return err
			})
		}
		require.NoError(t, g.Wait())
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})
}
