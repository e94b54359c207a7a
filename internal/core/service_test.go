package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/swimresults/internal/roster"
)

// memStore is an in-memory Store. WithTx works on a copy and swaps it in
// only when fn succeeds.
type memStore struct {
	mu         sync.Mutex
	state      memState
	failInsert error
	failMeetID int64 // when set, failInsert applies to this meet only
	uploads    []UploadRecord
}

type memState struct {
	athletes []roster.Athlete
	clubs    []roster.Club
	events   []roster.Event
	meets    []MeetInfo
	results  []storedResult
}

type storedResult struct {
	key      ResultKey
	uploadID uuid.UUID
	result   Result
}

func newMemStore(r *roster.Roster) *memStore {
	return &memStore{state: memState{athletes: r.Athletes, clubs: r.Clubs, events: r.Events}}
}

func (s memState) clone() memState {
	out := memState{
		athletes: make([]roster.Athlete, len(s.athletes)),
		clubs:    s.clubs,
		events:   s.events,
		meets:    append([]MeetInfo(nil), s.meets...),
		results:  append([]storedResult(nil), s.results...),
	}
	for i, a := range s.athletes {
		a.Aliases = append([]string(nil), a.Aliases...)
		out.athletes[i] = a
	}
	return out
}

func (m *memStore) LoadRoster(ctx context.Context) (*roster.Roster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.state.clone()
	return &roster.Roster{Athletes: snap.athletes, Clubs: snap.clubs, Events: snap.events}, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(w ResultWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{state: m.state.clone(), failInsert: m.failInsert, failMeetID: m.failMeetID}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) RecordUpload(_ context.Context, rec UploadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, rec)
	return nil
}

func (m *memStore) athlete(id int64) roster.Athlete {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.state.athletes {
		if a.ID == id {
			return a
		}
	}
	return roster.Athlete{}
}

func (m *memStore) resultCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.results)
}

type memTx struct {
	state      memState
	failInsert error
	failMeetID int64
}

func (t *memTx) EnsureMeet(_ context.Context, meet MeetInfo) (int64, error) {
	for i, m := range t.state.meets {
		if m.Name == meet.Name && m.StartDate == meet.StartDate {
			return int64(i + 1), nil
		}
	}
	t.state.meets = append(t.state.meets, meet)
	return int64(len(t.state.meets)), nil
}

func (t *memTx) ExistingResultKeys(_ context.Context, meetID int64) ([]ResultKey, error) {
	var keys []ResultKey
	for _, r := range t.state.results {
		if r.key.MeetID == meetID {
			keys = append(keys, r.key)
		}
	}
	return keys, nil
}

func (t *memTx) InsertResults(_ context.Context, meetID int64, uploadID uuid.UUID, results []Result) (int64, error) {
	if t.failInsert != nil && (t.failMeetID == 0 || t.failMeetID == meetID) {
		return 0, t.failInsert
	}
	for _, r := range results {
		k := ResultKey{MeetID: meetID, EventID: r.EventID, AthleteID: r.AthleteID}
		for _, existing := range t.state.results {
			if existing.key == k {
				return 0, errors.New(`duplicate key value violates unique constraint "results_meet_event_athlete_key"`)
			}
		}
		t.state.results = append(t.state.results, storedResult{key: k, uploadID: uploadID, result: r})
	}
	return int64(len(results)), nil
}

func (t *memTx) update(id int64, fn func(a *roster.Athlete) bool) bool {
	for i := range t.state.athletes {
		if t.state.athletes[i].ID == id {
			return fn(&t.state.athletes[i])
		}
	}
	return false
}

func (t *memTx) RenameAthlete(_ context.Context, id int64, oldName, newName string) (bool, error) {
	return t.update(id, func(a *roster.Athlete) bool {
		if a.Name != oldName {
			return false
		}
		if len(a.Aliases) < roster.MaxAliases {
			a.Aliases = append(a.Aliases, oldName)
		}
		a.Name = newName
		return true
	}), nil
}

func (t *memTx) SetAthleteBirthdate(_ context.Context, id int64, oldDate, newDate string) (bool, error) {
	return t.update(id, func(a *roster.Athlete) bool {
		if a.Birthdate != oldDate {
			return false
		}
		a.Birthdate = newDate
		return true
	}), nil
}

func (t *memTx) SetAthleteNation(_ context.Context, id int64, oldNation, newNation string) (bool, error) {
	return t.update(id, func(a *roster.Athlete) bool {
		if a.Nation != oldNation {
			return false
		}
		a.Nation = newNation
		return true
	}), nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches []BatchResult
	sources []string
	err     error
}

func (p *recordingPublisher) PublishCommitted(ctx context.Context, uploadID, fileName string, b BatchResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, b)
	p.sources = append(p.sources, SourceFromContext(ctx))
	return p.err
}

const csvHeader = "Course,Gender,Distance,Stroke,Full Name,Birthdate,Nation,Club Code,Time,Time Seconds,Points,Secondary Points,Place,Meet Date,Meet City,Meet Name,Club"

func csvWorkbook(rows ...string) []byte {
	return []byte(csvHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func csvResult(gender, dist, stroke, name, birth, timeText, club string) string {
	return fmt.Sprintf("LCM,%s,%s,%s,\"%s\",%s,MAS,,%s,,,,1,2024-06-01,Kuala Lumpur,Malaysia Open,%s",
		gender, dist, stroke, name, birth, timeText, club)
}

func TestService_PreviewWritesNothing(t *testing.T) {
	store := newMemStore(testRoster())
	svc := NewService(store)

	report, err := svc.Preview(context.Background(), "day1.csv",
		csvWorkbook(csvResult("F", "50", "Free", "TAN, MEI LING", "2008-05-03", "29.87", "Kuala Lumpur Swimming Club KL")))
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, int64(1), report.Results[0].AthleteID)
	require.NotNil(t, report.Results[0].ClubID)
	assert.Equal(t, "KL", report.Results[0].StateCode)
	assert.Len(t, report.Corrections, 1)
	assert.Zero(t, store.resultCount())
	assert.Equal(t, "2008-03-05", store.athlete(1).Birthdate, "preview must not apply corrections")
}

func TestService_CommitTwiceIsIdempotent(t *testing.T) {
	store := newMemStore(testRoster())
	pub := &recordingPublisher{}
	svc := NewService(store, WithPublisher(pub))
	data := csvWorkbook(
		csvResult("F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", ""),
		csvResult("F", "100", "Free", "TAN, MEI LING", "2008-03-05", "1:04.10", ""),
	)
	ctx := ContextWithSource(context.Background(), "test")

	first, err := svc.Commit(ctx, "day1.csv", data)
	require.NoError(t, err)
	assert.False(t, first.Blocked)
	assert.Equal(t, 2, first.Inserted())
	assert.Zero(t, first.Duplicates())
	_, err = uuid.Parse(first.UploadID)
	assert.NoError(t, err)

	second, err := svc.Commit(ctx, "day1.csv", data)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted())
	assert.Equal(t, 2, second.Duplicates())
	assert.Equal(t, 2, second.Report.Issues.Count(KindDuplicateSkipped))
	assert.Equal(t, first.Batches[0].MeetID, second.Batches[0].MeetID)

	assert.Equal(t, 2, store.resultCount())
	require.Len(t, pub.batches, 2)
	assert.Equal(t, []string{"test", "test"}, pub.sources)
}

func TestService_CommitBlockedByMissingAthlete(t *testing.T) {
	store := newMemStore(testRoster())
	svc := NewService(store)
	data := csvWorkbook(
		csvResult("F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", ""),
		csvResult("F", "50", "Free", "CHONG KAH HOE", "2008-01-01", "30.40", ""),
	)

	result, err := svc.Commit(context.Background(), "day1.csv", data)

	require.ErrorIs(t, err, ErrBlockingIssues)
	require.NotNil(t, result)
	assert.True(t, result.Blocked)
	assert.Empty(t, result.Batches)
	assert.Equal(t, 1, result.Report.Issues.Count(KindMissingAthlete))
	assert.Zero(t, store.resultCount())
	assert.Equal(t, "ING001", MapError(err).Code)
}

func TestService_SoftIssuesStillCommit(t *testing.T) {
	store := newMemStore(testRoster())
	svc := NewService(store)
	data := csvWorkbook(csvResult("F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "Atlantis Aquatics"))

	result, err := svc.Commit(context.Background(), "day1.csv", data)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted())
	assert.Equal(t, 1, result.Report.Issues.Count(KindClubMiss))
}

func TestService_CommitAppliesCorrections(t *testing.T) {
	store := newMemStore(testRoster())
	svc := NewService(store)
	data := csvWorkbook(
		csvResult("F", "50", "Free", "tan mei ling", "2008-05-03", "29.87", ""),
		csvResult("F", "100", "Free", "TAN MEI LING", "2008-05-03", "1:04.10", ""),
		csvResult("F", "50", "Free", "Siti Nurhaliza binti Taruddin", "2009-01-15", "31.02", ""),
	)

	result, err := svc.Commit(context.Background(), "day1.csv", data)
	require.NoError(t, err)

	require.Len(t, result.Batches, 1)
	assert.Equal(t, 3, result.Batches[0].CorrectionsApplied)
	assert.Zero(t, result.Batches[0].CorrectionsSkipped)

	tan := store.athlete(1)
	assert.Equal(t, "TAN MEI LING", tan.Name)
	assert.Equal(t, []string{"TAN, MEI LING"}, tan.Aliases)
	assert.Equal(t, "2008-05-03", tan.Birthdate)
	assert.Equal(t, "MAS", store.athlete(3).Nation)

	// The corrected roster matches the same file exactly; nothing left to correct.
	again, err := svc.Preview(context.Background(), "day1.csv", data)
	require.NoError(t, err)
	assert.Empty(t, again.Corrections)
}

func TestService_FailedInsertRollsBack(t *testing.T) {
	store := newMemStore(testRoster())
	store.failInsert = errors.New("connection reset by peer")
	svc := NewService(store)
	data := csvWorkbook(csvResult("F", "50", "Free", "TAN, MEI LING", "2008-05-03", "29.87", ""))

	result, err := svc.Commit(context.Background(), "day1.csv", data)

	require.Error(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Batches)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, "DB005", MapError(err).Code)
	assert.Zero(t, store.resultCount())
	assert.Equal(t, "2008-03-05", store.athlete(1).Birthdate)
}

func TestService_LaterMeetFailureKeepsEarlierMeets(t *testing.T) {
	store := newMemStore(testRoster())
	store.failInsert = errors.New("connection reset by peer")
	store.failMeetID = 2
	pub := &recordingPublisher{}
	svc := NewService(store, WithPublisher(pub))
	data := csvWorkbook(
		csvResult("F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", ""),
		`LCM,F,100,Free,"TAN, MEI LING",2008-03-05,MAS,,1:04.10,,,,1,2024-08-10,Ipoh,Sukma Games,`,
	)

	result, err := svc.Commit(context.Background(), "two-meets.csv", data)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sukma Games")
	require.NotNil(t, result)
	require.Len(t, result.Batches, 1)
	assert.Equal(t, "Malaysia Open", result.Batches[0].Meet.Name)
	assert.Equal(t, 1, result.Inserted())
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 1, store.resultCount())
	require.Len(t, pub.batches, 1)

	require.Len(t, store.uploads, 1)
	assert.Equal(t, result.UploadID, store.uploads[0].ID)
	assert.Equal(t, 1, store.uploads[0].Meets)
	assert.Equal(t, 1, store.uploads[0].Inserted)
}

func TestService_PublishFailureDoesNotUndoCommit(t *testing.T) {
	store := newMemStore(testRoster())
	svc := NewService(store, WithPublisher(&recordingPublisher{err: errors.New("redis down")}))

	result, err := svc.Commit(context.Background(), "day1.csv",
		csvWorkbook(csvResult("F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "")))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted())
	assert.Equal(t, 1, store.resultCount())
}

func TestService_Cancelled(t *testing.T) {
	store := newMemStore(testRoster())
	svc := NewService(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Commit(ctx, "day1.csv",
		csvWorkbook(csvResult("F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "")))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.resultCount())
}

func TestService_Errors(t *testing.T) {
	svc := NewService(newMemStore(testRoster()))

	_, err := svc.Preview(context.Background(), "results.pdf", []byte("%PDF"))
	assert.Equal(t, "ING003", MapError(err).Code)

	_, err = svc.Preview(context.Background(), "empty.csv", nil)
	assert.Equal(t, "FILE005", MapError(err).Code)
}

func TestService_LimiterFull(t *testing.T) {
	limiter := NewUploadLimiter(1, 20*time.Millisecond)
	require.True(t, limiter.TryAcquire())
	defer limiter.Release()
	svc := NewService(newMemStore(testRoster()), WithLimiter(limiter))

	_, err := svc.Preview(context.Background(), "day1.csv",
		csvWorkbook(csvResult("F", "50", "Free", "TAN, MEI LING", "2008-03-05", "29.87", "")))

	assert.ErrorIs(t, err, ErrTooManyUploads)
	assert.Equal(t, 1, svc.UploadLimiterStatus().Active)
}

func TestBatchInserter_DuplicateWithinBatch(t *testing.T) {
	store := newMemStore(testRoster())
	res := Result{AthleteID: 1, EventID: evLCM50FreeF, AthleteName: "TAN, MEI LING", Sheet: "50 Free", Row: 2}
	dup := res
	dup.Row = 7
	batch := MeetBatch{Meet: MeetInfo{Key: "MALAYSIA OPEN", Name: "Malaysia Open"}, Results: []Result{res, dup}}
	issues := NewCollector()

	br, err := NewBatchInserter(store).Insert(context.Background(), batch, issues)

	require.NoError(t, err)
	assert.Equal(t, 1, br.Inserted)
	assert.Equal(t, 1, br.Duplicates)
	got := issues.ByKind(KindDuplicateSkipped)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].Where().Row)
}

func TestBatchInserter_NilCollector(t *testing.T) {
	store := newMemStore(testRoster())
	res := Result{AthleteID: 1, EventID: evLCM50FreeF, AthleteName: "TAN, MEI LING", Sheet: "50 Free", Row: 2}
	batch := MeetBatch{Meet: MeetInfo{Key: "MALAYSIA OPEN", Name: "Malaysia Open"}, Results: []Result{res, res}}

	var br BatchResult
	var err error
	require.NotPanics(t, func() {
		br, err = NewBatchInserter(store).Insert(context.Background(), batch, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, br.Inserted)
	assert.Equal(t, 1, br.Duplicates)
}
