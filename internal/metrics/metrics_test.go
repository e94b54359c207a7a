package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/swimresults/internal/core"
	"github.com/JonMunkholm/swimresults/internal/roster"
)

func newTestRecorder() *Recorder {
	return NewRecorder(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))
}

func TestObserveReport(t *testing.T) {
	r := newTestRecorder()

	issues := core.NewCollector()
	issues.Add(core.MissingAthlete{Name: "NOBODY"})
	issues.Add(core.ClubMiss{Club: "UNKNOWN SC"})
	issues.Add(core.ClubMiss{Club: "OTHER SC"})

	r.ObserveReport(&core.Report{
		Results: make([]core.Result, 4),
		Skipped: []core.SkippedRow{
			{Reason: core.SkipRelay},
			{Reason: core.SkipRelay},
			{Reason: core.SkipNoAthlete},
		},
		Issues: issues,
	})
	r.ObserveReport(nil)

	assert.Equal(t, 4.0, testutil.ToFloat64(r.rows.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rows.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.skips.WithLabelValues(string(core.SkipRelay))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.issues.WithLabelValues(string(core.KindMissingAthlete))))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.issues.WithLabelValues(string(core.KindClubMiss))))
}

func TestObserveBatch(t *testing.T) {
	r := newTestRecorder()

	r.ObserveBatch(core.BatchResult{
		Inserted:           12,
		Duplicates:         3,
		CorrectionsApplied: 2,
		CorrectionsSkipped: 1,
	}, []core.QueuedCorrection{
		{Correction: roster.Correction{Kind: roster.CorrectName}},
		{Correction: roster.Correction{Kind: roster.CorrectNation}},
		{Correction: roster.Correction{Kind: roster.CorrectNation}},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.meets))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.inserted))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.duplicates))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.applied.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.applied.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.corrections.WithLabelValues(string(roster.CorrectNation))))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.issues.WithLabelValues(string(core.KindDuplicateSkipped))))
}

func TestObserveRun_Status(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{core.ErrBlockingIssues, "blocked"},
		{core.ErrTooManyUploads, "rejected"},
		{context.Canceled, "cancelled"},
		{errors.New("connection refused"), "error"},
	}
	for _, tt := range tests {
		r := newTestRecorder()
		r.ObserveRun("commit", 2*time.Second, tt.err)
		if got := testutil.ToFloat64(r.runs.WithLabelValues("commit", tt.want)); got != 1 {
			t.Errorf("runs{status=%q} for %v = %v, want 1", tt.want, tt.err, got)
		}
	}
}

func TestHandler(t *testing.T) {
	r := newTestRecorder()
	r.ObserveRun("preview", 300*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "test_ingest_run_duration_seconds_bucket"), body)
	assert.True(t, strings.Contains(body, `test_ingest_runs_total{operation="preview",status="ok"} 1`), body)
}

func TestNewRecorder_DefaultRegistry(t *testing.T) {
	r := NewRecorder()
	require.NotNil(t, r.Registry())

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	var sawGo bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "go_") {
			sawGo = true
		}
	}
	assert.True(t, sawGo, "default registry should carry the Go collector")
}
