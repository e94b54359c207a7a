package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/swimresults/internal/logging"
	"github.com/JonMunkholm/swimresults/internal/roster"
	"github.com/JonMunkholm/swimresults/internal/workbook"
)

// UploadTimeout is the maximum duration for a preview or commit run.
var UploadTimeout = 10 * time.Minute

var (
	// ErrBlockingIssues is returned by Commit when the file has issues of a
	// blocking kind; nothing is written.
	ErrBlockingIssues = errors.New("commit blocked by missing athletes")

	// ErrEmptyWorkbook is returned when every sheet was excluded.
	ErrEmptyWorkbook = errors.New("no usable sheets in workbook")
)

// RosterLoader loads the athlete, club and event snapshot for one run.
type RosterLoader interface {
	LoadRoster(ctx context.Context) (*roster.Roster, error)
}

// Store is the persistence the Service needs.
type Store interface {
	RosterLoader
	TxRunner
}

// UploadLog is implemented by stores that keep a history of commits.
type UploadLog interface {
	RecordUpload(ctx context.Context, rec UploadRecord) error
}

// Publisher announces committed meet batches to other systems.
type Publisher interface {
	PublishCommitted(ctx context.Context, uploadID, fileName string, batch BatchResult) error
}

// Recorder receives ingestion measurements.
type Recorder interface {
	ObserveReport(r *Report)
	ObserveBatch(b BatchResult, corrections []QueuedCorrection)
	ObserveRun(operation string, d time.Duration, err error)
}

type nopPublisher struct{}

func (nopPublisher) PublishCommitted(context.Context, string, string, BatchResult) error { return nil }

type nopRecorder struct{}

func (nopRecorder) ObserveReport(*Report)                        {}
func (nopRecorder) ObserveBatch(BatchResult, []QueuedCorrection) {}
func (nopRecorder) ObserveRun(string, time.Duration, error)      {}

// Service runs previews and commits of result workbooks.
type Service struct {
	store     Store
	rules     roster.Rules
	workers   int
	timeout   time.Duration
	limiter   *UploadLimiter
	publisher Publisher
	recorder  Recorder
	blocking  []IssueKind
}

// Option configures a Service.
type Option func(*Service)

// WithRules replaces the default matching rules.
func WithRules(r roster.Rules) Option {
	return func(s *Service) { s.rules = r }
}

// WithSheetWorkers sets how many sheets are processed concurrently.
func WithSheetWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// WithTimeout bounds each run.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLimiter shares an upload limiter with the service.
func WithLimiter(l *UploadLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithPublisher sets where committed batches are announced.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithBlockingKinds overrides which issue kinds refuse a commit.
func WithBlockingKinds(kinds ...IssueKind) Option {
	return func(s *Service) { s.blocking = kinds }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		rules:     roster.DefaultRules(),
		workers:   DefaultSheetWorkers,
		timeout:   UploadTimeout,
		publisher: nopPublisher{},
		recorder:  nopRecorder{},
		blocking:  BlockingKinds,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewUploadLimiter(DefaultMaxConcurrentUploads, DefaultMaxWaitTime)
	}
	return s
}

// Rules returns the matching rules in effect.
func (s *Service) Rules() roster.Rules { return s.rules }

// BlockingKinds returns the issue kinds that refuse a commit.
func (s *Service) BlockingKinds() []IssueKind { return s.blocking }

// Preview analyses a workbook without writing anything.
func (s *Service) Preview(ctx context.Context, fileName string, data []byte) (report *Report, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveRun("preview", time.Since(start), err) }()

	ctx, release, err := s.begin(ctx, uuid.NewString(), fileName)
	if err != nil {
		return nil, err
	}
	defer release()

	report, err = s.analyse(ctx, fileName, data)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("preview finished",
		"results", len(report.Results),
		"skipped", len(report.Skipped),
		"issues", report.Issues.Total(),
		"duration", report.Duration,
	)
	return report, nil
}

// Commit analyses a workbook and, unless a blocking issue was found, writes
// each meet grouping in its own transaction. When blocked the returned
// result carries the report and err is ErrBlockingIssues.
//
// Meets are committed one at a time, so a failure part way leaves the
// earlier meets written. The result is then returned alongside the error
// with Batches listing exactly the meets that were committed.
func (s *Service) Commit(ctx context.Context, fileName string, data []byte) (result *CommitResult, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveRun("commit", time.Since(start), err) }()

	uploadID := uuid.New()
	ctx, release, err := s.begin(ctx, uploadID.String(), fileName)
	if err != nil {
		return nil, err
	}
	defer release()
	logger := logging.FromContext(ctx)

	report, err := s.analyse(ctx, fileName, data)
	if err != nil {
		return nil, err
	}
	result = &CommitResult{UploadID: uploadID.String(), Report: report}

	if report.Issues.HasAny(s.blocking...) {
		result.Blocked = true
		result.Duration = time.Since(start)
		logger.Warn("commit blocked",
			"missing_athletes", report.Issues.Count(KindMissingAthlete),
		)
		s.recordUpload(ctx, result, fileName)
		return result, ErrBlockingIssues
	}

	inserter := NewBatchInserter(s.store).WithUploadID(uploadID)
	for _, batch := range report.Batches {
		if err := ctx.Err(); err != nil {
			return s.partial(ctx, result, fileName, start, err)
		}
		br, err := inserter.Insert(ctx, batch, report.Issues)
		if err != nil {
			logger.Error("meet commit failed", "meet", batch.Meet.Name, "committed", len(result.Batches), "error", err)
			return s.partial(ctx, result, fileName, start, fmt.Errorf("commit meet %q: %w", batch.Meet.Name, err))
		}
		result.Batches = append(result.Batches, br)
		s.recorder.ObserveBatch(br, batch.Corrections)

		if err := s.publisher.PublishCommitted(ctx, result.UploadID, fileName, br); err != nil {
			logger.Warn("publish committed batch", "meet", br.Meet.Name, "error", err)
		}
	}

	result.Duration = time.Since(start)
	s.recordUpload(ctx, result, fileName)
	logger.Info("commit finished",
		"batches", len(result.Batches),
		"inserted", result.Inserted(),
		"duplicates", result.Duplicates(),
		"duration", result.Duration,
	)
	return result, nil
}

// partial finishes a commit that stopped after some meets were written.
// The upload is still recorded, detached from ctx since ctx may be done.
func (s *Service) partial(ctx context.Context, result *CommitResult, fileName string, start time.Time, err error) (*CommitResult, error) {
	result.Duration = time.Since(start)
	result.Error = FormatUserError(err)
	s.recordUpload(context.WithoutCancel(ctx), result, fileName)
	return result, err
}

// recordUpload writes the upload history when the store keeps one. A
// failure here is logged; the commit itself already succeeded.
func (s *Service) recordUpload(ctx context.Context, result *CommitResult, fileName string) {
	ul, ok := s.store.(UploadLog)
	if !ok {
		return
	}
	if err := ul.RecordUpload(ctx, result.Record(fileName, SourceFromContext(ctx))); err != nil {
		logging.FromContext(ctx).Warn("record upload", "error", err)
	}
}

// begin acquires an upload slot and applies the run timeout.
func (s *Service) begin(ctx context.Context, uploadID, fileName string) (context.Context, func(), error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	ctx = logging.WithUpload(ctx, uploadID, fileName)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	logging.FromContext(ctx).Debug("run started", "source", SourceFromContext(ctx))
	return ctx, func() {
		cancel()
		s.limiter.Release()
	}, nil
}

// analyse reads the workbook, snapshots the roster and runs the engine.
func (s *Service) analyse(ctx context.Context, fileName string, data []byte) (*Report, error) {
	sheets, err := workbook.Read(fileName, data)
	if err != nil {
		return nil, err
	}

	r, err := s.store.LoadRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	idx := roster.BuildIndices(r, s.rules)

	report, err := NewFileProcessor(idx, s.rules, s.workers).Process(ctx, fileName, sheets)
	if err != nil {
		return nil, err
	}
	s.recorder.ObserveReport(report)
	return report, nil
}

// UploadLimiterStatus returns the limiter state for health reporting.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until running previews and commits finish.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
