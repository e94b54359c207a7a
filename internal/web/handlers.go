package web

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/JonMunkholm/swimresults/internal/core"
	"github.com/JonMunkholm/swimresults/internal/logging"
	"github.com/JonMunkholm/swimresults/internal/roster"
)

// PreviewResponse is the body of POST /api/preview.
type PreviewResponse struct {
	Report      *core.Report            `json:"report"`
	IssueCounts map[core.IssueKind]int  `json:"issue_counts"`
	SkipCounts  map[core.SkipReason]int `json:"skip_counts"`
	Blocking    bool                    `json:"blocking"`
}

// CommitResponse is the body of POST /api/commit. Error is set when the
// commit was refused because of blocking issues, or when it failed after
// some meets were already written.
type CommitResponse struct {
	Result     *core.CommitResult `json:"result"`
	Inserted   int                `json:"inserted"`
	Duplicates int                `json:"duplicates"`
	Error      *ErrorResponse     `json:"error,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string                   `json:"status"`
	Checks  map[string]string        `json:"checks"`
	Uploads core.UploadLimiterStatus `json:"uploads"`
}

// handlePreview analyses an uploaded workbook without writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	report, err := s.service.Preview(withRequestSource(r.Context(), r), name, data)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PreviewResponse{
		Report:      report,
		IssueCounts: report.Issues.Counts(),
		SkipCounts:  report.SkipCounts(),
		Blocking:    report.Issues.HasAny(s.service.BlockingKinds()...),
	})
}

// handleCommit analyses and commits an uploaded workbook. A blocked commit
// answers 409 with the full report so the caller can fix the roster.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.Commit(withRequestSource(r.Context(), r), name, data)
	if errors.Is(err, core.ErrBlockingIssues) && result != nil {
		msg := errorResponse(core.MapError(err))
		writeJSON(w, http.StatusConflict, CommitResponse{Result: result, Error: &msg})
		return
	}
	if err != nil && result != nil && len(result.Batches) > 0 {
		// Some meets were written before the failure; report them.
		status := statusFor(err)
		logging.FromContext(r.Context()).Error("partial commit",
			"status", status, "committed", len(result.Batches), "error", err.Error())
		msg := errorResponse(core.MapError(err))
		writeJSON(w, status, CommitResponse{
			Result:     result,
			Inserted:   result.Inserted(),
			Duplicates: result.Duplicates(),
			Error:      &msg,
		})
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommitResponse{
		Result:     result,
		Inserted:   result.Inserted(),
		Duplicates: result.Duplicates(),
	})
}

// handleRules returns the matching rules in effect.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Rules          roster.Rules     `json:"rules"`
		BlockingKinds  []core.IssueKind `json:"blocking_kinds"`
		MaxAliases     int              `json:"max_aliases"`
		MaxUploadBytes int64            `json:"max_upload_bytes"`
	}{
		Rules:          s.service.Rules(),
		BlockingKinds:  s.service.BlockingKinds(),
		MaxAliases:     roster.MaxAliases,
		MaxUploadBytes: s.cfg.Upload.MaxFileSize,
	})
}

// handleTemplate returns a blank results workbook carrying the canonical
// header row.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="results_template.csv"`)

	cw := csv.NewWriter(w)
	cw.Write(core.TemplateHeaders)
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Warn("write template", "error", err)
	}
}

// handleUploads lists recent commit attempts, newest first.
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 20, 200)
	uploads, err := s.history.RecentUploads(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if uploads == nil {
		uploads = []core.UploadRecord{}
	}
	writeJSON(w, http.StatusOK, uploads)
}

// handleHealth runs every registered check with a short timeout. Any
// failure turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status:  "ok",
		Checks:  make(map[string]string, len(names)),
		Uploads: s.service.UploadLimiterStatus(),
	}
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
