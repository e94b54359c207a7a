package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/swimresults/internal/core"
)

// issuesPerKind caps how many issues of each kind the text report lists.
const issuesPerKind = 10

func (a *App) previewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE...",
		Short: "Analyse workbooks without writing anything",
		Example: `  swimimport preview day1.xlsx
  swimimport preview --json day1.xlsx day2.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := core.ContextWithSource(cmd.Context(), Source)
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			for _, path := range args {
				data, err := readWorkbook(path)
				if err != nil {
					return err
				}
				report, err := svc.Preview(ctx, filepath.Base(path), data)
				if err != nil {
					return fmt.Errorf("%s: %s", path, core.FormatUserError(err))
				}
				if err := a.printReport(cmd.OutOrStdout(), report, svc.BlockingKinds()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *App) commitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "commit FILE...",
		Short: "Analyse workbooks and write their results",
		Long: `commit analyses each workbook and writes its results, one transaction per
meet. A workbook with missing athletes is refused and nothing of it is written.
Files are committed in order; the first failure stops the run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := core.ContextWithSource(cmd.Context(), Source)
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range args {
				data, err := readWorkbook(path)
				if err != nil {
					return err
				}
				result, err := svc.Commit(ctx, filepath.Base(path), data)
				if err != nil && result != nil {
					// Blocked, or failed after some meets were written.
					if perr := a.printCommit(out, result, svc.BlockingKinds()); perr != nil {
						return perr
					}
				}
				if err != nil {
					return fmt.Errorf("%s: %s", path, core.FormatUserError(err))
				}
				if err := a.printCommit(out, result, svc.BlockingKinds()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *App) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := b.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func readWorkbook(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (a *App) printReport(w io.Writer, r *core.Report, blocking []core.IssueKind) error {
	if a.flags.jsonOut {
		return writeJSON(w, r)
	}
	writeReport(w, r, blocking)
	return nil
}

func (a *App) printCommit(w io.Writer, c *core.CommitResult, blocking []core.IssueKind) error {
	if a.flags.jsonOut {
		return writeJSON(w, c)
	}
	writeReport(w, c.Report, blocking)
	if c.Blocked {
		fmt.Fprintln(w, "commit: blocked, nothing written")
		return nil
	}
	for _, b := range c.Batches {
		fmt.Fprintf(w, "meet %q (id %d): %d inserted, %d duplicate(s), %d correction(s) applied\n",
			b.Meet.Name, b.MeetID, b.Inserted, b.Duplicates, b.CorrectionsApplied)
	}
	if c.Error != "" {
		fmt.Fprintf(w, "commit: stopped after %d meet(s), %d inserted, upload %s\n",
			len(c.Batches), c.Inserted(), c.UploadID)
		return nil
	}
	fmt.Fprintf(w, "commit: %d inserted, %d duplicate(s), upload %s\n",
		c.Inserted(), c.Duplicates(), c.UploadID)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport prints a short human-readable summary of one analysed file.
func writeReport(w io.Writer, r *core.Report, blocking []core.IssueKind) {
	fmt.Fprintf(w, "file: %s\n", r.FileName)
	if r.Meet.Name != "" {
		fmt.Fprintf(w, "meet: %s %s\n", r.Meet.Name, r.Meet.StartDate)
	}
	for _, s := range r.Sheets {
		fmt.Fprintf(w, "sheet %q: %d rows, %d accepted, %d skipped\n", s.Name, s.Rows, s.Accepted, s.Skipped)
	}
	for _, s := range r.SkippedSheets {
		fmt.Fprintf(w, "sheet %q excluded: %s\n", s.Name, s.Reason)
	}

	fmt.Fprintf(w, "results: %d accepted, %d skipped", len(r.Results), len(r.Skipped))
	if counts := r.SkipCounts(); len(counts) > 0 {
		fmt.Fprintf(w, " (%s)", formatCounts(counts))
	}
	fmt.Fprintln(w)
	if len(r.Corrections) > 0 {
		fmt.Fprintf(w, "corrections queued: %d\n", len(r.Corrections))
	}

	fmt.Fprint(w, r.Issues.Summary(issuesPerKind))
	if r.Issues.HasAny(blocking...) {
		fmt.Fprintln(w, "status: blocked")
	} else {
		fmt.Fprintln(w, "status: ok")
	}
}

func formatCounts(counts map[core.SkipReason]int) string {
	parts := make([]string, 0, len(counts))
	for reason, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
