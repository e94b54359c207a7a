package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/swimresults/internal/workbook"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error", nil, ""},
		{"blocked commit", ErrBlockingIssues, "ING001"},
		{"wrapped blocked commit", fmt.Errorf("commit: %w", ErrBlockingIssues), "ING001"},
		{"empty workbook", ErrEmptyWorkbook, "ING002"},
		{"unsupported format", fmt.Errorf("%w: %q", workbook.ErrUnsupportedFormat, ".pdf"), "ING003"},
		{"file too large", fmt.Errorf("%w: 999 bytes", workbook.ErrFileTooLarge), "FILE001"},
		{"empty file", workbook.ErrEmptyFile, "FILE005"},
		{"bad csv", errors.New("invalid csv: bare quote"), "FILE002"},
		{"bad xlsx", errors.New("open workbook: zip: not a valid zip file"), "FILE003"},
		{"unique violation", errors.New(`ERROR: duplicate key value violates unique constraint "results_pkey"`), "DB001"},
		{"missing reference", errors.New("insert or update violates foreign key constraint"), "DB003"},
		{"database down", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB004"},
		{"limiter full", ErrTooManyUploads, "UPL002"},
		{"cancelled", context.Canceled, "UPL004"},
		{"deadline", context.DeadlineExceeded, "UPL005"},
		{"case insensitive", errors.New("DUPLICATE KEY value"), "DB001"},
		{"unknown", errors.New("something odd happened"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrBlockingIssues)
	want := "Some rows reference athletes that are not on the roster (Code: ING001). Add the missing athletes listed in the report, then commit again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrEmptyWorkbook, true},
		{errors.New("random internal error xyz"), false},
	}
	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	ue := NewUserError(ErrTooManyUploads)
	if ue.Error() != "System is busy processing other uploads" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if !errors.Is(ue, ErrTooManyUploads) {
		t.Error("errors.Is should see the technical error")
	}
}
