package core

// # Error Codes Reference
//
// Technical errors are mapped to user messages with a code operators can
// quote when asking for help. The first matching pattern wins.
//
// # Ingestion (ING001-ING099)
//
//	ING001 - Commit blocked: rows reference athletes not on the roster
//	         Action: Add the athletes listed under missing_athlete, then commit again
//	         Patterns: "blocked by missing athletes"
//
//	ING002 - No usable sheets: every worksheet was excluded
//	         Action: Check sheet names; relay, lap and summary sheets are skipped
//	         Patterns: "no usable sheets"
//
//	ING003 - Unsupported format: only .xlsx, .xlsm and .csv are read
//	         Action: Save the workbook as .xlsx
//	         Patterns: "unsupported file format"
//
// # Database (DB001-DB099)
//
//	DB001 - Duplicate key         Patterns: "duplicate key", "violates unique"
//	DB003 - Missing reference     Patterns: "violates foreign key"
//	DB004 - Connection refused    Patterns: "connection refused"
//	DB005 - Connection reset      Patterns: "connection reset"
//	DB006 - Timeout               Patterns: "timeout"
//	DB007 - Deadlock              Patterns: "deadlock"
//
// # File (FILE001-FILE099)
//
//	FILE001 - File too large      Patterns: "file too large"
//	FILE002 - Invalid CSV         Patterns: "invalid csv"
//	FILE003 - Unreadable workbook Patterns: "open workbook"
//	FILE004 - No file             Patterns: "no file provided"
//	FILE005 - Empty file          Patterns: "empty file"
//
// # Upload (UPL001-UPL099)
//
//	UPL002 - System busy          Patterns: "too many uploads"
//	UPL004 - Request cancelled    Patterns: "context canceled"
//	UPL005 - Request timeout      Patterns: "context deadline exceeded"
//
// ERR000 is the fallback; check the logs for the technical error.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains, in
// order, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// Ingestion
	{
		pattern: "blocked by missing athletes",
		msg: UserMessage{
			Message: "Some rows reference athletes that are not on the roster",
			Action:  "Add the missing athletes listed in the report, then commit again",
			Code:    "ING001",
		},
	},
	{
		pattern: "no usable sheets",
		msg: UserMessage{
			Message: "The workbook has no individual event sheets",
			Action:  "Check sheet names; relay, lap and summary sheets are skipped",
			Code:    "ING002",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload an .xlsx, .xlsm or .csv file",
			Code:    "ING003",
		},
	},

	// Database
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A result with this key already exists",
			Action:  "Run the commit again; existing results are skipped",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A result with this key already exists",
			Action:  "Run the commit again; existing results are skipped",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "A referenced athlete, event or meet does not exist",
			Action:  "Reload the roster and try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller workbook or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the meet into smaller workbooks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated",
			Code:    "FILE002",
		},
	},
	{
		pattern: "open workbook",
		msg: UserMessage{
			Message: "The workbook could not be opened",
			Action:  "Re-save the file in Excel and upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a results workbook to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a workbook with result rows",
			Code:    "FILE005",
		},
	},

	// Upload
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller workbook or check your connection",
			Code:    "UPL005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message, falling
// back to ERR000.
//
//	msg := MapError(ErrBlockingIssues)
//	// msg.Code == "ING001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err; it returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
