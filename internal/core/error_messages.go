package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. When organizers
// report an error, they can quote the code.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - No valid rows: the file contained no attendee rows
//	IMP002 - Parse failure: the file could not be read (corrupt spreadsheet)
//	IMP003 - Unsupported type: extension is not .csv, .txt, .xlsx or .xls
//	         Patterns: "unsupported file type"
//	IMP004 - File too large
//	         Patterns: "file too large", "request body too large"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Incomplete forms (carried by IncompleteError)
//	VAL002 - Unknown field
//	         Patterns: "unknown attendee field"
//	VAL003 - Index out of range
//	         Patterns: "attendee index out of range"
//	VAL004 - Count out of range
//	         Patterns: "ticket count out of range"
//	VAL005 - Copy source incomplete
//	         Patterns: "source attendee has no name"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found or expired
//	         Patterns: "session not found"
//	SES002 - Submission in progress
//	         Patterns: "submission in progress"
//	SES003 - Wrong step
//	         Patterns: "not allowed in current step"
//
// # Booking Errors (BKG001-BKG099)
//
//	BKG001 - Rejected by the ticketing API (carried by SubmissionError)
//	BKG002 - Ticketing API unreachable (carried by SubmissionError)
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy
//	         Patterns: "too many concurrent imports"
//	UPL002 - Request cancelled
//	         Patterns: "context canceled"
//	UPL003 - Request timeout
//	         Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check application logs for the
// original technical error.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// userMessager is implemented by errors that know their own user message.
type userMessager interface {
	UserMessage() UserMessage
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// Import
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Unsupported file type",
			Action:  "Upload a .csv, .txt, .xlsx or .xls file",
			Code:    "IMP003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the attendee list into smaller files",
			Code:    "IMP004",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the attendee list into smaller files",
			Code:    "IMP004",
		},
	},

	// Validation
	{
		pattern: "unknown attendee field",
		msg: UserMessage{
			Message: "Unknown attendee field",
			Action:  "Use one of: firstname, lastname, email, category_name",
			Code:    "VAL002",
		},
	},
	{
		pattern: "attendee index out of range",
		msg: UserMessage{
			Message: "That attendee does not exist",
			Action:  "Refresh the form and try again",
			Code:    "VAL003",
		},
	},
	{
		pattern: "ticket count out of range",
		msg: UserMessage{
			Message: "Ticket count is out of range",
			Action:  "Choose a number of tickets within the allowed range",
			Code:    "VAL004",
		},
	},
	{
		pattern: "source attendee has no name",
		msg: UserMessage{
			Message: "Please fill in the first attendee's details first",
			Action:  "Enter a first or last name, then copy the category again",
			Code:    "VAL005",
		},
	},

	// Session
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Booking session not found",
			Action:  "The session may have expired. Please start a new bulk booking",
			Code:    "SES001",
		},
	},
	{
		pattern: "submission in progress",
		msg: UserMessage{
			Message: "A booking is already being submitted",
			Action:  "Wait for the current submission to finish",
			Code:    "SES002",
		},
	},
	{
		pattern: "not allowed in current step",
		msg: UserMessage{
			Message: "That action is not available in this step",
			Action:  "Go to the right step of the booking wizard first",
			Code:    "SES003",
		},
	},

	// Upload lifecycle
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many files are being imported",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again or check your connection",
			Code:    "UPL003",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Errors carrying their own message win; otherwise known patterns are
// searched (case-insensitive) and the first match returned, falling back to
// ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
