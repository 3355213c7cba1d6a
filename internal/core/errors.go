package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Err...) to add detail.
var (
	ErrIndexOutOfRange      = errors.New("attendee index out of range")
	ErrUnknownField         = errors.New("unknown attendee field")
	ErrCountOutOfRange      = errors.New("ticket count out of range")
	ErrSourceIncomplete     = errors.New("source attendee has no name")
	ErrNoValidRows          = errors.New("no valid data found")
	ErrParseFailed          = errors.New("failed to parse file")
	ErrUnsupportedFormat    = errors.New("unsupported file type")
	ErrFileTooLarge         = errors.New("file too large")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSubmissionInProgress = errors.New("submission in progress")
	ErrInvalidTransition    = errors.New("action not allowed in current step")

	errStillActive = errors.New("session still active")
)

// Guidance shown when an import yields no attendees.
const (
	guidanceDelimited   = "No valid data found. Use columns: firstname, lastname, email, category (optional)"
	guidanceSpreadsheet = "No valid data in Excel. Use columns: A=First name, B=Last name, C=Email, D=Category (optional)"
)

// ImportError describes a failed file import. The session is left unchanged.
type ImportError struct {
	Format FileFormat
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Format, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// UserMessage returns the guidance shown to the organizer.
func (e *ImportError) UserMessage() UserMessage {
	switch {
	case errors.Is(e.Err, ErrNoValidRows):
		msg := guidanceDelimited
		if e.Format.IsSpreadsheet() {
			msg = guidanceSpreadsheet
		}
		return UserMessage{
			Message: msg,
			Action:  "Row 1 can be a header row; data starts on row 2",
			Code:    "IMP001",
		}
	case errors.Is(e.Err, ErrParseFailed):
		kind := "CSV"
		if e.Format.IsSpreadsheet() {
			kind = "Excel"
		}
		return UserMessage{
			Message: "Failed to parse " + kind + " file",
			Action:  "Check the file is not corrupted and re-upload it",
			Code:    "IMP002",
		}
	default:
		return MapError(e.Err)
	}
}

// IncompleteError is returned when a submission is refused because some
// records are not valid. Positions are 1-based.
type IncompleteError struct {
	Positions []int
}

func (e *IncompleteError) Error() string {
	if len(e.Positions) <= 5 {
		parts := make([]string, len(e.Positions))
		for i, p := range e.Positions {
			parts[i] = fmt.Sprintf("#%d", p)
		}
		return "Please complete attendee forms: " + strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%d attendee forms are incomplete", len(e.Positions))
}

// First returns the first incomplete position, or 0 when there is none.
func (e *IncompleteError) First() int {
	if len(e.Positions) == 0 {
		return 0
	}
	return e.Positions[0]
}

// UserMessage implements userMessager.
func (e *IncompleteError) UserMessage() UserMessage {
	return UserMessage{
		Message: e.Error(),
		Action:  "Fill in first name, last name and a valid email for each attendee",
		Code:    "VAL001",
	}
}

// SubmissionError is a booking call that the remote API rejected or that
// never reached it. Message is already normalized for display.
type SubmissionError struct {
	Message string
	Status  int // HTTP status; 0 when the request did not complete
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("booking rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("booking failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// UserMessage implements userMessager.
func (e *SubmissionError) UserMessage() UserMessage {
	code := "BKG001"
	if e.Status == 0 {
		code = "BKG002"
	}
	return UserMessage{
		Message: e.Message,
		Action:  "Your attendee details were kept; correct them and submit again",
		Code:    code,
	}
}
