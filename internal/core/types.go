package core

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileFormat identifies how an uploaded attendee file is parsed.
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatText FileFormat = "txt"
	FormatXLSX FileFormat = "xlsx"
	FormatXLS  FileFormat = "xls"
)

// DetectFormat maps a file name to its format by extension.
func DetectFormat(fileName string) (FileFormat, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".txt":
		return FormatText, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w %q (use .csv, .txt, .xlsx or .xls)", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// IsSpreadsheet reports whether the format is a binary workbook.
func (f FileFormat) IsSpreadsheet() bool {
	return f == FormatXLSX || f == FormatXLS
}

// ImportResult is the output of the Row Parser.
type ImportResult struct {
	Format    FileFormat       `json:"format"`
	Records   []AttendeeRecord `json:"attendees"`
	Invalid   int              `json:"invalid"`   // records kept but failing validation
	Discarded int              `json:"discarded"` // rows dropped for having fewer than 3 fields
}

// Summary returns the message shown after a successful import.
func (r ImportResult) Summary() string {
	if r.Invalid > 0 {
		return fmt.Sprintf("Imported %d row(s). %d need(s) completion before booking.", len(r.Records), r.Invalid)
	}
	source := "CSV"
	if r.Format.IsSpreadsheet() {
		source = "Excel"
	}
	return fmt.Sprintf("Imported %d attendee(s) from %s", len(r.Records), source)
}

// SubmissionOutcome is the remote API's answer to a successful booking.
type SubmissionOutcome struct {
	TicketCount     int `json:"ticket_count"`
	UniqueAttendees int `json:"unique_attendees"`
}

// Summary returns the message shown after a successful booking.
func (o SubmissionOutcome) Summary() string {
	return fmt.Sprintf("Successfully booked %d ticket(s) for %d attendee(s)", o.TicketCount, o.UniqueAttendees)
}

// TicketCategory is a ticket tier offered by an event.
type TicketCategory struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Event is the booking target as known to the organizer's console.
type Event struct {
	ID          string           `json:"event_id"`
	PricingType string           `json:"pricing_type"`
	Categories  []TicketCategory `json:"ticket_categories"`
}

// IsPaid reports whether tickets for the event cost money.
func (e Event) IsPaid() bool {
	return e.PricingType == "paid"
}

// DefaultCategory is the first category's name, or fallback when the event
// has none.
func (e Event) DefaultCategory(fallback string) string {
	if len(e.Categories) > 0 && e.Categories[0].Name != "" {
		return e.Categories[0].Name
	}
	return fallback
}

// CategoryOption is a selectable category for the attendee forms.
type CategoryOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// CategoryOptions lists the event's categories, with prices for paid events.
func (e Event) CategoryOptions() []CategoryOption {
	opts := make([]CategoryOption, len(e.Categories))
	for i, c := range e.Categories {
		label := c.Name
		if e.IsPaid() {
			label = fmt.Sprintf("%s - ₦%s", c.Name, formatAmount(c.Price))
		}
		opts[i] = CategoryOption{Value: c.Name, Label: label}
	}
	return opts
}

// formatAmount renders a price with thousands separators: 12500 -> "12,500",
// 99.5 -> "99.5".
func formatAmount(v float64) string {
	v = math.Round(v*1000) / 1000
	neg := v < 0
	if neg {
		v = -v
	}

	whole := int64(v)
	digits := strconv.FormatInt(whole, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	if frac := v - float64(whole); frac >= 0.0005 {
		s := strconv.FormatFloat(frac, 'f', 3, 64) // "0.500"
		b.WriteString(strings.TrimRight(s[1:], "0"))
	}

	return b.String()
}

// QuantityOptions are the preset ticket counts offered in the first step.
var QuantityOptions = []int{1, 5, 10, 20, 30, 50, 75, 100}

// SubmissionStatus classifies a recorded submission attempt.
type SubmissionStatus string

const (
	StatusSucceeded SubmissionStatus = "succeeded"
	StatusFailed    SubmissionStatus = "failed"
	StatusRefused   SubmissionStatus = "refused"
)

// SubmissionRecord is one booking attempt, as kept in submission history.
type SubmissionRecord struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id,omitempty"`
	EventID         string           `json:"event_id"`
	Status          SubmissionStatus `json:"status"`
	Attendees       int              `json:"attendees"`
	TicketCount     int              `json:"ticket_count"`
	UniqueAttendees int              `json:"unique_attendees"`
	HTTPStatus      int              `json:"http_status,omitempty"`
	Error           string           `json:"error,omitempty"`
	IPAddress       string           `json:"ip_address,omitempty"`
	UserAgent       string           `json:"user_agent,omitempty"`
	Duration        time.Duration    `json:"duration_ns"`
	CreatedAt       time.Time        `json:"created_at"`
}
