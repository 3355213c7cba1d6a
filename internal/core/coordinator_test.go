package core

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/bulkbook/internal/booking"
)

// stubBooker records requests and answers with resp or err.
type stubBooker struct {
	mu       sync.Mutex
	requests []booking.Request
	resp     booking.Response
	err      error
	block    chan struct{} // when set, BulkBook waits for it to close
}

func (b *stubBooker) BulkBook(ctx context.Context, req booking.Request) (booking.Response, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	block := b.block
	b.mu.Unlock()

	if block != nil {
		<-block
	}
	return b.resp, b.err
}

func (b *stubBooker) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

type memRecorder struct {
	mu      sync.Mutex
	records []SubmissionRecord
	err     error
}

func (m *memRecorder) RecordSubmission(_ context.Context, rec SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func TestCoordinator_RefusesIncompleteSet(t *testing.T) {
	booker := &stubBooker{}
	rec := &memRecorder{}
	c := NewCoordinator(booker, rec, nil)

	set := filledSet(t, 10)
	for _, i := range []int{3, 6, 8} {
		_ = set.UpdateField(i, FieldEmail, "")
	}

	_, err := c.Submit(context.Background(), "evt-1", set)
	var ie *IncompleteError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want *IncompleteError", err)
	}
	if want := []int{4, 7, 9}; !reflect.DeepEqual(ie.Positions, want) {
		t.Errorf("positions = %v, want %v", ie.Positions, want)
	}
	if ie.Error() != "Please complete attendee forms: #4, #7, #9" {
		t.Errorf("message = %q", ie.Error())
	}
	if booker.calls() != 0 {
		t.Errorf("booker called %d time(s)", booker.calls())
	}
	if len(rec.records) != 1 || rec.records[0].Status != StatusRefused {
		t.Errorf("recorded = %+v", rec.records)
	}
}

func TestCoordinator_BuildsTrimmedRequest(t *testing.T) {
	booker := &stubBooker{resp: booking.Response{TicketCount: 2, UniqueAttendees: 2}}
	rec := &memRecorder{}
	c := NewCoordinator(booker, rec, nil)

	set := NewAttendeeSet(2, 10, "General Admission")
	_ = set.ReplaceAll([]AttendeeRecord{
		NewRecord(" Ada ", "Lovelace ", " ada@x.com", "VIP"),
		NewRecord("Alan", "Turing", "alan@x.com", "  "),
	})

	ctx := WithClientInfo(withSessionID(context.Background(), "sess-1"), "10.0.0.1", "curl/8")
	outcome, err := c.Submit(ctx, "evt%2F42", set)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Summary() != "Successfully booked 2 ticket(s) for 2 attendee(s)" {
		t.Errorf("summary = %q", outcome.Summary())
	}

	req := booker.requests[0]
	if req.EventID != "evt/42" {
		t.Errorf("event id = %q", req.EventID)
	}
	want := []booking.Attendee{
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada@x.com", CategoryName: "VIP"},
		{FirstName: "Alan", LastName: "Turing", Email: "alan@x.com", CategoryName: "General Admission"},
	}
	if !reflect.DeepEqual(req.Attendees, want) {
		t.Errorf("attendees = %+v, want %+v", req.Attendees, want)
	}

	got := rec.records[0]
	if got.Status != StatusSucceeded || got.SessionID != "sess-1" || got.IPAddress != "10.0.0.1" || got.UserAgent != "curl/8" {
		t.Errorf("recorded = %+v", got)
	}
	if got.TicketCount != 2 || got.Attendees != 2 {
		t.Errorf("recorded counts = %+v", got)
	}
}

func TestCoordinator_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantMsg    string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "api rejection",
			err:        &booking.APIError{Status: 400, Message: "email: Enter a valid email address."},
			wantMsg:    "email: Enter a valid email address.",
			wantStatus: 400,
			wantCode:   "BKG001",
		},
		{
			name:     "transport failure",
			err:      errors.New("dial tcp: connection refused"),
			wantMsg:  booking.DefaultErrorMessage,
			wantCode: "BKG002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booker := &stubBooker{err: tt.err}
			rec := &memRecorder{err: errors.New("db down")}
			c := NewCoordinator(booker, rec, nil)
			set := filledSet(t, 3)
			before := set.Records()

			_, err := c.Submit(context.Background(), "evt-1", set)
			var se *SubmissionError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *SubmissionError", err)
			}
			if se.Message != tt.wantMsg || se.Status != tt.wantStatus {
				t.Errorf("submission error = %+v", se)
			}
			if code := MapError(err).Code; code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if !reflect.DeepEqual(set.Records(), before) {
				t.Error("attendees changed after failure")
			}
			if len(rec.records) != 1 || rec.records[0].Status != StatusFailed {
				t.Errorf("recorded = %+v", rec.records)
			}
		})
	}
}

func TestCoordinator_Duration(t *testing.T) {
	booker := &stubBooker{resp: booking.Response{TicketCount: 1, UniqueAttendees: 1}}
	rec := &memRecorder{}
	c := NewCoordinator(booker, rec, nil)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	if _, err := c.Submit(context.Background(), "evt-1", filledSet(t, 1)); err != nil {
		t.Fatal(err)
	}
	if got := rec.records[0].Duration; got != time.Second {
		t.Errorf("duration = %v, want 1s", got)
	}
}
