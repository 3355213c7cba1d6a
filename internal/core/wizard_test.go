package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/bulkbook/internal/booking"
)

func newTestWizard(booker Booker, count int) *Wizard {
	event := Event{ID: "evt-1", Categories: []TicketCategory{{Name: "VIP"}}}
	set := NewAttendeeSet(count, 50, event.DefaultCategory("General Admission"))
	return NewWizard(event, set, NewCoordinator(booker, nil, nil))
}

func fillWizard(t *testing.T, w *Wizard) {
	t.Helper()
	for i := range w.Records() {
		for field, value := range map[string]string{
			FieldFirstName: "Ada",
			FieldLastName:  "Lovelace",
			FieldEmail:     "ada@x.com",
		} {
			if err := w.UpdateField(i, field, value); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestWizard_Transitions(t *testing.T) {
	w := newTestWizard(&stubBooker{}, 2)
	if w.State() != StateSelectingCount {
		t.Fatalf("initial state = %s", w.State())
	}

	if err := w.UpdateField(0, FieldFirstName, "Ada"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("edit before next error = %v", err)
	}
	if err := w.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("back from selecting error = %v", err)
	}

	if err := w.SetCount(4); err != nil {
		t.Fatal(err)
	}
	if err := w.Next(); err != nil {
		t.Fatal(err)
	}
	if w.State() != StateFillingForms {
		t.Fatalf("state = %s", w.State())
	}
	if err := w.Next(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second next error = %v", err)
	}

	_ = w.UpdateField(0, FieldFirstName, "Ada")
	if err := w.Back(); err != nil {
		t.Fatal(err)
	}
	if got := w.Records(); len(got) != 4 || got[0].FirstName != "Ada" {
		t.Errorf("back lost records: %+v", got)
	}

	if _, err := w.Submit(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("submit from selecting error = %v", err)
	}
}

func TestWizard_SubmitIncompleteStaysFilling(t *testing.T) {
	booker := &stubBooker{}
	w := newTestWizard(booker, 2)
	_ = w.Next()

	_, err := w.Submit(context.Background())
	var ie *IncompleteError
	if !errors.As(err, &ie) || ie.First() != 1 {
		t.Fatalf("error = %v", err)
	}
	if w.State() != StateFillingForms {
		t.Errorf("state = %s", w.State())
	}
	if booker.calls() != 0 {
		t.Error("booker called for an incomplete set")
	}
}

func TestWizard_SubmitFailureKeepsAttendees(t *testing.T) {
	w := newTestWizard(&stubBooker{err: &booking.APIError{Status: 400, Message: "Event not found."}}, 2)
	_ = w.Next()
	fillWizard(t, w)
	before := w.Records()

	if _, err := w.Submit(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if w.State() != StateFillingForms {
		t.Errorf("state = %s", w.State())
	}
	after := w.Records()
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("records = %+v, want %+v", after, before)
	}
}

func TestWizard_SubmitSuccess(t *testing.T) {
	w := newTestWizard(&stubBooker{resp: booking.Response{TicketCount: 3, UniqueAttendees: 3}}, 3)
	_ = w.SetCount(3)
	_ = w.Next()
	fillWizard(t, w)

	var notified SubmissionOutcome
	w.OnSuccess(func(o SubmissionOutcome) { notified = o })

	outcome, err := w.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if notified != outcome || outcome.TicketCount != 3 {
		t.Errorf("notified = %+v, outcome = %+v", notified, outcome)
	}

	snap := w.Snapshot()
	if snap.State != StateSucceeded || snap.Outcome == nil || snap.ValidCount != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	for _, r := range snap.Attendees {
		if r.FirstName != "" || r.CategoryName != "VIP" {
			t.Errorf("record not reset: %+v", r)
		}
	}

	if err := w.SetCount(5); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("set count after success error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if snap := w.Snapshot(); snap.State != StateSelectingCount || snap.Outcome != nil {
		t.Errorf("after close = %+v", snap)
	}
}

func TestWizard_MutationsRefusedWhileSubmitting(t *testing.T) {
	booker := &stubBooker{
		resp:  booking.Response{TicketCount: 1, UniqueAttendees: 1},
		block: make(chan struct{}),
	}
	w := newTestWizard(booker, 1)
	_ = w.Next()
	fillWizard(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for w.State() != StateSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("wizard never entered submitting")
		}
		time.Sleep(time.Millisecond)
	}

	checks := map[string]error{
		"update": w.UpdateField(0, FieldEmail, "x@y"),
		"copy":   w.CopyCategory(0),
		"count":  w.SetCount(2),
		"import": w.ApplyImport(ImportResult{Records: []AttendeeRecord{NewRecord("a", "b", "c@d", "VIP")}}),
		"close":  w.Close(),
	}
	_, submitErr := w.Submit(context.Background())
	checks["submit"] = submitErr

	for name, err := range checks {
		if !errors.Is(err, ErrSubmissionInProgress) {
			t.Errorf("%s error = %v, want ErrSubmissionInProgress", name, err)
		}
	}

	close(booker.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if booker.calls() != 1 {
		t.Errorf("booker called %d time(s)", booker.calls())
	}
}

func TestWizard_ApplyImport(t *testing.T) {
	w := newTestWizard(&stubBooker{}, 2)

	if err := w.ApplyImport(ImportResult{Format: FormatCSV}); !errors.Is(err, ErrNoValidRows) {
		t.Errorf("empty import error = %v", err)
	}

	result := ImportResult{Format: FormatCSV, Records: []AttendeeRecord{
		NewRecord("Ada", "Lovelace", "ada@x.com", "VIP"),
		NewRecord("Alan", "Turing", "alan@x.com", "VIP"),
		NewRecord("Grace", "", "grace@x.com", "VIP"),
	}}
	if err := w.ApplyImport(result); err != nil {
		t.Fatal(err)
	}

	snap := w.Snapshot()
	if snap.State != StateSelectingCount || snap.TargetCount != 3 || snap.ValidCount != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.InvalidPositions) != 1 || snap.InvalidPositions[0] != 3 {
		t.Errorf("invalid positions = %v", snap.InvalidPositions)
	}
}
