package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/bulkbook/internal/booking"
)

func newTestService(booker Booker) *Service {
	return NewService(ServiceConfig{
		DefaultCount:         2,
		MaxCount:             10,
		DefaultCategory:      "General Admission",
		SessionTTL:           time.Hour,
		MaxFileSize:          64,
		MaxConcurrentImports: 1,
		ImportWait:           50 * time.Millisecond,
	}, booker, nil, nil)
}

func TestService_Sessions(t *testing.T) {
	s := newTestService(&stubBooker{})

	id, snap := s.CreateSession(Event{ID: "evt-1", PricingType: "paid", Categories: []TicketCategory{{Name: "VIP", Price: 12500}}})
	if snap.SessionID != id || snap.TargetCount != 2 || snap.DefaultCategory != "VIP" {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Categories) != 1 || snap.Categories[0].Label != "VIP - ₦12,500" {
		t.Errorf("categories = %+v", snap.Categories)
	}
	if s.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions = %d", s.ActiveSessions())
	}

	_, free := s.CreateSession(Event{ID: "evt-2"})
	if free.DefaultCategory != "General Admission" {
		t.Errorf("default category = %q", free.DefaultCategory)
	}

	if _, err := s.SetCount(id, 11); !errors.Is(err, ErrCountOutOfRange) {
		t.Errorf("SetCount over max error = %v", err)
	}
	if _, err := s.Snapshot("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session error = %v", err)
	}

	if err := s.DeleteSession(id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Snapshot(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("deleted session error = %v", err)
	}
	if s.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions = %d", s.ActiveSessions())
	}
}

func TestService_Import(t *testing.T) {
	s := newTestService(&stubBooker{})
	id, _ := s.CreateSession(Event{ID: "evt-1"})

	result, snap, err := s.Import(context.Background(), id, "list.csv", strings.NewReader("Ada,Lovelace,ada@x.com\nAlan,,alan@x.com\nX,Y,z@w"))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Records) != 3 || result.Invalid != 1 {
		t.Errorf("result = %+v", result)
	}
	if snap.TargetCount != 3 || snap.State != StateSelectingCount {
		t.Errorf("snapshot = %+v", snap)
	}

	t.Run("too large leaves session unchanged", func(t *testing.T) {
		big := strings.Repeat("Ada,Lovelace,ada@x.com\n", 10)
		_, _, err := s.Import(context.Background(), id, "big.csv", strings.NewReader(big))
		if !errors.Is(err, ErrFileTooLarge) {
			t.Fatalf("error = %v, want ErrFileTooLarge", err)
		}
		if got, _ := s.Snapshot(id); got.TargetCount != 3 {
			t.Errorf("target count = %d", got.TargetCount)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, _, err := s.Import(context.Background(), id, "list.pdf", strings.NewReader("x"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("no rows", func(t *testing.T) {
		_, _, err := s.Import(context.Background(), id, "list.csv", strings.NewReader("firstname,lastname,email\n"))
		var ie *ImportError
		if !errors.As(err, &ie) {
			t.Errorf("error = %v, want *ImportError", err)
		}
	})

	t.Run("busy", func(t *testing.T) {
		if err := s.Limiter().Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer s.Limiter().Release()

		_, _, err := s.Import(context.Background(), id, "list.csv", strings.NewReader("Ada,Lovelace,ada@x.com"))
		if !errors.Is(err, ErrTooManyImports) {
			t.Errorf("error = %v, want ErrTooManyImports", err)
		}
	})
}

func TestService_Export(t *testing.T) {
	s := newTestService(&stubBooker{})
	id, _ := s.CreateSession(Event{ID: "evt-1"})
	_, _ = s.Next(id)
	_, _ = s.UpdateField(id, 0, FieldFirstName, "Ada")

	data, err := s.Export(id, FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	want := "firstname,lastname,email,category\nAda,,,General Admission\n,,,General Admission\n"
	if string(data) != want {
		t.Errorf("export = %q, want %q", data, want)
	}

	if _, err := s.Export(id, FormatXLSX); err != nil {
		t.Errorf("xlsx export error = %v", err)
	}
	if _, err := s.Export(id, FormatXLS); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("xls export error = %v", err)
	}
}

func TestService_Submit(t *testing.T) {
	booker := &stubBooker{resp: booking.Response{TicketCount: 2, UniqueAttendees: 2}}
	rec := &memRecorder{}
	s := NewService(ServiceConfig{DefaultCount: 2, MaxCount: 10, DefaultCategory: "GA"}, booker, rec, nil)
	id, _ := s.CreateSession(Event{ID: "evt-1"})
	_, _ = s.Next(id)
	for i := 0; i < 2; i++ {
		_, _ = s.UpdateField(id, i, FieldFirstName, "Ada")
		_, _ = s.UpdateField(id, i, FieldLastName, "Lovelace")
		_, _ = s.UpdateField(id, i, FieldEmail, "ada@x.com")
	}

	outcome, snap, err := s.Submit(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.TicketCount != 2 || snap.State != StateSucceeded || snap.SessionID != id {
		t.Errorf("outcome = %+v, snapshot = %+v", outcome, snap)
	}
	if len(rec.records) != 1 || rec.records[0].SessionID != id {
		t.Errorf("recorded = %+v", rec.records)
	}
}

func TestService_Sweep(t *testing.T) {
	booker := &stubBooker{
		resp:  booking.Response{TicketCount: 1, UniqueAttendees: 1},
		block: make(chan struct{}),
	}
	s := newTestService(booker)

	idle, _ := s.CreateSession(Event{ID: "evt-1"})
	busy, _ := s.CreateSession(Event{ID: "evt-2"})
	_, _ = s.SetCount(busy, 1)
	_, _ = s.Next(busy)
	_, _ = s.UpdateField(busy, 0, FieldFirstName, "Ada")
	_, _ = s.UpdateField(busy, 0, FieldLastName, "Lovelace")
	_, _ = s.UpdateField(busy, 0, FieldEmail, "ada@x.com")

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Submit(context.Background(), busy)
		done <- err
	}()

	w, _ := s.Session(busy)
	deadline := time.Now().Add(2 * time.Second)
	for w.State() != StateSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("session never entered submitting")
		}
		time.Sleep(time.Millisecond)
	}

	if n := s.Sweep(time.Now().Add(30 * time.Minute)); n != 0 {
		t.Errorf("swept %d fresh session(s)", n)
	}
	if err := s.DeleteSession(busy); !errors.Is(err, ErrSubmissionInProgress) {
		t.Errorf("delete while submitting error = %v", err)
	}
	if n := s.Sweep(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Errorf("swept %d session(s), want 1", n)
	}
	if _, err := s.Session(idle); !errors.Is(err, ErrSessionNotFound) {
		t.Error("idle session survived the sweep")
	}

	close(booker.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if _, err := s.Session(busy); err != nil {
		t.Errorf("submitting session was swept: %v", err)
	}
}

func TestService_RemovedSessionRefusesHeldWizard(t *testing.T) {
	booker := &stubBooker{resp: booking.Response{TicketCount: 1, UniqueAttendees: 1}}
	s := newTestService(booker)

	deleted, _ := s.CreateSession(Event{ID: "evt-1"})
	swept, _ := s.CreateSession(Event{ID: "evt-2"})

	// Handlers fetch the wizard before acting on it; removal can land in
	// between.
	held := make([]*Wizard, 0, 2)
	for _, id := range []string{deleted, swept} {
		w, err := s.Session(id)
		if err != nil {
			t.Fatal(err)
		}
		_ = w.SetCount(1)
		_ = w.Next()
		fillWizard(t, w)
		held = append(held, w)
	}

	if err := s.DeleteSession(deleted); err != nil {
		t.Fatal(err)
	}
	if n := s.Sweep(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Fatalf("swept %d session(s), want 1", n)
	}

	for i, w := range held {
		if _, err := w.Submit(context.Background()); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("wizard %d submit error = %v, want ErrSessionNotFound", i, err)
		}
		if err := w.UpdateField(0, FieldEmail, "x@y"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("wizard %d update error = %v, want ErrSessionNotFound", i, err)
		}
	}
	if booker.calls() != 0 {
		t.Errorf("booker called %d time(s) for removed sessions", booker.calls())
	}
}

func TestService_SweepKeepsRecentlyUsed(t *testing.T) {
	s := newTestService(&stubBooker{})
	id, _ := s.CreateSession(Event{ID: "evt-1"})

	if n := s.Sweep(time.Now().Add(59 * time.Minute)); n != 0 {
		t.Errorf("swept %d session(s) inside the TTL", n)
	}
	if _, err := s.Next(id); err != nil {
		t.Errorf("session unusable after a sweep that kept it: %v", err)
	}
}
