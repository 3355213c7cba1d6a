package core

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/bulkbook/internal/booking"
	"github.com/google/uuid"
)

// Booker performs one remote bulk-booking call. *booking.Client implements it.
type Booker interface {
	BulkBook(ctx context.Context, req booking.Request) (booking.Response, error)
}

// OutcomeRecorder stores submission attempts. Recording is best effort: an
// error is logged and never fails the submission.
type OutcomeRecorder interface {
	RecordSubmission(ctx context.Context, rec SubmissionRecord) error
}

// Metrics receives pipeline measurements. The zero Coordinator and Service
// use a no-op implementation.
type Metrics interface {
	ObserveImport(format FileFormat, records, invalid int, err error)
	ObserveSubmission(status SubmissionStatus, attendees int, elapsed time.Duration)
	SetActiveSessions(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveImport(FileFormat, int, int, error) {}
func (noopMetrics) ObserveSubmission(SubmissionStatus, int, time.Duration) {}
func (noopMetrics) SetActiveSessions(int) {}

// Coordinator validates an attendee set and books it in a single call.
type Coordinator struct {
	booker   Booker
	recorder OutcomeRecorder
	metrics  Metrics
	now      func() time.Time
}

// NewCoordinator returns a coordinator that books through booker. recorder
// and metrics may be nil.
func NewCoordinator(booker Booker, recorder OutcomeRecorder, metrics Metrics) *Coordinator {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Coordinator{
		booker:   booker,
		recorder: recorder,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Submit refuses an incomplete set with *IncompleteError and no network
// call. Otherwise it books every record once, without retry. A failed call
// returns *SubmissionError with a display-ready message and leaves set
// untouched.
func (c *Coordinator) Submit(ctx context.Context, eventID string, set *AttendeeSet) (SubmissionOutcome, error) {
	rec := SubmissionRecord{
		ID:        uuid.New().String(),
		SessionID: sessionIDFromContext(ctx),
		EventID:   eventID,
		Attendees: set.Len(),
		IPAddress: ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	}

	if invalid := set.InvalidPositions(); len(invalid) > 0 || set.Len() == 0 {
		rec.Status = StatusRefused
		err := &IncompleteError{Positions: invalid}
		rec.Error = err.Error()
		c.record(ctx, rec, 0)
		return SubmissionOutcome{}, err
	}

	req := buildRequest(eventID, set)
	start := c.now()
	resp, err := c.booker.BulkBook(ctx, req)
	elapsed := c.now().Sub(start)

	if err != nil {
		subErr := &SubmissionError{Message: booking.DefaultErrorMessage, Err: err}
		var apiErr *booking.APIError
		if errors.As(err, &apiErr) {
			subErr.Status = apiErr.Status
			subErr.Message = apiErr.Message
		}

		rec.Status = StatusFailed
		rec.HTTPStatus = subErr.Status
		rec.Error = subErr.Message
		c.record(ctx, rec, elapsed)

		slog.Warn("bulk booking failed",
			"event_id", eventID,
			"attendees", set.Len(),
			"status", subErr.Status,
			"error", err)
		return SubmissionOutcome{}, subErr
	}

	outcome := SubmissionOutcome{
		TicketCount:     resp.TicketCount,
		UniqueAttendees: resp.UniqueAttendees,
	}
	rec.Status = StatusSucceeded
	rec.TicketCount = outcome.TicketCount
	rec.UniqueAttendees = outcome.UniqueAttendees
	c.record(ctx, rec, elapsed)

	slog.Info("bulk booking succeeded",
		"event_id", eventID,
		"tickets", outcome.TicketCount,
		"unique_attendees", outcome.UniqueAttendees,
		"duration", elapsed)
	return outcome, nil
}

// buildRequest trims every value and fills blank categories with the set's
// default. The event ID may arrive URL-encoded from a route parameter.
func buildRequest(eventID string, set *AttendeeSet) booking.Request {
	if decoded, err := url.PathUnescape(eventID); err == nil {
		eventID = decoded
	}

	records := set.Records()
	attendees := make([]booking.Attendee, len(records))
	for i, r := range records {
		category := strings.TrimSpace(r.CategoryName)
		if category == "" {
			category = set.DefaultCategory()
		}
		attendees[i] = booking.Attendee{
			FirstName:    strings.TrimSpace(r.FirstName),
			LastName:     strings.TrimSpace(r.LastName),
			Email:        strings.TrimSpace(r.Email),
			CategoryName: category,
		}
	}
	return booking.Request{EventID: eventID, Attendees: attendees}
}

func (c *Coordinator) record(ctx context.Context, rec SubmissionRecord, elapsed time.Duration) {
	rec.Duration = elapsed
	rec.CreatedAt = c.now()
	c.metrics.ObserveSubmission(rec.Status, rec.Attendees, elapsed)

	if c.recorder == nil {
		return
	}
	// The request may already be cancelled; history should still be kept.
	if err := c.recorder.RecordSubmission(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("failed to record submission",
			"submission_id", rec.ID,
			"event_id", rec.EventID,
			"error", err)
	}
}

type sessionCtxKey struct{}

func withSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

func sessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionCtxKey{}).(string)
	return v
}
