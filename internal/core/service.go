package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ServiceConfig holds the limits a Service enforces.
type ServiceConfig struct {
	DefaultCount         int           // records in a new session
	MaxCount             int           // upper bound for SetCount
	DefaultCategory      string        // used when the event has no categories
	SessionTTL           time.Duration // idle sessions older than this are swept
	MaxFileSize          int64         // import size cap in bytes
	MaxConcurrentImports int
	ImportWait           time.Duration
}

// Service hosts bulk-booking wizards, one per organizer session.
type Service struct {
	cfg         ServiceConfig
	coordinator *Coordinator
	limiter     *ImportLimiter
	metrics     Metrics

	mu       sync.RWMutex
	sessions map[string]*Wizard
}

// NewService creates a Service. recorder and metrics may be nil.
func NewService(cfg ServiceConfig, booker Booker, recorder OutcomeRecorder, metrics Metrics) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		cfg:         cfg,
		coordinator: NewCoordinator(booker, recorder, metrics),
		limiter:     NewImportLimiter(cfg.MaxConcurrentImports, cfg.ImportWait),
		metrics:     metrics,
		sessions:    make(map[string]*Wizard),
	}
}

// Limiter exposes the import limiter for health reporting and shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// CreateSession starts a wizard for event and returns its ID.
func (s *Service) CreateSession(event Event) (string, Snapshot) {
	set := NewAttendeeSet(s.cfg.DefaultCount, s.cfg.MaxCount, event.DefaultCategory(s.cfg.DefaultCategory))
	w := NewWizard(event, set, s.coordinator)
	id := uuid.New().String()

	s.mu.Lock()
	s.sessions[id] = w
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	slog.Info("booking session created", "session_id", id, "event_id", event.ID, "count", set.Len())

	snap := w.Snapshot()
	snap.SessionID = id
	return id, snap
}

// Session returns the wizard for id.
func (s *Service) Session(id string) (*Wizard, error) {
	s.mu.RLock()
	w, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return w, nil
}

// Snapshot returns the current view of session id.
func (s *Service) Snapshot(id string) (Snapshot, error) {
	w, err := s.Session(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap := w.Snapshot()
	snap.SessionID = id
	return snap, nil
}

// DeleteSession discards session id. A session with a booking in flight
// cannot be deleted.
func (s *Service) DeleteSession(id string) error {
	s.mu.Lock()
	w, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := w.retire(time.Time{}); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	return nil
}

// ActiveSessions returns the number of live sessions.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// mutate applies fn to session id and returns the resulting snapshot.
func (s *Service) mutate(id string, fn func(*Wizard) error) (Snapshot, error) {
	w, err := s.Session(id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := fn(w); err != nil {
		return Snapshot{}, err
	}
	snap := w.Snapshot()
	snap.SessionID = id
	return snap, nil
}

// SetCount sets the target ticket count of session id.
func (s *Service) SetCount(id string, count int) (Snapshot, error) {
	return s.mutate(id, func(w *Wizard) error { return w.SetCount(count) })
}

// Next advances session id to the attendee forms.
func (s *Service) Next(id string) (Snapshot, error) {
	return s.mutate(id, (*Wizard).Next)
}

// Back returns session id to count selection.
func (s *Service) Back(id string) (Snapshot, error) {
	return s.mutate(id, (*Wizard).Back)
}

// Close abandons the booking in session id and starts over.
func (s *Service) Close(id string) (Snapshot, error) {
	return s.mutate(id, (*Wizard).Close)
}

// UpdateField edits the record at index (0-based) of session id.
func (s *Service) UpdateField(id string, index int, field, value string) (Snapshot, error) {
	return s.mutate(id, func(w *Wizard) error { return w.UpdateField(index, field, value) })
}

// CopyCategory copies the category of record source (0-based) to every
// other record of session id.
func (s *Service) CopyCategory(id string, source int) (Snapshot, error) {
	return s.mutate(id, func(w *Wizard) error { return w.CopyCategory(source) })
}

// Import reads an uploaded file into session id, replacing its records. The
// upload counts against the server-wide import limit and the size cap. A
// failed import leaves the session unchanged.
func (s *Service) Import(ctx context.Context, id, fileName string, r io.Reader) (ImportResult, Snapshot, error) {
	w, err := s.Session(id)
	if err != nil {
		return ImportResult{}, Snapshot{}, err
	}
	if err := w.CanImport(); err != nil {
		return ImportResult{}, Snapshot{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportResult{}, Snapshot{}, err
	}
	defer s.limiter.Release()

	start := time.Now()
	result, err := s.parseUpload(fileName, r, w.Snapshot().DefaultCategory)
	s.metrics.ObserveImport(result.Format, len(result.Records), result.Invalid, err)
	if err != nil {
		slog.Warn("import failed", "session_id", id, "file", fileName, "error", err)
		return ImportResult{}, Snapshot{}, err
	}

	if err := w.ApplyImport(result); err != nil {
		return ImportResult{}, Snapshot{}, err
	}

	slog.Info("attendees imported",
		"session_id", id,
		"file", fileName,
		"format", result.Format,
		"records", len(result.Records),
		"invalid", result.Invalid,
		"discarded", result.Discarded,
		"duration_ms", time.Since(start).Milliseconds())

	snap := w.Snapshot()
	snap.SessionID = id
	return result, snap, nil
}

func (s *Service) parseUpload(fileName string, r io.Reader, defaultCategory string) (ImportResult, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return ImportResult{}, err
	}

	body := r
	if s.cfg.MaxFileSize > 0 {
		body = io.LimitReader(r, s.cfg.MaxFileSize+1)
	}
	cr := &countingReader{r: body}
	data, err := io.ReadAll(cr)
	if err != nil {
		return ImportResult{Format: format}, &ImportError{Format: format, Err: fmt.Errorf("read upload: %w", err)}
	}
	if s.cfg.MaxFileSize > 0 && cr.BytesRead() > s.cfg.MaxFileSize {
		return ImportResult{Format: format}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.cfg.MaxFileSize)
	}

	return ParseFile(fileName, data, defaultCategory)
}

// Export writes the records of session id as a delimited or .xlsx file.
func (s *Service) Export(id string, format FileFormat) ([]byte, error) {
	w, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	records := w.Records()

	switch format {
	case FormatCSV, FormatText:
		return ExportDelimited(records), nil
	case FormatXLSX:
		return ExportSpreadsheet(records)
	default:
		return nil, fmt.Errorf("%w %q (export as csv, txt or xlsx)", ErrUnsupportedFormat, format)
	}
}

// Submit books the attendees of session id.
func (s *Service) Submit(ctx context.Context, id string) (SubmissionOutcome, Snapshot, error) {
	w, err := s.Session(id)
	if err != nil {
		return SubmissionOutcome{}, Snapshot{}, err
	}

	outcome, err := w.Submit(withSessionID(ctx, id))
	snap := w.Snapshot()
	snap.SessionID = id
	return outcome, snap, err
}

// Sweep removes sessions idle for longer than the TTL, skipping any with a
// booking in flight. It returns the number removed.
func (s *Service) Sweep(now time.Time) int {
	if s.cfg.SessionTTL <= 0 {
		return 0
	}

	cutoff := now.Add(-s.cfg.SessionTTL)

	s.mu.Lock()
	removed := 0
	for id, w := range s.sessions {
		if w.retire(cutoff) == nil {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		s.metrics.SetActiveSessions(n)
	}
	return removed
}
