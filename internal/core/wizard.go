package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WizardState is a step of the bulk-booking wizard.
type WizardState string

const (
	StateSelectingCount WizardState = "selecting_count"
	StateFillingForms   WizardState = "filling_forms"
	StateSubmitting     WizardState = "submitting"
	StateSucceeded      WizardState = "succeeded"
)

// Wizard owns one attendee set and moves it through the booking steps. All
// methods are safe for concurrent use; mutations are refused with
// ErrSubmissionInProgress while a booking call is in flight.
type Wizard struct {
	mu          sync.Mutex
	event       Event
	state       WizardState
	set         *AttendeeSet
	coordinator *Coordinator
	outcome     *SubmissionOutcome
	onSuccess   func(SubmissionOutcome)
	lastActive  time.Time
	retired     bool
}

// NewWizard starts a wizard for event in the selecting_count step.
func NewWizard(event Event, set *AttendeeSet, coordinator *Coordinator) *Wizard {
	return &Wizard{
		event:       event,
		state:       StateSelectingCount,
		set:         set,
		coordinator: coordinator,
		lastActive:  time.Now(),
	}
}

// OnSuccess registers fn to be called after a successful booking.
func (w *Wizard) OnSuccess(fn func(SubmissionOutcome)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSuccess = fn
}

// State returns the current step.
func (w *Wizard) State() WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Event returns the event being booked.
func (w *Wizard) Event() Event {
	return w.event
}

// LastActive returns when the wizard was last used.
func (w *Wizard) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// guard checks that the current state is one of allowed. Callers hold mu.
func (w *Wizard) guard(action string, allowed ...WizardState) error {
	if w.retired {
		return ErrSessionNotFound
	}
	w.lastActive = time.Now()
	if w.state == StateSubmitting {
		return ErrSubmissionInProgress
	}
	for _, s := range allowed {
		if w.state == s {
			return nil
		}
	}
	return fmt.Errorf("%s in %s: %w", action, w.state, ErrInvalidTransition)
}

// SetCount resizes the attendee set to count records.
func (w *Wizard) SetCount(count int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("set count", StateSelectingCount, StateFillingForms); err != nil {
		return err
	}
	return w.set.Resize(count)
}

// Next moves from selecting_count to filling_forms.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("next", StateSelectingCount); err != nil {
		return err
	}
	w.state = StateFillingForms
	return nil
}

// Back moves from filling_forms to selecting_count. Records are kept.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("back", StateFillingForms); err != nil {
		return err
	}
	w.state = StateSelectingCount
	return nil
}

// CanImport reports whether an import would currently be accepted.
func (w *Wizard) CanImport() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.guard("import", StateSelectingCount, StateFillingForms)
}

// ApplyImport replaces the attendee set with parsed records. The target
// count becomes the number of records and the step is unchanged. On error
// nothing is modified.
func (w *Wizard) ApplyImport(result ImportResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("import", StateSelectingCount, StateFillingForms); err != nil {
		return err
	}
	if err := w.set.ReplaceAll(result.Records); err != nil {
		return &ImportError{Format: result.Format, Err: err}
	}
	return nil
}

// UpdateField edits one field of the record at index (0-based).
func (w *Wizard) UpdateField(index int, field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("update field", StateFillingForms); err != nil {
		return err
	}
	return w.set.UpdateField(index, field, value)
}

// CopyCategory copies the category of the record at source (0-based) to all
// other records.
func (w *Wizard) CopyCategory(source int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("copy category", StateFillingForms); err != nil {
		return err
	}
	return w.set.CopyCategoryToAll(source)
}

// Submit books the current attendee set. An incomplete set is refused
// without leaving filling_forms. Otherwise the wizard is in submitting for
// the duration of the call and returns to filling_forms with the set intact
// on failure. On success the set is reset, the wizard is in succeeded and
// the OnSuccess callback runs.
func (w *Wizard) Submit(ctx context.Context) (SubmissionOutcome, error) {
	w.mu.Lock()
	if err := w.guard("submit", StateFillingForms); err != nil {
		w.mu.Unlock()
		return SubmissionOutcome{}, err
	}
	snapshot := w.set.Clone()
	if !snapshot.AllValid() {
		w.mu.Unlock()
		return w.coordinator.Submit(ctx, w.event.ID, snapshot)
	}
	w.state = StateSubmitting
	w.mu.Unlock()

	outcome, err := w.coordinator.Submit(ctx, w.event.ID, snapshot)

	w.mu.Lock()
	w.lastActive = time.Now()
	if err != nil {
		w.state = StateFillingForms
		w.mu.Unlock()
		return SubmissionOutcome{}, err
	}
	w.set.Reset()
	w.state = StateSucceeded
	w.outcome = &outcome
	notify := w.onSuccess
	w.mu.Unlock()

	if notify != nil {
		notify(outcome)
	}
	return outcome, nil
}

// Close abandons the current booking and starts over in selecting_count
// with the initial number of empty records.
func (w *Wizard) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("close", StateSelectingCount, StateFillingForms, StateSucceeded); err != nil {
		return err
	}
	w.set.Reset()
	w.state = StateSelectingCount
	w.outcome = nil
	return nil
}

// retire makes the wizard refuse every further action with
// ErrSessionNotFound. A wizard with a booking in flight is not retired. When
// idleBefore is non-zero, a wizard used at or after idleBefore is kept and
// errStillActive returned.
func (w *Wizard) retire(idleBefore time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateSubmitting {
		return ErrSubmissionInProgress
	}
	if !idleBefore.IsZero() && !w.lastActive.Before(idleBefore) {
		return errStillActive
	}
	w.retired = true
	return nil
}

// Records returns a copy of the current attendee records.
func (w *Wizard) Records() []AttendeeRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.set.Records()
}

// Snapshot is a read-only view of a wizard for clients.
type Snapshot struct {
	SessionID         string             `json:"session_id,omitempty"`
	EventID           string             `json:"event_id"`
	State             WizardState        `json:"state"`
	TargetCount       int                `json:"target_count"`
	ValidCount        int                `json:"valid_count"`
	CompletionPercent int                `json:"completion_percent"`
	InvalidPositions  []int              `json:"invalid_positions"`
	DefaultCategory   string             `json:"default_category"`
	Categories        []CategoryOption   `json:"categories"`
	Attendees         []AttendeeRecord   `json:"attendees"`
	Outcome           *SubmissionOutcome `json:"outcome,omitempty"`
}

// Snapshot returns the current state with derived aggregates.
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	invalid := w.set.InvalidPositions()
	if invalid == nil {
		invalid = []int{}
	}
	return Snapshot{
		EventID:           w.event.ID,
		State:             w.state,
		TargetCount:       w.set.Len(),
		ValidCount:        w.set.ValidCount(),
		CompletionPercent: w.set.CompletionPercent(),
		InvalidPositions:  invalid,
		DefaultCategory:   w.set.DefaultCategory(),
		Categories:        w.event.CategoryOptions(),
		Attendees:         w.set.Records(),
		Outcome:           w.outcome,
	}
}
