package core

import (
	"fmt"
	"math"
)

// AttendeeSet is the ordered collection of records being prepared for one
// booking. Positions shown to organizers are 1-based; indexes into the set
// are 0-based. AttendeeSet is not safe for concurrent use; a Wizard guards it.
type AttendeeSet struct {
	records         []AttendeeRecord
	initialCount    int
	maxCount        int
	defaultCategory string
}

// NewAttendeeSet returns a set of initialCount empty records. A maxCount of
// zero or less removes the upper bound on Resize.
func NewAttendeeSet(initialCount, maxCount int, defaultCategory string) *AttendeeSet {
	if initialCount < 0 {
		initialCount = 0
	}
	s := &AttendeeSet{
		initialCount:    initialCount,
		maxCount:        maxCount,
		defaultCategory: defaultCategory,
	}
	s.records = s.emptyRecords(initialCount)
	return s
}

func (s *AttendeeSet) emptyRecords(n int) []AttendeeRecord {
	records := make([]AttendeeRecord, n)
	for i := range records {
		records[i] = NewEmptyRecord(s.defaultCategory)
	}
	return records
}

// DefaultCategory returns the category given to new and blank records.
func (s *AttendeeSet) DefaultCategory() string {
	return s.defaultCategory
}

// SetDefaultCategory changes the category used for records created later.
func (s *AttendeeSet) SetDefaultCategory(category string) {
	s.defaultCategory = category
}

// Len returns the number of records.
func (s *AttendeeSet) Len() int {
	return len(s.records)
}

// Resize appends empty records or truncates from the tail until the set
// holds count records. Records at retained positions are not modified.
func (s *AttendeeSet) Resize(count int) error {
	if count < 1 || (s.maxCount > 0 && count > s.maxCount) {
		return fmt.Errorf("%w: %d (allowed 1-%d)", ErrCountOutOfRange, count, s.maxCount)
	}
	if count <= len(s.records) {
		s.records = s.records[:count:count]
		return nil
	}
	s.records = append(s.records, s.emptyRecords(count-len(s.records))...)
	return nil
}

// ReplaceAll discards the current records and adopts the given ones in
// order, recomputing the validity of each. Imports are not bounded by the
// resize maximum. An empty slice leaves the set unchanged.
func (s *AttendeeSet) ReplaceAll(records []AttendeeRecord) error {
	if len(records) == 0 {
		return ErrNoValidRows
	}

	replaced := make([]AttendeeRecord, len(records))
	for i, r := range records {
		r.Revalidate()
		replaced[i] = r
	}
	s.records = replaced
	return nil
}

// Reset returns the set to its initial count of empty records.
func (s *AttendeeSet) Reset() {
	s.records = s.emptyRecords(s.initialCount)
}

// UpdateField sets one field of the record at index and recomputes its
// validity. Other records are untouched.
func (s *AttendeeSet) UpdateField(index int, field, value string) error {
	if index < 0 || index >= len(s.records) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index+1)
	}
	return s.records[index].Set(field, value)
}

// CopyCategoryToAll copies the category of the record at source to every
// other record. The source must have a first or last name.
func (s *AttendeeSet) CopyCategoryToAll(source int) error {
	if source < 0 || source >= len(s.records) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, source+1)
	}
	src := s.records[source]
	if !src.HasName() {
		return ErrSourceIncomplete
	}

	for i := range s.records {
		if i == source {
			continue
		}
		s.records[i].CategoryName = src.CategoryName
		s.records[i].Revalidate()
	}
	return nil
}

// At returns a copy of the record at index.
func (s *AttendeeSet) At(index int) (AttendeeRecord, error) {
	if index < 0 || index >= len(s.records) {
		return AttendeeRecord{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index+1)
	}
	return s.records[index], nil
}

// Records returns a copy of the records in order.
func (s *AttendeeSet) Records() []AttendeeRecord {
	out := make([]AttendeeRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Clone returns an independent copy of the set.
func (s *AttendeeSet) Clone() *AttendeeSet {
	return &AttendeeSet{
		records:         s.Records(),
		initialCount:    s.initialCount,
		maxCount:        s.maxCount,
		defaultCategory: s.defaultCategory,
	}
}

// ValidCount returns the number of valid records.
func (s *AttendeeSet) ValidCount() int {
	n := 0
	for _, r := range s.records {
		if r.Valid {
			n++
		}
	}
	return n
}

// CompletionPercent returns round(100 * valid / total), or 0 for an empty set.
func (s *AttendeeSet) CompletionPercent() int {
	if len(s.records) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.ValidCount()) / float64(len(s.records))))
}

// InvalidPositions returns the 1-based positions of invalid records in
// ascending order.
func (s *AttendeeSet) InvalidPositions() []int {
	var positions []int
	for i, r := range s.records {
		if !r.Valid {
			positions = append(positions, i+1)
		}
	}
	return positions
}

// AllValid reports whether the set is non-empty and every record is valid.
func (s *AttendeeSet) AllValid() bool {
	return len(s.records) > 0 && s.ValidCount() == len(s.records)
}
