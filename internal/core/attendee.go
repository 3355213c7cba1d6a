package core

import (
	"fmt"
	"strings"
)

// Wire names of the editable attendee fields.
const (
	FieldFirstName = "firstname"
	FieldLastName  = "lastname"
	FieldEmail     = "email"
	FieldCategory  = "category_name"
)

// fieldAliases maps accepted spellings (lowercased) to wire names.
var fieldAliases = map[string]string{
	"firstname":     FieldFirstName,
	"first_name":    FieldFirstName,
	"first name":    FieldFirstName,
	"lastname":      FieldLastName,
	"last_name":     FieldLastName,
	"last name":     FieldLastName,
	"email":         FieldEmail,
	"category_name": FieldCategory,
	"categoryname":  FieldCategory,
	"category":      FieldCategory,
}

// AttendeeRecord is one candidate person to be issued a ticket.
type AttendeeRecord struct {
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	Email        string `json:"email"`
	CategoryName string `json:"category_name"`
	Valid        bool   `json:"is_valid"`
}

// NewEmptyRecord returns a blank, invalid record in the given category.
func NewEmptyRecord(category string) AttendeeRecord {
	return AttendeeRecord{CategoryName: category}
}

// NewRecord builds a record and computes its validity.
func NewRecord(first, last, email, category string) AttendeeRecord {
	r := AttendeeRecord{
		FirstName:    first,
		LastName:     last,
		Email:        email,
		CategoryName: category,
	}
	r.Revalidate()
	return r
}

// IsValidAttendee reports whether the personal fields form a bookable attendee.
func IsValidAttendee(first, last, email string) bool {
	email = strings.TrimSpace(email)
	return strings.TrimSpace(first) != "" &&
		strings.TrimSpace(last) != "" &&
		email != "" &&
		strings.Contains(email, "@")
}

// Revalidate recomputes Valid from the current field values.
func (r *AttendeeRecord) Revalidate() {
	r.Valid = IsValidAttendee(r.FirstName, r.LastName, r.Email)
}

// Set assigns one field by wire name and revalidates the record.
func (r *AttendeeRecord) Set(field, value string) error {
	name, ok := fieldAliases[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	switch name {
	case FieldFirstName:
		r.FirstName = value
	case FieldLastName:
		r.LastName = value
	case FieldEmail:
		r.Email = value
	case FieldCategory:
		r.CategoryName = value
	}

	r.Revalidate()
	return nil
}

// HasName reports whether either name field is filled in.
func (r AttendeeRecord) HasName() bool {
	return r.FirstName != "" || r.LastName != ""
}

// DisplayName returns "First Last" when both names are set, otherwise
// "Attendee #n" for the given 1-based position.
func (r AttendeeRecord) DisplayName(position int) string {
	if r.FirstName != "" && r.LastName != "" {
		return r.FirstName + " " + r.LastName
	}
	return fmt.Sprintf("Attendee #%d", position)
}
