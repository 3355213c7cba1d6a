// Package core provides the bulk attendee booking pipeline.
//
// The package contains all domain logic independent of any transport. It is
// used by the HTTP server, the bulkbook CLI and tests without modification.
//
// # Architecture
//
// Components, leaves first:
//
//   - Row Parser: [ParseFile], [ParseDelimited] and [ParseSpreadsheet] turn an
//     uploaded .csv, .txt, .xlsx or .xls file into [AttendeeRecord] values.
//   - Record Validator: [AttendeeSet.UpdateField] and
//     [AttendeeSet.CopyCategoryToAll] keep per-record validity current.
//   - Attendee Set Model: [AttendeeSet] is the ordered, resizable collection
//     with derived valid count and completion percentage.
//   - Submission Coordinator: [Coordinator] refuses incomplete sets locally
//     and otherwise performs exactly one remote booking call.
//
// A [Wizard] ties the components together behind the state machine
//
//	selecting_count <-> filling_forms -> submitting -> succeeded
//	                                          \-> filling_forms (on failure)
//
// and the [Service] hosts many wizards, one per organizer session.
//
// # Validity
//
// A record is valid when first and last name are non-blank and the email is
// non-blank and contains "@". Validity is recomputed on every mutation of
// that record only; aggregates are derived on read.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - IMP001-IMP004: Import errors (no rows, parse failure, format, size)
//   - VAL001-VAL005: Validation errors (incomplete forms, unknown field, bounds, copy)
//   - SES001-SES003: Session errors (not found, busy, wrong step)
//   - BKG001-BKG002: Booking errors (rejected by the API, unreachable)
//   - UPL001-UPL003: Limiter and request lifecycle errors
//
// Errors that carry their own user message ([ImportError], [IncompleteError],
// [SubmissionError]) bypass pattern matching.
package core
