package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/go-chi/chi/v5"
)

// CreateSessionRequest starts a bulk booking for one event.
type CreateSessionRequest struct {
	EventID     string                `json:"event_id"`
	PricingType string                `json:"pricing_type"`
	Categories  []core.TicketCategory `json:"categories"`
}

// SetCountRequest chooses how many tickets to book.
type SetCountRequest struct {
	Count int `json:"count"`
}

// UpdateAttendeeRequest changes one field of one attendee.
type UpdateAttendeeRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// CopyCategoryRequest names the attendee whose category is copied (1-based).
type CopyCategoryRequest struct {
	Source int `json:"source"`
}

// SessionResponse wraps a snapshot with an optional status message.
type SessionResponse struct {
	core.Snapshot
	Message string `json:"message,omitempty"`
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

// handleCreateSession opens a wizard for the given event.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		respondError(w, r, badRequest("event_id is required"))
		return
	}

	_, snap := s.service.CreateSession(core.Event{
		ID:          req.EventID,
		PricingType: req.PricingType,
		Categories:  req.Categories,
	})
	writeJSONStatus(w, http.StatusCreated, snap)
}

// handleGetSession returns the session snapshot.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Snapshot(sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// handleDeleteSession discards a session.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(sessionID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetCount resizes the attendee set.
func (s *Server) handleSetCount(w http.ResponseWriter, r *http.Request) {
	var req SetCountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	s.respondSnapshot(w, r, "")(s.service.SetCount(sessionID(r), req.Count))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r, "")(s.service.Next(sessionID(r)))
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r, "")(s.service.Back(sessionID(r)))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r, "")(s.service.Close(sessionID(r)))
}

// handleUpdateAttendee edits one field. The path index is 1-based.
func (s *Server) handleUpdateAttendee(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 1 {
		respondError(w, r, badRequest("attendee index must be a positive integer"))
		return
	}

	var req UpdateAttendeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	s.respondSnapshot(w, r, "")(s.service.UpdateField(sessionID(r), index-1, req.Field, req.Value))
}

// handleCopyCategory copies one attendee's category to all others. The
// source defaults to the first attendee.
func (s *Server) handleCopyCategory(w http.ResponseWriter, r *http.Request) {
	req := CopyCategoryRequest{Source: 1}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Source < 1 {
		respondError(w, r, badRequest("source must be a positive integer"))
		return
	}
	s.respondSnapshot(w, r, "Category copied to all attendees")(s.service.CopyCategory(sessionID(r), req.Source-1))
}

// respondSnapshot returns a writer for the (Snapshot, error) result of a
// session operation.
func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request, message string) func(core.Snapshot, error) {
	return func(snap core.Snapshot, err error) {
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, SessionResponse{Snapshot: snap, Message: message})
	}
}
