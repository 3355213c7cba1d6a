package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/JonMunkholm/bulkbook/internal/history"
	"github.com/go-chi/chi/v5"
)

// ImportResponse reports an import and the resulting session.
type ImportResponse struct {
	SessionResponse
	Imported  int `json:"imported"`
	Invalid   int `json:"invalid"`
	Discarded int `json:"discarded"`
}

// SubmitResponse reports a successful booking.
type SubmitResponse struct {
	SessionResponse
	TicketCount     int `json:"ticket_count"`
	UniqueAttendees int `json:"unique_attendees"`
}

// handleImport replaces the session's attendees with the contents of the
// multipart "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	// Leave room for multipart framing; the service enforces the exact cap.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+maxJSONBody)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, core.ErrFileTooLarge)
			return
		}
		respondError(w, r, badRequest("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, badRequest("no file provided"))
		return
	}
	defer file.Close()

	result, snap, err := s.service.Import(r.Context(), sessionID(r), header.Filename, file)
	if s.metrics != nil {
		s.metrics.UpdateImportLimiter(s.service.Limiter().Status())
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, ImportResponse{
		SessionResponse: SessionResponse{Snapshot: snap, Message: result.Summary()},
		Imported:        len(result.Records),
		Invalid:         result.Invalid,
		Discarded:       result.Discarded,
	})
}

// handleExport downloads the session's current attendees.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := formatParam(r)
	data, err := s.service.Export(sessionID(r), format)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeFile(w, format, "attendees."+string(format), data)
}

// handleSubmit books every attendee in the session with one remote call.
// The booking call runs to completion even if the client disconnects.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	outcome, snap, err := s.service.Submit(context.WithoutCancel(r.Context()), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, SubmitResponse{
		SessionResponse: SessionResponse{Snapshot: snap, Message: outcome.Summary()},
		TicketCount:     outcome.TicketCount,
		UniqueAttendees: outcome.UniqueAttendees,
	})
}

// HistoryResponse is one page of submission history.
type HistoryResponse struct {
	Submissions []core.SubmissionRecord `json:"submissions"`
	Limit       int                     `json:"limit"`
	Offset      int                     `json:"offset"`
}

// handleListHistory lists recorded submissions, newest first.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	opts := history.ListOptions{
		EventID: r.URL.Query().Get("event_id"),
		Status:  core.SubmissionStatus(r.URL.Query().Get("status")),
		Limit:   parseIntParam(r, "limit", history.DefaultListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	}

	records, err := s.history.List(r.Context(), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.SubmissionRecord{}
	}
	writeJSON(w, HistoryResponse{Submissions: records, Limit: opts.Limit, Offset: opts.Offset})
}

// handleGetHistory returns one recorded submission.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, rec)
}
