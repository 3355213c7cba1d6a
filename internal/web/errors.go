package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and the request ID, then
// returned to the client as a core.UserMessage with a stable code. The
// HTTP status is derived from the error itself.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/JonMunkholm/bulkbook/internal/history"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	Action           string `json:"action,omitempty"`
	Code             string `json:"code"`
	InvalidPositions []int  `json:"invalid_positions,omitempty"`
}

var rateLimitMessage = core.MapError(errors.New("rate limit exceeded"))

// badRequest is a client error whose text is safe to show verbatim.
type badRequest string

func (e badRequest) Error() string { return string(e) }

func (e badRequest) UserMessage() core.UserMessage {
	return core.UserMessage{
		Message: string(e),
		Action:  "Check the request and try again",
		Code:    "REQ001",
	}
}

// respondError logs err and writes it as a JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	resp := errorResponse(userMsg)
	var incomplete *core.IncompleteError
	if errors.As(err, &incomplete) {
		resp.InvalidPositions = incomplete.Positions
	}
	writeJSONStatus(w, status, resp)
}

// respondErrorJSON writes msg without logging.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeJSONStatus(w, status, errorResponse(msg))
}

func errorResponse(msg core.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var (
		incomplete *core.IncompleteError
		submission *core.SubmissionError
		importErr  *core.ImportError
		bad        badRequest
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSubmissionInProgress), errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity
	case errors.As(err, &submission):
		return http.StatusBadGateway
	case errors.As(err, &importErr),
		errors.Is(err, core.ErrUnsupportedFormat),
		errors.Is(err, core.ErrCountOutOfRange),
		errors.Is(err, core.ErrIndexOutOfRange),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrSourceIncomplete):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
