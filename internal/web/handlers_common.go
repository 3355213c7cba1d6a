package web

// This file contains shared utilities and the endpoints that need no session.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/bulkbook/internal/core"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

var contentTypes = map[core.FileFormat]string{
	core.FormatCSV:  "text/csv; charset=utf-8",
	core.FormatText: "text/plain; charset=utf-8",
	core.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// writeJSON encodes v as JSON and writes it with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// formatParam reads ?format=, defaulting to csv.
func formatParam(r *http.Request) core.FileFormat {
	f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if f == "" {
		return core.FormatCSV
	}
	return core.FileFormat(strings.TrimPrefix(f, "."))
}

// writeFile sends data as a download named name.
func writeFile(w http.ResponseWriter, format core.FileFormat, name string, data []byte) {
	ct, ok := contentTypes[format]
	if !ok {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Warn("file write error", "file", name, "error", err)
	}
}

// HealthResponse reports liveness and import capacity.
type HealthResponse struct {
	Status   string             `json:"status"`
	Sessions int                `json:"sessions"`
	Imports  core.LimiterStatus `json:"imports"`
}

// handleHealth returns service liveness and the state of the import limiter.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.service.Limiter().Status()
	if s.metrics != nil {
		s.metrics.UpdateImportLimiter(status)
	}
	writeJSON(w, HealthResponse{
		Status:   "ok",
		Sessions: s.service.ActiveSessions(),
		Imports:  status,
	})
}

// QuantityOptionsResponse lists the preset ticket counts.
type QuantityOptionsResponse struct {
	Options []int `json:"options"`
	Default int   `json:"default"`
	Max     int   `json:"max"`
}

// handleQuantityOptions returns the presets allowed by the configured maximum.
func (s *Server) handleQuantityOptions(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Session.MaxCount
	opts := make([]int, 0, len(core.QuantityOptions))
	for _, n := range core.QuantityOptions {
		if limit <= 0 || n <= limit {
			opts = append(opts, n)
		}
	}
	writeJSON(w, QuantityOptionsResponse{
		Options: opts,
		Default: s.cfg.Session.DefaultCount,
		Max:     limit,
	})
}

// handleTemplate serves an attendee file template with one sample row.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	format := formatParam(r)
	data, err := core.Template(format)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeFile(w, format, "attendees_template."+string(format), data)
}
