// Package booking talks to the remote ticketing API's bulk-booking endpoint.
package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of an error response is read for normalization.
const maxErrorBody = 1 << 20

// Attendee is one entry of a bulk-booking request.
type Attendee struct {
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	Email        string `json:"email"`
	CategoryName string `json:"category_name"`
}

// Request is the body sent to the bulk-booking endpoint.
type Request struct {
	EventID   string     `json:"event_id"`
	Attendees []Attendee `json:"attendees"`
}

// Response is the endpoint's success body.
type Response struct {
	TicketCount     int `json:"ticket_count"`
	UniqueAttendees int `json:"unique_attendees"`
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Path    string
	Timeout time.Duration
	// Token is sent when the request context carries no organizer credential.
	Token string
}

// Client performs bulk-booking calls over HTTP. It never retries.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewClient builds a client for cfg. A nil httpClient gets one with
// cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		token:    cfg.Token,
		client:   httpClient,
	}
}

// Endpoint returns the full URL bookings are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// BulkBook posts req once. A non-2xx answer is returned as *APIError with
// its payload normalized to a display message.
func (c *Client) BulkBook(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode booking request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build booking request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if auth := c.authorization(ctx); auth != "" {
		httpReq.Header.Set("Authorization", auth)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("booking request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			// Whatever arrived is still normalized; a cut-off body usually
			// falls back to the default message.
			slog.DebugContext(ctx, "read booking error body",
				"status", resp.StatusCode,
				"bytes_read", len(raw),
				"error", err)
		}
		return Response{}, &APIError{
			Status:  resp.StatusCode,
			Message: NormalizeErrorPayload(raw),
			Body:    raw,
		}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode booking response: %w", err)
	}
	return out, nil
}

// authorization prefers the organizer's credential from ctx over the
// configured service token.
func (c *Client) authorization(ctx context.Context) string {
	if auth := AuthorizationFromContext(ctx); auth != "" {
		return auth
	}
	if c.token != "" {
		return "Bearer " + c.token
	}
	return ""
}

type ctxKey struct{}

// WithAuthorization stores the organizer's Authorization header value so
// the booking call is made on their behalf.
func WithAuthorization(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, ctxKey{}, value)
}

// AuthorizationFromContext returns the value stored by WithAuthorization.
func AuthorizationFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}
