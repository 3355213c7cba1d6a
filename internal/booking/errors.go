package booking

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// DefaultErrorMessage is shown when an error payload yields nothing usable.
const DefaultErrorMessage = "Failed to book tickets"

// APIError is a non-2xx answer from the booking endpoint.
type APIError struct {
	Status  int
	Message string // normalized, safe to display
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("booking api returned %d: %s", e.Status, e.Message)
}

// PayloadKind names the error payload shapes the booking API is known to
// produce.
type PayloadKind int

const (
	PayloadUnknown      PayloadKind = iota
	PayloadFlat                     // {"error": "..."} or {"detail": "..."}
	PayloadFieldStrings             // {"email": ["This field is required."]}
	PayloadFieldObjects             // {"attendees": [{"email": ["Invalid email."]}]}
	PayloadFieldString              // {"event_id": "Event not found."}
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadFlat:
		return "flat"
	case PayloadFieldStrings:
		return "field_strings"
	case PayloadFieldObjects:
		return "field_objects"
	case PayloadFieldString:
		return "field_string"
	default:
		return "unknown"
	}
}

// ErrorPayload is a classified error body.
type ErrorPayload struct {
	Kind    PayloadKind
	Field   string // key the message came from; empty for PayloadUnknown
	Message string
}

// extractor recognizes one payload shape.
type extractor func(body gjson.Result) (ErrorPayload, bool)

// extractors are tried in order; the first match wins.
var extractors = []extractor{
	flatField("error"),
	flatField("detail"),
	firstFieldStringArray,
	firstFieldObjectArray,
	firstFieldString,
}

// ClassifyPayload determines the shape of an error body and extracts its
// message. Bodies that are not JSON objects, or whose shape is not
// recognized, classify as PayloadUnknown with DefaultErrorMessage.
func ClassifyPayload(body []byte) ErrorPayload {
	unknown := ErrorPayload{Kind: PayloadUnknown, Message: DefaultErrorMessage}
	if !gjson.ValidBytes(body) {
		return unknown
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return unknown
	}

	for _, extract := range extractors {
		if p, ok := extract(root); ok && p.Message != "" {
			return p
		}
	}
	return unknown
}

// NormalizeErrorPayload reduces an error body to one display message.
func NormalizeErrorPayload(body []byte) string {
	return ClassifyPayload(body).Message
}

// flatField matches a top-level string under key.
func flatField(key string) extractor {
	return func(body gjson.Result) (ErrorPayload, bool) {
		v := body.Get(key)
		if v.Type != gjson.String || v.Str == "" {
			return ErrorPayload{}, false
		}
		return ErrorPayload{Kind: PayloadFlat, Field: key, Message: v.Str}, true
	}
}

// firstField returns the first key of body in document order.
func firstField(body gjson.Result) (string, gjson.Result, bool) {
	var (
		key   string
		value gjson.Result
		found bool
	)
	body.ForEach(func(k, v gjson.Result) bool {
		key, value, found = k.String(), v, true
		return false
	})
	return key, value, found
}

// firstFieldStringArray matches {"field": ["message", ...]}.
func firstFieldStringArray(body gjson.Result) (ErrorPayload, bool) {
	key, value, ok := firstField(body)
	if !ok || !value.IsArray() {
		return ErrorPayload{}, false
	}
	first := value.Get("0")
	if first.Type != gjson.String {
		return ErrorPayload{}, false
	}
	return ErrorPayload{Kind: PayloadFieldStrings, Field: key, Message: first.Str}, true
}

// firstFieldObjectArray matches {"field": [{"nested": ["message"]}]} and
// {"field": [{"nested": "message"}]}.
func firstFieldObjectArray(body gjson.Result) (ErrorPayload, bool) {
	key, value, ok := firstField(body)
	if !ok || !value.IsArray() {
		return ErrorPayload{}, false
	}
	first := value.Get("0")
	if !first.IsObject() {
		return ErrorPayload{}, false
	}

	nestedKey, nested, ok := firstField(first)
	if !ok {
		return ErrorPayload{}, false
	}
	if nested.IsArray() {
		nested = nested.Get("0")
	}
	msg := nested.String()
	if !nested.Exists() || nested.Type == gjson.Null {
		msg = ""
	}
	return ErrorPayload{Kind: PayloadFieldObjects, Field: key + "." + nestedKey, Message: msg}, true
}

// firstFieldString matches {"field": "message"}.
func firstFieldString(body gjson.Result) (ErrorPayload, bool) {
	key, value, ok := firstField(body)
	if !ok || value.Type != gjson.String {
		return ErrorPayload{}, false
	}
	return ErrorPayload{Kind: PayloadFieldString, Field: key, Message: value.Str}, true
}
