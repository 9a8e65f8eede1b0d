// Package apierr defines the failure taxonomy shared by the blog API client,
// the feed controller and the account service.
//
// Every failure is an *Error carrying a Kind. Callers match kinds with
// errors.Is against the sentinels below instead of inspecting HTTP status
// codes or error strings.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindNetwork is a transport failure with no HTTP status.
	KindNetwork Kind = iota
	// KindUnauthorized maps to HTTP 401 or a missing session token.
	KindUnauthorized
	// KindUnprocessable maps to HTTP 422 and carries field-level messages.
	KindUnprocessable
	// KindServer covers every other HTTP failure and malformed responses.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnprocessable:
		return "unprocessable"
	case KindServer:
		return "server error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is matching.
var (
	ErrNetwork       = errors.New("network error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnprocessable = errors.New("unprocessable")
	ErrServer        = errors.New("server error")
)

// Error is a classified API failure.
type Error struct {
	Kind    Kind
	Op      string // e.g. "fetch posts"
	Status  int    // zero for network failures and local validation
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrUnprocessable:
		return e.Kind == KindUnprocessable
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// errorBody mirrors the API's error payload on 401/422.
type errorBody struct {
	Message *string             `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// FromResponse classifies a non-2xx response. body may be empty or non-JSON.
func FromResponse(op string, status int, body []byte) error {
	e := &Error{Op: op, Status: status}
	switch status {
	case http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case http.StatusUnprocessableEntity:
		e.Kind = KindUnprocessable
	default:
		e.Kind = KindServer
	}
	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != nil {
			e.Message = strings.TrimSpace(*parsed.Message)
		}
		if len(parsed.Errors) > 0 {
			e.Fields = parsed.Errors
		}
	}
	return e
}

// Network wraps a transport failure.
func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Malformed reports a response the client could not decode.
func Malformed(op string, status int, err error) error {
	return &Error{Kind: KindServer, Op: op, Status: status, Message: "decode response", Err: err}
}

// Unauthenticated is returned when a call needs a token and none is stored.
func Unauthenticated(op string) error {
	return &Error{Kind: KindUnauthorized, Op: op, Message: "no session token"}
}

// Invalid builds a local validation failure shaped like a 422 response.
func Invalid(op string, fields map[string][]string) error {
	return &Error{Kind: KindUnprocessable, Op: op, Message: "the given data was invalid", Fields: fields}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsUnauthorized reports whether err means the session is no longer valid.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable reports whether retrying the same call may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// Message returns the server-provided message, if any.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// FieldErrors returns the per-field validation messages, if any.
func FieldErrors(err error) map[string][]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// FieldSummary flattens field errors into "field: message" lines sorted by field.
func FieldSummary(err error) []string {
	fields := FieldErrors(err)
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		for _, msg := range fields[k] {
			out = append(out, k+": "+msg)
		}
	}
	return out
}
