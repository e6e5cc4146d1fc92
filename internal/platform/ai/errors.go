package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed AI request.
type Kind string

const (
	// KindAuth means the provider rejected the credential (invalid, revoked or leaked key).
	KindAuth Kind = "auth"
	// KindTransport covers network and provider-side failures.
	KindTransport Kind = "transport"
	// KindParse means the provider answered with something that is not the requested JSON.
	KindParse Kind = "parse"
	// KindValidation means the caller supplied unusable input.
	KindValidation Kind = "validation"
)

// authMarkers are substrings of provider error messages that indicate a
// credential problem rather than a generic transport failure.
var authMarkers = []string{
	"401",
	"403",
	"api key",
	"api_key",
	"leaked",
	"unauthorized",
	"unauthenticated",
	"permission denied",
	"permission_denied",
}

// Error is the failure half of a Result. Message carries the raw provider
// message so it can be shown to the clinician unchanged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Guidance returns an actionable hint for the operator, or "" when there is none.
func (e *Error) Guidance() string {
	switch e.Kind {
	case KindAuth:
		return "the AI provider rejected the API key; replace AI_API_KEY with a valid key"
	case KindParse:
		return "the AI provider returned malformed JSON; try the request again"
	default:
		return ""
	}
}

// NewValidationError builds a validation failure.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Classify converts an arbitrary provider error into an *Error. Errors that are
// already classified are returned unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr
	}
	msg := err.Error()
	return &Error{Kind: kindOf(msg), Message: msg, Err: err}
}

// AsError is Classify under the name callers use when they only need the
// typed view of an error returned by the Gateway.
func AsError(err error) *Error {
	return Classify(err)
}

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool {
	e := Classify(err)
	return e != nil && e.Kind == KindAuth
}

func kindOf(msg string) Kind {
	lower := strings.ToLower(msg)
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return KindAuth
		}
	}
	return KindTransport
}
