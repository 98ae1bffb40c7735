package api

import (
	"errors"
	"fmt"
)

// Kind classifies an outbound call failure. The gateway is the only place
// transport errors are classified; everything above it deals in these
// kinds plus a free-text detail.
type Kind int

const (
	// KindUnauthenticated: a call requiring auth was attempted with no
	// stored token. No request is issued.
	KindUnauthenticated Kind = iota
	// KindUnreachable: connection-level failure before a response.
	KindUnreachable
	// KindTimeout: the fixed request bound was exceeded.
	KindTimeout
	// KindServerError: a non-2xx response with a parseable error body.
	KindServerError
	// KindMalformedResponse: a 2xx response whose body did not decode.
	KindMalformedResponse
	// KindTokenRejected: a 401/403 response. The stored credential is
	// cleared before this error propagates.
	KindTokenRejected
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindServerError:
		return "server_error"
	case KindMalformedResponse:
		return "malformed_response"
	case KindTokenRejected:
		return "token_rejected"
	default:
		return "unknown"
	}
}

// Error is the typed failure the gateway reports for every operation.
type Error struct {
	Kind   Kind
	Detail string // human-readable detail, server-provided when available
	Status int    // HTTP status code, when a response was received
	Err    error  // underlying transport error, when any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an error produced by the gateway, or
// (0, false) for foreign errors.
func KindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}
