package errors

import "errors"

// This package defines the sentinel errors shared across the client. Using
// sentinel errors lets the gateway categorize HTTP outcomes without coupling
// the synchronization controller to status codes: callers branch with
// `errors.Is()` and never inspect the transport.

var (
	// ErrNetwork signifies that no response was received at all (DNS
	// failure, refused connection, timeout). The action is retryable by the
	// user re-issuing it; the client never retries on its own.
	ErrNetwork = errors.New("network unreachable")

	// ErrInvalidSession signifies that the server no longer recognizes a
	// previously stored session or conversation identifier. The controller
	// responds with a single recovery pass (discard the stored identifier,
	// provision a fresh session); a second consecutive occurrence degrades
	// the client instead of looping.
	ErrInvalidSession = errors.New("session is not recognized by the server")

	// ErrRejected signifies that the server understood the request and
	// refused it, with a human-readable reason attached by the gateway.
	ErrRejected = errors.New("request rejected")

	// ErrServer signifies a 5xx or otherwise unexpected server response.
	// The operation is abandoned and surfaced to the user.
	ErrServer = errors.New("server error")

	// ErrDegraded is returned for user actions attempted after the client
	// entered the degraded state. Input affordances are already disabled at
	// this point; the error exists for callers that bypass the front end.
	ErrDegraded = errors.New("client is degraded")
)
