package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is returned when input fails a local precondition check
// (bad email, short password, unparsable numeric field, empty passenger
// confirmation). Work that fails validation never reaches the network.
var ErrValidation = errors.New("validation error")

// ErrNotFound is returned when the backend reports that the requested
// trip or leg does not exist.
var ErrNotFound = errors.New("not found")

// ErrBusy is returned when a leg-mutating action is requested while another
// one is still in flight. At most one depart/arrive/submit runs at a time.
var ErrBusy = errors.New("another action is in progress")

// ErrNotReady is returned for transitions attempted out of order, e.g.
// advancing past a leg that is not yet completed or submitting a trip
// with unfinished legs. Retrying in the correct state succeeds.
var ErrNotReady = errors.New("not ready")

// ErrLegCompleted is returned when a mutating action targets a leg that
// has already reached its terminal Completed state.
var ErrLegCompleted = errors.New("leg already completed")

// ErrTripClosed is returned for leg actions on a trip that has been
// submitted. The backend is the authority; this is a client-side fast fail.
var ErrTripClosed = errors.New("trip already submitted")

// TransportKind distinguishes the ways a request can fail before an HTTP
// response is received. Each kind is surfaced to the caller as retryable;
// nothing in this module retries on its own.
type TransportKind string

const (
	ConnectFailed TransportKind = "connect_failed"
	UnknownHost   TransportKind = "unknown_host"
	Timeout       TransportKind = "timeout"
)

// TransportError wraps a network-level failure with a normalized kind so
// callers do not have to dissect *url.Error chains themselves.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthKind identifies the backend's reason for refusing authentication.
type AuthKind string

const (
	InvalidCredentials AuthKind = "invalid_credentials"
	PendingApproval    AuthKind = "pending_approval"
	Declined           AuthKind = "declined"
	InactiveAccount    AuthKind = "inactive_account"
	NotDriver          AuthKind = "not_driver"
)

// AuthError is returned when login or profile routing determines the account
// cannot use the app. Profile is populated for the variants where the UI
// shows account details (pending approval, declined).
type AuthError struct {
	Kind    AuthKind
	Profile *DriverProfile
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s", e.Kind)
}

// ServerError is the catch-all for unrecognized non-2xx responses. Status
// and the (sanitized) body are kept verbatim for diagnostics.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}
