package domain

import (
	"errors"
	"strconv"
)

// Domain errors.
var (
	// ErrRecordNotFound is returned when an export record cannot be found.
	ErrRecordNotFound = errors.New("export record not found")

	// ErrObjectNotFound is returned when a tracked object cannot be found.
	ErrObjectNotFound = errors.New("tracked object not found")

	// ErrMissingField is returned when a backend record lacks a required field.
	ErrMissingField = errors.New("required field missing")

	// ErrUnknownJobState is returned when a backend record carries a job state
	// outside the known set.
	ErrUnknownJobState = errors.New("unknown job state")

	// ErrBadTimestamp is returned when a backend timestamp does not parse.
	ErrBadTimestamp = errors.New("malformed timestamp")

	// ErrPollingHalted is returned when the refresh loop has stopped after
	// repeated fetch failures and awaits an explicit refresh.
	ErrPollingHalted = errors.New("polling halted after repeated fetch failures")

	// ErrTrackerStopped is returned when an operation is invoked on a tracker
	// that has already been torn down.
	ErrTrackerStopped = errors.New("tracker stopped")
)

// ValidationError reports a malformed export record received from the
// backend. The offending record is dropped from the enriched list; the other
// records in the same response are still processed.
type ValidationError struct {
	RecordID RecordID
	Field    string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.RecordID != "" {
		return "invalid export record " + e.RecordID.String() + ": field " + e.Field + ": " + e.Err.Error()
	}
	return "invalid export record: field " + e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(id RecordID, field string, err error) *ValidationError {
	return &ValidationError{
		RecordID: id,
		Field:    field,
		Err:      err,
	}
}

// TransportError reports a network or HTTP failure talking to the backend.
// Fetch failures are retried by the polling loop; action failures are
// surfaced to the caller.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return e.Op + ": backend returned status " + strconv.Itoa(e.StatusCode)
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, statusCode int, err error) *TransportError {
	return &TransportError{
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
	}
}

// PreconditionError reports an action invoked while its gate predicate was
// false. A presentation layer that consults the gate can never trigger it;
// reaching one is a programming-contract violation, not a user error.
type PreconditionError struct {
	RecordID RecordID
	Action   string
}

func (e *PreconditionError) Error() string {
	return "action " + e.Action + " not permitted for export record " + e.RecordID.String()
}

// NewPreconditionError creates a new PreconditionError.
func NewPreconditionError(id RecordID, action string) *PreconditionError {
	return &PreconditionError{
		RecordID: id,
		Action:   action,
	}
}
