package domain

import (
	"time"
)

// RecordID is a unique identifier for an export record within the owning
// object's export history.
type RecordID string

// String returns the string representation of the RecordID.
func (id RecordID) String() string {
	return string(id)
}

// ObjectID identifies an exportable source object (a dataset/history store).
type ObjectID string

// String returns the string representation of the ObjectID.
func (id ObjectID) String() string {
	return string(id)
}

// JobState is the raw status of an export job as reported by the backend.
type JobState string

const (
	JobStatePreparing JobState = "preparing"
	JobStateReady     JobState = "ready"
	JobStateFailed    JobState = "failed"
)

// Known reports whether s is one of the backend's three job states.
func (s JobState) Known() bool {
	switch s {
	case JobStatePreparing, JobStateReady, JobStateFailed:
		return true
	}
	return false
}

// ExportRecord is an immutable snapshot of one export attempt's metadata as
// reported by the backend. Records are never patched in place; a changed
// record arrives as a full replacement in the next fetch.
type ExportRecord struct {
	ID        RecordID
	CreatedAt time.Time
	Format    string
	// ExpiresAt is nil when the archive never expires.
	ExpiresAt *time.Time
	JobState  JobState
	// SourceUpdatedAt is the most recent modification time of the live
	// source object, reported alongside the record list so staleness can be
	// judged without a second request.
	SourceUpdatedAt time.Time
}

// RawRecord is the wire shape of an export record in a backend response.
// Timestamps travel as strings so that one malformed record can be rejected
// without discarding the rest of the response.
type RawRecord struct {
	ID         string `json:"id"`
	CreateTime string `json:"create_time"`
	Format     string `json:"format"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	State      string `json:"state"`
}

// ParseRecord validates raw and converts it into an ExportRecord.
// sourceUpdatedAt is the owning object's last modification time.
//
// A record with a missing id, create time, or state, an unknown state, or a
// timestamp that does not parse is rejected with a ValidationError. A bad
// expiry is never treated as "no expiry": that would present a possibly
// expired archive as downloadable.
func ParseRecord(raw RawRecord, sourceUpdatedAt time.Time) (ExportRecord, error) {
	id := RecordID(raw.ID)
	if raw.ID == "" {
		return ExportRecord{}, NewValidationError(id, "id", ErrMissingField)
	}
	if raw.CreateTime == "" {
		return ExportRecord{}, NewValidationError(id, "create_time", ErrMissingField)
	}
	// RFC 3339, with or without sub-second precision.
	createdAt, err := time.Parse(time.RFC3339Nano, raw.CreateTime)
	if err != nil {
		return ExportRecord{}, NewValidationError(id, "create_time", ErrBadTimestamp)
	}
	if raw.State == "" {
		return ExportRecord{}, NewValidationError(id, "state", ErrMissingField)
	}
	state := JobState(raw.State)
	if !state.Known() {
		return ExportRecord{}, NewValidationError(id, "state", ErrUnknownJobState)
	}

	rec := ExportRecord{
		ID:              id,
		CreatedAt:       createdAt,
		Format:          raw.Format,
		JobState:        state,
		SourceUpdatedAt: sourceUpdatedAt,
	}

	if raw.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, raw.ExpiresAt)
		if err != nil {
			return ExportRecord{}, NewValidationError(id, "expires_at", ErrBadTimestamp)
		}
		rec.ExpiresAt = &expiresAt
	}

	return rec, nil
}
