package domain

import (
	"fmt"
	"time"
)

// DisplayState is the single user-facing state of an export record. Exactly
// one applies at any evaluation instant.
type DisplayState string

const (
	DisplayPreparing DisplayState = "preparing"
	DisplayReady     DisplayState = "ready"
	DisplayFailed    DisplayState = "failed"
	DisplayExpired   DisplayState = "expired"
)

// Terminal reports whether no further server-driven transition will occur.
// Expiry happens purely through the passage of time, so a ready record is
// already terminal from the backend's point of view.
func (s DisplayState) Terminal() bool {
	return s != DisplayPreparing
}

// RecordState holds the flags derived from one export record at a reference
// instant. It is computed, never persisted, and carries no hidden state: two
// evaluations may disagree only through the passage of time.
type RecordState struct {
	Preparing   bool
	Expired     bool
	Ready       bool
	UpToDate    bool
	CanDownload bool
	CanReimport bool
	Display     DisplayState
	// ExpiresIn is a human-facing duration until expiry. Empty unless the
	// record has a future expiry and an archive that can still expire.
	ExpiresIn string
}

// Derive computes rec's state at now. The check order is fixed: a job still
// preparing has no archive to expire, and an expired archive is never
// presented as ready. Misordering these checks would offer a download link
// for an archive the backend has already reaped.
func Derive(rec ExportRecord, now time.Time) RecordState {
	st := RecordState{
		// Equal timestamps count as up to date.
		UpToDate: !rec.CreatedAt.Before(rec.SourceUpdatedAt),
	}

	switch {
	case rec.JobState == JobStatePreparing:
		st.Preparing = true
		st.Display = DisplayPreparing
	case rec.ExpiresAt != nil && rec.ExpiresAt.Before(now):
		st.Expired = true
		st.Display = DisplayExpired
	case rec.JobState == JobStateReady:
		st.Ready = true
		st.Display = DisplayReady
	default:
		st.Display = DisplayFailed
	}

	// Reimport deliberately does not require up-to-dateness; staleness is
	// advisory only.
	st.CanDownload = st.Ready
	st.CanReimport = st.Ready

	if st.Ready && rec.ExpiresAt != nil {
		st.ExpiresIn = formatDuration(rec.ExpiresAt.Sub(now))
	}

	return st
}

// formatDuration renders a positive duration the way the record table shows
// it: coarse, two units at most.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
