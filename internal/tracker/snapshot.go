package tracker

import (
	"time"

	"github.com/datacove/exporttrack/internal/domain"
)

// EnrichedRecord pairs a raw export record with its state derived at the
// snapshot instant.
type EnrichedRecord struct {
	Record domain.ExportRecord
	State  domain.RecordState
	// Busy reports an action in flight for this record. While set, the
	// action predicates read false regardless of the derived flags.
	Busy bool
}

// Snapshot is a consistent view of the tracked object's export history at
// one instant. Partial updates across records are never observable: the
// underlying list is only ever replaced wholesale.
type Snapshot struct {
	ObjectID  domain.ObjectID
	FetchedAt time.Time
	// Polling is true while the loop still has fetches scheduled.
	Polling bool
	// Halted is true when the failure budget is spent; LastError then
	// carries the fetch error awaiting an explicit refresh.
	Halted    bool
	LastError string
	Records   []EnrichedRecord
}

// Snapshot evaluates every cached record at the current instant. Derived
// flags are recomputed on every call and never cached apart from the records
// they describe.
func (t *Tracker) Snapshot() Snapshot {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		ObjectID:  t.objectID,
		FetchedAt: t.fetchedAt,
		Halted:    t.halted,
		LastError: t.lastErr,
		Records:   make([]EnrichedRecord, 0, len(t.records)),
	}

	anyPreparing := false
	for _, rec := range t.records {
		st := domain.Derive(rec, now)
		if rec.JobState == domain.JobStatePreparing {
			anyPreparing = true
		}

		_, busy := t.busy[rec.ID]
		if busy {
			st.CanDownload = false
			st.CanReimport = false
		}

		snap.Records = append(snap.Records, EnrichedRecord{
			Record: rec,
			State:  st,
			Busy:   busy,
		})
	}

	snap.Polling = !t.halted && (!t.fetched || anyPreparing)
	return snap
}

// CanDownload reports whether a download of the record is currently
// permitted. False for unknown records, records with an action in flight,
// and records whose derived state forbids it.
func (t *Tracker) CanDownload(id domain.RecordID) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.find(id)
	if !ok {
		return false
	}
	if _, busy := t.busy[id]; busy {
		return false
	}
	return domain.Derive(rec, now).CanDownload
}

// CanReimport reports whether a reimport of the record is currently
// permitted, under the same rules as CanDownload.
func (t *Tracker) CanReimport(id domain.RecordID) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.find(id)
	if !ok {
		return false
	}
	if _, busy := t.busy[id]; busy {
		return false
	}
	return domain.Derive(rec, now).CanReimport
}
