package tracker

import (
	"context"

	"github.com/datacove/exporttrack/internal/domain"
)

// Action names used in busy tracking and precondition errors.
const (
	actionDownload = "download"
	actionReimport = "reimport"
	actionCopyLink = "copy link"
)

// Download resolves a ready export record to a download URL. The record is
// busy for the duration of the call; a failure is surfaced without mutating
// any record or the polling schedule.
func (t *Tracker) Download(ctx context.Context, id domain.RecordID) (string, error) {
	if err := t.beginAction(id, actionDownload); err != nil {
		return "", err
	}
	defer t.endAction(id)

	url, err := t.client.RequestDownload(ctx, id)
	if err != nil {
		t.logger.Warn("download request failed", "record_id", id, "error", err)
		return "", err
	}
	return url, nil
}

// Reimport materializes the exported archive as a new object and returns the
// new object's identifier. The record is busy until the call resolves, so
// the gate rejects a second reimport of the same record while one is
// outstanding; other records stay independently actionable. The call never
// retries on its own.
func (t *Tracker) Reimport(ctx context.Context, id domain.RecordID) (domain.ObjectID, error) {
	if err := t.beginAction(id, actionReimport); err != nil {
		return "", err
	}
	defer t.endAction(id)

	objectID, err := t.client.RequestReimport(ctx, id)
	if err != nil {
		t.logger.Warn("reimport request failed", "record_id", id, "error", err)
		return "", err
	}

	t.logger.Info("reimport completed", "record_id", id, "new_object_id", objectID)
	return objectID, nil
}

// CopyLink composes the share link for a ready, non-expired record. Pure and
// synchronous: no backend call, no busy-state interaction.
func (t *Tracker) CopyLink(id domain.RecordID) (string, error) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.find(id)
	if !ok {
		return "", domain.ErrRecordNotFound
	}
	if _, busy := t.busy[id]; busy {
		return "", domain.NewPreconditionError(id, actionCopyLink)
	}
	if !domain.Derive(rec, now).CanDownload {
		return "", domain.NewPreconditionError(id, actionCopyLink)
	}
	return t.client.ArchiveURL(id), nil
}

// beginAction consults the gate and marks the record busy. The busy flag is
// owned by the action call that set it and is released only through
// endAction on that call's exit paths.
func (t *Tracker) beginAction(id domain.RecordID, action string) error {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.find(id)
	if !ok {
		return domain.ErrRecordNotFound
	}
	if _, busy := t.busy[id]; busy {
		return domain.NewPreconditionError(id, action)
	}

	st := domain.Derive(rec, now)
	switch action {
	case actionDownload:
		if !st.CanDownload {
			return domain.NewPreconditionError(id, action)
		}
	case actionReimport:
		if !st.CanReimport {
			return domain.NewPreconditionError(id, action)
		}
	}

	t.busy[id] = action
	return nil
}

// endAction releases the busy guard. Deferred by every action entry point,
// so no failure path can leave a record stuck busy.
func (t *Tracker) endAction(id domain.RecordID) {
	t.mu.Lock()
	delete(t.busy, id)
	t.mu.Unlock()
}
