package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/datacove/exporttrack/internal/client"
	"github.com/datacove/exporttrack/internal/domain"
)

// Config holds tracker configuration.
type Config struct {
	// PollInterval is the fixed interval between scheduled fetches while any
	// record is still preparing.
	PollInterval time.Duration
	// MaxFetchFailures is the number of consecutive fetch failures tolerated
	// before the loop halts and waits for an explicit refresh.
	MaxFetchFailures int
}

// Tracker watches one object's export history: it keeps a fetch-replaced
// cache of the object's export records, evaluates their derived state on
// demand, gates the follow-on actions, and polls the backend while any
// record is still preparing.
//
// A tracker's lifecycle is explicit: Start launches the polling loop, Stop
// tears it down deterministically. Records are cached in memory only and are
// always replaced wholesale by a fetch, never patched.
type Tracker struct {
	objectID domain.ObjectID
	client   client.Client
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	// group coalesces concurrent fetches (poll tick vs. explicit refresh)
	// into a single backend request.
	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wake   chan struct{}

	mu        sync.Mutex
	records   []domain.ExportRecord
	fetched   bool
	fetchedAt time.Time
	failures  int
	lastErr   string
	halted    bool
	busy      map[domain.RecordID]string
}

// NewTracker creates a tracker for one object. Call Start to begin polling.
func NewTracker(objectID domain.ObjectID, c client.Client, cfg Config, logger *slog.Logger) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxFetchFailures <= 0 {
		cfg.MaxFetchFailures = 5
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Tracker{
		objectID: objectID,
		client:   c,
		cfg:      cfg,
		logger:   logger.With("object_id", objectID),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		busy:     make(map[domain.RecordID]string),
	}
}

// ObjectID returns the identifier of the tracked object.
func (t *Tracker) ObjectID() domain.ObjectID {
	return t.objectID
}

// Start launches the polling loop.
func (t *Tracker) Start() {
	t.wg.Add(1)
	go t.run()
}

// Stop tears the tracker down. After Stop returns no further fetch is
// scheduled, and the result of any fetch that was in flight is discarded.
func (t *Tracker) Stop() {
	t.cancel()
	t.wg.Wait()
}

// run is the single cooperative timer loop. It issues at most one fetch at a
// time; while no record is preparing (and no fetch has failed within budget)
// it schedules nothing at all and sleeps until woken.
func (t *Tracker) run() {
	defer t.wg.Done()

	t.logger.Info("tracker started", "poll_interval", t.cfg.PollInterval.String())

	// Populate the view before the first tick.
	if err := t.fetchAndApply(t.ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.logger.Warn("initial fetch failed", "error", err)
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if !t.polling() {
			// Every visible record is terminal, or the failure budget is
			// spent: zero scheduled fetches until something changes.
			select {
			case <-t.ctx.Done():
				t.logger.Info("tracker stopped")
				return
			case <-t.wake:
			}
			continue
		}

		select {
		case <-t.ctx.Done():
			t.logger.Info("tracker stopped")
			return
		case <-t.wake:
			// Schedule may have changed; re-evaluate without waiting out
			// the tick.
		case <-ticker.C:
			if err := t.fetchAndApply(t.ctx); err != nil && !errors.Is(err, context.Canceled) {
				t.logger.Warn("scheduled fetch failed", "error", err)
			}
		}
	}
}

// polling reports whether the loop should keep scheduling fetches:
// uncertainty exists until the first successful fetch or while any record is
// preparing, unless repeated failures have halted the loop.
func (t *Tracker) polling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.halted {
		return false
	}
	if !t.fetched {
		return true
	}
	for _, rec := range t.records {
		if rec.JobState == domain.JobStatePreparing {
			return true
		}
	}
	return false
}

// Refresh forces an immediate fetch outside the polling schedule. It clears
// a halted-error state, and resumes the loop if the fetched list contains a
// preparing record.
func (t *Tracker) Refresh(ctx context.Context) error {
	if t.ctx.Err() != nil {
		return domain.ErrTrackerStopped
	}

	t.mu.Lock()
	t.halted = false
	t.failures = 0
	t.mu.Unlock()

	err := t.fetchAndApply(ctx)
	t.poke()
	return err
}

// RequestExport asks the backend to snapshot the tracked object into a new
// export and resumes polling to watch the new record.
func (t *Tracker) RequestExport(ctx context.Context, format string) (domain.RecordID, error) {
	if t.ctx.Err() != nil {
		return "", domain.ErrTrackerStopped
	}

	id, err := t.client.RequestExport(ctx, t.objectID, format)
	if err != nil {
		return "", err
	}

	t.logger.Info("export requested", "record_id", id, "format", format)

	if err := t.Refresh(ctx); err != nil {
		// The export itself succeeded; the stale view heals on the next poll.
		t.logger.Warn("refresh after export request failed", "error", err)
	}
	return id, nil
}

// fetchAndApply performs one backend fetch and atomically replaces the
// record list. Concurrent callers share a single in-flight request; a result
// arriving after Stop is discarded, never applied.
func (t *Tracker) fetchAndApply(ctx context.Context) error {
	_, err, _ := t.group.Do("fetch", func() (any, error) {
		page, err := t.client.FetchExportRecords(ctx, t.objectID)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				t.recordFetchFailure(err)
			}
			return nil, err
		}
		if t.ctx.Err() != nil {
			return nil, domain.ErrTrackerStopped
		}
		t.apply(page)
		return nil, nil
	})
	return err
}

// apply validates the fetched page and replaces the cached list wholesale.
// A malformed record is dropped with a warning; the valid records in the
// same response still go through.
func (t *Tracker) apply(page *client.RecordPage) {
	records := make([]domain.ExportRecord, 0, len(page.Records))
	for _, raw := range page.Records {
		rec, err := domain.ParseRecord(raw, page.SourceUpdatedAt)
		if err != nil {
			t.logger.Warn("dropping malformed export record", "error", err)
			continue
		}
		records = append(records, rec)
	}

	// The backend promises newest-first; enforce it rather than trust it.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	t.mu.Lock()
	t.records = records
	t.fetched = true
	t.fetchedAt = t.now()
	t.failures = 0
	t.lastErr = ""
	t.mu.Unlock()
}

func (t *Tracker) recordFetchFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures++
	t.lastErr = err.Error()
	if t.failures >= t.cfg.MaxFetchFailures && !t.halted {
		t.halted = true
		t.logger.Error("halting poll loop after repeated fetch failures",
			"failures", t.failures,
			"error", err,
		)
	}
}

// poke nudges the loop so it re-evaluates its schedule (non-blocking).
func (t *Tracker) poke() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// find returns the cached record with the given id. Caller holds t.mu.
func (t *Tracker) find(id domain.RecordID) (domain.ExportRecord, bool) {
	for _, rec := range t.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return domain.ExportRecord{}, false
}
