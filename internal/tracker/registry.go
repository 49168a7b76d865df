package tracker

import (
	"log/slog"
	"sync"

	"github.com/datacove/exporttrack/internal/client"
	"github.com/datacove/exporttrack/internal/domain"
)

// Registry owns one tracker per object. Trackers are created on first use
// and torn down together when the registry stops, tying their lifecycle to
// the owning service instead of package state.
type Registry struct {
	client client.Client
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	trackers map[domain.ObjectID]*Tracker
	closed   bool
}

// NewRegistry creates an empty tracker registry.
func NewRegistry(c client.Client, cfg Config, logger *slog.Logger) *Registry {
	return &Registry{
		client:   c,
		cfg:      cfg,
		logger:   logger,
		trackers: make(map[domain.ObjectID]*Tracker),
	}
}

// Track returns the tracker for objectID, starting one if the object is not
// tracked yet.
func (r *Registry) Track(objectID domain.ObjectID) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, domain.ErrTrackerStopped
	}
	if t, ok := r.trackers[objectID]; ok {
		return t, nil
	}

	t := NewTracker(objectID, r.client, r.cfg, r.logger)
	t.Start()
	r.trackers[objectID] = t
	return t, nil
}

// Lookup returns the tracker for objectID if the object is tracked.
func (r *Registry) Lookup(objectID domain.ObjectID) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[objectID]
	return t, ok
}

// Count returns the number of tracked objects.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Stop tears down every tracker and rejects further Track calls.
func (r *Registry) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	for _, t := range trackers {
		t.Stop()
	}
	r.logger.Info("tracker registry stopped", "trackers", len(trackers))
}
