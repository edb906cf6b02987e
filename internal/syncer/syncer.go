// Package syncer keeps a local snapshot of pull request state fresh by
// periodically polling the API client, diffing the result against the last
// observed snapshot, and notifying subscribers of changes.
package syncer

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/J03Fr0st/ado-pr-review/internal/config"
	"github.com/J03Fr0st/ado-pr-review/internal/domain"
	"github.com/J03Fr0st/ado-pr-review/internal/sanitize"
)

// State is the sync service's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StateSuspended:
		return "suspended"
	default:
		return "idle"
	}
}

// Lister is the slice of the API client the syncer depends on. Refresh
// must invalidate any cached list before fetching: a cycle that reads a
// cache hit observes nothing.
type Lister interface {
	RefreshPullRequests(ctx context.Context) ([]domain.PullRequestSummary, error)
}

// Syncer polls pull requests on timer ticks and manual refreshes. A failed
// cycle keeps the previous snapshot, reports the error, and returns to
// idle so the next tick retries; while the credential provider reports
// "not configured" the service is suspended and ticks are no-ops.
type Syncer struct {
	client   Lister
	provider config.Provider
	timer    Timer
	logger   *slog.Logger

	onChange func(domain.ChangeDelta)
	onError  func(error)

	mu       sync.Mutex
	state    State
	snapshot map[int]string // pull request ID -> fingerprint
	running  bool

	refreshCh chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates a syncer. onChange receives non-empty deltas; onError
// receives sanitized cycle failures. Either callback may be nil.
func New(client Lister, provider config.Provider, timer Timer, logger *slog.Logger, onChange func(domain.ChangeDelta), onError func(error)) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		client:    client,
		provider:  provider,
		timer:     timer,
		logger:    logger,
		onChange:  onChange,
		onError:   onError,
		snapshot:  make(map[int]string),
		refreshCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sync loop. Safe to call once; subsequent calls are
// no-ops until Stop.
func (s *Syncer) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
}

// Stop prevents further cycles and waits for an in-flight cycle to finish
// so the snapshot is never left half-updated.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.timer.Stop()
	s.wg.Wait()
}

// RefreshNow requests an immediate cycle. Requests arriving while a cycle
// is already in flight are coalesced into it: that cycle's result is
// already as fresh as a new one would be.
func (s *Syncer) RefreshNow() {
	s.mu.Lock()
	syncing := s.state == StateSyncing
	s.mu.Unlock()
	if syncing {
		return
	}
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// State returns the current lifecycle state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the IDs in the last successful snapshot, sorted.
func (s *Syncer) Snapshot() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.snapshot))
	for id := range s.snapshot {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s *Syncer) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.timer.C():
			s.cycle()
		case <-s.refreshCh:
			s.cycle()
		}
	}
}

func (s *Syncer) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Syncer) cycle() {
	if _, ok := s.provider.Current(); !ok {
		if s.State() != StateSuspended {
			s.logger.Info("sync suspended: not configured")
		}
		s.setState(StateSuspended)
		return
	}

	s.setState(StateSyncing)
	defer s.setState(StateIdle)

	prs, err := s.client.RefreshPullRequests(context.Background())
	if err != nil {
		// Never fatal: keep the previous snapshot and let the next
		// tick retry.
		s.logger.Warn("sync cycle failed", "error", sanitize.Error(err))
		if s.onError != nil {
			s.onError(err)
		}
		return
	}

	next := make(map[int]string, len(prs))
	for _, pr := range prs {
		next[pr.ID] = pr.Fingerprint()
	}

	s.mu.Lock()
	delta := diff(s.snapshot, next)
	s.snapshot = next
	s.mu.Unlock()

	if delta.Empty() {
		return
	}
	s.logger.Info("pull request changes observed",
		"added", len(delta.Added),
		"removed", len(delta.Removed),
		"updated", len(delta.Updated),
	)
	if s.onChange != nil {
		s.onChange(delta)
	}
}

// diff compares two snapshots by identifier and fingerprint.
func diff(prev, next map[int]string) domain.ChangeDelta {
	var delta domain.ChangeDelta
	for id, fp := range next {
		old, ok := prev[id]
		switch {
		case !ok:
			delta.Added = append(delta.Added, id)
		case old != fp:
			delta.Updated = append(delta.Updated, id)
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			delta.Removed = append(delta.Removed, id)
		}
	}
	sort.Ints(delta.Added)
	sort.Ints(delta.Removed)
	sort.Ints(delta.Updated)
	return delta
}
