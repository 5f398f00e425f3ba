// Package status implements the indexing-status state machine and a
// channel-based broadcaster of IndexingStatusChanged events, so UI
// consumers can observe indexing progress without polling.
package status

import (
	"sync"
	"time"
)

// State is the top-level indexing state.
type State int

const (
	Idle State = iota
	Started
	InProgress
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Started:
		return "started"
	case InProgress:
		return "in_progress"
	default:
		return "unknown"
	}
}

// PreIndexingProgress tracks the directory-walk/hashing phase.
type PreIndexingProgress struct {
	StartedAt   time.Time
	Preindexed  int
}

// IndexingProgress tracks the embed/persist phase, started once the total
// file count is known.
type IndexingProgress struct {
	StartedAt    time.Time
	NewlyIndexed int
	TotalToIndex int
}

// Progress is the payload carried by InProgress snapshots.
type Progress struct {
	Pre      PreIndexingProgress
	Indexing *IndexingProgress // nil until the indexing phase begins
	Total    int
}

// Snapshot is the full observable state, the payload of every
// IndexingStatusChanged event.
type Snapshot struct {
	State    State
	Progress *Progress // nil unless State == InProgress
}

// Broadcaster owns the state machine and fans out snapshots to subscribers.
type Broadcaster struct {
	mu       sync.Mutex
	state    State
	progress *Progress

	subsMu sync.Mutex
	subs   []chan Snapshot
}

// New returns a Broadcaster in the Idle state.
func New() *Broadcaster {
	return &Broadcaster{state: Idle}
}

// Subscribe registers a buffered channel that receives every subsequent
// snapshot. Sends are non-blocking: a slow subscriber drops events rather
// than stalling the indexing pipeline.
func (b *Broadcaster) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 16)
	b.subsMu.Lock()
	b.subs = append(b.subs, ch)
	b.subsMu.Unlock()
	return ch
}

func (b *Broadcaster) emit(snap Snapshot) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (b *Broadcaster) snapshotLocked() Snapshot {
	var p *Progress
	if b.progress != nil {
		cp := *b.progress
		p = &cp
	}
	return Snapshot{State: b.state, Progress: p}
}

// Start transitions Idle -> Started.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	b.state = Started
	b.progress = nil
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.emit(snap)
}

// BeginPreIndexing transitions Started -> InProgress(pre), recording the
// file count discovered by the directory walk.
func (b *Broadcaster) BeginPreIndexing(total int) {
	b.mu.Lock()
	b.state = InProgress
	b.progress = &Progress{
		Pre:   PreIndexingProgress{StartedAt: now()},
		Total: total,
	}
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.emit(snap)
}

// BeginIndexing transitions InProgress(pre) -> InProgress(pre+indexing),
// recording how many files will be embedded.
func (b *Broadcaster) BeginIndexing(totalToIndex int) error {
	b.mu.Lock()
	if b.state != InProgress || b.progress == nil {
		state := b.state
		b.mu.Unlock()
		return &InvalidStatusTransitionError{Op: "begin_indexing", State: state}
	}
	b.progress.Indexing = &IndexingProgress{StartedAt: now(), TotalToIndex: totalToIndex}
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.emit(snap)
	return nil
}

// SetIdle is the only backward transition, returning to Idle from any state.
func (b *Broadcaster) SetIdle() {
	b.mu.Lock()
	b.state = Idle
	b.progress = nil
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.emit(snap)
}

// IncrementPreindexed advances the pre-indexing counter by one, emitting an
// event only when the counter crosses a 1% boundary of the total count.
func (b *Broadcaster) IncrementPreindexed() error {
	b.mu.Lock()
	if b.state != InProgress || b.progress == nil {
		state := b.state
		b.mu.Unlock()
		return &InvalidStatusTransitionError{Op: "increment_preindexed", State: state}
	}
	b.progress.Pre.Preindexed++
	count := b.progress.Pre.Preindexed
	total := b.progress.Total
	snap := b.snapshotLocked()
	b.mu.Unlock()

	if crossesOnePercent(count, total) {
		b.emit(snap)
	}
	return nil
}

// IncrementIndexed advances the indexing counter by one, emitting an event
// only when the counter crosses a 1% boundary of the files to be indexed.
func (b *Broadcaster) IncrementIndexed() error {
	b.mu.Lock()
	if b.state != InProgress || b.progress == nil || b.progress.Indexing == nil {
		state := b.state
		b.mu.Unlock()
		return &InvalidStatusTransitionError{Op: "increment_indexed", State: state}
	}
	b.progress.Indexing.NewlyIndexed++
	count := b.progress.Indexing.NewlyIndexed
	total := b.progress.Indexing.TotalToIndex
	snap := b.snapshotLocked()
	b.mu.Unlock()

	if crossesOnePercent(count, total) {
		b.emit(snap)
	}
	return nil
}

// Snapshot returns the current status without subscribing.
func (b *Broadcaster) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// crossesOnePercent reports whether count lands on a 1% boundary of total:
// count % (total / 100) == 0. A total below 100 has no boundary divisor, so
// every increment is reported.
func crossesOnePercent(count, total int) bool {
	onePercent := total / 100
	if onePercent <= 0 {
		return true
	}
	return count%onePercent == 0
}

func now() time.Time { return time.Now() }
