package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrConflict is returned by a Persister when the stored state moved past
// the version a commit was based on.
var ErrConflict = errors.New("concurrency conflict: version mismatch")

// Loader is implemented by persisters that can read the stored state back.
// After a conflict the Store reloads from it so the next commit can succeed.
type Loader interface {
	Load(ctx context.Context) (*State, error)
}

// Persister durably writes committed snapshots. dirty lists the buckets that
// changed since the previous version. Save must be atomic: either every
// bucket and event is written or none is.
type Persister interface {
	Save(ctx context.Context, st *State, dirty []Bucket, events []Event) error
}

// Store holds the current snapshot. Readers never block; writers are
// serialized and each commit replaces the snapshot as a whole.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[State]
	p       Persister

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(*State)
}

// NewStore returns a store seeded with initial. p may be nil, in which case
// commits are kept in memory only.
func NewStore(initial *State, p Persister) *Store {
	if initial == nil {
		initial = Default()
	}
	s := &Store{p: p, subs: make(map[int]func(*State))}
	s.current.Store(initial)
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() *State {
	return s.current.Load()
}

// Update runs fn inside a transaction. When fn returns nil the staged state
// is persisted and becomes the current snapshot; when fn or the persister
// fails nothing is written. On ErrConflict the snapshot is reloaded from a
// persister that implements Loader.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) (*State, error) {
	s.mu.Lock()
	base := s.current.Load()
	tx := newTx(base)
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return base, err
	}
	next := tx.commit()
	if s.p != nil {
		if err := s.p.Save(ctx, next, tx.dirtyBuckets(), tx.events); err != nil {
			var fresh *State
			if errors.Is(err, ErrConflict) {
				fresh = s.reload(ctx)
			}
			s.mu.Unlock()
			if fresh != nil {
				s.notify(fresh)
			}
			return base, fmt.Errorf("persisting state version %d: %w", next.Version, err)
		}
	}
	s.current.Store(next)
	s.mu.Unlock()

	s.notify(next)
	return next, nil
}

// reload swaps in the persisted state after a conflict. Callers hold s.mu.
func (s *Store) reload(ctx context.Context) *State {
	l, ok := s.p.(Loader)
	if !ok {
		return nil
	}
	st, err := l.Load(ctx)
	if err != nil {
		slog.Warn("reloading state after conflict", "error", err)
		return nil
	}
	s.current.Store(st)
	return st
}

// Replace swaps the whole state for st, keeping the version sequence.
func (s *Store) Replace(ctx context.Context, st *State, actor string) (*State, error) {
	if st == nil {
		return nil, errors.New("replacing state: nil state")
	}
	return s.Update(ctx, func(tx *Tx) error {
		if err := tx.Replace(st); err != nil {
			return err
		}
		return tx.Emit(EventImported, SubjectState, 0, actor, nowFunc(), nil)
	})
}

// Subscribe registers fn to be called with every committed snapshot. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(*State)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(st *State) {
	s.subMu.Lock()
	fns := make([]func(*State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
