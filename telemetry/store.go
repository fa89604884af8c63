// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a published record and the time it was published. Snapshots are immutable once
// published so readers never see a mix of old and new fields.
type Snapshot struct {
	Record
	At time.Time `json:"at"`
}

// Store is the process-wide latest telemetry. Producers publish whole records, consumers either
// Load the latest snapshot or Subscribe to a channel of snapshots.
type Store struct {
	cur atomic.Pointer[Snapshot]

	mu     sync.Mutex
	subs   []chan Snapshot
	closed bool
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Publish atomically replaces the current snapshot and forwards it to all subscribers.
// Subscribers that are not keeping up miss snapshots rather than blocking the publisher.
func (s *Store) Publish(rec Record) Snapshot {
	snap := &Snapshot{Record: rec, At: time.Now()}
	s.cur.Store(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return *snap
	}
	for _, ch := range s.subs {
		select {
		case ch <- *snap:
		default:
		}
	}
	return *snap
}

// Load returns the latest snapshot, ok is false if nothing has been published yet.
func (s *Store) Load() (snap Snapshot, ok bool) {
	p := s.cur.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// Subscribe returns a channel receiving every subsequently published snapshot. The channel is
// closed by Close.
func (s *Store) Subscribe(capacity int) <-chan Snapshot {
	ch := make(chan Snapshot, capacity)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Close closes all subscription channels. Publish keeps updating the snapshot.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}
