// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log"
	"sync"
	"time"
)

// =============================================================================
// DEBOUNCED SAVER
// =============================================================================

// DefaultDebounce is the delay between a mutation and its coalesced write.
const DefaultDebounce = 500 * time.Millisecond

// SnapshotFunc produces the session to persist at write time, so the
// saver always writes current state rather than the state at MarkDirty.
type SnapshotFunc func() *Session

// Saver coalesces rapid session mutations into a single delayed write.
// The timer is an explicit per-Saver resource, never shared.
//
// Save failures are logged, not surfaced: the in-memory transcript stays
// authoritative for the open session and the conversation must not block
// on disk.
type Saver struct {
	store    *Store
	snapshot SnapshotFunc
	debounce time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	dirty  bool
	closed bool

	// writeMu serializes snapshot+Save. Timer flushes run on their own
	// goroutine and may overlap a FlushNow; both touch the session the
	// snapshot returns, so the whole write must be one critical section.
	writeMu sync.Mutex
}

// NewSaver creates a saver writing snapshots to the store. A zero
// debounce uses DefaultDebounce.
func NewSaver(store *Store, snapshot SnapshotFunc, debounce time.Duration) *Saver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Saver{
		store:    store,
		snapshot: snapshot,
		debounce: debounce,
	}
}

// MarkDirty schedules a coalesced write. Successive calls within the
// debounce window reset the timer so only one write happens.
func (s *Saver) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.dirty = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flush)
}

// FlushNow writes immediately if there are unsaved changes. Used before
// operations whose outcome must not be lost (stop, exit).
func (s *Saver) FlushNow() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.flush()
}

// Close cancels any pending write after a final flush.
func (s *Saver) Close() {
	s.FlushNow()

	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}

// flush performs the write when dirty. Holding writeMu across the dirty
// check makes a FlushNow wait for an in-flight timer flush instead of
// returning while its write is still running.
func (s *Saver) flush() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.dirty || s.closed {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	s.mu.Unlock()

	sess := s.snapshot()
	if sess == nil {
		return
	}
	if _, err := s.store.Save(sess); err != nil {
		log.Printf("session save failed: %v", err)
	}
}
