// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingSnapshot counts how many snapshots were taken.
type countingSnapshot struct {
	mu    sync.Mutex
	sess  *Session
	count int
}

func (c *countingSnapshot) take() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.sess
}

func (c *countingSnapshot) taken() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// =============================================================================
// DEBOUNCE TESTS
// =============================================================================

func TestSaver_CoalescesRapidMutations(t *testing.T) {
	store := testStore(t)
	snap := &countingSnapshot{sess: sessionWithPrompt("debounced")}
	saver := NewSaver(store, snap.take, 50*time.Millisecond)
	defer saver.Close()

	// Rapid successive mutations schedule one delayed write.
	for i := 0; i < 10; i++ {
		saver.MarkDirty()
	}

	time.Sleep(200 * time.Millisecond)

	if got := snap.taken(); got != 1 {
		t.Errorf("writes = %d, want 1 coalesced write", got)
	}

	metas, _ := store.List()
	if len(metas) != 1 {
		t.Errorf("stored sessions = %d, want 1", len(metas))
	}
}

func TestSaver_FlushNowWritesImmediately(t *testing.T) {
	store := testStore(t)
	snap := &countingSnapshot{sess: sessionWithPrompt("flushed")}
	saver := NewSaver(store, snap.take, time.Hour)
	defer saver.Close()

	saver.MarkDirty()
	saver.FlushNow()

	// The hour-long debounce never fired; FlushNow did the write.
	if got := snap.taken(); got != 1 {
		t.Errorf("writes = %d, want 1", got)
	}

	metas, _ := store.List()
	if len(metas) != 1 {
		t.Errorf("stored sessions = %d, want 1", len(metas))
	}
}

func TestSaver_FlushNowWithoutDirtyIsNoop(t *testing.T) {
	store := testStore(t)
	snap := &countingSnapshot{sess: sessionWithPrompt("clean")}
	saver := NewSaver(store, snap.take, 50*time.Millisecond)
	defer saver.Close()

	saver.FlushNow()

	if got := snap.taken(); got != 0 {
		t.Errorf("writes = %d, want 0 when nothing is dirty", got)
	}
}

func TestSaver_CloseFlushesPending(t *testing.T) {
	store := testStore(t)
	snap := &countingSnapshot{sess: sessionWithPrompt("final")}
	saver := NewSaver(store, snap.take, time.Hour)

	saver.MarkDirty()
	saver.Close()

	if got := snap.taken(); got != 1 {
		t.Errorf("writes = %d, want 1 final flush on close", got)
	}

	// Closed savers ignore further mutations.
	saver.MarkDirty()
	time.Sleep(50 * time.Millisecond)
	if got := snap.taken(); got != 1 {
		t.Errorf("writes after close = %d, want 1", got)
	}
}

func TestSaver_ConcurrentFlushesSerialized(t *testing.T) {
	store := testStore(t)
	sess := sessionWithPrompt("contended")

	// inWrite flags an active snapshot+Save; a second concurrent entry
	// means the write path is not serialized.
	var inWrite int32
	snapshot := func() *Session {
		if !atomic.CompareAndSwapInt32(&inWrite, 0, 1) {
			t.Error("overlapping snapshot+Save")
		}
		time.Sleep(time.Millisecond)
		atomic.StoreInt32(&inWrite, 0)
		return sess
	}

	saver := NewSaver(store, snapshot, time.Millisecond)
	defer saver.Close()

	// Timer flushes, explicit flushes, and re-marks all interleaving.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				saver.MarkDirty()
				saver.FlushNow()
			}
		}()
	}
	wg.Wait()

	metas, _ := store.List()
	if len(metas) != 1 {
		t.Errorf("stored sessions = %d, want 1", len(metas))
	}
}

func TestSaver_NilSnapshotSkipsWrite(t *testing.T) {
	store := testStore(t)
	saver := NewSaver(store, func() *Session { return nil }, 10*time.Millisecond)
	defer saver.Close()

	saver.MarkDirty()
	time.Sleep(100 * time.Millisecond)

	metas, _ := store.List()
	if len(metas) != 0 {
		t.Errorf("stored sessions = %d, want 0", len(metas))
	}
}
