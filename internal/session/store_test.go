// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codepod-dev/codepod/internal/chat"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreWithDir: %v", err)
	}
	return store
}

func sessionWithPrompt(prompt string) *Session {
	conv := chat.NewConversation()
	conv.AddUserMessage(prompt)
	conv.AddAssistantMessage("reply")
	return &Session{Messages: conv.Messages()}
}

// =============================================================================
// SAVE / LOAD TESTS
// =============================================================================

func TestStore_SaveAndLoad(t *testing.T) {
	store := testStore(t)

	sess := sessionWithPrompt("What is Go?")
	sess.ProjectPath = "/home/dev/project"

	id, err := store.Save(sess)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("Save must assign an ID")
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.ProjectPath != "/home/dev/project" {
		t.Errorf("ProjectPath = %q", loaded.ProjectPath)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(loaded.Messages))
	}
	if loaded.Messages[0].Text() != "What is Go?" {
		t.Errorf("first message = %q", loaded.Messages[0].Text())
	}
	if loaded.CreatedAt.IsZero() || loaded.UpdatedAt.IsZero() {
		t.Error("timestamps must be filled in")
	}
}

func TestStore_TitleFromFirstUserMessage(t *testing.T) {
	store := testStore(t)

	sess := sessionWithPrompt("Explain goroutines\nin detail")
	store.Save(sess)

	if sess.Title != "Explain goroutines in detail" {
		t.Errorf("Title = %q, want newline-flattened first prompt", sess.Title)
	}
}

func TestStore_TitleTruncated(t *testing.T) {
	store := testStore(t)

	sess := sessionWithPrompt(strings.Repeat("x", 100))
	store.Save(sess)

	if len([]rune(sess.Title)) > 50 {
		t.Errorf("Title length = %d runes, want <= 50", len([]rune(sess.Title)))
	}
}

func TestStore_EmptySessionTitle(t *testing.T) {
	store := testStore(t)

	sess := &Session{}
	store.Save(sess)

	if sess.Title != "New session" {
		t.Errorf("Title = %q, want 'New session'", sess.Title)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := testStore(t)

	_, err := store.Load("no-such-id")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load() error = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_SaveIsStable(t *testing.T) {
	store := testStore(t)

	sess := sessionWithPrompt("hello")
	id1, _ := store.Save(sess)
	id2, _ := store.Save(sess)

	if id1 != id2 {
		t.Errorf("resaving must keep the ID: %q vs %q", id1, id2)
	}

	metas, _ := store.List()
	if len(metas) != 1 {
		t.Errorf("sessions = %d, want 1", len(metas))
	}
}

// =============================================================================
// LIST / SEARCH TESTS
// =============================================================================

func TestStore_ListMostRecentFirst(t *testing.T) {
	store := testStore(t)

	old := sessionWithPrompt("old")
	store.Save(old)

	// Force a later UpdatedAt on the second session.
	time.Sleep(5 * time.Millisecond)
	recent := sessionWithPrompt("recent")
	store.Save(recent)

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("sessions = %d, want 2", len(metas))
	}
	if metas[0].Preview != "recent" {
		t.Errorf("first listed = %q, want most recent", metas[0].Preview)
	}
	if metas[0].MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", metas[0].MessageCount)
	}
}

func TestStore_Search(t *testing.T) {
	store := testStore(t)

	store.Save(sessionWithPrompt("Explain goroutines"))
	store.Save(sessionWithPrompt("Write a haiku"))

	results, err := store.Search("GOROUTINE")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || !strings.Contains(results[0].Title, "goroutines") {
		t.Errorf("results = %+v", results)
	}
}

func TestStore_SearchMessages(t *testing.T) {
	store := testStore(t)

	sess := &Session{}
	conv := chat.NewConversation()
	conv.AddUserMessage("opaque question")
	conv.AddAssistantMessage("channels are typed conduits")
	sess.Messages = conv.Messages()
	store.Save(sess)

	// Content match lives in the assistant reply, not the title.
	results, err := store.SearchMessages("typed conduits")
	if err != nil {
		t.Fatalf("SearchMessages: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}

	results, _ = store.SearchMessages("no such text")
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestStore_EnforceLimit(t *testing.T) {
	store := testStore(t)
	store.MaxSessions = 2

	for _, prompt := range []string{"one", "two", "three"} {
		store.Save(sessionWithPrompt(prompt))
		time.Sleep(5 * time.Millisecond)
	}

	metas, _ := store.List()
	if len(metas) != 2 {
		t.Fatalf("sessions = %d, want 2", len(metas))
	}
	// Oldest dropped.
	for _, meta := range metas {
		if meta.Preview == "one" {
			t.Error("oldest session should have been evicted")
		}
	}
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestStore_Delete(t *testing.T) {
	store := testStore(t)

	sess := sessionWithPrompt("bye")
	id, _ := store.Save(sess)

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load after delete = %v, want ErrSessionNotFound", err)
	}

	if err := store.Delete(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Delete = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_Clear(t *testing.T) {
	store := testStore(t)

	store.Save(sessionWithPrompt("a"))
	store.Save(sessionWithPrompt("b"))

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	metas, _ := store.List()
	if len(metas) != 0 {
		t.Errorf("sessions = %d, want 0", len(metas))
	}
}

// =============================================================================
// GROUPING TESTS
// =============================================================================

func TestGroupByAge(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

	metas := []Meta{
		{ID: "today", UpdatedAt: now.Add(-1 * time.Hour)},
		{ID: "yesterday", UpdatedAt: now.AddDate(0, 0, -1)},
		{ID: "week", UpdatedAt: now.AddDate(0, 0, -5)},
		{ID: "older", UpdatedAt: now.AddDate(0, -2, 0)},
	}

	groups := GroupByAge(metas, now)

	want := []string{GroupToday, GroupYesterday, GroupLastWeek, GroupOlder}
	if len(groups) != len(want) {
		t.Fatalf("groups = %d, want %d", len(groups), len(want))
	}
	for i, label := range want {
		if groups[i].Label != label {
			t.Errorf("group[%d] = %q, want %q", i, groups[i].Label, label)
		}
		if len(groups[i].Sessions) != 1 {
			t.Errorf("group %q size = %d, want 1", label, len(groups[i].Sessions))
		}
	}
}

func TestGroupByAge_OmitsEmptyGroups(t *testing.T) {
	now := time.Now()
	groups := GroupByAge([]Meta{{ID: "only", UpdatedAt: now}}, now)

	if len(groups) != 1 || groups[0].Label != GroupToday {
		t.Errorf("groups = %+v, want a single Today group", groups)
	}
}

// =============================================================================
// EXPORT TESTS
// =============================================================================

func TestSession_ExportMarkdown(t *testing.T) {
	sess := sessionWithPrompt("Explain defer")
	sess.Title = "Explain defer"
	sess.CreatedAt = time.Now()

	md := sess.ExportMarkdown()

	if !strings.Contains(md, "# Explain defer") {
		t.Error("export must include the title heading")
	}
	if !strings.Contains(md, "**User**") || !strings.Contains(md, "**Assistant**") {
		t.Error("export must label both roles")
	}
	if !strings.Contains(md, "Explain defer") || !strings.Contains(md, "reply") {
		t.Error("export must include message content")
	}
}
