// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session persists conversations to disk and schedules coalesced
// saves while a conversation is being mutated.
//
// Each session is one JSON file under the base directory. Writes are
// atomic (temp file + rename with fsync) so a crash never leaves a
// half-written transcript.
//
// # Key Types
//
//   - Store: per-session JSON persistence with list/search/group support
//   - Saver: debounced save scheduler with an explicit FlushNow path
//
// # Usage
//
// Open a store and save a session:
//
//	store, err := session.NewStore()
//	if err != nil { ... }
//	id, err := store.Save(sess)
//
// Coalesce rapid mutations into one delayed write:
//
//	saver := session.NewSaver(store, current, session.DefaultDebounce)
//	saver.MarkDirty()       // schedules a write
//	saver.FlushNow()        // before anything that must not be lost
//	defer saver.Close()
package session
