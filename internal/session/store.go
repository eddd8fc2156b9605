// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codepod-dev/codepod/internal/chat"
	"github.com/codepod-dev/codepod/internal/util"
)

// =============================================================================
// STORED SESSION TYPE
// =============================================================================

// Session is a persisted conversation container.
type Session struct {
	ID          string    `json:"id"`
	ProjectPath string    `json:"projectPath,omitempty"`
	Title       string    `json:"title"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// CliSessionID is the CLI-side session used for resume.
	CliSessionID string `json:"cliSessionId,omitempty"`

	Messages []chat.Message `json:"messages"`
}

// Meta is the listing view of a session, without its transcript.
type Meta struct {
	ID           string    `json:"id"`
	ProjectPath  string    `json:"projectPath,omitempty"`
	Title        string    `json:"title"`
	Model        string    `json:"model,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`

	// Preview is the first user message, truncated.
	Preview string `json:"preview"`
}

// =============================================================================
// SESSION STORE
// =============================================================================

// Store handles session persistence.
type Store struct {
	// BaseDir is the directory for stored sessions.
	// Default: ~/.codepod/sessions/
	BaseDir string

	// MaxSessions limits stored sessions (0 = unlimited).
	MaxSessions int
}

// NewStore creates a store under the user's home directory.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithDir(filepath.Join(homeDir, ".codepod", "sessions"))
}

// NewStoreWithDir creates a store with a custom directory.
func NewStoreWithDir(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &Store{
		BaseDir:     baseDir,
		MaxSessions: 100,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a session and returns its ID. Missing identity fields are
// filled in: a generated ID, a title from the first user message, and
// created/updated timestamps.
func (s *Store) Save(sess *Session) (string, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Title == "" {
		sess.Title = titleFor(sess)
	}

	sess.UpdatedAt = time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = sess.UpdatedAt
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", err
	}

	// Atomic write with fsync prevents data loss on crash.
	if err := util.AtomicWriteFile(s.filePath(sess.ID), data, 0644); err != nil {
		return "", err
	}

	if s.MaxSessions > 0 {
		s.enforceLimit()
	}

	return sess.ID, nil
}

// titleFor derives a title from the first user message.
func titleFor(sess *Session) string {
	for _, msg := range sess.Messages {
		if msg.Role == chat.RoleUser {
			if text := msg.Text(); text != "" {
				text = strings.ReplaceAll(text, "\n", " ")
				text = strings.ReplaceAll(text, "\r", "")
				return util.TruncateRunes(text, 50)
			}
		}
	}
	return "New session"
}

// enforceLimit removes the oldest sessions when over the cap.
func (s *Store) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxSessions {
		return
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.Before(metas[j].UpdatedAt)
	})

	excess := len(metas) - s.MaxSessions
	for i := 0; i < excess; i++ {
		s.Delete(metas[i].ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a session by ID.
func (s *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved sessions, most recent first.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Meta{}, nil
		}
		return nil, err
	}

	var metas []Meta

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		sess, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip corrupted files.
			continue
		}

		metas = append(metas, sess.meta())
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	return metas, nil
}

// meta builds the listing view of a session.
func (sess *Session) meta() Meta {
	preview := ""
	for _, msg := range sess.Messages {
		if msg.Role == chat.RoleUser {
			preview = util.TruncateRunes(msg.Text(), 80)
			break
		}
	}

	return Meta{
		ID:           sess.ID,
		ProjectPath:  sess.ProjectPath,
		Title:        sess.Title,
		Model:        sess.Model,
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    sess.UpdatedAt,
		MessageCount: len(sess.Messages),
		Preview:      preview,
	}
}

// Search finds sessions whose title or preview matches the query,
// case-insensitive.
func (s *Store) Search(query string) ([]Meta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []Meta

	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}

	return results, nil
}

// SearchMessages finds sessions where any message contains the query,
// case-insensitive. An empty query returns all sessions.
func (s *Store) SearchMessages(query string) ([]Meta, error) {
	if query == "" {
		return s.List()
	}

	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []Meta

	for _, meta := range all {
		sess, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, msg := range sess.Messages {
			if strings.Contains(strings.ToLower(msg.Text()), query) {
				results = append(results, meta)
				break
			}
		}
	}

	return results, nil
}

// =============================================================================
// AGE GROUPING
// =============================================================================

// Group is one bucket of the age-grouped session list.
type Group struct {
	Label    string
	Sessions []Meta
}

// Group labels, oldest last.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupLastWeek  = "Last 7 Days"
	GroupOlder     = "Older"
)

// GroupByAge buckets sessions by how recently they were updated. Groups
// appear in fixed order and empty groups are omitted.
func GroupByAge(metas []Meta, now time.Time) []Group {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfYesterday := startOfToday.AddDate(0, 0, -1)
	startOfWeek := startOfToday.AddDate(0, 0, -7)

	buckets := map[string][]Meta{}
	for _, meta := range metas {
		switch {
		case !meta.UpdatedAt.Before(startOfToday):
			buckets[GroupToday] = append(buckets[GroupToday], meta)
		case !meta.UpdatedAt.Before(startOfYesterday):
			buckets[GroupYesterday] = append(buckets[GroupYesterday], meta)
		case !meta.UpdatedAt.Before(startOfWeek):
			buckets[GroupLastWeek] = append(buckets[GroupLastWeek], meta)
		default:
			buckets[GroupOlder] = append(buckets[GroupOlder], meta)
		}
	}

	var groups []Group
	for _, label := range []string{GroupToday, GroupYesterday, GroupLastWeek, GroupOlder} {
		if len(buckets[label]) > 0 {
			groups = append(groups, Group{Label: label, Sessions: buckets[label]})
		}
	}
	return groups
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a session by ID.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// Clear removes all saved sessions.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders the session transcript as Markdown.
func (sess *Session) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + sess.Title + "\n\n")
	sb.WriteString("Created: " + sess.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range sess.Messages {
		role := "**User**"
		if msg.Role == chat.RoleAssistant {
			role = "**Assistant**"
		}
		sb.WriteString(role + " (" + msg.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Text())
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// ExportJSON renders the session as pretty-printed JSON.
func (sess *Session) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(sess, "", "  ")
}

// =============================================================================
// HELPERS / ERRORS
// =============================================================================

// filePath returns the file path for a session ID.
func (s *Store) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// ErrSessionNotFound is returned when a session doesn't exist.
// Use errors.Is(err, ErrSessionNotFound) to check for this error.
var ErrSessionNotFound = &StoreError{Message: "session not found"}

// StoreError represents a session persistence error.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support by message identity.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
