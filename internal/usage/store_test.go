// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"math"
	"path/filepath"
	"testing"
)

func testUsageStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStoreWithPath(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewStoreWithPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// =============================================================================
// PRICING TESTS
// =============================================================================

func TestCost(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
	}{
		{"sonnet rates", "claude-4.5", 1_000_000, 1_000_000, 18.0},
		{"opus rates", "claude-4-opus", 1_000_000, 0, 15.0},
		{"haiku rates", "claude-3.5-haiku", 0, 1_000_000, 4.0},
		{"unknown model uses default", "mystery-model", 1_000_000, 1_000_000, 18.0},
		{"small turn", "claude-4.5", 5, 2, 5.0/1_000_000*3.0 + 2.0/1_000_000*15.0},
		{"zero tokens", "claude-4.5", 0, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Cost(tc.model, tc.input, tc.output)
			if !approxEqual(got, tc.want) {
				t.Errorf("Cost() = %v, want %v", got, tc.want)
			}
		})
	}
}

// =============================================================================
// RECORDING TESTS
// =============================================================================

func TestStore_AddAndRecords(t *testing.T) {
	store := testUsageStore(t)

	rec, err := store.Add("claude-4.5", 100, 50, "sess-1", "/tmp/p")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rec.ID == "" {
		t.Error("ID must be generated")
	}
	if !approxEqual(rec.Cost, Cost("claude-4.5", 100, 50)) {
		t.Errorf("Cost = %v", rec.Cost)
	}

	records, err := store.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].SessionID != "sess-1" || records[0].ProjectPath != "/tmp/p" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestStore_WindowCapped(t *testing.T) {
	store := testUsageStore(t)

	for i := 0; i < MaxRecords+25; i++ {
		if _, err := store.Add("claude-4.5", 1, 1, "", ""); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}

	records, err := store.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != MaxRecords {
		t.Errorf("records = %d, want %d", len(records), MaxRecords)
	}
}

func TestStore_RecordUsageNeverPanics(t *testing.T) {
	store := testUsageStore(t)
	store.Close()

	// Database closed: the collaborator path logs and moves on.
	store.RecordUsage("claude-4.5", 1, 1, "s")
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestStore_Total(t *testing.T) {
	store := testUsageStore(t)

	store.Add("claude-4.5", 100, 50, "", "")
	store.Add("claude-4-opus", 10, 5, "", "")

	total, err := store.Total()
	if err != nil {
		t.Fatalf("Total: %v", err)
	}

	if total.InputTokens != 110 || total.OutputTokens != 55 {
		t.Errorf("tokens = %d/%d, want 110/55", total.InputTokens, total.OutputTokens)
	}
	if total.TotalTokens != 165 {
		t.Errorf("TotalTokens = %d, want 165", total.TotalTokens)
	}
	if total.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", total.RequestCount)
	}

	wantCost := Cost("claude-4.5", 100, 50) + Cost("claude-4-opus", 10, 5)
	if !approxEqual(total.Cost, wantCost) {
		t.Errorf("Cost = %v, want %v", total.Cost, wantCost)
	}
}

func TestStore_TotalEmpty(t *testing.T) {
	store := testUsageStore(t)

	total, err := store.Total()
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if total.RequestCount != 0 || total.TotalTokens != 0 {
		t.Errorf("empty totals = %+v", total)
	}
}

func TestStore_ByModel(t *testing.T) {
	store := testUsageStore(t)

	store.Add("claude-4.5", 100, 100, "", "")
	store.Add("claude-4.5", 100, 100, "", "")
	store.Add("claude-4-opus", 100, 100, "", "")

	stats, err := store.ByModel()
	if err != nil {
		t.Fatalf("ByModel: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("models = %d, want 2", len(stats))
	}

	// Opus is pricier per token, so one opus turn outranks two sonnet.
	if stats[0].Model != "claude-4-opus" {
		t.Errorf("first model = %q, want claude-4-opus (cost-ordered)", stats[0].Model)
	}
	if stats[1].Count != 2 || stats[1].Tokens != 400 {
		t.Errorf("sonnet stats = %+v", stats[1])
	}
}

func TestStore_Daily(t *testing.T) {
	store := testUsageStore(t)

	store.Add("claude-4.5", 10, 20, "", "")
	store.Add("claude-4.5", 30, 40, "", "")

	stats, err := store.Daily()
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	// Both records land today.
	if len(stats) != 1 {
		t.Fatalf("days = %d, want 1", len(stats))
	}
	if stats[0].InputTokens != 40 || stats[0].OutputTokens != 60 || stats[0].RequestCount != 2 {
		t.Errorf("day stats = %+v", stats[0])
	}
	if len(stats[0].Date) != len("2006-01-02") {
		t.Errorf("Date = %q, want YYYY-MM-DD", stats[0].Date)
	}
}

func TestStore_LastNDays(t *testing.T) {
	store := testUsageStore(t)
	store.Add("claude-4.5", 7, 3, "", "")

	totals, err := store.LastNDays(7)
	if err != nil {
		t.Fatalf("LastNDays: %v", err)
	}
	if totals.TotalTokens != 10 || totals.RequestCount != 1 {
		t.Errorf("totals = %+v", totals)
	}
}

// =============================================================================
// MAINTENANCE TESTS
// =============================================================================

func TestStore_ClearAndExport(t *testing.T) {
	store := testUsageStore(t)
	store.Add("claude-4.5", 1, 1, "", "")

	data, err := store.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if len(data) == 0 || data[0] != '[' {
		t.Errorf("export = %q, want a JSON array", string(data[:min(len(data), 20)]))
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	total, _ := store.Total()
	if total.RequestCount != 0 {
		t.Errorf("RequestCount after clear = %d, want 0", total.RequestCount)
	}

	data, _ = store.ExportJSON()
	if string(data) != "[]" {
		t.Errorf("empty export = %q, want []", string(data))
	}
}
