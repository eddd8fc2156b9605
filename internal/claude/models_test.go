// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import "testing"

func TestModelByID(t *testing.T) {
	m, ok := ModelByID(DefaultModel)
	if !ok {
		t.Fatalf("default model %q missing from catalogue", DefaultModel)
	}
	if m.Name == "" || m.Description == "" {
		t.Errorf("catalogue entry incomplete: %+v", m)
	}

	if _, ok := ModelByID("no-such-model"); ok {
		t.Error("ModelByID matched an unknown ID")
	}
}

func TestCatalogueDefaultFirst(t *testing.T) {
	if len(AvailableModels) == 0 {
		t.Fatal("empty model catalogue")
	}
	if AvailableModels[0].ID != DefaultModel {
		t.Errorf("first entry = %q, want default %q", AvailableModels[0].ID, DefaultModel)
	}
}
