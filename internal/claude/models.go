// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

// =============================================================================
// MODEL CATALOGUE
// =============================================================================

// DefaultModel is used when neither config nor flags select one.
const DefaultModel = "claude-4.5"

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AvailableModels lists the models offered in the picker, default first.
// The CLI accepts IDs outside this list; the catalogue is a convenience,
// not a gate.
var AvailableModels = []ModelInfo{
	{ID: "claude-4.5", Name: "Claude 4.5", Description: "Balanced quality and speed"},
	{ID: "claude-opus-4.5", Name: "Claude Opus 4.5", Description: "Strongest reasoning"},
	{ID: "claude-haiku-4.5", Name: "Claude Haiku 4.5", Description: "Fastest responses"},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "Google Gemini"},
	{ID: "gpt-5.1", Name: "GPT 5.1", Description: "OpenAI GPT"},
	{ID: "deepseek-v3-2-volc-ioa", Name: "DeepSeek V3", Description: "DeepSeek"},
}

// ModelByID looks up a catalogue entry, reporting whether it exists.
func ModelByID(id string) (ModelInfo, bool) {
	for _, m := range AvailableModels {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}
