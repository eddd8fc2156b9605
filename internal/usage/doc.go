// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usage records per-turn token consumption and cost.
//
// Records are appended after each completed turn and kept in a bounded
// recent window backed by SQLite. Aggregations (daily, per-model, last
// seven days) are computed over the stored window.
package usage
