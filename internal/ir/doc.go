// Package ir provides the shared value types for phasetrack.
//
// This package contains world object types (entities, item stacks, block
// snapshots), the constrained value tree used for event payloads, and the
// canonical encoding used for content-addressed event identity. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in payloads - coordinates and quantities are int64
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
