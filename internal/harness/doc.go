// Package harness runs YAML scenarios against a phase tracker.
//
// A scenario seeds an in-memory world, subscribes cancellation listeners,
// drives the tracker through phase switches and world mutations, and then
// asserts on the dispatched events, the final world and the event journal.
//
// # Scenario Format
//
//	name: entity_death_cancel_items
//	description: "Cancelling the item drop event keeps the orb"
//	world:
//	  entities:
//	    - { id: z-1, kind: mob, pos: [10, 64, 10] }
//	listeners:
//	  - cancel: { kind: drop_item }
//	steps:
//	  - switch: entity_death
//	    source: { entity: z-1 }
//	  - drop: { owner: z-1, item: rotten_flesh, quantity: 1 }
//	  - spawn: { id: orb-1, kind: experience_orb }
//	  - complete: entity_death
//	    expect: { posted: 2, cancelled: 1 }
//	assertions:
//	  - type: world_state
//	    entity: orb-1
//	  - type: trace_count
//	    kind: drop_item
//	    cancelled: true
//	    count: 1
//
// Hooks run a mutation when the world applies a block change at a
// position. Block changes are applied inside a nested neighbor_notify
// phase, so hook mutations are captured and replayed by that phase.
//
// # Assertion Types
//
//   - trace_contains: some event matches kind, state, cancelled, payload and cause context
//   - trace_order: "kind/state" labels appear in the given relative order
//   - trace_count: exactly N events match
//   - world_state: a block, entity, ground item count or fuel level
//   - final_depth: tracker depth after the last step
//   - final_state: queries a journal table (runs, events) and verifies expected values
//
// # Deterministic Testing
//
// Every run uses a fresh testutil.Fixture (deterministic ids and logical
// clock) and an in-memory SQLite journal, so traces are identical across
// runs and can be compared against golden files with RunWithGolden.
package harness
