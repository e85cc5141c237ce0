package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/states"
)

// Scenario defines a phase tracking scenario.
// Scenarios drive a tracker through phase switches and world mutations,
// then assert on the dispatched events and the final world.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// World seeds the in-memory world before any step runs.
	World WorldSetup `yaml:"world,omitempty"`

	// Listeners are subscribed to the event bus in order.
	Listeners []Listener `yaml:"listeners,omitempty"`

	// Hooks react to block changes applied by the world.
	Hooks []Hook `yaml:"hooks,omitempty"`

	// Steps run in order on the tracker's goroutine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, world and journal.
	Assertions []Assertion `yaml:"assertions"`
}

// Pos is a block position written as [x, y, z].
type Pos [3]int64

// BlockPos converts p to the domain type.
func (p Pos) BlockPos() ir.BlockPos {
	return ir.BlockPos{X: p[0], Y: p[1], Z: p[2]}
}

// EntitySpec describes an entity.
type EntitySpec struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
	Pos  Pos    `yaml:"pos,omitempty"`
}

// Entity converts s to the domain type.
func (s EntitySpec) Entity() ir.Entity {
	return ir.Entity{ID: ir.EntityID(s.ID), Kind: ir.EntityKind(s.Kind), Pos: s.Pos.BlockPos()}
}

// BlockSpec places a block state at a position.
type BlockSpec struct {
	Pos   Pos    `yaml:"pos"`
	State string `yaml:"state"`
}

// FuelSpec is an amount of fuel at a position.
type FuelSpec struct {
	Pos    Pos   `yaml:"pos"`
	Amount int64 `yaml:"amount"`
}

// DropSpec is an item drop. The owner is either an entity id (Owner) or a
// block position (OwnerBlock).
type DropSpec struct {
	Owner      string `yaml:"owner,omitempty"`
	OwnerBlock *Pos   `yaml:"owner_block,omitempty"`
	Item       string `yaml:"item"`
	Quantity   int64  `yaml:"quantity"`
	Pos        Pos    `yaml:"pos,omitempty"`
}

// Drop converts s to the domain type.
func (s DropSpec) Drop() ir.ItemDrop {
	owner := ir.OwnerID(s.Owner)
	if s.OwnerBlock != nil {
		owner = s.OwnerBlock.BlockPos().Owner()
	}
	return ir.ItemDrop{
		Owner: owner,
		Item:  ir.ItemStack{Type: s.Item, Quantity: s.Quantity},
		Pos:   s.Pos.BlockPos(),
	}
}

// WorldSetup seeds the world.
type WorldSetup struct {
	Blocks   []BlockSpec  `yaml:"blocks,omitempty"`
	Entities []EntitySpec `yaml:"entities,omitempty"`
	Fuel     []FuelSpec   `yaml:"fuel,omitempty"`
}

// Listener subscribes one cancellation rule. Cancel sets the decision,
// Uncancel clears it; a later listener sees and may reverse earlier ones.
type Listener struct {
	Cancel   *Match `yaml:"cancel,omitempty"`
	Uncancel *Match `yaml:"uncancel,omitempty"`
}

// Match selects events. Empty fields match anything.
type Match struct {
	Kind  string `yaml:"kind,omitempty"`
	State string `yaml:"state,omitempty"`
	Owner string `yaml:"owner,omitempty"` // drop_item owner
}

// Matches reports whether ev satisfies every set field.
func (m Match) Matches(ev event.Event) bool {
	if m.Kind != "" && string(ev.Kind()) != m.Kind {
		return false
	}
	if m.State != "" && ev.Header().State != m.State {
		return false
	}
	if m.Owner != "" {
		d, ok := ev.(*event.DropItem)
		if !ok || string(d.Owner) != m.Owner {
			return false
		}
	}
	return true
}

// Hook runs a mutation whenever the world applies a block change at At.
// The mutation goes through the primitives, so it is captured by whatever
// phase is current when the world applies the change.
type Hook struct {
	At    Pos         `yaml:"at"`
	Spawn *EntitySpec `yaml:"spawn,omitempty"`
	Place *BlockSpec  `yaml:"place,omitempty"`
	Drop  *DropSpec   `yaml:"drop,omitempty"`
}

// Source names a cause: a block position or an entity id from the world
// setup.
type Source struct {
	Block  *Pos   `yaml:"block,omitempty"`
	Entity string `yaml:"entity,omitempty"`
}

// Step is one scenario action. Exactly one action field is set.
type Step struct {
	// Switch pushes the named state.
	Switch   string  `yaml:"switch,omitempty"`
	Source   *Source `yaml:"source,omitempty"`
	Notifier string  `yaml:"notifier,omitempty"`
	Owner    string  `yaml:"owner,omitempty"`

	// Complete completes the named state; Expect checks the completion.
	Complete string            `yaml:"complete,omitempty"`
	Expect   *CompletionExpect `yaml:"expect,omitempty"`

	Spawn        *EntitySpec `yaml:"spawn,omitempty"`
	Place        *BlockSpec  `yaml:"place,omitempty"`
	Drop         *DropSpec   `yaml:"drop,omitempty"`
	ConsumeFuel  *FuelSpec   `yaml:"consume_fuel,omitempty"`
	RequestChunk *Pos        `yaml:"request_chunk,omitempty"`

	// Flag sets a named one-shot flag on the current phase.
	Flag string `yaml:"flag,omitempty"`

	// ExpectError names the error a primitive step must return:
	// chunk_denied or insufficient_fuel.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// action returns the name of the step's action, or "" if none is set.
func (s Step) action() (string, int) {
	name, n := "", 0
	set := func(ok bool, label string) {
		if ok {
			name = label
			n++
		}
	}
	set(s.Switch != "", "switch")
	set(s.Complete != "", "complete")
	set(s.Spawn != nil, "spawn")
	set(s.Place != nil, "place")
	set(s.Drop != nil, "drop")
	set(s.ConsumeFuel != nil, "consume_fuel")
	set(s.RequestChunk != nil, "request_chunk")
	set(s.Flag != "", "flag")
	return name, n
}

// CompletionExpect checks a CompletePhase result. Nil fields are not checked.
type CompletionExpect struct {
	Posted      *int     `yaml:"posted,omitempty"`
	Cancelled   *int     `yaml:"cancelled,omitempty"`
	ForcePopped *int     `yaml:"force_popped,omitempty"`
	Error       string   `yaml:"error,omitempty"` // PhaseError code
	Flags       []string `yaml:"flags,omitempty"`
}

// Assertion validates trace, world or journal state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event matching kind/state/cancelled/payload exists
	// - "trace_order": labels "kind/state" appear in this relative order
	// - "trace_count": exactly Count events match kind/state/cancelled
	// - "world_state": block, entity, item or fuel state after the run
	// - "final_depth": tracker depth after the run
	// - "final_state": query a journal table and verify expected values
	Type string `yaml:"type"`

	// Event matching (trace_contains, trace_count).
	Kind      string         `yaml:"kind,omitempty"`
	State     string         `yaml:"state,omitempty"`
	Cancelled *bool          `yaml:"cancelled,omitempty"`
	Payload   map[string]any `yaml:"payload,omitempty"`
	Cause     map[string]any `yaml:"cause,omitempty"` // cause context subset

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected relative order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// World checks (world_state). Set one.
	Block   *BlockSpec `yaml:"block,omitempty"`
	Entity  string     `yaml:"entity,omitempty"`
	Present *bool      `yaml:"present,omitempty"`
	Items   *int       `yaml:"items,omitempty"`
	Fuel    *FuelSpec  `yaml:"fuel,omitempty"`

	// Depth is the expected tracker depth (final_depth).
	Depth int `yaml:"depth,omitempty"`

	// Journal query (final_state).
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertWorldState    = "world_state"
	AssertFinalDepth    = "final_depth"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, l := range s.Listeners {
		if (l.Cancel == nil) == (l.Uncancel == nil) {
			return fmt.Errorf("listeners[%d]: exactly one of cancel or uncancel is required", i)
		}
	}

	for i, h := range s.Hooks {
		n := 0
		for _, set := range []bool{h.Spawn != nil, h.Place != nil, h.Drop != nil} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("hooks[%d]: exactly one of spawn, place or drop is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	name, n := s.action()
	if n != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, n)
	}

	switch name {
	case "switch":
		if _, ok := states.Default.Lookup(s.Switch); !ok {
			return fmt.Errorf("steps[%d]: unknown state %q", index, s.Switch)
		}
	case "complete":
		if _, ok := states.Default.Lookup(s.Complete); !ok {
			return fmt.Errorf("steps[%d]: unknown state %q", index, s.Complete)
		}
	case "flag":
		if _, ok := flagNames[s.Flag]; !ok {
			return fmt.Errorf("steps[%d]: unknown flag %q", index, s.Flag)
		}
	}

	if name != "switch" && (s.Source != nil || s.Notifier != "" || s.Owner != "") {
		return fmt.Errorf("steps[%d]: source, notifier and owner only apply to switch", index)
	}
	if name != "complete" && s.Expect != nil {
		return fmt.Errorf("steps[%d]: expect only applies to complete", index)
	}
	if s.Source != nil && (s.Source.Block == nil) == (s.Source.Entity == "") {
		return fmt.Errorf("steps[%d]: source needs exactly one of block or entity", index)
	}
	if s.ExpectError != "" {
		if _, ok := primitiveErrors[s.ExpectError]; !ok {
			return fmt.Errorf("steps[%d]: unknown expect_error %q", index, s.ExpectError)
		}
	}
	if s.Expect != nil {
		for _, f := range s.Expect.Flags {
			if _, ok := flagNames[f]; !ok {
				return fmt.Errorf("steps[%d].expect: unknown flag %q", index, f)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertWorldState:
		n := 0
		for _, set := range []bool{a.Block != nil, a.Entity != "", a.Items != nil, a.Fuel != nil} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("assertions[%d]: world_state needs exactly one of block, entity, items or fuel", index)
		}
	case AssertFinalDepth:
		if a.Depth < 1 {
			return fmt.Errorf("assertions[%d]: depth must be at least 1 for final_depth", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
