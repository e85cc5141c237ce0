package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/query"
	"github.com/roach88/phasetrack/internal/store"
	"github.com/roach88/phasetrack/internal/world"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []event.Record // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, rec := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s cancelled=%v\n", rec.Seq, label(rec), rec.Cancelled)
		}
	}
	return buf.String()
}

// label renders an event as "kind/state", the form used by trace_order.
func label(rec event.Record) string {
	return string(rec.Kind) + "/" + rec.State
}

// matchEvent reports whether rec satisfies the event fields of a.
func matchEvent(rec event.Record, a Assertion) (bool, error) {
	if a.Kind != "" && string(rec.Kind) != a.Kind {
		return false, nil
	}
	if a.State != "" && rec.State != a.State {
		return false, nil
	}
	if a.Cancelled != nil && rec.Cancelled != *a.Cancelled {
		return false, nil
	}
	if len(a.Payload) > 0 {
		ok, err := matchSubset(rec.Payload, a.Payload)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(a.Cause) > 0 {
		ctx, _ := rec.Cause["context"].(ir.IRObject)
		ok, err := matchSubset(ctx, a.Cause)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// assertTraceContains checks that some event matches the assertion.
func assertTraceContains(trace []event.Record, a Assertion) error {
	for _, rec := range trace {
		ok, err := matchEvent(rec, a)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeMatch(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that labels appear in the given relative order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []event.Record, a Assertion) error {
	next := 0
	for _, rec := range trace {
		if next < len(a.Events) && label(rec) == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("matched %d of %d, first missing %s", next, len(a.Events), a.Events[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count events match.
func assertTraceCount(trace []event.Record, a Assertion) error {
	count := 0
	for _, rec := range trace {
		ok, err := matchEvent(rec, a)
		if err != nil {
			return err
		}
		if ok {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events matching %s", a.Count, describeMatch(a)),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertWorldState checks one aspect of the final world.
func assertWorldState(w *world.Memory, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: AssertWorldState, Expected: expected, Actual: actual}
	}

	switch {
	case a.Block != nil:
		pos := a.Block.Pos.BlockPos()
		if got := w.Block(pos); string(got) != a.Block.State {
			return fail(fmt.Sprintf("block %s = %s", pos, a.Block.State), string(got))
		}
	case a.Entity != "":
		want := a.Present == nil || *a.Present
		_, got := w.Entity(ir.EntityID(a.Entity))
		if got != want {
			return fail(fmt.Sprintf("entity %s present=%v", a.Entity, want), fmt.Sprintf("present=%v", got))
		}
	case a.Items != nil:
		if got := len(w.Items()); got != *a.Items {
			return fail(fmt.Sprintf("%d ground items", *a.Items), fmt.Sprintf("%d ground items", got))
		}
	case a.Fuel != nil:
		pos := a.Fuel.Pos.BlockPos()
		if got := w.Fuel(pos); got != a.Fuel.Amount {
			return fail(fmt.Sprintf("fuel at %s = %d", pos, a.Fuel.Amount), fmt.Sprintf("%d", got))
		}
	}
	return nil
}

// assertFinalDepth checks the tracker depth after the last step.
func assertFinalDepth(depth int, a Assertion) error {
	if depth != a.Depth {
		return &AssertionError{
			Type:     AssertFinalDepth,
			Expected: fmt.Sprintf("depth %d", a.Depth),
			Actual:   fmt.Sprintf("depth %d", depth),
		}
	}
	return nil
}

// assertFinalState checks that a journal table contains expected values.
// Queries the table with parameterized SQL and validates expected values
// using subset semantics.
//
// Table and column names are checked by the query compiler before they
// reach SQL; values are always bound.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	filter, err := query.Where(a.Where)
	if err != nil {
		return err
	}
	sqlText, args, err := query.Compile(query.Select{From: a.Table, Filter: filter})
	if err != nil {
		return err
	}

	rows, err := st.Query(ctx, sqlText, args...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, query.Describe(filter)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Multiple matching rows would make the assertion ambiguous
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, query.Describe(filter)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any)
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	for key, expectedValue := range a.Expect {
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

// stateValuesEqual compares expected YAML values with SQLite column values.
// SQLite returns int64 for integers (including booleans) and string or
// []byte for text.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		s, ok := actual.(string)
		return ok && exp == s
	case int:
		n, ok := actual.(int64)
		return ok && int64(exp) == n
	case int64:
		n, ok := actual.(int64)
		return ok && exp == n
	case bool:
		n, ok := actual.(int64)
		return ok && exp == (n != 0)
	}
	return reflect.DeepEqual(expected, actual)
}

// matchSubset checks that actual contains every expected key with an equal
// value. Nested objects match by subset; arrays and scalars exactly.
func matchSubset(actual ir.IRObject, expected map[string]any) (bool, error) {
	want, err := ir.ToIRValue(expected)
	if err != nil {
		return false, fmt.Errorf("expected values: %w", err)
	}
	return subsetOf(actual, want.(ir.IRObject)), nil
}

func subsetOf(actual, expected ir.IRObject) bool {
	for key, exp := range expected {
		act, ok := actual[key]
		if !ok {
			return false
		}
		expObj, isObj := exp.(ir.IRObject)
		if isObj {
			actObj, ok := act.(ir.IRObject)
			if !ok || !subsetOf(actObj, expObj) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(act, exp) {
			return false
		}
	}
	return true
}

func describeMatch(a Assertion) string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.State != "" {
		parts = append(parts, "state="+a.State)
	}
	if a.Cancelled != nil {
		parts = append(parts, fmt.Sprintf("cancelled=%v", *a.Cancelled))
	}
	if len(a.Payload) > 0 {
		parts = append(parts, fmt.Sprintf("payload includes %v", a.Payload))
	}
	if len(a.Cause) > 0 {
		parts = append(parts, fmt.Sprintf("cause includes %v", a.Cause))
	}
	if len(parts) == 0 {
		return "any event"
	}
	return strings.Join(parts, " ")
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	World *world.Memory
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalDepth:
			err = assertFinalDepth(result.Depth, a)
		case AssertWorldState:
			if actx == nil || actx.World == nil {
				err = fmt.Errorf("assertion[%d]: world_state requires a world", i)
			} else {
				err = assertWorldState(actx.World, a)
			}
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
