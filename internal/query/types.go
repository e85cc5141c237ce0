package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/phasetrack/internal/ir"
)

// Predicate is a filter condition. Only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose Field equals Value.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And matches rows that satisfy every predicate. An empty And matches all
// rows; nil entries are skipped.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Select reads rows from one table.
type Select struct {
	From    string    // table name
	Columns []string  // nil selects every column
	Filter  Predicate // nil matches every row
	OrderBy []string  // sort columns, ascending; id is always appended last
}

// Where builds a conjunction of Equals from plain values, as decoded from
// YAML or JSON. Keys are sorted so the compiled SQL is stable. An empty map
// yields a nil predicate.
func Where(fields map[string]any) (Predicate, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, k := range keys {
		v, err := ir.ToIRValue(fields[k])
		if err != nil {
			return nil, fmt.Errorf("where %s: %w", k, err)
		}
		preds = append(preds, Equals{Field: k, Value: v})
	}
	return And{Predicates: preds}, nil
}

// Describe renders p for humans, e.g. "kind=drop_item AND cancelled=true".
func Describe(p Predicate) string {
	parts := describe(p, nil)
	if len(parts) == 0 {
		return "(no conditions)"
	}
	return strings.Join(parts, " AND ")
}

func describe(p Predicate, parts []string) []string {
	switch pred := p.(type) {
	case Equals:
		return append(parts, pred.Field+"="+describeValue(pred.Value))
	case And:
		for _, sub := range pred.Predicates {
			parts = describe(sub, parts)
		}
	}
	return parts
}

func describeValue(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return fmt.Sprintf("%d", int64(val))
	case ir.IRBool:
		return fmt.Sprintf("%t", bool(val))
	case nil, ir.IRNull:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
