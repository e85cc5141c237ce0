package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/phasetrack/internal/ir"
)

// identifier matches names that may be interpolated into SQL.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// tiebreaker ends every ORDER BY.
const tiebreaker = "id COLLATE BINARY ASC"

// Compile converts q to parameterized SQLite. It returns the SQL text and
// the values bound to its placeholders, in order.
func Compile(q Select) (string, []any, error) {
	if !identifier.MatchString(q.From) {
		return "", nil, fmt.Errorf("invalid table name %q: must match pattern %s", q.From, identifier)
	}

	columns := "*"
	if len(q.Columns) > 0 {
		for _, c := range q.Columns {
			if !identifier.MatchString(c) {
				return "", nil, fmt.Errorf("invalid column name %q: must match pattern %s", c, identifier)
			}
		}
		columns = strings.Join(q.Columns, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", columns, q.From)

	var params []any
	if q.Filter != nil {
		where, p, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if where != "" {
			b.WriteString(" WHERE ")
			b.WriteString(where)
			params = p
		}
	}

	order, err := orderBy(q.OrderBy)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(order)

	return b.String(), params, nil
}

func orderBy(columns []string) (string, error) {
	parts := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		if !identifier.MatchString(c) {
			return "", fmt.Errorf("invalid column name %q in order by: must match pattern %s", c, identifier)
		}
		if c == "id" {
			continue
		}
		parts = append(parts, c+" ASC")
	}
	return strings.Join(append(parts, tiebreaker), ", "), nil
}

// compilePredicate returns an empty fragment for predicates that match
// every row.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, nil
	case Equals:
		return compileEquals(pred)
	case And:
		var parts []string
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			if sql == "" {
				continue
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	if !identifier.MatchString(eq.Field) {
		return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", eq.Field, identifier)
	}
	param, err := toParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", eq.Field, err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

// toParam converts v to a value database/sql can bind.
func toParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case nil, ir.IRNull:
		return nil, fmt.Errorf("comparison with null never matches")
	default:
		return nil, fmt.Errorf("%T cannot be bound as a parameter", v)
	}
}
