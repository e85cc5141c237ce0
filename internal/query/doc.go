// Package query is a small predicate language for reading the event journal,
// with a compiler to parameterized SQLite.
//
// A Select names one table, an optional filter and the columns to return:
//
//	query.Select{
//	  From: "events",
//	  Filter: query.And{Predicates: []query.Predicate{
//	    query.Equals{Field: "run_id", Value: ir.IRString(runID)},
//	    query.Equals{Field: "cancelled", Value: ir.IRBool(true)},
//	  }},
//	  OrderBy: []string{"seq"},
//	}
//
// compiles to
//
//	SELECT * FROM events WHERE run_id = ? AND cancelled = ?
//	ORDER BY seq ASC, id COLLATE BINARY ASC
//
// Rules the compiler enforces:
//   - Every query ends in ORDER BY with id as the final tiebreaker, so
//     reads over the same rows always come back in the same order.
//   - Values are always bound as parameters. Table and column names are
//     interpolated and must therefore be plain identifiers.
//   - Equality against null is rejected; SQL NULL never compares equal.
//   - Booleans bind as 0 or 1, matching how the journal stores them.
//
// Only conjunctions of equality are supported. Scenario assertions and the
// CLI filters need nothing more.
package query
