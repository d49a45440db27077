package repository

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/orgdir/orgdir/internal/model"
)

// assignment is one "column = value" pair of a sparse UPDATE.
type assignment struct {
	column string
	value  any
}

// buildUpdate renders an UPDATE of the row with the given id, setting only the
// supplied assignments and returning the listed columns. Identifiers are quoted
// and values are bound as parameters.
func buildUpdate(table string, id int64, sets []assignment, returning []string) (string, []any) {
	clauses := make([]string, 0, len(sets))
	args := make([]any, 0, len(sets)+1)

	for i, set := range sets {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(set.column), i+1))
		args = append(args, set.value)
	}
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d RETURNING %s",
		pq.QuoteIdentifier(table),
		strings.Join(clauses, ", "),
		len(args),
		quoteColumns(returning),
	)

	return query, args
}

// appendOptional adds an assignment when the field is present in the patch.
// An explicit null is written as SQL NULL.
func appendOptional[T any](sets []assignment, column string, field model.Optional[T]) []assignment {
	if !field.IsSet() {
		return sets
	}
	if v, ok := field.Value(); ok {
		return append(sets, assignment{column: column, value: v})
	}
	return append(sets, assignment{column: column, value: nil})
}

func quoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pq.QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}
