package search

import (
	"strings"

	"github.com/uptrace/bun"
)

const maxQueryLength = 100

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns user input into a lowercase LIKE pattern matching it
// as a literal substring. Wildcards in the input are escaped with a
// backslash, so the pattern must be paired with ESCAPE '\'. Blank input
// returns "".
func ContainsPattern(input string) string {
	input = strings.TrimSpace(input)
	if len(input) > maxQueryLength {
		input = input[:maxQueryLength]
	}
	if input == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(strings.ToLower(input)) + "%"
}

// WhereContains restricts q to rows where any of columns contains input,
// case-insensitively. Columns are SQL identifiers and must not come from user
// input. Blank input leaves q untouched.
func WhereContains(q *bun.SelectQuery, input string, columns ...string) *bun.SelectQuery {
	pattern := ContainsPattern(input)
	if pattern == "" || len(columns) == 0 {
		return q
	}
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, col := range columns {
			q = q.WhereOr(`LOWER(?) LIKE ? ESCAPE '\'`, bun.Safe(col), pattern)
		}
		return q
	})
}
