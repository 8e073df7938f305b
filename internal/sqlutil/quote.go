// Package sqlutil provides SQL text helpers shared by the query builder.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table, column, alias) with
// backticks, escaping any backticks inside the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// Qualify returns alias.column with both parts quoted. An empty alias yields
// the bare quoted column.
func Qualify(alias, column string) string {
	if alias == "" {
		return QuoteIdentifier(column)
	}
	return QuoteIdentifier(alias) + "." + QuoteIdentifier(column)
}

// EscapeLike escapes the LIKE metacharacters in a literal match fragment so
// user input cannot widen a pattern.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
