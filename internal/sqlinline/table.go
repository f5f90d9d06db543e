package sqlinline

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

const tablePlaceholder = "{{table}}"

// WithTable substitutes the quoted table identifier into a statement whose
// table name is configured at runtime.
func WithTable(query, table string) string {
	return strings.ReplaceAll(query, tablePlaceholder, pgx.Identifier{table}.Sanitize())
}
