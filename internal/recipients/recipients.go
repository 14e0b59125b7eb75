// Package recipients parses the free-text recipient list stored in the report
// configuration.
package recipients

import (
	"strings"
)

// Parse splits a configured recipient string on commas, semicolons and
// newlines, trims each entry and drops empties. The result preserves the
// configured order.
func Parse(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}
