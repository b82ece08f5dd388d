package wire

import (
	"regexp"
	"strings"
)

var bareIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RewriteBareTableName expands a bare table name into a full SQL select,
// applied uniformly before encoding regardless of wire format (the
// reference SDK only performs this rewrite on its JSON path; this client
// performs it once in the Session for both encodings).
func RewriteBareTableName(query string) string {
	trimmed := strings.TrimSpace(query)
	if bareIdentifier.MatchString(trimmed) {
		return "SELECT * FROM " + trimmed
	}
	return query
}

// RewriteBareTableNames applies RewriteBareTableName to every query in qs.
func RewriteBareTableNames(qs []string) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = RewriteBareTableName(q)
	}
	return out
}
