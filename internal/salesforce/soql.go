package salesforce

import (
	"sort"
	"strings"

	"wc-salesforce-sync/internal/value"
)

var soqlReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\b", `\b`,
	"\f", `\f`,
)

// EscapeSOQL escapes s for use inside a single-quoted SOQL string literal.
func EscapeSOQL(s string) string {
	return soqlReplacer.Replace(s)
}

// lookupQuery builds "SELECT Id FROM T WHERE a=1 AND b='x'" from values.
// Boolean values are skipped, numeric values are left unquoted. Fields are
// emitted in name order. ok is false when no field can be filtered on.
func lookupQuery(objectType string, values map[string]interface{}) (query string, ok bool) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	for _, k := range keys {
		v := values[k]
		if value.IsBoolean(v) {
			continue
		}
		if value.IsNumeric(v) {
			conds = append(conds, k+"="+strings.TrimSpace(value.String(v)))
		} else {
			conds = append(conds, k+"='"+EscapeSOQL(value.String(v))+"'")
		}
	}
	if len(conds) == 0 {
		return "", false
	}
	return "SELECT Id FROM " + objectType + " WHERE " + strings.Join(conds, " AND "), true
}
