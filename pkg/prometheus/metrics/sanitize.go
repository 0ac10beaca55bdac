package metrics

import "strings"

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// sanitize escapes backslashes, quotes and newlines in label values.
func sanitize(s string) string {
	if !strings.ContainsAny(s, "\"\\\n") {
		return s
	}
	return labelEscaper.Replace(s)
}
