package security

import "strings"

var htmlReplacer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// Sanitize escapes HTML-significant characters in strings and trims surrounding
// whitespace. Values of any other type are returned unchanged.
func Sanitize(input any) any {
	s, ok := input.(string)
	if !ok {
		return input
	}
	return SanitizeString(s)
}

// SanitizeString is the typed form of Sanitize.
// It does not protect SQL; queries are parameterized.
func SanitizeString(s string) string {
	return strings.TrimSpace(htmlReplacer.Replace(s))
}
