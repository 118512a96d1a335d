// Package email derives display values from email addresses.
package email

import (
	"strings"
	"unicode"
)

// DisplayName turns the local part of an address into a capitalized name:
// "john.smith@co.com" becomes "John Smith". An empty local part yields "User".
func DisplayName(address string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(address), "@")
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
