// Package email derives display fields from email addresses.
package email

import (
	"strings"
	"unicode"
)

// DeriveFullName builds a display name from the local part of an address:
// "ada.lovelace@example.com" becomes "Ada Lovelace". Registration uses it as
// a fallback when no name is supplied.
func DeriveFullName(email string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Employee"
	}

	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
