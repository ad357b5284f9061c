// Package naming converts field names between the wire convention (lower
// camelCase) used in request and response payloads and the storage
// convention (snake_case) used by the persistence layer.
package naming

import (
	"strings"
	"unicode"
)

// ToStorageName converts a wire name to its storage name.
//
// An underscore is inserted before an uppercase letter that follows a
// lowercase letter, and before an uppercase letter that is not followed by
// another uppercase letter or the end of the string. The result is
// lowercased and stripped of leading and trailing underscores.
//
//	userName   -> user_name
//	PMSystemID -> pm_system_id
//	HTTPServer -> http_server
func ToStorageName(wire string) string {
	if wire == "" {
		return wire
	}
	runes := []rune(wire)
	var b strings.Builder
	b.Grow(len(wire) + 4)
	for i, r := range runes {
		if isUpperASCII(r) {
			afterLower := i > 0 && isLowerASCII(runes[i-1])
			beforeBoundary := i+1 < len(runes) && !isUpperASCII(runes[i+1])
			if afterLower || beforeBoundary {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.Trim(strings.ToLower(b.String()), "_")
}

// ToWireName converts a storage name to its wire name.
//
// Each underscore followed by a letter, except at the start of the string,
// is removed and the letter uppercased. An underscore followed by a digit is
// kept, so address_line_1 becomes addressLine_1 and not addressLine1.
func ToWireName(storage string) string {
	if !strings.Contains(storage, "_") {
		return storage
	}
	runes := []rune(storage)
	var b strings.Builder
	b.Grow(len(storage))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '_' && i > 0 && i+1 < len(runes) && isLetterASCII(runes[i+1]) {
			b.WriteRune(unicode.ToUpper(runes[i+1]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TitleCaseToWire converts a title-case name, as returned by stored
// procedures, to its wire name.
//
//	SSN        -> ssn
//	PMSystemID -> pmSystemId
//	FirstName  -> firstName
//	UnitIDs    -> unitIds
func TitleCaseToWire(title string) string {
	if title == "" {
		return title
	}
	if isAllUpper(title) {
		return strings.ToLower(title)
	}

	runes := []rune(title)
	val := string(unicode.ToLower(runes[0])) + string(runes[1:])

	front := 0
	for front < len(runes) && isUpperASCII(runes[front]) {
		front++
	}
	if front > 1 {
		folded := strings.ToLower(string(runes[:front-1]))
		val = folded + string(runes[front-1:])
	}

	switch {
	case strings.HasSuffix(val, "ID"):
		val = strings.TrimSuffix(val, "ID") + "Id"
	case strings.HasSuffix(val, "IDs"):
		val = strings.TrimSuffix(val, "IDs") + "Ids"
	}
	return val
}

// StorageToTitleCase converts a storage name to title case by capitalizing
// each underscore-separated word: pm_system_id -> PmSystemId.
func StorageToTitleCase(storage string) string {
	var b strings.Builder
	b.Grow(len(storage))
	startOfWord := true
	for _, r := range storage {
		if r == '_' || r == ' ' {
			startOfWord = true
			continue
		}
		if !unicode.IsLetter(r) {
			b.WriteRune(r)
			startOfWord = true
			continue
		}
		if startOfWord {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		startOfWord = false
	}
	return b.String()
}

func isUpperASCII(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func isLowerASCII(r rune) bool {
	return r >= 'a' && r <= 'z'
}

func isLetterASCII(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isAllUpper reports whether s has at least one cased letter and no
// lowercase letters.
func isAllUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
