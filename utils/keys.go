// utils/keys.go
package utils

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// File-name segment cap keeps the full object key well inside R2's 1024-byte key limit.
const maxFileNameLen = 120

// SanitizeFileName makes a remote file name safe to embed in an object key:
// path separators become '-', control characters are dropped, ".." sequences
// are collapsed, and the result is bounded to maxFileNameLen bytes. A name
// that sanitizes to nothing falls back to "file-<externalID>".
func SanitizeFileName(name, externalID string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('-')
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	for strings.Contains(cleaned, "..") {
		cleaned = strings.ReplaceAll(cleaned, "..", ".")
	}
	cleaned = strings.Trim(cleaned, ". ")

	if len(cleaned) > maxFileNameLen {
		cleaned = cleaned[:maxFileNameLen]
		for len(cleaned) > 0 && !utf8.ValidString(cleaned) {
			cleaned = cleaned[:len(cleaned)-1]
		}
		cleaned = strings.Trim(cleaned, ". ")
	}

	if cleaned == "" {
		return "file-" + sanitizeKeySegment(externalID)
	}
	return cleaned
}

// BuildObjectKey derives the storage key for one mirrored file:
//
//	<prefix>/<external-file-id>/<sanitized-name>
//
// The prefix is the organization's storage_prefix override when one is set,
// otherwise the deterministic default orgs/<orgID>/<provider>/<userID>.
func BuildObjectKey(storagePrefix *string, orgID, provider, userID, externalID, fileName string) string {
	var prefix string
	if storagePrefix != nil && strings.Trim(*storagePrefix, "/ ") != "" {
		prefix = strings.Trim(*storagePrefix, "/ ")
	} else {
		prefix = fmt.Sprintf("orgs/%s/%s/%s", orgID, provider, userID)
	}

	id := sanitizeKeySegment(externalID)
	return fmt.Sprintf("%s/%s/%s", prefix, id, SanitizeFileName(fileName, externalID))
}

// sanitizeKeySegment guards external ids used as a key path segment. Provider
// ids never contain separators in practice, but a malformed one must not be
// able to nest or escape the prefix.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	return s
}
