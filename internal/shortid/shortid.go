// Package shortid maps full entity ids to the compact decimal tokens shown in
// task references and deep links.
//
// A short id is the base-10 value of the first six hex digits of the dashless
// full id. Two ids sharing a prefix map to the same short id; callers that
// resolve short ids search the store by prefix and accept the first match.
package shortid

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	prefixLen = 6
	// maxShortLen is exclusive: tokens of 15 or more digits are never short ids.
	maxShortLen = 15
	maxPrefix   = 0xFFFFFF
)

var digitsPattern = regexp.MustCompile(`^\d+$`)

// Encode returns the short id for fullID, or "" when the id does not start
// with six hex digits.
func Encode(fullID string) string {
	prefix := Prefix(fullID)
	if prefix == "" {
		return ""
	}
	value, err := strconv.ParseUint(prefix, 16, 32)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(value, 10)
}

// Decode returns the six-character hex prefix a short id stands for. The
// result is only a prefix; the full id must be looked up in the store.
func Decode(shortID string) string {
	shortID = strings.TrimSpace(shortID)
	if !digitsPattern.MatchString(shortID) {
		return ""
	}
	value, err := strconv.ParseUint(shortID, 10, 64)
	if err != nil || value > maxPrefix {
		return ""
	}
	hex := strconv.FormatUint(value, 16)
	return strings.Repeat("0", prefixLen-len(hex)) + hex
}

// IsShortForm reports whether token should be treated as a short id rather
// than a full id.
func IsShortForm(token string) bool {
	return len(token) < maxShortLen && digitsPattern.MatchString(token)
}

// Prefix returns the lowercase first six hex digits of fullID with dashes
// removed, or "" if there are not six hex digits at the start.
func Prefix(fullID string) string {
	stripped := strings.ReplaceAll(fullID, "-", "")
	if len(stripped) < prefixLen {
		return ""
	}
	prefix := strings.ToLower(stripped[:prefixLen])
	for _, r := range prefix {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ""
		}
	}
	return prefix
}
