package process

import "unicode/utf8"

// TruncatedSuffix marks output that was cut short.
const TruncatedSuffix = " ... truncated"

// Truncate shortens s to at most max bytes, cutting at a rune boundary,
// and appends TruncatedSuffix when anything was removed.
func Truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncatedSuffix
}

// TruncateJSON shortens s so that its JSON string encoding, without the
// surrounding quotes, is at most max bytes including TruncatedSuffix.
// Control bytes and invalid UTF-8 count at their escaped width.
func TruncateJSON(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if EncodedLen(s) <= max {
		return s
	}

	budget := max - len(TruncatedSuffix)
	size, cut := 0, 0
	for cut < len(s) {
		r, width := utf8.DecodeRuneInString(s[cut:])
		n := escapedWidth(r, width)
		if size+n > budget {
			break
		}
		size += n
		cut += width
	}
	return s[:cut] + TruncatedSuffix
}

// EncodedLen returns the length of s once encoded as a JSON string body
// with HTML escaping disabled.
func EncodedLen(s string) int {
	n := 0
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		n += escapedWidth(r, width)
		i += width
	}
	return n
}

func escapedWidth(r rune, width int) int {
	switch {
	case r == utf8.RuneError && width == 1:
		return len(`\ufffd`)
	case r == '"' || r == '\\' || r == '\n' || r == '\r' || r == '\t':
		return 2
	case r < 0x20:
		return len(`\u0000`)
	case r == '\u2028' || r == '\u2029':
		return len(`\u2028`)
	}
	return width
}
