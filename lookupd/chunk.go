package lookupd

import "unicode/utf8"

// split cuts s into pieces of at most size bytes without splitting a rune.
// A rune wider than size gets a piece of its own.
func split(s string, size int) []string {
	if size <= 0 || len(s) <= size {
		return []string{s}
	}
	parts := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if len(s) > 0 {
		parts = append(parts, s)
	}
	return parts
}
