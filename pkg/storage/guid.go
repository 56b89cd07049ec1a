package storage

import "strings"

const zeroWidthSpace = "\u200b"

// ObfuscateGUID inserts a zero-width space after every upper-case letter so
// spreadsheet tools stop treating GUIDs that differ only in case as equal.
func ObfuscateGUID(guid string) string {
	var b strings.Builder
	b.Grow(len(guid) * 2)
	for _, r := range guid {
		b.WriteRune(r)
		if r >= 'A' && r <= 'Z' {
			b.WriteString(zeroWidthSpace)
		}
	}
	return b.String()
}

// RevealGUID undoes ObfuscateGUID.
func RevealGUID(s string) string {
	return strings.ReplaceAll(s, zeroWidthSpace, "")
}
