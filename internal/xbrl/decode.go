package xbrl

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeDocument decodes raw document bytes as UTF-8; on invalid UTF-8 it
// falls back to latin-1, returning whether the fallback was used so the
// caller can log a warning.
func decodeDocument(raw []byte) (text string, usedFallback bool) {
	if utf8.Valid(raw) {
		return string(raw), false
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// Last resort: return the raw bytes as-is; downstream XML
		// parsing will surface the malformed content.
		return string(raw), true
	}
	return string(decoded), true
}
