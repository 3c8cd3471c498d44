// Package inject embeds the reload client script into served HTML.
package inject

import "bytes"

var closingBody = []byte("</body>")

// Inject returns a copy of html with script inserted immediately before the
// last closing body tag (matched case-insensitively), or appended when there
// is none. No other byte of html is changed.
func Inject(html, script []byte) []byte {
	out := make([]byte, 0, len(html)+len(script))

	idx := lastIndexFold(html, closingBody)
	if idx == -1 {
		out = append(out, html...)
		return append(out, script...)
	}

	out = append(out, html[:idx]...)
	out = append(out, script...)
	return append(out, html[idx:]...)
}

// lastIndexFold is bytes.LastIndex with case-insensitive matching. It scans
// the original bytes, so the index is valid even when lower-casing would
// change the length of non-ASCII text.
func lastIndexFold(s, sep []byte) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if bytes.EqualFold(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}
