package csv

import "bytes"

// utf8BOM is dropped when it opens the stream.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// stripBOM reports how many leading bytes of b form a BOM, and whether more
// input is needed to decide. eof tells whether b is the whole stream.
func stripBOM(b []byte, eof bool) (n int, more bool) {
	if bytes.HasPrefix(b, utf8BOM) {
		return len(utf8BOM), false
	}
	if len(b) < len(utf8BOM) && !eof && bytes.HasPrefix(utf8BOM, b) {
		return 0, true
	}
	return 0, false
}
