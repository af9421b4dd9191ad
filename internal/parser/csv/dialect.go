// Package csv splits a stream of byte chunks into logical CSV lines and
// tokenizes each line into raw fields.
//
// Quoting follows the common RFC 4180 subset: a field that opens with a double
// quote runs until the matching closing quote, may contain delimiters and
// newlines, and encodes a literal quote as two quotes. A quote anywhere else
// is ordinary text. The Splitter and the tokenizer share this rule so that a
// line break inside a quoted field never ends a record, regardless of where
// the chunk boundaries fall.
package csv

// Dialect describes how fields are separated.
type Dialect struct {
	// Delimiter separates fields. It may be longer than one byte. Ignored
	// when Whitespace is set; empty means ",".
	Delimiter string

	// Whitespace splits on runs of spaces and tabs and ignores leading and
	// trailing blanks.
	Whitespace bool
}

func (d Dialect) delimiter() string {
	if d.Delimiter == "" {
		return ","
	}
	return d.Delimiter
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }

// Blank reports whether text is a wholly-empty record. In whitespace mode a
// line of only spaces and tabs is blank too.
func (d Dialect) Blank(text string) bool {
	if text == "" {
		return true
	}
	if !d.Whitespace {
		return false
	}
	for i := 0; i < len(text); i++ {
		if !isBlank(text[i]) {
			return false
		}
	}
	return true
}

// Line is one logical record. Text excludes the terminator. Num is the 1-based
// record number within the pass; a record spanning several physical lines
// counts once.
type Line struct {
	Text string
	Num  int
}
