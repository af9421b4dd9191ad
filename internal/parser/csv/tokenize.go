package csv

import (
	"strings"

	"csvdataset/internal/csverr"
)

// Split tokenizes one logical line into raw fields. Unquoted fields are
// returned verbatim. Errors are *csverr.MalformedRowError carrying l.Num.
//
// In the default mode an empty line yields a single empty field; in
// whitespace mode it yields none.
func (d Dialect) Split(l Line) ([]string, error) {
	if d.Whitespace {
		return splitBlanks(l)
	}
	delim := d.delimiter()
	s := l.Text
	fields := make([]string, 0, 8)
	i := 0
	for {
		if i < len(s) && s[i] == '"' {
			v, end, err := quoted(s, i, l.Num)
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
			i = end
			if i == len(s) {
				return fields, nil
			}
			if !strings.HasPrefix(s[i:], delim) {
				return nil, &csverr.MalformedRowError{Line: l.Num, Column: i + 1, Err: csverr.ErrTextAfterQuote}
			}
			i += len(delim)
			continue
		}
		k := strings.Index(s[i:], delim)
		if k < 0 {
			return append(fields, s[i:]), nil
		}
		fields = append(fields, s[i:i+k])
		i += k + len(delim)
	}
}

func splitBlanks(l Line) ([]string, error) {
	s := l.Text
	var fields []string
	i := 0
	for {
		for i < len(s) && isBlank(s[i]) {
			i++
		}
		if i == len(s) {
			if fields == nil {
				fields = []string{}
			}
			return fields, nil
		}
		if s[i] == '"' {
			v, end, err := quoted(s, i, l.Num)
			if err != nil {
				return nil, err
			}
			if end < len(s) && !isBlank(s[end]) {
				return nil, &csverr.MalformedRowError{Line: l.Num, Column: end + 1, Err: csverr.ErrTextAfterQuote}
			}
			fields = append(fields, v)
			i = end
			continue
		}
		j := i
		for j < len(s) && !isBlank(s[j]) {
			j++
		}
		fields = append(fields, s[i:j])
		i = j
	}
}

// quoted decodes the quoted field opening at s[open] and returns the offset
// just past its closing quote.
func quoted(s string, open, line int) (string, int, error) {
	j := open + 1
	k := strings.IndexByte(s[j:], '"')
	if k < 0 {
		return "", 0, &csverr.MalformedRowError{Line: line, Column: open + 1, Err: csverr.ErrUnterminatedQuote}
	}
	// Fast path: no escaped quotes.
	if j+k+1 >= len(s) || s[j+k+1] != '"' {
		return s[j : j+k], j + k + 1, nil
	}
	var sb strings.Builder
	for {
		k := strings.IndexByte(s[j:], '"')
		if k < 0 {
			return "", 0, &csverr.MalformedRowError{Line: line, Column: open + 1, Err: csverr.ErrUnterminatedQuote}
		}
		sb.WriteString(s[j : j+k])
		j += k + 1
		if j < len(s) && s[j] == '"' {
			sb.WriteByte('"')
			j++
			continue
		}
		return sb.String(), j, nil
	}
}
