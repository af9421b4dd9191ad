package csv

import "strings"

// Format renders fields as one logical line (without terminator) that Split
// decodes back to the same fields. Fields are quoted only when needed.
func (d Dialect) Format(fields []string) string {
	delim := d.delimiter()
	sep := delim
	if d.Whitespace {
		sep = " "
	}
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(sep)
		}
		if d.needsQuotes(f, delim) || (len(fields) == 1 && f == "" && !d.Whitespace) {
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
			sb.WriteByte('"')
			continue
		}
		sb.WriteString(f)
	}
	return sb.String()
}

func (d Dialect) needsQuotes(f, delim string) bool {
	if strings.HasPrefix(f, `"`) || strings.ContainsAny(f, "\r\n") {
		return true
	}
	if d.Whitespace {
		return f == "" || strings.ContainsAny(f, " \t")
	}
	// A tail that overlaps the delimiter's head would shift the split point.
	return strings.Index(f+delim, delim) != len(f)
}
