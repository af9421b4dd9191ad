package csv

import (
	"bytes"
	"io"
)

// ChunkReader yields byte chunks of arbitrary size and io.EOF at the end.
// *datasource.Chunks satisfies it.
type ChunkReader interface {
	Next() ([]byte, error)
}

type quoteState uint8

const (
	stFieldStart quoteState = iota
	stUnquoted
	stQuoted
	stQuoteInQuoted // saw a quote inside a quoted field: closing or escaped
)

// Splitter turns chunks into logical lines. LF and CRLF both terminate a
// record outside quotes; a newline inside a quoted field is kept in Text. Only
// the unterminated tail of the input is buffered.
//
// A Splitter is not safe for concurrent use.
type Splitter struct {
	src     ChunkReader
	delim   []byte
	blanks  bool
	buf     []byte
	start   int // first byte of the current record in buf
	pos     int // next byte to scan
	state   quoteState
	num     int
	eof     bool
	bomDone bool
	err     error
}

// NewSplitter reads chunks from src using the quoting context of d.
func NewSplitter(src ChunkReader, d Dialect) *Splitter {
	return &Splitter{
		src:    src,
		delim:  []byte(d.delimiter()),
		blanks: d.Whitespace,
	}
}

// Next returns the next logical line, or io.EOF once the input is exhausted.
// A final line without a terminator is still returned. Errors from the chunk
// reader are sticky.
func (s *Splitter) Next() (Line, error) {
	for {
		if s.err != nil {
			return Line{}, s.err
		}
		if !s.bomDone {
			n, more := stripBOM(s.buf, s.eof)
			if !more {
				s.start, s.pos = n, n
				s.bomDone = true
			}
		}
		if s.bomDone {
			if text, ok := s.scan(); ok {
				s.num++
				return Line{Text: text, Num: s.num}, nil
			}
			if s.eof {
				if s.start < len(s.buf) {
					text := trimCR(s.buf[s.start:])
					s.start, s.pos = len(s.buf), len(s.buf)
					s.num++
					return Line{Text: text, Num: s.num}, nil
				}
				s.err = io.EOF
				return Line{}, io.EOF
			}
		}
		if err := s.fill(); err != nil {
			s.err = err
			return Line{}, err
		}
	}
}

// Lines returns how many lines have been produced so far.
func (s *Splitter) Lines() int { return s.num }

// fill drops consumed bytes and appends the next chunk.
func (s *Splitter) fill() error {
	if s.start > 0 {
		n := copy(s.buf, s.buf[s.start:])
		s.buf = s.buf[:n]
		s.pos -= s.start
		s.start = 0
	}
	chunk, err := s.src.Next()
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	s.buf = append(s.buf, chunk...)
	return nil
}

// scan advances the quote state machine from s.pos. It returns a completed
// record, or ok=false when the buffered bytes end before a terminator (or in
// the middle of a possible delimiter).
func (s *Splitter) scan() (text string, ok bool) {
	buf := s.buf
	i := s.pos
	for i < len(buf) {
		switch s.state {
		case stQuoted:
			j := bytes.IndexByte(buf[i:], '"')
			if j < 0 {
				i = len(buf)
				continue
			}
			i += j + 1
			s.state = stQuoteInQuoted

		case stQuoteInQuoted:
			if buf[i] == '"' {
				s.state = stQuoted
				i++
				continue
			}
			fallthrough

		default:
			b := buf[i]
			if b == '\n' {
				text = trimCR(buf[s.start:i])
				s.start, s.pos = i+1, i+1
				s.state = stFieldStart
				return text, true
			}
			if b == '"' && s.state == stFieldStart {
				s.state = stQuoted
				i++
				continue
			}
			n, more := s.delimAt(i)
			if more {
				s.pos = i
				return "", false
			}
			if n > 0 {
				s.state = stFieldStart
				i += n
				continue
			}
			s.state = stUnquoted
			i++
		}
	}
	s.pos = i
	return "", false
}

// delimAt reports the length of a delimiter starting at buf[i], or more=true
// when the buffer ends inside a delimiter prefix and more input may follow.
func (s *Splitter) delimAt(i int) (n int, more bool) {
	if s.blanks {
		if isBlank(s.buf[i]) {
			return 1, false
		}
		return 0, false
	}
	if s.buf[i] != s.delim[0] {
		return 0, false
	}
	rest := s.buf[i:]
	if len(rest) >= len(s.delim) {
		if bytes.HasPrefix(rest, s.delim) {
			return len(s.delim), false
		}
		return 0, false
	}
	if !s.eof && bytes.HasPrefix(s.delim, rest) {
		return 0, true
	}
	return 0, false
}

func trimCR(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return string(b)
}
