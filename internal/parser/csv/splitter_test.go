package csv

import (
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// chunkList is a ChunkReader over pre-cut chunks.
type chunkList struct {
	chunks [][]byte
	err    error // returned after the chunks instead of io.EOF
}

func (c *chunkList) Next() ([]byte, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return nil, c.err
		}
		return nil, io.EOF
	}
	b := c.chunks[0]
	c.chunks = c.chunks[1:]
	return b, nil
}

func chunksOf(s string, size int) *chunkList {
	c := &chunkList{}
	for len(s) > 0 {
		n := size
		if n > len(s) {
			n = len(s)
		}
		c.chunks = append(c.chunks, []byte(s[:n]))
		s = s[n:]
	}
	return c
}

func cutAt(s string, at int) *chunkList {
	c := &chunkList{}
	if at > 0 {
		c.chunks = append(c.chunks, []byte(s[:at]))
	}
	if at < len(s) {
		c.chunks = append(c.chunks, []byte(s[at:]))
	}
	return c
}

func drain(t *testing.T, s *Splitter) []string {
	t.Helper()
	var out []string
	for {
		l, err := s.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, l.Text)
	}
}

func TestSplitter_Lines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		d    Dialect
		want []string
	}{
		{name: "lf", in: "a,b\nc,d\n", want: []string{"a,b", "c,d"}},
		{name: "crlf and unterminated tail", in: "a,b\r\nc,d", want: []string{"a,b", "c,d"}},
		{name: "quoted newline and delimiter", in: "\"a,b\nc\",3\n", want: []string{"\"a,b\nc\",3"}},
		{name: "escaped quote before newline", in: "\"a\"\"\nb\",c\nz\n", want: []string{"\"a\"\"\nb\",c", "z"}},
		{name: "blank lines kept", in: "a\n\nb\n", want: []string{"a", "", "b"}},
		{name: "single newline", in: "\n", want: []string{""}},
		{name: "empty input", in: "", want: nil},
		{name: "bom stripped", in: "\xEF\xBB\xBFa,b\n1,2\n", want: []string{"a,b", "1,2"}},
		{name: "bom only", in: "\xEF\xBB\xBF", want: nil},
		{name: "bare quote is literal", in: "x\"y\nz\n", want: []string{"x\"y", "z"}},
		{name: "text after closing quote ends at newline", in: "\"a\"x\nb\n", want: []string{"\"a\"x", "b"}},
		{name: "unterminated quote runs to end", in: "\"abc\ndef", want: []string{"\"abc\ndef"}},
		{name: "crlf inside quotes kept", in: "\"a\r\nb\"\r\nc\r\n", want: []string{"\"a\r\nb\"", "c"}},
		{name: "other delimiter makes quote literal", in: "a,\"b\nc\"\n", d: Dialect{Delimiter: ";"}, want: []string{"a,\"b", "c\""}},
		{name: "multi-byte delimiter", in: "a||\"x||\ny\"||b\nc||d\n", d: Dialect{Delimiter: "||"}, want: []string{"a||\"x||\ny\"||b", "c||d"}},
		{name: "whitespace mode quote", in: "a  \"b\nc\"\td\n", d: Dialect{Whitespace: true}, want: []string{"a  \"b\nc\"\td"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := drain(t, NewSplitter(chunksOf(tc.in, 1<<20), tc.d))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestSplitter_ChunkBoundaries checks that every cut point, and 1-byte
// chunks, produce the same lines as a single chunk.
func TestSplitter_ChunkBoundaries(t *testing.T) {
	t.Parallel()

	inputs := []struct {
		in string
		d  Dialect
	}{
		{in: "\"val|ue\",2\n"},
		{in: "\"val|ue\",2\n", d: Dialect{Delimiter: "|"}},
		{in: "h1,h2\r\n\"a,b\nc\",3\r\n\"x\"\"\ny\",4\n5,6"},
		{in: "\xEF\xBB\xBFa,b\n1,2\n"},
		{in: "a||\"x||\ny\"||b\nc|||\"d\ne\"\n", d: Dialect{Delimiter: "||"}},
		{in: "a<=>\"b<=>\nc\"<=>d\n", d: Dialect{Delimiter: "<=>"}},
		{in: " a \"b\nc\"\t\"\"\"\n\"\n", d: Dialect{Whitespace: true}},
	}
	for i, tc := range inputs {
		tc := tc
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			t.Parallel()
			want := drain(t, NewSplitter(chunksOf(tc.in, len(tc.in)+1), tc.d))
			for at := 0; at <= len(tc.in); at++ {
				got := drain(t, NewSplitter(cutAt(tc.in, at), tc.d))
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("cut at %d (-want +got):\n%s", at, diff)
				}
			}
			for size := 1; size <= 4; size++ {
				got := drain(t, NewSplitter(chunksOf(tc.in, size), tc.d))
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("chunk size %d (-want +got):\n%s", size, diff)
				}
			}
		})
	}
}

func TestSplitter_LineNumbers(t *testing.T) {
	t.Parallel()

	s := NewSplitter(chunksOf("h\n\"a\nb\"\n\nc", 2), Dialect{})
	var nums []int
	for {
		l, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		nums = append(nums, l.Num)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, nums); diff != "" {
		t.Fatalf("line numbers (-want +got):\n%s", diff)
	}
	if s.Lines() != 4 {
		t.Fatalf("Lines() = %d, want 4", s.Lines())
	}
}

func TestSplitter_StickyError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	src := chunksOf("a\nb", 1)
	src.err = boom
	s := NewSplitter(src, Dialect{})

	l, err := s.Next()
	if err != nil || l.Text != "a" {
		t.Fatalf("first Next = %+v, %v", l, err)
	}
	if _, err := s.Next(); !errors.Is(err, boom) {
		t.Fatalf("second Next err = %v, want boom", err)
	}
	if _, err := s.Next(); !errors.Is(err, boom) {
		t.Fatalf("error not sticky: %v", err)
	}
}
