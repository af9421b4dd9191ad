package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DType is the logical type of a column.
type DType uint8

const (
	String DType = iota
	Int
	Float
	Bool
)

func (t DType) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return "string"
	}
}

// ParseDType maps a config dtype name (case-insensitive) to a DType.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "bool":
		return Bool, nil
	case "string":
		return String, nil
	}
	return String, fmt.Errorf("unknown dtype %q", s)
}

// Missing reports whether raw counts as an absent value for t. Numeric and
// boolean cells that hold only blanks are missing; a String cell is missing
// only when it is empty.
func Missing(t DType, raw string) bool {
	if t == String {
		return raw == ""
	}
	return strings.TrimSpace(raw) == ""
}

// Parse converts a raw cell to the Go value of t: int64, float64, bool or
// string. Surrounding blanks are ignored for every type but String. Float
// cells must be finite; "NaN" and "Inf" spellings are rejected.
func Parse(t DType, raw string) (any, error) {
	switch t {
	case Int:
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case Float:
		return parseFloat(raw)
	case Bool:
		return parseBool(raw)
	default:
		return raw, nil
	}
}

var (
	errNotBool   = errors.New("not one of true, false, 1, 0")
	errNotFinite = errors.New("not a finite number")
)

func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

func parseBool(raw string) (bool, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "1" || strings.EqualFold(s, "true"):
		return true, nil
	case s == "0" || strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, errNotBool
}

// Candidate is one step of type inference.
type Candidate struct {
	DType  DType
	Accept func(raw string) bool
}

// Candidates lists the inferable types in priority order. A column takes the
// first type that accepts every sampled value; String is the fallback.
var Candidates = []Candidate{
	{DType: Int, Accept: accepts(Int)},
	{DType: Float, Accept: accepts(Float)},
	{DType: Bool, Accept: accepts(Bool)},
}

func accepts(t DType) func(string) bool {
	return func(raw string) bool {
		_, err := Parse(t, raw)
		return err == nil
	}
}

// Infer picks the type of a column from its sampled raw values. Missing
// values are ignored; with nothing left the result is String.
func Infer(samples []string) DType {
	vals := make([]string, 0, len(samples))
	for _, v := range samples {
		if !Missing(Int, v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return String
	}
next:
	for _, c := range Candidates {
		for _, v := range vals {
			if !c.Accept(v) {
				continue next
			}
		}
		return c.DType
	}
	return String
}

// normalizeDefault converts a configured default (as decoded from JSON or
// YAML) to the Go value of t.
func normalizeDefault(v any, t DType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case Int:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case uint64:
			if x > math.MaxInt64 {
				return nil, fmt.Errorf("%d overflows int", x)
			}
			return int64(x), nil
		case float64:
			if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
				return nil, fmt.Errorf("%v is not an integer", x)
			}
			return int64(x), nil
		case string:
			return Parse(Int, x)
		}
	case Float:
		switch x := v.(type) {
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, errNotFinite
			}
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case uint64:
			return float64(x), nil
		case string:
			return Parse(Float, x)
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return Parse(Bool, x)
		}
	default:
		if s, ok := defaultSample(v); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%v (%T) is not a valid %s", v, v, t)
}

// defaultSample renders a scalar default as the text it would have in the
// file, so that it can take part in inference.
func defaultSample(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}
