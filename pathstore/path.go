package pathstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPath reports a path string that does not follow the grammar
	// ident(.ident | [int] | ["key"])*.
	ErrInvalidPath = errors.New("pathstore: invalid path")
	// ErrNotContainer reports a write that walks through a scalar value.
	ErrNotContainer = errors.New("pathstore: value is not a container")
)

// SegmentKind distinguishes the addressing forms a path segment can take.
type SegmentKind int

const (
	// KeySegment addresses a map key or struct field.
	KeySegment SegmentKind = iota
	// IndexSegment addresses a slice element.
	IndexSegment
	// ComputedSegment holds a subscript expression that must be evaluated
	// before the path can be used. Only templates carry computed segments.
	ComputedSegment
)

// Segment is a single step of a path.
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
	Expr  string
}

// Key builds a key segment.
func Key(name string) Segment { return Segment{Kind: KeySegment, Key: name} }

// Index builds an index segment.
func Index(i int) Segment { return Segment{Kind: IndexSegment, Index: i} }

func (s Segment) String() string {
	switch s.Kind {
	case IndexSegment:
		return "[" + strconv.Itoa(s.Index) + "]"
	case ComputedSegment:
		return "[" + s.Expr + "]"
	default:
		if isIdentifier(s.Key) {
			return s.Key
		}
		return "[" + strconv.Quote(s.Key) + "]"
	}
}

// Path is a normalized sequence of key and index segments.
type Path []Segment

// Parse normalizes a path string. Computed subscripts are rejected; use
// ParseTemplate for expressions that may contain them.
func Parse(raw string) (Path, error) {
	segments, err := scan(raw, false)
	if err != nil {
		return nil, err
	}
	return Path(segments), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the canonical form: keys joined by dots, indices as [n] and
// non-identifier keys quoted.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.Kind == KeySegment && isIdentifier(seg.Key) {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Key)
			continue
		}
		b.WriteString(seg.String())
	}
	return b.String()
}

// Head returns the first key of the path, or "" for index-rooted and empty
// paths.
func (p Path) Head() string {
	if len(p) == 0 || p[0].Kind != KeySegment {
		return ""
	}
	return p[0].Key
}

// Equal reports whether both paths address the same location.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !sameSegment(p[i], other[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a segment-wise prefix of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Linked reports whether either path is a prefix of the other, meaning a
// write to one changes the value observed at the other.
func (p Path) Linked(other Path) bool {
	return p.HasPrefix(other) || other.HasPrefix(p)
}

// Join returns a new path with extra appended.
func (p Path) Join(extra ...Segment) Path {
	out := make(Path, 0, len(p)+len(extra))
	out = append(out, p...)
	return append(out, extra...)
}

func sameSegment(a, b Segment) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case IndexSegment:
		return a.Index == b.Index
	case ComputedSegment:
		return a.Expr == b.Expr
	default:
		return a.Key == b.Key
	}
}

// Template is a path that may contain computed subscripts such as
// vm[field]. Resolve evaluates them into a concrete Path.
type Template struct {
	raw      string
	segments []Segment
}

// ParseTemplate parses raw allowing computed subscripts.
func ParseTemplate(raw string) (Template, error) {
	segments, err := scan(raw, true)
	if err != nil {
		return Template{}, err
	}
	return Template{raw: strings.TrimSpace(raw), segments: segments}, nil
}

// String returns the source the template was parsed from.
func (t Template) String() string { return t.raw }

// Static reports whether the template has no computed segments.
func (t Template) Static() bool {
	for _, seg := range t.segments {
		if seg.Kind == ComputedSegment {
			return false
		}
	}
	return true
}

// Segments returns a copy of the parsed segments.
func (t Template) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// Resolve turns the template into a Path, evaluating computed subscripts
// through eval. String results become keys and integer results indices.
func (t Template) Resolve(eval func(expr string) (any, error)) (Path, error) {
	out := make(Path, 0, len(t.segments))
	for _, seg := range t.segments {
		if seg.Kind != ComputedSegment {
			out = append(out, seg)
			continue
		}
		if eval == nil {
			return nil, fmt.Errorf("%w: computed subscript %q without evaluator", ErrInvalidPath, seg.Expr)
		}
		value, err := eval(seg.Expr)
		if err != nil {
			return nil, fmt.Errorf("pathstore: evaluate subscript %q: %w", seg.Expr, err)
		}
		resolved, err := segmentFor(value)
		if err != nil {
			return nil, fmt.Errorf("%w: subscript %q: %v", ErrInvalidPath, seg.Expr, err)
		}
		out = append(out, resolved)
	}
	return out, nil
}

func segmentFor(value any) (Segment, error) {
	switch v := value.(type) {
	case string:
		return Key(v), nil
	case int:
		return Index(v), nil
	case int64:
		return Index(int(v)), nil
	case int32:
		return Index(int(v)), nil
	case float64:
		if v == float64(int(v)) && v >= 0 {
			return Index(int(v)), nil
		}
	case fmt.Stringer:
		return Key(v.String()), nil
	}
	return Segment{}, fmt.Errorf("unsupported subscript value %T", value)
}

func scan(raw string, allowComputed bool) ([]Segment, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	var out []Segment
	i := 0
	expectIdent := true
	for i < len(s) {
		switch c := s[i]; {
		case c == '.':
			if expectIdent || i == len(s)-1 {
				return nil, fmt.Errorf("%w: unexpected '.' at %d in %q", ErrInvalidPath, i, raw)
			}
			expectIdent = true
			i++
		case c == '[':
			end, seg, err := scanBracket(s, i, allowComputed)
			if err != nil {
				return nil, fmt.Errorf("%w: %v in %q", ErrInvalidPath, err, raw)
			}
			if expectIdent && len(out) > 0 {
				return nil, fmt.Errorf("%w: '[' after '.' at %d in %q", ErrInvalidPath, i, raw)
			}
			out = append(out, seg)
			expectIdent = false
			i = end
		default:
			if !expectIdent {
				return nil, fmt.Errorf("%w: unexpected %q at %d in %q", ErrInvalidPath, c, i, raw)
			}
			start := i
			for i < len(s) && isIdentByte(s[i], i == start) {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("%w: unexpected %q at %d in %q", ErrInvalidPath, c, i, raw)
			}
			out = append(out, Key(s[start:i]))
			expectIdent = false
		}
	}
	return out, nil
}

// scanBracket reads the subscript starting at s[open] == '[' and returns the
// offset just past the matching ']'.
func scanBracket(s string, open int, allowComputed bool) (int, Segment, error) {
	i := open + 1
	if i < len(s) && (s[i] == '"' || s[i] == '\'') {
		quote := s[i]
		j := i + 1
		for j < len(s) && s[j] != quote {
			if s[j] == '\\' {
				j++
			}
			j++
		}
		if j >= len(s) || j+1 >= len(s) || s[j+1] != ']' {
			return 0, Segment{}, fmt.Errorf("unterminated quoted subscript at %d", open)
		}
		body := s[i : j+1]
		if quote == '\'' {
			body = `"` + strings.ReplaceAll(body[1:len(body)-1], `"`, `\"`) + `"`
		}
		key, err := strconv.Unquote(body)
		if err != nil {
			return 0, Segment{}, fmt.Errorf("bad quoted subscript at %d", open)
		}
		return j + 2, Key(key), nil
	}

	depth := 1
	j := i
	for j < len(s) && depth > 0 {
		switch s[j] {
		case '[':
			depth++
		case ']':
			depth--
		}
		j++
	}
	if depth != 0 {
		return 0, Segment{}, fmt.Errorf("unterminated subscript at %d", open)
	}
	body := strings.TrimSpace(s[i : j-1])
	if body == "" {
		return 0, Segment{}, fmt.Errorf("empty subscript at %d", open)
	}
	if n, err := strconv.Atoi(body); err == nil {
		if n < 0 {
			return 0, Segment{}, fmt.Errorf("negative index at %d", open)
		}
		return j, Index(n), nil
	}
	if !allowComputed {
		return 0, Segment{}, fmt.Errorf("computed subscript %q", body)
	}
	return j, Segment{Kind: ComputedSegment, Expr: body}, nil
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_' || c == '$':
		return true
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i], i == 0) {
			return false
		}
	}
	return true
}
