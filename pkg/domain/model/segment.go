package model

// Segment is one unit of reconstructed process output: either a line of
// text or a structured value decoded from JSON (map[string]any or []any).
type Segment struct {
	Text  string
	Value any
}

// TextSegment creates a plain text segment
func TextSegment(s string) Segment {
	return Segment{Text: s}
}

// ValueSegment creates a structured segment
func ValueSegment(v any) Segment {
	return Segment{Value: v}
}

// IsStructured reports whether the segment carries a decoded value
func (s Segment) IsStructured() bool {
	return s.Value != nil
}
