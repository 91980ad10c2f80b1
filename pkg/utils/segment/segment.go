// Package segment splits raw process output into plain text lines and JSON
// values embedded in it, possibly spanning several lines.
//
// Detection is a bracket-count heuristic, not a tokenizer: brackets inside
// string literals are counted like any other. A span that fails to decode is
// left as text.
package segment

import (
	"encoding/json"
	"strings"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
)

// Span is the byte range [Start, End] of a candidate JSON value, End
// inclusive.
type Span struct {
	Start int
	End   int
}

// Split returns the ordered segments of raw. Whitespace-only text is
// dropped; structured values are always kept.
func Split(raw string) []model.Segment {
	lines := strings.Split(raw, "\n")
	var out []model.Segment
	var buf strings.Builder

	for i, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
		pending := buf.String()

		if span, ok := Detect(pending); ok {
			if v, ok := decode(pending[span.Start : span.End+1]); ok {
				out = appendText(out, pending[:span.Start])
				out = append(out, model.ValueSegment(v))
				out = appendText(out, pending[span.End+1:])
				buf.Reset()
				continue
			}
		}

		if i == len(lines)-1 {
			out = appendText(out, pending)
		}
	}

	return out
}

// Detect looks for a balanced {...} or [...] span in s. A bracket type is
// balanced when it occurs at least once and its open and close counts are
// equal; s qualifies only if no type is unbalanced. The span runs from the
// earliest opening bracket of a balanced type to the latest closing one.
func Detect(s string) (Span, bool) {
	openCurly, closeCurly := strings.Count(s, "{"), strings.Count(s, "}")
	openSquare, closeSquare := strings.Count(s, "["), strings.Count(s, "]")

	if openCurly != closeCurly || openSquare != closeSquare {
		return Span{}, false
	}
	curly := openCurly > 0
	square := openSquare > 0
	if !curly && !square {
		return Span{}, false
	}

	span := Span{Start: -1, End: -1}
	widen := func(open, close string) {
		start, end := strings.Index(s, open), strings.LastIndex(s, close)
		if span.Start == -1 || start < span.Start {
			span.Start = start
		}
		if end > span.End {
			span.End = end
		}
	}
	if curly {
		widen("{", "}")
	}
	if square {
		widen("[", "]")
	}
	if span.End < span.Start {
		return Span{}, false
	}

	return span, true
}

func decode(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}

func appendText(out []model.Segment, text string) []model.Segment {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, model.TextSegment(line))
	}
	return out
}
