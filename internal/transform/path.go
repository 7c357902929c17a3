package transform

import "strings"

// pathSegment is one dot-delimited piece of a path expression: an optional
// map key followed by zero or more array indexes ("b[2][0]" -> key "b",
// indexes [2, 0]).
type pathSegment struct {
	key     string
	indexes []int
}

// ExtractValue navigates data by a dotted/bracket path expression such as
// "a.b[2].c". The empty path, ".", and the literal "input" mean the whole
// value. The second return is false when the path misses: traversal stops as
// soon as it hits nil, a missing key, an out-of-range index, or array-index
// access on a non-array. It never panics.
func ExtractValue(data any, path string) (any, bool) {
	if path == "" || path == "." || path == "input" {
		return data, true
	}

	segments, ok := parsePath(path)
	if !ok {
		return nil, false
	}

	current := data
	for _, seg := range segments {
		if seg.key != "" {
			m, isMap := current.(map[string]any)
			if !isMap {
				return nil, false
			}
			v, found := m[seg.key]
			if !found {
				return nil, false
			}
			current = v
		}
		for _, idx := range seg.indexes {
			arr, isArr := asSlice(current)
			if !isArr || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}

	return current, true
}

// parsePath splits a path expression into segments. Returns false for
// malformed paths (unclosed brackets, non-numeric indexes, empty segments).
func parsePath(path string) ([]pathSegment, bool) {
	parts := strings.Split(path, ".")
	segments := make([]pathSegment, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			return nil, false
		}

		var seg pathSegment
		rest := part
		if open := strings.IndexByte(rest, '['); open >= 0 {
			seg.key = rest[:open]
			rest = rest[open:]
		} else {
			seg.key = rest
			rest = ""
		}

		for rest != "" {
			if rest[0] != '[' {
				return nil, false
			}
			closeIdx := strings.IndexByte(rest, ']')
			if closeIdx < 0 {
				return nil, false
			}
			idx, ok := parseIndex(rest[1:closeIdx])
			if !ok {
				return nil, false
			}
			seg.indexes = append(seg.indexes, idx)
			rest = rest[closeIdx+1:]
		}

		// "[0]" with no key is valid only as the first segment of its part.
		if seg.key == "" && len(seg.indexes) == 0 {
			return nil, false
		}
		segments = append(segments, seg)
	}

	return segments, true
}

// parseIndex parses a non-negative decimal array index.
func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// asSlice normalizes the slice shapes that flow through the engine
// (JSON-decoded []any and the []string produced by the split transform).
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}
