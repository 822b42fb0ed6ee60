// Package record implements the tagged-value tree the enrichment pipeline
// operates on and the dotted-path accessor that addresses it.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Map is a record node keyed by string field name. Sequence elements are
// addressed by numeric path segments; leaves are string, float64, bool or nil.
type Map = map[string]interface{}

// ErrPathNotAMap is returned when Set would have to traverse a non-map,
// non-sequence value to reach the destination.
type ErrPathNotAMap struct {
	Path    string
	Segment string
}

func (e *ErrPathNotAMap) Error() string {
	return fmt.Sprintf("path accessor: segment %q of path %q does not address a map", e.Segment, e.Path)
}

// MakePath applies the prepend-prefix rule from §4.1: a leading "." denotes
// an absolute path (the prefix is ignored), otherwise prefix is prepended.
func MakePath(prefix, path string) string {
	if strings.HasPrefix(path, ".") {
		return path[1:]
	}
	return prefix + path
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get reads the value at path, returning nil if any intermediate segment is
// missing or addresses past the end of a sequence.
func Get(rec Map, path string) interface{} {
	segments := splitPath(path)
	var cur interface{} = rec
	for _, seg := range segments {
		switch node := cur.(type) {
		case Map:
			cur = node[seg]
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// Set writes value at path, creating intermediate maps as needed. It returns
// ErrPathNotAMap if an intermediate segment addresses a non-map, non-sequence
// value (Invariant I5: the engine must not silently clobber unrelated data).
func Set(rec Map, path string, value interface{}) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}

	cur := rec
	for i := 0; i < len(segments)-1; i++ {
		seg := segments[i]
		next, ok := cur[seg]
		if !ok || next == nil {
			created := make(Map)
			cur[seg] = created
			cur = created
			continue
		}

		switch typed := next.(type) {
		case Map:
			cur = typed
		case []interface{}:
			i++
			if i >= len(segments)-1 {
				return &ErrPathNotAMap{Path: path, Segment: strings.Join(segments[:i], ".")}
			}
			idx, err := strconv.Atoi(segments[i])
			if err != nil || idx < 0 || idx >= len(typed) {
				return &ErrPathNotAMap{Path: path, Segment: strings.Join(segments[:i+1], ".")}
			}
			elem, ok := typed[idx].(Map)
			if !ok {
				return &ErrPathNotAMap{Path: path, Segment: strings.Join(segments[:i+1], ".")}
			}
			cur = elem
		default:
			return &ErrPathNotAMap{Path: path, Segment: strings.Join(segments[:i+1], ".")}
		}
	}

	cur[segments[len(segments)-1]] = value
	return nil
}

// Delete removes the value at path, if present. Missing intermediate
// segments are a no-op.
func Delete(rec Map, path string) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return
	}
	cur := rec
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg]
		if !ok {
			return
		}
		m, ok := next.(Map)
		if !ok {
			return
		}
		cur = m
	}
	delete(cur, segments[len(segments)-1])
}

// Stringify renders a leaf or subtree for use by regex operators and
// extraction sources (§4.2, §4.5): maps become compact JSON, sequences
// become newline-joined stringified elements, everything else uses its
// natural string form.
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v)
	case int:
		return strconv.Itoa(v)
	case []interface{}:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = Stringify(elem)
		}
		return strings.Join(parts, "\n")
	case Map:
		return stringifyMapAsJSON(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// IsFalsy reports whether a value is one of the "falsy" leaves pruned by
// §4.5's final step: null, empty string, or an empty container. Boolean
// false and numeric zero are deliberately NOT falsy (invariant in §8 P7).
func IsFalsy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []interface{}:
		return len(v) == 0
	case Map:
		return len(v) == 0
	default:
		return false
	}
}

// Prune removes falsy leaves recursively, matching §8 P7's example:
// Prune({a:0, b:false, c:null, d:""}) == {a:0, b:false}.
func Prune(rec Map) {
	for key, value := range rec {
		if m, ok := asMap(value); ok {
			Prune(m)
			if len(m) == 0 {
				delete(rec, key)
				continue
			}
		}
		if IsFalsy(value) {
			delete(rec, key)
		}
	}
}

func stringifyMapAsJSON(m map[string]interface{}) string {
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func asMap(value interface{}) (Map, bool) {
	switch v := value.(type) {
	case Map:
		return v, true
	default:
		return nil, false
	}
}
