package executor

import (
	"strconv"
	"strings"
)

// Path locates a value in the response: field response names and list
// indices from the root.
type Path []PathElement

// PathElement is a string response name or an int list index.
type PathElement any

// String renders p as "a.b.[2].c".
func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		switch v := elem.(type) {
		case string:
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// with returns a copy of p extended by elem. The copy keeps sibling paths from
// sharing a backing array.
func (p Path) with(elem PathElement) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = elem
	return out
}

func (p Path) topLevelField() Path {
	for _, elem := range p {
		if name, ok := elem.(string); ok {
			return Path{name}
		}
	}
	return Path{}
}

// tombstones records response paths whose value was replaced by null, so
// async work below them can be dropped.
type tombstones map[string]struct{}

func (ts tombstones) mark(p Path) {
	if len(p) > 0 {
		ts[p.String()] = struct{}{}
	}
}

// covers reports whether p is a marked path or lies below one.
func (ts tombstones) covers(p Path) bool {
	if len(ts) == 0 {
		return false
	}
	for i := 1; i <= len(p); i++ {
		if _, ok := ts[p[:i].String()]; ok {
			return true
		}
	}
	return false
}

// setValueAtPath writes value into the response tree. Nothing is written when
// a container on the way is missing or was nulled.
func setValueAtPath(root map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	var current any = root
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			current = m[e]
		case int:
			s, ok := current.([]any)
			if !ok || e >= len(s) {
				return
			}
			current = s[e]
		}
	}
	switch last := path[len(path)-1].(type) {
	case string:
		if m, ok := current.(map[string]any); ok {
			m[last] = value
		}
	case int:
		if s, ok := current.([]any); ok && last < len(s) {
			s[last] = value
		}
	}
}
