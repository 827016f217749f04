package objectdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned when a reader is built from an empty path or a
// path with an empty segment.
var ErrInvalidPath = errors.New("invalid path")

// NotTraversableError reports a path that continues through a value that is
// neither object data nor a map.
type NotTraversableError struct {
	Path    []string
	Segment string
	Value   any
}

func (e *NotTraversableError) Error() string {
	return fmt.Sprintf("cannot read %q of %T at path %s", e.Segment, e.Value, strings.Join(e.Path, "."))
}

// SplitPath splits a dotted path such as "owner.id".
func SplitPath(dotted string) []string {
	return strings.Split(dotted, ".")
}

func checkPath(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for i, seg := range path {
		if seg == "" {
			return fmt.Errorf("%w: empty segment at index %d in %q", ErrInvalidPath, i, strings.Join(path, "."))
		}
	}
	return nil
}

// EngineDataReader reads a value at a fixed path through nested object data.
type EngineDataReader struct {
	path []string
}

func NewEngineDataReader(path []string) (*EngineDataReader, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	return &EngineDataReader{path: path}, nil
}

func (r *EngineDataReader) Path() []string { return r.path }

// Read follows the path from data. A nil along the way yields nil; the value
// at the end of the path is returned as is.
func (r *EngineDataReader) Read(ctx context.Context, data EngineObjectData) (any, error) {
	var cur any = data
	for i, seg := range r.path {
		switch c := cur.(type) {
		case nil:
			return nil, nil
		case Sync:
			v, err := c.Get(seg)
			if err != nil {
				return nil, err
			}
			cur = v
		case EngineObjectData:
			v, err := c.Fetch(ctx, seg)
			if err != nil {
				return nil, err
			}
			cur = v
		case map[string]any:
			cur = c[seg]
		default:
			return nil, &NotTraversableError{Path: r.path[:i], Segment: seg, Value: cur}
		}
	}
	return cur, nil
}

// InputValueReader reads a value at a fixed path through nested input maps,
// such as field arguments.
type InputValueReader struct {
	path []string
}

func NewInputValueReader(path []string) (*InputValueReader, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	return &InputValueReader{path: path}, nil
}

func (r *InputValueReader) Path() []string { return r.path }

func (r *InputValueReader) Read(input map[string]any) (any, error) {
	var cur any = input
	for i, seg := range r.path {
		switch c := cur.(type) {
		case nil:
			return nil, nil
		case map[string]any:
			cur = c[seg]
		default:
			return nil, &NotTraversableError{Path: r.path[:i], Segment: seg, Value: cur}
		}
	}
	return cur, nil
}
