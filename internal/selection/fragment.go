package selection

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	language "github.com/hanpama/rsgate/internal/language"
)

// ErrFragmentNotFound is returned by FragmentMap.Lookup for unknown names.
var ErrFragmentNotFound = errors.New("fragment not found")

// FragmentMap looks fragment definitions up by name, scanning the backing
// definition list only as far as needed. Definitions seen while scanning are
// cached. Once the list is exhausted, a miss fails without rescanning.
type FragmentMap struct {
	mu     sync.Mutex
	defs   language.FragmentDefinitionList
	next   int
	byName map[string]*language.FragmentDefinition
}

func NewFragmentMap(defs language.FragmentDefinitionList) *FragmentMap {
	return &FragmentMap{defs: defs}
}

func (m *FragmentMap) Lookup(name string) (*language.FragmentDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byName == nil {
		m.byName = make(map[string]*language.FragmentDefinition)
	}
	if def, ok := m.byName[name]; ok {
		return def, nil
	}
	for m.next < len(m.defs) {
		def := m.defs[m.next]
		m.next++
		if def == nil {
			continue
		}
		m.byName[def.Name] = def
		if def.Name == name {
			return def, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFragmentNotFound, name)
}

// Fragment is a self-contained GraphQL fragment document plus the variable
// values bound to it. The zero value is the empty fragment.
type Fragment struct {
	Document  *language.QueryDocument
	Variables map[string]any
}

// EmptyFragment is the canonical fragment with no document.
var EmptyFragment = Fragment{}

// IsEmpty reports whether the fragment carries no selections.
func (f Fragment) IsEmpty() bool {
	return f.Document == nil || len(f.Document.Fragments) == 0
}

func newFragment(doc *language.QueryDocument, vars map[string]any) Fragment {
	return Fragment{Document: doc, Variables: maps.Clone(vars)}
}
