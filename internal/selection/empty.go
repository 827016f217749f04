package selection

import (
	"errors"
	"fmt"
	"iter"

	language "github.com/hanpama/rsgate/internal/language"
)

// ErrUnsupportedOnEmpty is returned by operations that need a real document.
var ErrUnsupportedOnEmpty = errors.New("is not supported for the empty selection set")

type emptySelectionSet struct {
	typeName string
}

// Empty returns a RawSelectionSet on typeName with no selections. Queries
// answer false or empty; sub-selection extraction returns Empty again.
func Empty(typeName string) RawSelectionSet {
	return emptySelectionSet{typeName: typeName}
}

func (e emptySelectionSet) TypeName() string { return e.typeName }

func (emptySelectionSet) Selections() iter.Seq[Selection]            { return func(func(Selection) bool) {} }
func (emptySelectionSet) TraversableSelections() iter.Seq[Selection] { return func(func(Selection) bool) {} }

func (emptySelectionSet) ContainsField(string, string) bool     { return false }
func (emptySelectionSet) ContainsSelection(string, string) bool { return false }
func (emptySelectionSet) RequestsType(string) bool              { return false }

func (emptySelectionSet) ResolveSelection(typeName, selectionName string) (Selection, error) {
	return Selection{}, fmt.Errorf("Not selected: %s.%s", typeName, selectionName)
}

func (emptySelectionSet) SelectionSetForField(typeName, _ string) (RawSelectionSet, error) {
	return Empty(typeName), nil
}

func (emptySelectionSet) SelectionSetForSelection(typeName, _ string) (RawSelectionSet, error) {
	return Empty(typeName), nil
}

func (e emptySelectionSet) SelectionSetForType(string) (RawSelectionSet, error) { return e, nil }

func (emptySelectionSet) IsEmpty() bool             { return true }
func (emptySelectionSet) IsTransitivelyEmpty() bool { return true }

func (emptySelectionSet) ArgumentsOfSelection(string, string) (map[string]any, error) {
	return nil, nil
}

func (emptySelectionSet) ToSelectionSet() language.SelectionSet { return language.SelectionSet{} }
func (emptySelectionSet) ToFragment() Fragment                  { return EmptyFragment }
func (emptySelectionSet) ToDocument() *language.QueryDocument   { return &language.QueryDocument{} }
func (emptySelectionSet) PrintAsFieldSet() string               { return "" }

func (emptySelectionSet) ToNodelikeSelectionSet(string, language.ArgumentList) (RawSelectionSet, error) {
	return nil, fmt.Errorf("ToNodelikeSelectionSet %w", ErrUnsupportedOnEmpty)
}

func (emptySelectionSet) AddVariables(map[string]any) (RawSelectionSet, error) {
	return nil, fmt.Errorf("AddVariables %w", ErrUnsupportedOnEmpty)
}
