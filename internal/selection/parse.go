package selection

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	language "github.com/hanpama/rsgate/internal/language"
)

// EntryFragmentName is the name given to the fragment wrapping a bare field set.
const EntryFragmentName = "Main"

var fragmentKeyword = regexp.MustCompile(`^\s*fragment\b`)

// ParsedSelections is a selection set rooted at TypeName together with the
// fragment definitions it may spread.
type ParsedSelections struct {
	TypeName     string
	SelectionSet language.SelectionSet
	Fragments    language.FragmentDefinitionList
}

// Parse parses either a bare field set such as "id name" or a document made
// only of fragment definitions. A bare field set is wrapped in a fragment
// named Main on typeName. When the document holds several fragments, Main is
// the entry point.
func Parse(typeName, text string) (*ParsedSelections, error) {
	if strings.TrimSpace(text) == "" {
		return &ParsedSelections{TypeName: typeName}, nil
	}
	if !fragmentKeyword.MatchString(text) {
		text = fmt.Sprintf("fragment %s on %s { %s }", EntryFragmentName, typeName, text)
	}
	doc, err := language.ParseQuery(text)
	if err != nil {
		return nil, fmt.Errorf("parse selections on %s: %w", typeName, err)
	}
	if len(doc.Operations) > 0 {
		return nil, errors.New("selections may only contain fragment definitions")
	}

	seen := make(map[string]bool, len(doc.Fragments))
	for _, f := range doc.Fragments {
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate fragment name %q", f.Name)
		}
		seen[f.Name] = true
	}

	var entry *language.FragmentDefinition
	switch {
	case len(doc.Fragments) == 1:
		entry = doc.Fragments[0]
	default:
		entry = doc.Fragments.ForName(EntryFragmentName)
	}
	if entry == nil {
		return nil, fmt.Errorf("multiple fragments found but none named %s", EntryFragmentName)
	}
	if entry.TypeCondition != typeName {
		return nil, fmt.Errorf("entry fragment %s is on type %s, expected %s", entry.Name, entry.TypeCondition, typeName)
	}

	p := &ParsedSelections{
		TypeName:     typeName,
		SelectionSet: entry.SelectionSet,
		Fragments:    doc.Fragments,
	}
	if err := checkSpreads(p.SelectionSet, p.Fragments); err != nil {
		return nil, err
	}
	return p, nil
}

// MustParse is like Parse but panics on error. It is intended for static
// registrations.
func MustParse(typeName, text string) *ParsedSelections {
	p, err := Parse(typeName, text)
	if err != nil {
		panic(err)
	}
	return p
}

// ToDocument returns a document holding the fragment definitions.
func (p *ParsedSelections) ToDocument() *language.QueryDocument {
	return &language.QueryDocument{Fragments: p.Fragments}
}

func (p *ParsedSelections) String() string {
	return language.FormatQuery(p.ToDocument())
}

// FilterToPath narrows the selections to those found along path, a list of
// response keys. Fragment spreads that contribute selections are inlined.
// It returns nil when nothing in the selection set lies on the path.
func (p *ParsedSelections) FilterToPath(path []string) *ParsedSelections {
	filtered := filterSelectionSet(p.SelectionSet, p.Fragments, path)
	if filtered == nil {
		return nil
	}
	entry := &language.FragmentDefinition{
		Name:          EntryFragmentName,
		TypeCondition: p.TypeName,
		SelectionSet:  filtered,
	}
	return &ParsedSelections{
		TypeName:     p.TypeName,
		SelectionSet: filtered,
		Fragments:    language.FragmentDefinitionList{entry},
	}
}

func filterSelectionSet(ss language.SelectionSet, frags language.FragmentDefinitionList, path []string) language.SelectionSet {
	var out language.SelectionSet
	for _, sel := range ss {
		if f := filterSelection(sel, frags, path); f != nil {
			out = append(out, f)
		}
	}
	return out
}

func filterSelection(sel language.Selection, frags language.FragmentDefinitionList, path []string) language.Selection {
	switch sel := sel.(type) {
	case *language.Field:
		if len(path) > 0 && language.ResponseKey(sel) != path[0] {
			return nil
		}
		if len(sel.SelectionSet) == 0 {
			if len(path) > 1 {
				return nil
			}
			return sel
		}
		rest := path
		if len(rest) > 0 {
			rest = rest[1:]
		}
		sub := filterSelectionSet(sel.SelectionSet, frags, rest)
		if sub == nil {
			return nil
		}
		cp := *sel
		cp.SelectionSet = sub
		return &cp
	case *language.InlineFragment:
		sub := filterSelectionSet(sel.SelectionSet, frags, path)
		if sub == nil {
			return nil
		}
		cp := *sel
		cp.SelectionSet = sub
		return &cp
	case *language.FragmentSpread:
		def := frags.ForName(sel.Name)
		if def == nil {
			return nil
		}
		sub := filterSelectionSet(def.SelectionSet, frags, path)
		if sub == nil {
			return nil
		}
		return &language.InlineFragment{
			TypeCondition: def.TypeCondition,
			Directives:    sel.Directives,
			SelectionSet:  sub,
			Position:      sel.Position,
		}
	}
	return nil
}

// checkSpreads verifies that every spread, at any depth, names a defined fragment.
func checkSpreads(ss language.SelectionSet, frags language.FragmentDefinitionList) error {
	visited := map[string]bool{}
	var walk func(language.SelectionSet) error
	walk = func(ss language.SelectionSet) error {
		for _, sel := range ss {
			switch sel := sel.(type) {
			case *language.Field:
				if err := walk(sel.SelectionSet); err != nil {
					return err
				}
			case *language.InlineFragment:
				if err := walk(sel.SelectionSet); err != nil {
					return err
				}
			case *language.FragmentSpread:
				def := frags.ForName(sel.Name)
				if def == nil {
					return fmt.Errorf("missing fragment definition: %s", sel.Name)
				}
				if visited[sel.Name] {
					continue
				}
				visited[sel.Name] = true
				if err := walk(def.SelectionSet); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(ss)
}
