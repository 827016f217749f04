package selection

import (
	"slices"

	language "github.com/hanpama/rsgate/internal/language"
)

// VariableReferences returns the distinct names of the variables used in
// arguments and directives of ss, including inside spread fragments, in order
// of first use.
func VariableReferences(ss language.SelectionSet, frags language.FragmentDefinitionList) []string {
	var names []string
	add := func(v *language.Value) {
		collectValueVariables(v, &names)
	}
	visited := map[string]bool{}
	var walk func(language.SelectionSet)
	walk = func(ss language.SelectionSet) {
		for _, sel := range ss {
			switch sel := sel.(type) {
			case *language.Field:
				for _, arg := range sel.Arguments {
					add(arg.Value)
				}
				addDirectiveVariables(sel.Directives, add)
				walk(sel.SelectionSet)
			case *language.InlineFragment:
				addDirectiveVariables(sel.Directives, add)
				walk(sel.SelectionSet)
			case *language.FragmentSpread:
				addDirectiveVariables(sel.Directives, add)
				if visited[sel.Name] {
					continue
				}
				visited[sel.Name] = true
				if def := frags.ForName(sel.Name); def != nil {
					addDirectiveVariables(def.Directives, add)
					walk(def.SelectionSet)
				}
			}
		}
	}
	walk(ss)
	return names
}

// VariableReferences returns the variables used by the parsed selections.
func (p *ParsedSelections) VariableReferences() []string {
	return VariableReferences(p.SelectionSet, p.Fragments)
}

func addDirectiveVariables(directives language.DirectiveList, add func(*language.Value)) {
	for _, d := range directives {
		for _, arg := range d.Arguments {
			add(arg.Value)
		}
	}
}

func collectValueVariables(v *language.Value, names *[]string) {
	if v == nil {
		return
	}
	if v.Kind == language.Variable {
		if !slices.Contains(*names, v.Raw) {
			*names = append(*names, v.Raw)
		}
		return
	}
	for _, child := range v.Children {
		collectValueVariables(child.Value, names)
	}
}
