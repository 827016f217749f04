package executor

import (
	language "github.com/hanpama/rsgate/internal/language"
	schema "github.com/hanpama/rsgate/internal/schema"
)

// collectedField is every field node sharing one response name, in document
// order.
type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// fieldGroups keeps response names in the order they first appear.
type fieldGroups struct {
	groups []collectedField
	byName map[string]int
}

func (g *fieldGroups) add(f *language.Field) {
	name := f.Alias
	if name == "" {
		name = f.Name
	}
	if i, ok := g.byName[name]; ok {
		g.groups[i].Fields = append(g.groups[i].Fields, f)
		return
	}
	g.byName[name] = len(g.groups)
	g.groups = append(g.groups, collectedField{ResponseName: name, Fields: []*language.Field{f}})
}

func (g *fieldGroups) orderedFields() []collectedField { return g.groups }

// collectFields flattens selectionSet for objectType: fragments whose type
// condition applies are inlined, @skip and @include are honoured and each
// named fragment is visited at most once.
func collectFields(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet) *fieldGroups {
	c := fieldCollector{
		state:   state,
		object:  objectType,
		visited: map[string]bool{},
		out:     &fieldGroups{byName: map[string]int{}},
	}
	c.collect(selectionSet)
	return c.out
}

type fieldCollector struct {
	state   *executionState
	object  *schema.Type
	visited map[string]bool
	out     *fieldGroups
}

func (c *fieldCollector) collect(selectionSet language.SelectionSet) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if c.included(sel.Directives) {
				c.out.add(sel)
			}
		case *language.InlineFragment:
			if c.included(sel.Directives) && c.applies(sel.TypeCondition) {
				c.collect(sel.SelectionSet)
			}
		case *language.FragmentSpread:
			if !c.included(sel.Directives) || c.visited[sel.Name] {
				continue
			}
			c.visited[sel.Name] = true
			def := c.state.document.Fragments.ForName(sel.Name)
			if def == nil || !c.applies(def.TypeCondition) || !c.included(def.Directives) {
				continue
			}
			c.collect(def.SelectionSet)
		}
	}
}

// applies reports whether a fragment on typeCondition selects fields of the
// collector's object. Abstract conditions match their possible types.
func (c *fieldCollector) applies(typeCondition string) bool {
	if typeCondition == "" || typeCondition == c.object.Name {
		return true
	}
	return c.state.schema.IsPossibleType(typeCondition, c.object.Name)
}

func (c *fieldCollector) included(directives language.DirectiveList) bool {
	if skip, _ := c.directiveIf(directives.ForName("skip")).(bool); skip {
		return false
	}
	include, ok := c.directiveIf(directives.ForName("include")).(bool)
	return !ok || include
}

// directiveIf returns the "if" argument of d, or nil when d or the argument is
// absent.
func (c *fieldCollector) directiveIf(d *language.Directive) any {
	if d == nil {
		return nil
	}
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return nil
	}
	return valueFromASTWithVars(arg.Value, c.state.variableValues)
}

func getFieldDefinition(objectType *schema.Type, fieldName string) *schema.Field {
	for _, field := range objectType.Fields {
		if field.Name == fieldName {
			return field
		}
	}
	return nil
}
