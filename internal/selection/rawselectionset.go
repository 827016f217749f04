package selection

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	language "github.com/hanpama/rsgate/internal/language"
	schema "github.com/hanpama/rsgate/internal/schema"
)

// Selection is one field selection within a RawSelectionSet, flattened out
// of any fragments it was declared in.
type Selection struct {
	TypeCondition string
	FieldName     string
	SelectionName string
}

// RawSelectionSet is an untyped, schema-aware view over a selection set.
//
// Selections are modeled as a flat list of fields, each tagged with the type
// condition under which it was declared. @skip and @include are applied
// eagerly when the set is built; conditions whose variables are not bound are
// kept.
type RawSelectionSet interface {
	TypeName() string

	// Selections yields the flattened top-level field selections.
	Selections() iter.Seq[Selection]
	// TraversableSelections yields the selections that may carry sub-selections
	// when projected onto TypeName.
	TraversableSelections() iter.Seq[Selection]

	ContainsField(typeName, fieldName string) bool
	ContainsSelection(typeName, selectionName string) bool
	ResolveSelection(typeName, selectionName string) (Selection, error)
	// RequestsType reports whether any selection could apply to typeName.
	RequestsType(typeName string) bool

	SelectionSetForField(typeName, fieldName string) (RawSelectionSet, error)
	SelectionSetForSelection(typeName, selectionName string) (RawSelectionSet, error)
	SelectionSetForType(typeName string) (RawSelectionSet, error)

	IsEmpty() bool
	// IsTransitivelyEmpty reports whether nothing would be fetched once
	// structural selections with empty sub-selections are discounted.
	IsTransitivelyEmpty() bool
	// ArgumentsOfSelection returns coerced argument values, or nil when the
	// selection is absent.
	ArgumentsOfSelection(typeName, selectionName string) (map[string]any, error)

	ToSelectionSet() language.SelectionSet
	ToFragment() Fragment
	ToDocument() *language.QueryDocument
	PrintAsFieldSet() string

	// ToNodelikeSelectionSet re-roots the selections under a query field,
	// such as node(id: ...), returning a set on the query type.
	ToNodelikeSelectionSet(nodeFieldName string, arguments language.ArgumentList) (RawSelectionSet, error)
	// AddVariables returns a copy with additional variable bindings. Existing
	// keys cannot be rebound.
	AddVariables(variables map[string]any) (RawSelectionSet, error)
}

type fieldSelection struct {
	field         *language.Field
	typeCondition string
}

func (s fieldSelection) selection() Selection {
	return Selection{
		TypeCondition: s.typeCondition,
		FieldName:     s.field.Name,
		SelectionName: language.ResponseKey(s.field),
	}
}

type selectionContext struct {
	schema    *schema.Schema
	variables map[string]any
	fragments *FragmentMap
}

type rawSelectionSet struct {
	typeName       string
	selections     []fieldSelection
	requestedTypes []string
	ctx            *selectionContext
}

// NewRawSelectionSet builds a RawSelectionSet for parsed against sch, applying
// @skip and @include with the given variable values.
func NewRawSelectionSet(sch *schema.Schema, parsed *ParsedSelections, variables map[string]any) (RawSelectionSet, error) {
	if err := requireComposite(sch, parsed.TypeName); err != nil {
		return nil, err
	}
	if err := checkSpreads(parsed.SelectionSet, parsed.Fragments); err != nil {
		return nil, err
	}
	base := &rawSelectionSet{
		typeName: parsed.TypeName,
		ctx: &selectionContext{
			schema:    sch,
			variables: maps.Clone(variables),
			fragments: NewFragmentMap(parsed.Fragments),
		},
	}
	if err := base.addTyped(parsed.TypeName, parsed.SelectionSet, nil); err != nil {
		return nil, err
	}
	return base, nil
}

func requireComposite(sch *schema.Schema, name string) error {
	if sch.Types[name] == nil {
		return fmt.Errorf("type %s is not defined", name)
	}
	if !sch.IsComposite(name) {
		return fmt.Errorf("type %s is not a composite type", name)
	}
	return nil
}

// addTyped appends the field selections of ss that apply under typeName,
// descending into inline fragments and fragment spreads.
func (r *rawSelectionSet) addTyped(typeName string, ss language.SelectionSet, spread []string) error {
	for _, sel := range ss {
		switch sel := sel.(type) {
		case *language.Field:
			if !r.ctx.included(sel.Directives) {
				continue
			}
			r.selections = append(r.selections, fieldSelection{field: sel, typeCondition: typeName})
		case *language.InlineFragment:
			if !r.ctx.included(sel.Directives) {
				continue
			}
			cond := typeName
			if sel.TypeCondition != "" {
				cond = sel.TypeCondition
				if err := requireComposite(r.ctx.schema, cond); err != nil {
					return err
				}
			}
			if err := r.addTyped(cond, sel.SelectionSet, spread); err != nil {
				return err
			}
		case *language.FragmentSpread:
			if !r.ctx.included(sel.Directives) {
				continue
			}
			if slices.Contains(spread, sel.Name) {
				return fmt.Errorf("cyclic fragment spreads detected at %s", sel.Name)
			}
			def, err := r.ctx.fragments.Lookup(sel.Name)
			if err != nil {
				return err
			}
			if err := requireComposite(r.ctx.schema, def.TypeCondition); err != nil {
				return err
			}
			if err := r.addTyped(def.TypeCondition, def.SelectionSet, append(slices.Clip(spread), sel.Name)); err != nil {
				return err
			}
		}
	}
	if !slices.Contains(r.requestedTypes, typeName) {
		r.requestedTypes = append(r.requestedTypes, typeName)
	}
	return nil
}

// included evaluates @skip and @include. Unbound variables keep the selection.
func (c *selectionContext) included(directives language.DirectiveList) bool {
	if v, ok := directiveIf(directives, "skip", c.variables); ok && v {
		return false
	}
	if v, ok := directiveIf(directives, "include", c.variables); ok && !v {
		return false
	}
	return true
}

func directiveIf(directives language.DirectiveList, name string, vars map[string]any) (bool, bool) {
	d := directives.ForName(name)
	if d == nil {
		return false, false
	}
	arg := d.Arguments.ForName("if")
	if arg == nil || arg.Value == nil {
		return false, false
	}
	if arg.Value.Kind == language.Variable {
		if _, bound := vars[arg.Value.Raw]; !bound {
			return false, false
		}
	}
	v, err := arg.Value.Value(vars)
	if err != nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (r *rawSelectionSet) TypeName() string { return r.typeName }

func (r *rawSelectionSet) Selections() iter.Seq[Selection] {
	return func(yield func(Selection) bool) {
		for _, s := range r.selections {
			if !yield(s.selection()) {
				return
			}
		}
	}
}

func (r *rawSelectionSet) TraversableSelections() iter.Seq[Selection] {
	return func(yield func(Selection) bool) {
		for _, s := range r.selections {
			// a selection may be reprojected by widening then narrowing to a different type
			if !r.ctx.schema.IsSpreadable(s.typeCondition, r.typeName) {
				continue
			}
			def := r.ctx.schema.FieldDefinition(s.typeCondition, s.field.Name)
			if def == nil || !r.ctx.schema.IsComposite(def.Type.GetNamedType()) {
				continue
			}
			if !yield(s.selection()) {
				return
			}
		}
	}
}

func (r *rawSelectionSet) find(typeName string, match func(*language.Field) bool) (fieldSelection, bool) {
	for _, s := range r.selections {
		if !match(s.field) {
			continue
		}
		switch r.ctx.schema.Relation(s.typeCondition, typeName) {
		case schema.Same, schema.WiderThan:
			return s, true
		}
	}
	return fieldSelection{}, false
}

func byName(name string) func(*language.Field) bool {
	return func(f *language.Field) bool { return f.Name == name }
}

func byResponseKey(key string) func(*language.Field) bool {
	return func(f *language.Field) bool { return language.ResponseKey(f) == key }
}

func (r *rawSelectionSet) ContainsField(typeName, fieldName string) bool {
	_, ok := r.find(typeName, byName(fieldName))
	return ok
}

func (r *rawSelectionSet) ContainsSelection(typeName, selectionName string) bool {
	_, ok := r.find(typeName, byResponseKey(selectionName))
	return ok
}

func (r *rawSelectionSet) ResolveSelection(typeName, selectionName string) (Selection, error) {
	s, ok := r.find(typeName, byResponseKey(selectionName))
	if !ok {
		return Selection{}, fmt.Errorf("no selection found for selectionName %q", selectionName)
	}
	return s.selection(), nil
}

func (r *rawSelectionSet) RequestsType(typeName string) bool {
	for _, t := range r.requestedTypes {
		switch r.ctx.schema.Relation(t, typeName) {
		case schema.Same, schema.NarrowerThan:
			return true
		}
	}
	return false
}

func (r *rawSelectionSet) subselectionType(typeName, fieldName string) (string, error) {
	def := r.ctx.schema.FieldDefinition(typeName, fieldName)
	if def == nil {
		return "", fmt.Errorf("Field %s.%s is not defined", typeName, fieldName)
	}
	named := def.Type.GetNamedType()
	if !r.ctx.schema.IsComposite(named) {
		return "", fmt.Errorf("Field %s.%s does not support subselections", typeName, fieldName)
	}
	return named, nil
}

func (r *rawSelectionSet) SelectionSetForField(typeName, fieldName string) (RawSelectionSet, error) {
	sub, err := r.subselectionType(typeName, fieldName)
	if err != nil {
		return nil, err
	}
	return r.subselections(typeName, sub, byName(fieldName))
}

func (r *rawSelectionSet) SelectionSetForSelection(typeName, selectionName string) (RawSelectionSet, error) {
	sel, err := r.ResolveSelection(typeName, selectionName)
	if err != nil {
		return nil, err
	}
	sub, err := r.subselectionType(typeName, sel.FieldName)
	if err != nil {
		return nil, err
	}
	return r.subselections(typeName, sub, byResponseKey(selectionName))
}

func (r *rawSelectionSet) subselections(selectionType, subType string, match func(*language.Field) bool) (RawSelectionSet, error) {
	if !r.ctx.schema.IsSpreadable(r.typeName, selectionType) {
		return nil, fmt.Errorf("selections of type %s are not spreadable in type %s", selectionType, r.typeName)
	}
	out := &rawSelectionSet{typeName: subType, ctx: r.ctx}
	for _, s := range r.selections {
		if !match(s.field) || len(s.field.SelectionSet) == 0 {
			continue
		}
		switch r.ctx.schema.Relation(s.typeCondition, selectionType) {
		case schema.Same, schema.WiderThan:
			if err := out.addTyped(subType, s.field.SelectionSet, nil); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *rawSelectionSet) SelectionSetForType(typeName string) (RawSelectionSet, error) {
	if err := requireComposite(r.ctx.schema, typeName); err != nil {
		return nil, err
	}
	if typeName == r.typeName {
		return r, nil
	}
	if !r.ctx.schema.IsSpreadable(r.typeName, typeName) {
		return nil, fmt.Errorf("selections of type %s are not spreadable in type %s", typeName, r.typeName)
	}
	out := &rawSelectionSet{typeName: typeName, ctx: r.ctx}
	for _, s := range r.selections {
		if r.ctx.schema.IsSpreadable(s.typeCondition, typeName) {
			out.selections = append(out.selections, s)
		}
	}
	for _, t := range r.requestedTypes {
		if r.ctx.schema.IsSpreadable(t, typeName) {
			out.requestedTypes = append(out.requestedTypes, t)
		}
	}
	return out, nil
}

func (r *rawSelectionSet) IsEmpty() bool { return len(r.selections) == 0 }

func (r *rawSelectionSet) IsTransitivelyEmpty() bool {
	if r.IsEmpty() {
		return true
	}
	var order []string
	first := map[string]string{}
	for _, s := range r.selections {
		if _, ok := first[s.field.Name]; !ok {
			first[s.field.Name] = s.typeCondition
			order = append(order, s.field.Name)
		}
	}
	for _, name := range order {
		cond := first[name]
		t := r.ctx.schema.Types[cond]
		if t == nil || (t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface) {
			return false
		}
		def := r.ctx.schema.FieldDefinition(cond, name)
		if def == nil || !r.ctx.schema.IsComposite(def.Type.GetNamedType()) {
			return false
		}
		sub, err := r.SelectionSetForField(cond, name)
		if err != nil || !sub.IsTransitivelyEmpty() {
			return false
		}
	}
	return true
}

func (r *rawSelectionSet) ArgumentsOfSelection(typeName, selectionName string) (map[string]any, error) {
	s, ok := r.find(typeName, byResponseKey(selectionName))
	if !ok {
		return nil, nil
	}
	def := r.ctx.schema.FieldDefinition(s.typeCondition, s.field.Name)
	if def == nil {
		return nil, fmt.Errorf("Field %s.%s is not defined", s.typeCondition, s.field.Name)
	}
	args := make(map[string]any, len(def.Arguments))
	for _, argDef := range def.Arguments {
		arg := s.field.Arguments.ForName(argDef.Name)
		if arg == nil || arg.Value == nil {
			if argDef.DefaultValue != nil {
				args[argDef.Name] = argDef.DefaultValue
			}
			continue
		}
		if arg.Value.Kind == language.Variable {
			if _, bound := r.ctx.variables[arg.Value.Raw]; !bound {
				if argDef.DefaultValue != nil {
					args[argDef.Name] = argDef.DefaultValue
				}
				continue
			}
		}
		v, err := arg.Value.Value(r.ctx.variables)
		if err != nil {
			return nil, fmt.Errorf("argument %s of %s.%s: %w", argDef.Name, s.typeCondition, s.field.Name, err)
		}
		args[argDef.Name] = v
	}
	return args, nil
}

// ToSelectionSet renders the selections grouped into inline fragments by
// type condition. Fragment spreads are inlined and empty fragments dropped.
func (r *rawSelectionSet) ToSelectionSet() language.SelectionSet {
	var conds []string
	grouped := map[string]language.SelectionSet{}
	for _, s := range r.selections {
		if _, ok := grouped[s.typeCondition]; !ok {
			conds = append(conds, s.typeCondition)
		}
		grouped[s.typeCondition] = append(grouped[s.typeCondition], s.field)
	}
	var out language.SelectionSet
	for _, cond := range conds {
		frag := &language.InlineFragment{TypeCondition: cond, SelectionSet: grouped[cond]}
		if inlined := r.inline(frag); inlined != nil {
			out = append(out, inlined)
		}
	}
	return out
}

func (r *rawSelectionSet) inline(sel language.Selection) language.Selection {
	switch sel := sel.(type) {
	case *language.Field:
		if len(sel.SelectionSet) == 0 {
			return sel
		}
		ss := r.inlineSet(sel.SelectionSet)
		if ss == nil {
			return nil
		}
		cp := *sel
		cp.SelectionSet = ss
		return &cp
	case *language.InlineFragment:
		ss := r.inlineSet(sel.SelectionSet)
		if ss == nil {
			return nil
		}
		cp := *sel
		cp.SelectionSet = ss
		return &cp
	case *language.FragmentSpread:
		def, err := r.ctx.fragments.Lookup(sel.Name)
		if err != nil {
			return nil
		}
		ss := r.inlineSet(def.SelectionSet)
		if ss == nil {
			return nil
		}
		return &language.InlineFragment{
			TypeCondition: def.TypeCondition,
			Directives:    sel.Directives,
			SelectionSet:  ss,
		}
	}
	return nil
}

func (r *rawSelectionSet) inlineSet(ss language.SelectionSet) language.SelectionSet {
	var out language.SelectionSet
	for _, sel := range ss {
		if !r.ctx.included(directivesOf(sel)) {
			continue
		}
		if inlined := r.inline(sel); inlined != nil {
			out = append(out, inlined)
		}
	}
	return out
}

func directivesOf(sel language.Selection) language.DirectiveList {
	switch sel := sel.(type) {
	case *language.Field:
		return sel.Directives
	case *language.InlineFragment:
		return sel.Directives
	case *language.FragmentSpread:
		return sel.Directives
	}
	return nil
}

func (r *rawSelectionSet) ToDocument() *language.QueryDocument {
	return &language.QueryDocument{
		Fragments: language.FragmentDefinitionList{{
			Name:          EntryFragmentName,
			TypeCondition: r.typeName,
			SelectionSet:  r.ToSelectionSet(),
		}},
	}
}

func (r *rawSelectionSet) ToFragment() Fragment {
	return newFragment(r.ToDocument(), r.ctx.variables)
}

func (r *rawSelectionSet) PrintAsFieldSet() string {
	return printFieldSet(r.ToSelectionSet())
}

func (r *rawSelectionSet) ToNodelikeSelectionSet(nodeFieldName string, arguments language.ArgumentList) (RawSelectionSet, error) {
	sch := r.ctx.schema
	t := sch.Types[r.typeName]
	if r.typeName != "Node" && (t == nil || !slices.Contains(t.Interfaces, "Node")) {
		return nil, fmt.Errorf("cannot call ToNodelikeSelectionSet for a type that does not implement Node: %s", r.typeName)
	}
	out := &rawSelectionSet{
		typeName:       sch.QueryType,
		requestedTypes: r.requestedTypes,
		ctx:            r.ctx,
	}
	if ss := r.ToSelectionSet(); len(ss) > 0 {
		field := &language.Field{
			Alias:        nodeFieldName,
			Name:         nodeFieldName,
			Arguments:    arguments,
			SelectionSet: ss,
		}
		out.selections = []fieldSelection{{field: field, typeCondition: sch.QueryType}}
	}
	return out, nil
}

func (r *rawSelectionSet) AddVariables(variables map[string]any) (RawSelectionSet, error) {
	for k := range r.ctx.variables {
		if _, ok := variables[k]; ok {
			return nil, fmt.Errorf("cannot rebind variable with key %s", k)
		}
	}
	merged := maps.Clone(r.ctx.variables)
	if merged == nil {
		merged = make(map[string]any, len(variables))
	}
	maps.Copy(merged, variables)
	ctx := *r.ctx
	ctx.variables = merged
	return &rawSelectionSet{
		typeName:       r.typeName,
		selections:     r.selections,
		requestedTypes: r.requestedTypes,
		ctx:            &ctx,
	}, nil
}
