package rss

import (
	"errors"
	"fmt"

	schema "github.com/hanpama/rsgate/internal/schema"
	"github.com/hanpama/rsgate/internal/selection"
)

// ValidateSchema checks that every registered required selection set, and
// every selection its variable resolvers read from, is valid against sch.
// Sets must be rooted on their coordinate's type or on the query type.
func ValidateSchema(sch *schema.Schema, reg *MapRegistry) error {
	var errs []error
	for _, c := range reg.Coordinates() {
		if sch.Types[c.TypeName] == nil {
			errs = append(errs, fmt.Errorf("%s: type %s is not defined", c, c.TypeName))
			continue
		}
		if c.FieldName != "" && sch.FieldDefinition(c.TypeName, c.FieldName) == nil {
			errs = append(errs, fmt.Errorf("%s: field is not defined", c))
			continue
		}
		for _, forChecker := range []bool{false, true} {
			for _, set := range reg.entries[entryKey{coord: c, forChecker: forChecker}] {
				if err := validateSet(sch, c, set); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", c, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func validateSet(sch *schema.Schema, c Coordinate, set *RequiredSelectionSet) error {
	root := set.Selections.TypeName
	if root != c.TypeName && root != sch.QueryType {
		return fmt.Errorf("required selections are on %s, expected %s or %s", root, c.TypeName, sch.QueryType)
	}
	if err := validateSelections(sch, set.Selections); err != nil {
		return err
	}
	for _, r := range set.VariablesResolvers {
		if dep := r.Dependency(); dep != nil {
			if err := validateSelections(sch, dep.Selections); err != nil {
				return fmt.Errorf("variables %v: %w", r.VariableNames(), err)
			}
		}
	}
	return nil
}

func validateSelections(sch *schema.Schema, parsed *selection.ParsedSelections) error {
	raw, err := selection.NewRawSelectionSet(sch, parsed, nil)
	if err != nil {
		return err
	}
	return validateRaw(sch, raw)
}

func validateRaw(sch *schema.Schema, raw selection.RawSelectionSet) error {
	for sel := range raw.Selections() {
		if !sch.IsSpreadable(sel.TypeCondition, raw.TypeName()) {
			return fmt.Errorf("fragment on %s cannot be spread in %s", sel.TypeCondition, raw.TypeName())
		}
		def := sch.FieldDefinition(sel.TypeCondition, sel.FieldName)
		if def == nil {
			return fmt.Errorf("Field %s.%s is not defined", sel.TypeCondition, sel.FieldName)
		}
		if !sch.IsComposite(def.Type.GetNamedType()) {
			continue
		}
		nested, err := raw.SelectionSetForSelection(sel.TypeCondition, sel.SelectionName)
		if err != nil {
			return err
		}
		if nested.IsEmpty() {
			return fmt.Errorf("Field %s.%s of type %s must have a selection of subfields", sel.TypeCondition, sel.FieldName, def.Type.GetNamedType())
		}
		if err := validateRaw(sch, nested); err != nil {
			return err
		}
	}
	return nil
}
