package engine

import (
	"errors"
	"strings"

	"github.com/hanpama/rsgate/internal/language"
	"github.com/hanpama/rsgate/internal/selection"
)

// CodeIntrospectionNotAllowed is the extensions code of errors raised by the
// introspection policy.
const CodeIntrospectionNotAllowed = "INTROSPECTION_NOT_ALLOWED"

// Introspections classifies the top-level selections of an operation.
type Introspections struct {
	Operation           *language.OperationDefinition
	HasIntrospection    bool
	HasNonIntrospection bool
}

// InspectIntrospections classifies the operation named operationName, or the
// first operation when the name is empty. Fragments are followed
// recursively. It returns nil when the operation does not exist or spreads a
// fragment the document does not define.
func InspectIntrospections(doc *language.QueryDocument, operationName string) *Introspections {
	op := findOperation(doc, operationName)
	if op == nil {
		return nil
	}
	result := &Introspections{Operation: op}
	if err := inspect(op.SelectionSet, selection.NewFragmentMap(doc.Fragments), result, map[string]bool{}); err != nil {
		return nil
	}
	return result
}

func findOperation(doc *language.QueryDocument, name string) *language.OperationDefinition {
	if name == "" {
		if len(doc.Operations) == 0 {
			return nil
		}
		return doc.Operations[0]
	}
	return doc.Operations.ForName(name)
}

func inspect(ss language.SelectionSet, frags *selection.FragmentMap, res *Introspections, visited map[string]bool) error {
	for _, sel := range ss {
		switch sel := sel.(type) {
		case *language.Field:
			if isIntrospectionField(sel.Name) {
				res.HasIntrospection = true
			} else {
				res.HasNonIntrospection = true
			}
		case *language.InlineFragment:
			if err := inspect(sel.SelectionSet, frags, res, visited); err != nil {
				return err
			}
		case *language.FragmentSpread:
			if visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			def, err := frags.Lookup(sel.Name)
			if err != nil {
				return err
			}
			if err := inspect(def.SelectionSet, frags, res, visited); err != nil {
				return err
			}
		}
		if res.HasIntrospection && res.HasNonIntrospection {
			return nil
		}
	}
	return nil
}

func isIntrospectionField(name string) bool {
	return strings.EqualFold(name, "__schema") || strings.EqualFold(name, "__type")
}

// ErrIntrospectionDisabled is the cause of rejections made when
// introspection is turned off.
var ErrIntrospectionDisabled = errors.New("introspection is disabled")

// checkIntrospection applies the introspection policy to the operation in
// doc. It returns nil when execution may proceed.
func checkIntrospection(doc *language.QueryDocument, operationName string, enabled bool) *language.Error {
	in := InspectIntrospections(doc, operationName)
	if in == nil || !in.HasIntrospection {
		return nil
	}
	switch {
	case !enabled:
		err := language.Errorf(CodeIntrospectionNotAllowed, "Introspection is disabled.")
		err.Err = ErrIntrospectionDisabled
		return err
	case in.Operation.Operation != language.Query:
		return language.Errorf(CodeIntrospectionNotAllowed, "%s operations cannot introspect the schema.", strings.ToUpper(string(in.Operation.Operation)))
	case in.HasNonIntrospection:
		return language.Errorf(CodeIntrospectionNotAllowed, "Introspective queries cannot select non-introspective fields.")
	}
	return nil
}
