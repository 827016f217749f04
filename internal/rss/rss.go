// Package rss declares the extra selections a resolver or checker needs
// fetched before it runs, and indexes them by schema coordinate.
package rss

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/selection"
	"github.com/hanpama/rsgate/internal/variables"
)

// RequiredSelectionSet is a selection set together with the resolvers that
// bind every variable it uses.
type RequiredSelectionSet struct {
	Selections         *selection.ParsedSelections
	VariablesResolvers []variables.Resolver
	ForChecker         bool
	Attribution        *attribution.ExecutionAttribution
}

// UnboundVariablesError reports variables used by required selections that
// no resolver provides.
type UnboundVariablesError struct {
	TypeName  string
	Variables []string
}

func (e *UnboundVariablesError) Error() string {
	return fmt.Sprintf("required selections on %s use unbound variables: %s", e.TypeName, strings.Join(e.Variables, ", "))
}

// New builds a RequiredSelectionSet. Every variable referenced in selections
// must be covered by resolvers, and resolvers must not overlap.
func New(
	selections *selection.ParsedSelections,
	resolvers []variables.Resolver,
	forChecker bool,
	attr *attribution.ExecutionAttribution,
) (*RequiredSelectionSet, error) {
	bound := variables.Names(resolvers)
	var unbound []string
	for _, ref := range selections.VariableReferences() {
		if !slices.Contains(bound, ref) {
			unbound = append(unbound, ref)
		}
	}
	if len(unbound) > 0 {
		return nil, &UnboundVariablesError{TypeName: selections.TypeName, Variables: unbound}
	}
	if err := variables.CheckDisjoint(resolvers); err != nil {
		return nil, err
	}
	return &RequiredSelectionSet{
		Selections:         selections,
		VariablesResolvers: resolvers,
		ForChecker:         forChecker,
		Attribution:        attr,
	}, nil
}

func (r *RequiredSelectionSet) String() string {
	return fmt.Sprintf("%s(%s)", r.Attribution.ToTagString(), r.Selections.TypeName)
}
