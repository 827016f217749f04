package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

var (
	builtinScalars    = []string{"String", "Int", "Float", "Boolean", "ID"}
	builtinDirectives = []string{"include", "skip"}
)

// prelude holds the definitions every schema shares. They are built once
// from the parser's own prelude and must not be modified.
type prelude struct {
	scalars       map[string]*Type
	directives    map[string]*Directive
	introspection []*Type
}

var loadPrelude = sync.OnceValues(func() (*prelude, error) {
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "prelude.graphql", Input: "type Query { ok: Boolean }"})
	if err != nil {
		return nil, err
	}
	p := &prelude{
		scalars:    make(map[string]*Type, len(builtinScalars)),
		directives: make(map[string]*Directive, len(builtinDirectives)),
	}
	for _, name := range builtinScalars {
		if p.scalars[name], err = buildType(doc, doc.Types[name], false); err != nil {
			return nil, err
		}
	}
	for _, name := range builtinDirectives {
		p.directives[name] = buildDirective(doc.Directives[name])
	}
	for _, name := range slices.Sorted(maps.Keys(doc.Types)) {
		if !strings.HasPrefix(name, "__") {
			continue
		}
		t, err := buildType(doc, doc.Types[name], false)
		if err != nil {
			return nil, err
		}
		p.introspection = append(p.introspection, t)
	}
	return p, nil
})

func mustPrelude() *prelude {
	p, err := loadPrelude()
	if err != nil {
		panic(fmt.Sprintf("schema: build prelude: %v", err))
	}
	return p
}

// IntrospectionTypes returns __Schema, __Type and the other introspection
// types, sorted by name. The returned types are shared and must not be
// modified.
func IntrospectionTypes() ([]*Type, error) {
	p, err := loadPrelude()
	if err != nil {
		return nil, err
	}
	return p.introspection, nil
}

func isBuiltinType(t *Type) bool {
	return mustPrelude().scalars[t.Name] == t
}

func isBuiltinDirective(d *Directive) bool {
	return mustPrelude().directives[d.Name] == d
}
