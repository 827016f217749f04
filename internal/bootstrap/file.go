package bootstrap

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Kind says what a registration is bound to.
type Kind string

const (
	KindResolver Kind = "resolver"
	KindChecker  Kind = "checker"
)

// File is a registrations document.
type File struct {
	Registrations []Registration `yaml:"registrations"`
}

// Registration declares the selections a resolver or checker at Coordinate
// needs. Coordinate is "Type" or "Type.field".
type Registration struct {
	Coordinate       string         `yaml:"coordinate"`
	Kind             Kind           `yaml:"kind"`
	Name             string         `yaml:"name"`
	ObjectSelections string         `yaml:"object_selections"`
	QuerySelections  string         `yaml:"query_selections"`
	Variables        []VariableSpec `yaml:"variables"`
	Checker          *CheckerSpec   `yaml:"checker"`

	// Position of the entry in the source document, zero when unknown.
	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

// VariableSpec binds one variable. Exactly one source must be set.
type VariableSpec struct {
	Name            string `yaml:"name"`
	Const           any    `yaml:"const"`
	FromArgument    string `yaml:"from_argument"`
	FromObjectField string `yaml:"from_object_field"`
	FromQueryField  string `yaml:"from_query_field"`
}

// CheckerSpec selects a built-in check. Exactly one field must be set.
type CheckerSpec struct {
	Allow            *struct{}         `yaml:"allow"`
	Deny             *DenySpec         `yaml:"deny"`
	Equals           *EqualsSpec       `yaml:"equals"`
	RequiresArgument *RequiresArgument `yaml:"requires_argument"`
	Remote           *RemoteSpec       `yaml:"remote"`
}

type DenySpec struct {
	Message string `yaml:"message"`
}

// EqualsSpec passes when the value at Path in the object selections equals
// the comparand: the value at QueryPath in the query selections, the
// argument named Argument, or Value.
type EqualsSpec struct {
	Path      string `yaml:"path"`
	QueryPath string `yaml:"query_path"`
	Argument  string `yaml:"argument"`
	Value     any    `yaml:"value"`
	Message   string `yaml:"message"`
}

type RequiresArgument struct {
	Name string `yaml:"name"`
}

// RemoteSpec delegates the check to the gRPC service Service.
type RemoteSpec struct {
	Service string `yaml:"service"`
}

// Decode reads a registrations document. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read registrations")
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode registrations")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode registrations")
	}
	if entries := registrationNodes(&doc); len(entries) == len(f.Registrations) {
		for i, n := range entries {
			f.Registrations[i].Line = n.Line
			f.Registrations[i].Column = n.Column
		}
	}
	return &f, nil
}

func registrationNodes(doc *yaml.Node) []*yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "registrations" && root.Content[i+1].Kind == yaml.SequenceNode {
			return root.Content[i+1].Content
		}
	}
	return nil
}
