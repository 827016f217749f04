// Package attribution names units of work for logs and metric tags.
package attribution

// Kind classifies the unit of work an ExecutionAttribution refers to.
type Kind string

const (
	Operation         Kind = "OPERATION"
	Resolver          Kind = "RESOLVER"
	PolicyCheck       Kind = "POLICY_CHECK"
	VariablesResolver Kind = "VARIABLES_RESOLVER"
)

// ExecutionAttribution tags an operation, resolver, policy check or variable
// resolution.
type ExecutionAttribution struct {
	Kind Kind
	Name string
}

func FromOperation(name string) *ExecutionAttribution {
	return &ExecutionAttribution{Kind: Operation, Name: name}
}

func FromResolver(name string) *ExecutionAttribution {
	return &ExecutionAttribution{Kind: Resolver, Name: name}
}

func FromPolicyCheck(name string) *ExecutionAttribution {
	return &ExecutionAttribution{Kind: PolicyCheck, Name: name}
}

func FromVariablesResolver(name string) *ExecutionAttribution {
	return &ExecutionAttribution{Kind: VariablesResolver, Name: name}
}

// ToTagString renders "KIND:name". A nil attribution renders as "".
func (a *ExecutionAttribution) ToTagString() string {
	if a == nil {
		return ""
	}
	return string(a.Kind) + ":" + a.Name
}

func (a *ExecutionAttribution) String() string { return a.ToTagString() }

// CheckerMetadata identifies a checker bound to a type or field coordinate.
type CheckerMetadata struct {
	CheckerName string
	TypeName    string
	FieldName   string
}

// ToTagString renders "checker:Type.field", or "checker:Type" for type checks.
func (m CheckerMetadata) ToTagString() string {
	if m.FieldName == "" {
		return m.CheckerName + ":" + m.TypeName
	}
	return m.CheckerName + ":" + m.TypeName + "." + m.FieldName
}

func (m CheckerMetadata) String() string { return m.ToTagString() }
