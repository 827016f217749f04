package variables

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ContractViolation is the panic value raised by a Validated resolver whose
// delegate returns keys other than the ones it declares.
type ContractViolation struct {
	Extra   []string
	Missing []string
}

func (c *ContractViolation) Error() string {
	var parts []string
	if len(c.Extra) > 0 {
		parts = append(parts, "extra keys: "+strings.Join(c.Extra, ","))
	}
	if len(c.Missing) > 0 {
		parts = append(parts, "missing keys: "+strings.Join(c.Missing, ","))
	}
	return fmt.Sprintf("variables resolver returned invalid variables: %s", strings.Join(parts, "; "))
}

type validated struct {
	Resolver
}

// Validated wraps r so that a result whose key set differs from
// r.VariableNames panics with a *ContractViolation.
func Validated(r Resolver) Resolver {
	switch r.(type) {
	case emptyResolver, validated:
		return r
	}
	return validated{Resolver: r}
}

func (v validated) Resolve(ctx context.Context, rc ResolveContext) (map[string]any, error) {
	out, err := v.Resolver.Resolve(ctx, rc)
	if err != nil {
		return nil, err
	}
	declared := v.VariableNames()
	var extra, missing []string
	for _, k := range slices.Sorted(maps.Keys(out)) {
		if !slices.Contains(declared, k) {
			extra = append(extra, k)
		}
	}
	for _, k := range declared {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(extra) > 0 || len(missing) > 0 {
		panic(&ContractViolation{Extra: extra, Missing: missing})
	}
	return out, nil
}
