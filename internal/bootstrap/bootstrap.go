// Package bootstrap loads resolver and checker registrations from a YAML
// document into the required selection and checker registries, and
// validates them against a schema.
package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/rss"
	"github.com/hanpama/rsgate/internal/schema"
	"github.com/hanpama/rsgate/internal/variables"
)

// Options configures Load.
type Options struct {
	// File names the document in violations and logs.
	File   string
	Logger *slog.Logger
	// Remote builds remote checkers. Registrations using them fail when nil.
	Remote RemoteFactory
}

// Registries holds the result of a successful bootstrap.
type Registries struct {
	Selections *rss.MapRegistry
	Checkers   *checker.Registry
}

// LoadFile reads the registrations at path and loads them with Load.
func LoadFile(ctx context.Context, sch *schema.Schema, path string, opts Options) (*Registries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open registrations %s", path)
	}
	defer f.Close()
	doc, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if opts.File == "" {
		opts.File = path
	}
	return Load(ctx, sch, doc, opts)
}

// Load builds the registries for doc. Every registration is checked and all
// violations are reported together; the returned error then wraps a
// ValidationError. Registries that load are checked for cycles and against
// the schema.
func Load(ctx context.Context, sch *schema.Schema, doc *File, opts Options) (*Registries, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l := &loader{
		schema:     sch,
		opts:       opts,
		logger:     logger,
		selections: rss.NewRegistryBuilder(),
		checkers:   checker.NewRegistryBuilder(),
	}
	for i := range doc.Registrations {
		r := &doc.Registrations[i]
		if err := l.register(r); err != nil {
			v := violationAt(opts.File, r, "%s", err)
			logger.ErrorContext(ctx, "invalid registration",
				slog.String("coordinate", r.Coordinate),
				slog.String("kind", string(r.Kind)),
				slog.Int("line", r.Line),
				slog.String("error", err.Error()),
			)
			l.violations = append(l.violations, v)
		}
	}
	if len(l.violations) > 0 {
		return nil, errors.Wrapf(l.violations, "bootstrap %s", opts.File)
	}

	reg := &Registries{Selections: l.selections.Build(), Checkers: l.checkers.Build()}
	if err := Validate(ctx, sch, reg.Selections); err != nil {
		logger.ErrorContext(ctx, "required selections are invalid", slog.String("error", err.Error()))
		return nil, errors.Wrapf(err, "bootstrap %s", opts.File)
	}
	logger.InfoContext(ctx, "registrations loaded",
		slog.String("file", opts.File),
		slog.Int("count", len(doc.Registrations)),
	)
	return reg, nil
}

// Validate runs the acyclicity and schema checks on reg concurrently.
func Validate(ctx context.Context, sch *schema.Schema, reg *rss.MapRegistry) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(rss.ValidateAcyclic(sch, reg), "acyclic")
	})
	g.Go(func() error {
		return errors.Wrap(rss.ValidateSchema(sch, reg), "schema")
	})
	return g.Wait()
}

type loader struct {
	schema     *schema.Schema
	opts       Options
	logger     *slog.Logger
	selections *rss.RegistryBuilder
	checkers   *checker.RegistryBuilder
	violations ValidationError
}

func parseCoordinate(s string) (rss.Coordinate, error) {
	typeName, fieldName, hasField := strings.Cut(s, ".")
	if typeName == "" || (hasField && fieldName == "") || strings.Contains(fieldName, ".") {
		return rss.Coordinate{}, errors.Errorf("invalid coordinate %q, expected Type or Type.field", s)
	}
	return rss.Coordinate{TypeName: typeName, FieldName: fieldName}, nil
}

func (l *loader) register(r *Registration) error {
	coord, err := parseCoordinate(r.Coordinate)
	if err != nil {
		return err
	}
	t := l.schema.Types[coord.TypeName]
	if t == nil || t.Kind != schema.TypeKindObject {
		return errors.Errorf("%s is not an object type", coord.TypeName)
	}
	if coord.FieldName != "" && l.schema.FieldDefinition(coord.TypeName, coord.FieldName) == nil {
		return errors.Errorf("field %s is not defined", coord)
	}

	spec := rss.Spec{
		ObjectFragment: r.ObjectSelections,
		QueryFragment:  r.QuerySelections,
	}
	if spec.Variables, spec.Consts, err = declarations(r.Variables); err != nil {
		return err
	}

	switch r.Kind {
	case KindResolver:
		if r.Checker != nil {
			return errors.New("resolver registration cannot declare a checker")
		}
		spec.Attribution = attribution.FromResolver(coord.String())
		sets, err := rss.Build(coord.TypeName, l.schema.QueryType, spec)
		if err != nil {
			return err
		}
		if len(sets.All()) == 0 {
			l.logger.Warn("resolver registration declares no selections", slog.String("coordinate", coord.String()))
		}
		if coord.FieldName == "" {
			l.selections.TypeResolver(coord.TypeName, sets.All()...)
		} else {
			l.selections.FieldResolver(coord.TypeName, coord.FieldName, sets.All()...)
		}
		l.logger.Debug("registered resolver selections", slog.String("coordinate", coord.String()))
		return nil

	case KindChecker:
		if r.Checker == nil {
			return errors.New("checker registration has no checker")
		}
		name := r.Name
		if name == "" {
			name = checkerName(r.Checker)
		}
		spec.ForChecker = true
		spec.Attribution = attribution.FromPolicyCheck(name)
		sets, err := rss.Build(coord.TypeName, l.schema.QueryType, spec)
		if err != nil {
			return err
		}
		meta := attribution.CheckerMetadata{CheckerName: name, TypeName: coord.TypeName, FieldName: coord.FieldName}
		exec, err := buildChecker(r.Checker, meta, sets, l.opts.Remote)
		if err != nil {
			return err
		}
		if coord.FieldName == "" {
			l.selections.TypeChecker(coord.TypeName, sets.All()...)
			l.checkers.TypeChecker(coord.TypeName, exec)
		} else {
			l.selections.FieldChecker(coord.TypeName, coord.FieldName, sets.All()...)
			l.checkers.FieldChecker(coord.TypeName, coord.FieldName, exec)
		}
		l.logger.Debug("registered checker", slog.String("checker", meta.ToTagString()))
		return nil
	}
	return errors.Errorf("unknown kind %q, expected resolver or checker", r.Kind)
}

func declarations(specs []VariableSpec) ([]variables.Declaration, map[string]any, error) {
	var (
		decls  []variables.Declaration
		consts map[string]any
	)
	for _, v := range specs {
		if v.Name == "" {
			return nil, nil, errors.New("variable without a name")
		}
		var sources []variables.Declaration
		if v.FromArgument != "" {
			sources = append(sources, variables.Declaration{Name: v.Name, Source: variables.SourceArgument, Path: v.FromArgument})
		}
		if v.FromObjectField != "" {
			sources = append(sources, variables.Declaration{Name: v.Name, Source: variables.SourceObjectField, Path: v.FromObjectField})
		}
		if v.FromQueryField != "" {
			sources = append(sources, variables.Declaration{Name: v.Name, Source: variables.SourceQueryField, Path: v.FromQueryField})
		}
		switch {
		case v.Const != nil && len(sources) == 0:
			if consts == nil {
				consts = map[string]any{}
			}
			if _, dup := consts[v.Name]; dup {
				return nil, nil, errors.Errorf("found duplicate bindings for variable %q", v.Name)
			}
			consts[v.Name] = v.Const
		case v.Const == nil && len(sources) == 1:
			decls = append(decls, sources[0])
		default:
			return nil, nil, errors.Errorf("variable %q must set exactly one of const, from_argument, from_object_field or from_query_field", v.Name)
		}
	}
	return decls, consts, nil
}
