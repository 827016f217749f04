package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hanpama/rsgate/internal/config"
)

const rootUsage = `rsgate - GraphQL gateway with required selections and access checks

USAGE:
  rsgate <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL server
  validate         Check registrations against a schema
  print-schema     Print the executable schema as SDL
  help             Show help for any command

Every command reads configuration from --config <file>, from RSGATE_*
environment variables and from flags named after the configuration keys.
`

const serveUsage = `serve FLAGS:
  --config <file>                         YAML configuration file
  --graphql.schema_file <file>            GraphQL SDL (required)
  --graphql.data_file <file>              YAML or JSON data served by the schema
  --graphql.registrations_file <file>     Resolver and checker registrations
  --graphql.introspection <bool>          Allow introspection (default: true)
  --graphql.bypass_checks                 Skip every access check
  --graphql.concurrency <n>               Checks run concurrently per batch (0: no limit)
  --server.addr <addr>                    HTTP listen address (default: :8080)
  --server.timeout <duration>             Per-request timeout (default: 30s)
  --server.metadata_headers <a,b>         Headers forwarded to remote checkers
  --server.cors_allowed_origins <a,b>     Origins allowed by CORS
  --remote.rpc_timeout <duration>         Remote check timeout (default: 5s)
  --observability.otlp_endpoint <addr>    OTLP collector endpoint
  --observability.logging.level <level>   debug, info, warn or error
`

const validateUsage = `validate FLAGS:
  --config <file>                         YAML configuration file
  --graphql.schema_file <file>            GraphQL SDL (required)
  --graphql.registrations_file <file>     Registrations to check (required)
  (Exits non-zero and lists every violation on failure)
`

const printSchemaUsage = `print-schema FLAGS:
  --config <file>                         YAML configuration file
  --graphql.schema_file <file>            GraphQL SDL (required)
  --out <file>                            Write SDL to file (default: stdout)
`

var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "serve":
		cfg, err := loadConfig(newFlagSet(cmd), cmdArgs, serveUsage, stderr)
		if err != nil {
			return err
		}
		return cmdServe(ctx, cfg, stderr)
	case "validate":
		cfg, err := loadConfig(newFlagSet(cmd), cmdArgs, validateUsage, stderr)
		if err != nil {
			return err
		}
		return cmdValidate(ctx, cfg, stdout, stderr)
	case "print-schema":
		fs := newFlagSet(cmd)
		out := fs.String("out", "", "Write SDL to file")
		cfg, err := loadConfig(fs, cmdArgs, printSchemaUsage, stderr)
		if err != nil {
			return err
		}
		return cmdPrintSchema(cfg, *out, stdout)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "validate":
		fmt.Fprint(stdout, validateUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// newFlagSet returns a silent flag set carrying every configuration flag.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	config.DefineFlags(fs)
	return fs
}

func loadConfig(fs *pflag.FlagSet, args []string, usage string, stderr io.Writer) (*config.Config, error) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, usage)
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
