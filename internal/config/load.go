package config

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load. Keys map to
// variables with dots replaced by underscores, e.g. RSGATE_SERVER_ADDR.
const EnvPrefix = "RSGATE"

// DefineFlags registers the configuration flags on fs. Flag names are the
// configuration keys, plus "config" for the file path.
func DefineFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML configuration file")

	fs.String("server.addr", "", "HTTP listen address")
	fs.Duration("server.timeout", 0, "Per-request execution timeout")
	fs.Bool("server.pretty", false, "Indent JSON responses")
	fs.Int64("server.max_body_bytes", 0, "Maximum request body size in bytes")
	fs.StringSlice("server.cors_allowed_origins", nil, "Origins allowed by CORS")
	fs.StringSlice("server.metadata_headers", nil, "Request headers forwarded to remote checkers")
	fs.Bool("server.graphiql", false, "Serve GraphiQL to browsers")

	fs.String("graphql.schema_file", "", "Path to the GraphQL SDL schema")
	fs.String("graphql.data_file", "", "Path to the YAML or JSON data document")
	fs.String("graphql.registrations_file", "", "Path to the YAML registrations file")
	fs.Bool("graphql.introspection", false, "Allow introspection queries")
	fs.Bool("graphql.bypass_checks", false, "Skip every access check")
	fs.Int("graphql.concurrency", 0, "Maximum concurrent checks per batch (0 for no limit)")

	fs.Int("remote.max_conns_per_endpoint", 0, "gRPC connections kept per checker endpoint")
	fs.Duration("remote.rpc_timeout", 0, "Timeout of one remote check")

	fs.String("observability.service_name", "", "Service name reported to telemetry backends")
	fs.String("observability.otlp_endpoint", "", "OTLP gRPC endpoint; empty disables export")
	fs.Bool("observability.otlp_insecure", false, "Use plaintext for OTLP export")
	fs.Float64("observability.trace_sample_ratio", 0, "Fraction of traces sampled")
	fs.Bool("observability.export_logs", false, "Export logs through OTLP")
	fs.Bool("observability.metrics_enabled", false, "Serve Prometheus metrics on /metrics")
	fs.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("observability.logging.format", "", "Log format (json, text)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.pretty", false)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.metadata_headers", []string{"authorization"})
	v.SetDefault("server.graphiql", true)

	v.SetDefault("graphql.schema_file", "")
	v.SetDefault("graphql.data_file", "")
	v.SetDefault("graphql.registrations_file", "")
	v.SetDefault("graphql.introspection", true)
	v.SetDefault("graphql.bypass_checks", false)
	v.SetDefault("graphql.concurrency", 0)

	v.SetDefault("remote.endpoints", map[string]string{})
	v.SetDefault("remote.max_conns_per_endpoint", 1)
	v.SetDefault("remote.rpc_timeout", "5s")

	v.SetDefault("observability.service_name", "rsgate")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_insecure", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.export_logs", false)
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
}

// Load builds a Config from the defaults, the file named by the "config"
// flag, the environment and the flags set on fs. fs must already be parsed;
// it may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "failed to read config file %q", path)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		bindChangedFlags(v, fs)
	}

	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// bindChangedFlags copies only the flags set on the command line, so unset
// flags never shadow the file or the environment. Configuration keys are
// always dotted; other flags such as "config" are skipped.
func bindChangedFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if !strings.Contains(f.Name, ".") {
			return
		}
		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "int64":
			val, _ := fs.GetInt64(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := fs.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := fs.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
