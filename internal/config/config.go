// Package config loads gateway settings from defaults, a YAML file, RSGATE_
// environment variables and command line flags, in increasing precedence.
package config

import "time"

// Config is the complete gateway configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	GraphQL       GraphQLConfig       `mapstructure:"graphql"`
	Remote        RemoteConfig        `mapstructure:"remote"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr               string        `mapstructure:"addr"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Pretty             bool          `mapstructure:"pretty"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	// MetadataHeaders are the request headers forwarded to remote checkers
	// as gRPC metadata.
	MetadataHeaders []string `mapstructure:"metadata_headers"`
	GraphiQL        bool     `mapstructure:"graphiql"`
}

// GraphQLConfig points at the schema and registration documents and sets
// execution switches.
type GraphQLConfig struct {
	SchemaFile        string `mapstructure:"schema_file"`
	DataFile          string `mapstructure:"data_file"`
	RegistrationsFile string `mapstructure:"registrations_file"`
	Introspection     bool   `mapstructure:"introspection"`
	BypassChecks      bool   `mapstructure:"bypass_checks"`
	// Concurrency bounds the checks run at once for one batch of query
	// fields. Zero means unbounded.
	Concurrency int `mapstructure:"concurrency"`
}

// RemoteConfig configures the gRPC checker transport.
type RemoteConfig struct {
	// Endpoints maps a service name to a host:port address.
	Endpoints           map[string]string `mapstructure:"endpoints"`
	MaxConnsPerEndpoint int               `mapstructure:"max_conns_per_endpoint"`
	RPCTimeout          time.Duration     `mapstructure:"rpc_timeout"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	OTLPEndpoint     string        `mapstructure:"otlp_endpoint"`
	OTLPInsecure     bool          `mapstructure:"otlp_insecure"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	ExportLogs       bool          `mapstructure:"export_logs"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	Logging          LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
