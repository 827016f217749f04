package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hanpama/rsgate/internal/logging"
)

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid setting found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate reports every invalid setting. The returned error wraps a
// ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Server.Timeout < 0 {
		add("server.timeout", "must not be negative, got %s", c.Server.Timeout)
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "must not be negative, got %d", c.Server.MaxBodyBytes)
	}

	if c.GraphQL.SchemaFile == "" {
		add("graphql.schema_file", "is required")
	}
	if c.GraphQL.Concurrency < 0 {
		add("graphql.concurrency", "must not be negative, got %d", c.GraphQL.Concurrency)
	}

	for service, addr := range c.Remote.Endpoints {
		if addr == "" {
			add("remote.endpoints."+service, "address is empty")
		}
	}
	if c.Remote.MaxConnsPerEndpoint < 1 {
		add("remote.max_conns_per_endpoint", "must be at least 1, got %d", c.Remote.MaxConnsPerEndpoint)
	}
	if c.Remote.RPCTimeout < 0 {
		add("remote.rpc_timeout", "must not be negative, got %s", c.Remote.RPCTimeout)
	}

	if r := c.Observability.TraceSampleRatio; r < 0 || r > 1 {
		add("observability.trace_sample_ratio", "must be between 0 and 1, got %g", r)
	}
	if c.Observability.ExportLogs && c.Observability.OTLPEndpoint == "" {
		add("observability.export_logs", "requires observability.otlp_endpoint")
	}
	if _, ok := logging.ParseLevel(c.Observability.Logging.Level); !ok {
		add("observability.logging.level", "unknown level %q", c.Observability.Logging.Level)
	}
	switch c.Observability.Logging.Format {
	case "json", "text":
	default:
		add("observability.logging.format", "unknown format %q", c.Observability.Logging.Format)
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Wrap(errs, "invalid configuration")
}
