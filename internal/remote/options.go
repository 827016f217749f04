package remote

import (
	"time"

	"google.golang.org/grpc"
)

// Options configures the gRPC transport. RPCTimeout applies only to calls
// whose context has no deadline. Without DialOptions the transport dials
// with insecure credentials and the default backoff.
type Options struct {
	Provider EndpointProvider

	// MaxConnsPerEndpoint bounds the connections kept per endpoint. Calls
	// share them round-robin.
	MaxConnsPerEndpoint int
	RPCTimeout          time.Duration

	// MetadataPrefix namespaces the metadata keys the transport adds.
	MetadataPrefix string

	DialOptions []grpc.DialOption
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		MaxConnsPerEndpoint: 2,
		RPCTimeout:          3 * time.Second,
		MetadataPrefix:      "x-rsgate-",
	}
}

func WithProvider(p EndpointProvider) Option { return func(o *Options) { o.Provider = p } }
func WithMaxConnsPerEndpoint(n int) Option   { return func(o *Options) { o.MaxConnsPerEndpoint = n } }
func WithRPCTimeout(d time.Duration) Option  { return func(o *Options) { o.RPCTimeout = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}
