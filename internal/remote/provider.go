package remote

import (
	"context"
	"slices"
	"sync"
)

// EndpointProvider lists the reachable host:port endpoints of a gRPC service,
// e.g. "policies.Documents". Implementations must be safe for concurrent use.
type EndpointProvider interface {
	Endpoints(ctx context.Context, service string) ([]string, error)
}

// StaticEndpoints is a provider backed by an in-memory map from service name
// to endpoints. Set replaces the endpoints of a service at runtime.
type StaticEndpoints struct {
	mu   sync.RWMutex
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	cp := make(map[string][]string, len(m))
	for k, v := range m {
		cp[k] = slices.Clone(v)
	}
	return &StaticEndpoints{data: cp}
}

// SingleEndpoints builds a provider with one endpoint per service, the shape
// of the remote.endpoints configuration.
func SingleEndpoints(m map[string]string) *StaticEndpoints {
	multi := make(map[string][]string, len(m))
	for k, v := range m {
		multi[k] = []string{v}
	}
	return NewStaticEndpoints(multi)
}

func (s *StaticEndpoints) Set(service string, endpoints ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[service] = slices.Clone(endpoints)
}

func (s *StaticEndpoints) Endpoints(_ context.Context, service string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.data[service]
	if len(arr) == 0 {
		return nil, ErrNoEndpoints
	}
	return slices.Clone(arr), nil
}
