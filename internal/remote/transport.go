// Package remote runs access checks in other services over gRPC.
//
// A remote checker invokes "/<service>/Check" with a google.protobuf.Struct
// describing the check and expects a Struct reply carrying "allowed" and an
// optional "message".
package remote

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hanpama/rsgate/internal/eventbus"
	"github.com/hanpama/rsgate/internal/events"
	"github.com/hanpama/rsgate/internal/reqid"
)

var callSeq atomic.Uint64

// Transport is a gRPC client with per-endpoint connection pools and a
// default deadline. It is safe for concurrent use.
type Transport struct {
	opts *Options

	mu     sync.RWMutex
	pools  map[string]*connPool // key: endpoint
	closed atomic.Bool
}

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Transport{
		opts:  o,
		pools: make(map[string]*connPool),
	}
}

// Call invokes /service/method on one of the service's endpoints. Outgoing
// metadata already on ctx is sent along with the service name and the
// request ID.
func (t *Transport) Call(ctx context.Context, service, method string, req, resp proto.Message) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if t.opts.Provider == nil {
		return fmt.Errorf("remote: provider not configured")
	}

	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}

	pairs := []string{t.opts.MetadataPrefix + "service", service}
	if rid, ok := reqid.FromContext(ctx); ok {
		pairs = append(pairs, t.opts.MetadataPrefix+"request-id", rid)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, pairs...)

	endpoints, err := t.opts.Provider.Endpoints(ctx, service)
	if err != nil {
		return err
	}
	endpoint := endpoints[rand.IntN(len(endpoints))]

	cc, err := t.conn(endpoint)
	if err != nil {
		return err
	}

	id := callSeq.Add(1)
	start := time.Now()
	eventbus.Publish(ctx, events.GRPCClientStart{ID: id, Service: service, Method: method, Target: endpoint})
	err = cc.Invoke(ctx, "/"+service+"/"+method, req, resp)
	eventbus.Publish(ctx, events.GRPCClientFinish{
		ID:       id,
		Service:  service,
		Method:   method,
		Target:   endpoint,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	return err
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var first error
	for _, p := range t.pools {
		if err := p.close(); err != nil && first == nil {
			first = err
		}
	}
	t.pools = map[string]*connPool{}
	return first
}

// conn returns a connection to endpoint, creating its pool on first use.
func (t *Transport) conn(endpoint string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool == nil {
		t.mu.Lock()
		if pool = t.pools[endpoint]; pool == nil {
			pool = newConnPool(endpoint, t.opts)
			t.pools[endpoint] = pool
		}
		t.mu.Unlock()
	}
	return pool.next()
}

// connPool holds up to size long-lived connections to one endpoint and hands
// them out round-robin. Connections are dialed lazily.
type connPool struct {
	endpoint string
	dialOpts []grpc.DialOption

	mu     sync.Mutex
	conns  []*grpc.ClientConn
	size   int
	turn   uint64
	closed bool
}

func newConnPool(endpoint string, opts *Options) *connPool {
	size := opts.MaxConnsPerEndpoint
	if size <= 0 {
		size = 1
	}
	return &connPool{endpoint: endpoint, dialOpts: opts.DialOptions, size: size}
}

func (p *connPool) next() (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if len(p.conns) < p.size {
		cc, err := grpc.NewClient(p.endpoint, p.dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("remote: dial %s: %w", p.endpoint, err)
		}
		p.conns = append(p.conns, cc)
		return cc, nil
	}
	cc := p.conns[p.turn%uint64(len(p.conns))]
	p.turn++
	return cc, nil
}

func (p *connPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var first error
	for _, cc := range p.conns {
		if err := cc.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.conns = nil
	return first
}
