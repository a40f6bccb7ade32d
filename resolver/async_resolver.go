package resolver

import (
	"context"
	"net"
	"sync"
)

// AsyncResolver resolves NAMED targets with net.Resolver, dispatching
// each lookup onto its own goroutine so Submit never blocks the
// caller. Grounded in the gateway's pattern of pushing blocking I/O
// (provider calls, health checks) onto background goroutines rather
// than the event loop itself.
type AsyncResolver struct {
	resolver *net.Resolver

	mu      sync.Mutex
	pending map[*Request]context.CancelFunc
}

// NewAsyncResolver constructs a resolver. A nil net.Resolver defaults
// to net.DefaultResolver.
func NewAsyncResolver(r *net.Resolver) *AsyncResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &AsyncResolver{
		resolver: r,
		pending:  make(map[*Request]context.CancelFunc),
	}
}

func (a *AsyncResolver) Submit(receiver Receiver, host, service string) *Request {
	ctx, cancel := context.WithCancel(context.Background())
	req := &Request{}

	a.mu.Lock()
	a.pending[req] = cancel
	a.mu.Unlock()

	req.cancel = func() {
		a.mu.Lock()
		c, ok := a.pending[req]
		if ok {
			delete(a.pending, req)
		}
		a.mu.Unlock()
		if ok {
			c()
		}
	}

	go a.resolve(ctx, req, receiver, host, service)
	return req
}

func (a *AsyncResolver) resolve(ctx context.Context, req *Request, receiver Receiver, host, service string) {
	addrs, err := a.resolver.LookupIPAddr(ctx, host)

	a.mu.Lock()
	_, stillPending := a.pending[req]
	delete(a.pending, req)
	a.mu.Unlock()
	if !stillPending {
		// Cancelled before completion; caller already stopped listening.
		return
	}

	if err != nil {
		receiver.Deliver(req, Result{Err: err})
		return
	}
	receiver.Deliver(req, Result{Addrs: addrs})
}

// SelectOne prefers the first IPv4 address for broadest compatibility
// with upstreams and test environments that don't route IPv6, falling
// back to the first address returned when there is no IPv4 one.
func (a *AsyncResolver) SelectOne(addrs []net.IPAddr) net.IPAddr {
	if len(addrs) == 0 {
		return net.IPAddr{}
	}
	for _, addr := range addrs {
		if addr.IP.To4() != nil {
			return addr
		}
	}
	return addrs[0]
}
