package main

import (
	"context"
	"net"
	"net/url"

	"github.com/alfred-infra/poolgateway/pool"
	"github.com/alfred-infra/poolgateway/resolver"
	"github.com/alfred-infra/poolgateway/transport"
)

// poolDialer bridges pool.Connect's callback-based API to net/http's
// synchronous DialContext contract, so an ordinary http.Transport can
// be driven entirely by our pool instead of its own built-in one. The
// demo disables http.Transport's native keep-alive (see router.go) so
// every checkout/return cycle actually exercises the pool.
type poolDialer struct {
	pool     *pool.Pool
	loop     transport.Loop
	resolver resolver.Resolver
	// dest is the URL consulted for a global pool's target lookup. A
	// specific pool ignores it — its balancer picks the real target —
	// so this demo always passes the first configured upstream.
	dest *url.URL
}

func (d *poolDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	type outcome struct {
		sock transport.Socket
		err  error
	}
	done := make(chan outcome, 1)

	req := d.pool.Connect(d.dest, d.loop, d.resolver, func(sock transport.Socket, err error, _ any, _ *url.URL) {
		done <- outcome{sock, err}
	}, nil, nil)

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return &pooledConn{Socket: o.sock, pool: d.pool}, nil
	case <-ctx.Done():
		req.Cancel()
		return nil, ctx.Err()
	}
}

// pooledConn redirects Close to the pool's Return, so http.Transport
// thinking it is done with a connection actually hands it back for
// reuse instead of tearing it down.
type pooledConn struct {
	transport.Socket
	pool *pool.Pool
}

func (c *pooledConn) Close() error {
	if err := c.pool.Return(c.Socket); err != nil {
		return c.Socket.Close()
	}
	return nil
}
