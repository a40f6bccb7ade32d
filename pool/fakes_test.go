package pool

import (
	"net"
	"sync"
	"time"

	"github.com/alfred-infra/poolgateway/resolver"
	"github.com/alfred-infra/poolgateway/transport"
)

// fakeAddr is a minimal net.Addr so fakeSocket satisfies net.Conn
// without opening a real connection.
type fakeAddr struct{ s string }

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return a.s }

// fakeSocket is an in-memory transport.Socket double: no real I/O, just
// enough state for the pool's bookkeeping (Peek liveness, Export/Import
// round-trip, on-close hook) to be exercised and observed.
type fakeSocket struct {
	mu        sync.Mutex
	id        string
	closed    bool
	closeHook func(data any)
	closeData any

	// peekAlive/peekErr/peekN control what Peek reports; defaults to a
	// healthy idle connection (would-block).
	peekAlive bool
	peekN     int
	peekErr   error
}

func newFakeSocket(id string) *fakeSocket {
	return &fakeSocket{id: id, peekAlive: true}
}

func (s *fakeSocket) Read(b []byte) (int, error)  { return 0, nil }
func (s *fakeSocket) Write(b []byte) (int, error) { return len(b), nil }
func (s *fakeSocket) LocalAddr() net.Addr         { return fakeAddr{"local:" + s.id} }
func (s *fakeSocket) RemoteAddr() net.Addr        { return fakeAddr{"remote:" + s.id} }
func (s *fakeSocket) SetDeadline(time.Time) error      { return nil }
func (s *fakeSocket) SetReadDeadline(time.Time) error  { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	hook, data, already := s.closeHook, s.closeData, s.closed
	s.closed = true
	s.closeHook = nil
	s.mu.Unlock()
	if !already && hook != nil {
		hook(data)
	}
	return nil
}

func (s *fakeSocket) Peek() (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peekN, s.peekAlive, s.peekErr
}

func (s *fakeSocket) Export() (*transport.Exported, error) {
	return &transport.Exported{Conn: s}, nil
}

func (s *fakeSocket) SetOnClose(hook func(data any), data any) {
	s.mu.Lock()
	s.closeHook, s.closeData = hook, data
	s.mu.Unlock()
}

func (s *fakeSocket) OnCloseData() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeData
}

// fakeLoop is a synchronous transport.Loop double: Connect invokes its
// callback inline (no goroutine) using a scripted result queue, so
// tests can drive the connect state machine deterministically.
type fakeLoop struct {
	mu        sync.Mutex
	nowMs     int64
	dials     []string // "network addr" strings, in call order
	results   []dialResult
	timers    []func()
	deferDial bool
	pending   []func(transport.Socket, error)
}

type dialResult struct {
	sock transport.Socket
	err  error
}

func newFakeLoop() *fakeLoop { return &fakeLoop{} }

func (l *fakeLoop) Now() int64 { return l.nowMs }

func (l *fakeLoop) setNow(ms int64) { l.nowMs = ms }

// pushResult queues the outcome of the next Connect call.
func (l *fakeLoop) pushResult(sock transport.Socket, err error) {
	l.mu.Lock()
	l.results = append(l.results, dialResult{sock, err})
	l.mu.Unlock()
}

func (l *fakeLoop) Connect(network, addr string, cb func(transport.Socket, error)) {
	l.mu.Lock()
	l.dials = append(l.dials, network+" "+addr)
	if l.deferDial {
		l.pending = append(l.pending, cb)
		l.mu.Unlock()
		return
	}
	var r dialResult
	if len(l.results) > 0 {
		r = l.results[0]
		l.results = l.results[1:]
	}
	l.mu.Unlock()
	cb(r.sock, r.err)
}

// fireOldest completes the oldest Connect call left pending by a
// deferDial loop, for tests that need to call Cancel before a dial
// resolves.
func (l *fakeLoop) fireOldest(sock transport.Socket, err error) {
	l.mu.Lock()
	cb := l.pending[0]
	l.pending = l.pending[1:]
	l.mu.Unlock()
	cb(sock, err)
}

func (l *fakeLoop) EveryMillis(interval time.Duration, fn func()) func() {
	l.mu.Lock()
	l.timers = append(l.timers, fn)
	l.mu.Unlock()
	return func() {}
}

// fireTimers runs every timer callback registered via EveryMillis, as
// if one tick had elapsed on all of them.
func (l *fakeLoop) fireTimers() {
	l.mu.Lock()
	timers := append([]func(){}, l.timers...)
	l.mu.Unlock()
	for _, fn := range timers {
		fn()
	}
}

// fakeResolver is a synchronous resolver.Resolver double: Submit
// delivers inline from a scripted result queue, no goroutine involved.
type fakeResolver struct {
	mu      sync.Mutex
	results []resolver.Result
}

func newFakeResolver() *fakeResolver { return &fakeResolver{} }

func (r *fakeResolver) pushResult(res resolver.Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *fakeResolver) Submit(receiver resolver.Receiver, host, service string) *resolver.Request {
	r.mu.Lock()
	var res resolver.Result
	if len(r.results) > 0 {
		res = r.results[0]
		r.results = r.results[1:]
	} else {
		res = resolver.Result{Err: net.UnknownNetworkError("no scripted result")}
	}
	r.mu.Unlock()

	req := &resolver.Request{}
	receiver.Deliver(req, res)
	return req
}

func (r *fakeResolver) SelectOne(addrs []net.IPAddr) net.IPAddr {
	if len(addrs) == 0 {
		return net.IPAddr{}
	}
	return addrs[0]
}
