package pool

import (
	"errors"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/alfred-infra/poolgateway/resolver"
	"github.com/alfred-infra/poolgateway/transport"
)

// balancerRecorder is implemented by balancers that want connect
// outcomes fed back into their selection scoring (e.g. balancer.
// SLABalancer). It is consulted via a type assertion rather than added
// to balancer.Balancer itself, since RoundRobin has no use for it.
type balancerRecorder interface {
	RecordSuccess(target int, latency time.Duration)
	RecordFailure(target int)
}

// recordBalancerOutcome feeds one attempt's result back to the pool's
// balancer, if it tracks health. idx is the target index the attempt
// was charged against; latency is only meaningful on success.
func (p *Pool) recordBalancerOutcome(idx int, success bool, latency time.Duration) {
	p.mu.Lock()
	bal := p.balancer
	p.mu.Unlock()

	rec, ok := bal.(balancerRecorder)
	if !ok {
		return
	}
	if success {
		rec.RecordSuccess(idx, latency)
	} else {
		rec.RecordFailure(idx)
	}
}

// ConnectCallback receives the outcome of a Connect call: a live socket
// on success, or a non-nil error; data is the opaque value passed to
// Connect, and chosen is the target URL the attempt settled on (nil if
// no target was ever selected, e.g. a specific pool with no targets).
type ConnectCallback func(sock transport.Socket, err error, data any, chosen *url.URL)

// closeData is installed as the on-close hook's opaque argument for
// every live socket the pool hands out — idle reuse or fresh connect
// alike — so the close handler can find its way back to the right
// target without walking any structure.
type closeData struct {
	pool      *Pool
	targetIdx int
}

// ConnectRequest is one in-flight call to Connect: the continuation
// (cb + data) plus everything the state machine needs to retry across
// targets. Completion (success, terminal failure, or cancel) consumes
// the continuation exactly once.
type ConnectRequest struct {
	pool     *Pool
	loop     transport.Loop
	resolver resolver.Resolver
	data     any
	lbExtra  any
	dest     *url.URL

	cb ConnectCallback

	selectedTarget int
	remaining      int
	tried          []bool // nil for a global pool (single candidate, no failover)

	outstandingHeld bool
	resolveReq      *resolver.Request
	attemptStart    time.Time
}

// Connect is the pool's single asynchronous entry point. On a global
// pool, dest is resolved to a target (creating one on first sight); on
// a specific pool, every target is an eligible candidate and the
// balancer picks among untried ones on each attempt.
func (p *Pool) Connect(dest *url.URL, loop transport.Loop, res resolver.Resolver, cb ConnectCallback, data any, lbExtra any) *ConnectRequest {
	req := &ConnectRequest{
		pool:           p,
		loop:           loop,
		resolver:       res,
		cb:             cb,
		data:           data,
		lbExtra:        lbExtra,
		dest:           dest,
		selectedTarget: -1,
	}

	p.mu.Lock()
	p.destroyExpired(p.now())

	if p.global {
		idx := p.lookupTarget(dest)
		isNew := idx < 0
		if isNew {
			idx = p.addTarget(dest)
		}
		hook := p.onNewTarget
		req.selectedTarget = idx
		req.remaining = 1
		p.mu.Unlock()

		if isNew && hook != nil {
			hook(dest)
		}
		p.tryConnect(req)
		return req
	}

	if len(p.targets) == 0 {
		p.mu.Unlock()
		p.callConnectCb(req, nil, ErrNoTargets)
		return req
	}
	req.remaining = len(p.targets)
	req.tried = make([]bool, len(p.targets))
	p.mu.Unlock()

	p.tryConnect(req)
	return req
}

// Cancel aborts an outstanding request. Per spec.md's Design Notes,
// req.cb is cleared under the pool mutex first, so a connect or resolve
// that completes concurrently finds no continuation to invoke — it
// still runs its accounting and, if it produced a live socket, closes
// it (see callConnectCb) rather than leaking the fd.
func (r *ConnectRequest) Cancel() {
	p := r.pool

	p.mu.Lock()
	r.cb = nil
	resolveReq := r.resolveReq
	p.mu.Unlock()

	if resolveReq != nil {
		resolveReq.Cancel()
	}
}

// tryConnect drives one attempt: select a target (specific pools only —
// global pools arrive with selectedTarget already fixed), charge its
// request count, then walk its idle list looking for a live socket
// before falling back to a fresh connect.
func (p *Pool) tryConnect(req *ConnectRequest) {
	req.remaining--

	p.mu.Lock()
	switch {
	case req.tried != nil && p.balancer != nil:
		idx := p.balancer.Select(req.tried, req.lbExtra)
		if idx < 0 || idx >= len(req.tried) || req.tried[idx] {
			panic("pool: balancer selected an already-tried target")
		}
		req.tried[idx] = true
		req.selectedTarget = idx
	case req.tried != nil:
		req.selectedTarget = 0
		req.tried[0] = true
	}
	idx := req.selectedTarget
	p.targets[idx].incRequestCount()
	e := p.checkoutIdle(idx)
	p.mu.Unlock()

	req.attemptStart = time.Now()

	for e != nil {
		var sock transport.Socket
		if s, ok := e.exported.Conn.(transport.Socket); ok {
			sock = s
		} else {
			sock = transport.Import(e.exported)
		}
		n, alive, perr := sock.Peek()
		if alive {
			p.onLiveSocket(req, idx, sock, false)
			return
		}
		warnDeadIdleOnce(p, n, perr)
		sock.Close()

		p.mu.Lock()
		e = p.checkoutIdle(idx)
		p.mu.Unlock()
	}

	p.startFreshConnect(req, idx)
}

// startFreshConnect issues a brand-new connection to target idx: a
// resolver round-trip for NAMED targets, or a direct dial for
// SOCKADDR targets. The pool's outstanding reservation is taken exactly
// once per request (not once per retry — see accounting.go).
func (p *Pool) startFreshConnect(req *ConnectRequest, idx int) {
	p.mu.Lock()
	if !req.outstandingHeld {
		p.incOutstanding()
		req.outstandingHeld = true
	}
	t := p.targets[idx]
	p.mu.Unlock()

	if t.typ == targetNamed {
		req.resolveReq = req.resolver.Submit(&resolveReceiver{p: p, req: req, idx: idx}, t.host, t.service)
		return
	}

	req.loop.Connect(t.network, t.dialAddr, func(sock transport.Socket, err error) {
		p.onDialResult(req, idx, sock, err)
	})
}

// onDialResult handles the completion of a fresh dial, whether it was
// issued directly against a SOCKADDR target or after a NAMED target's
// resolver round-trip. Both are asynchronous `on_connect` completions
// in the h2o source (socketpool.c:305-324) — the retry decision turns
// solely on req.remaining / the tried[] bitmap, never on whether a
// resolver step preceded the dial. A failure here is the "asynchronous
// connect failure" case: retried against a different target while
// attempts remain, else terminal with ErrStrConnectionFailed.
func (p *Pool) onDialResult(req *ConnectRequest, idx int, sock transport.Socket, err error) {
	if err != nil {
		p.mu.Lock()
		p.targets[idx].decRequestCount()
		p.mu.Unlock()
		p.recordBalancerOutcome(idx, false, 0)

		if req.remaining > 0 {
			p.tryConnect(req)
			return
		}

		p.mu.Lock()
		p.decOutstanding()
		p.mu.Unlock()
		p.callConnectCb(req, nil, errors.New(ErrStrConnectionFailed))
		return
	}
	p.onLiveSocket(req, idx, sock, true)
}

// onLiveSocket completes a request with a socket that is confirmed
// live, whether it came from idle reuse or a fresh connect: install the
// on-close hook and dispatch the callback. viaFreshConnect distinguishes
// the two: an idle-reuse success never needed startFreshConnect's
// reservation, so if an earlier attempt on this same request already
// took one (and then failed over to this idle hit instead of a dial),
// that now-surplus reservation is released here rather than leaked for
// the rest of the socket's lifetime.
func (p *Pool) onLiveSocket(req *ConnectRequest, idx int, sock transport.Socket, viaFreshConnect bool) {
	if !viaFreshConnect && req.outstandingHeld {
		p.decOutstanding()
		req.outstandingHeld = false
	}

	var latency time.Duration
	if !req.attemptStart.IsZero() {
		latency = time.Since(req.attemptStart)
	}
	p.recordBalancerOutcome(idx, true, latency)
	sock.SetOnClose(p.onSocketClosed, &closeData{pool: p, targetIdx: idx})
	p.callConnectCb(req, sock, nil)
}

// onSocketClosed is the generic on-close hook for every live socket the
// pool has handed out (idle reuse or fresh connect) that is later
// closed directly by its holder rather than returned. It releases both
// the target's in-flight slot and the request's pool-wide reservation,
// wherever in that socket's lifetime the reservation was first taken.
func (p *Pool) onSocketClosed(data any) {
	cd, ok := data.(*closeData)
	if !ok || cd == nil {
		return
	}
	p.mu.Lock()
	p.targets[cd.targetIdx].decRequestCount()
	p.mu.Unlock()
	p.decOutstanding()
}

// callConnectCb completes a request exactly once: it consumes the
// continuation under the pool mutex so a concurrent Cancel cannot race
// it, then invokes cb outside the lock. If the request was already
// cancelled (cb is nil) but this call still produced a live socket, the
// socket is closed here instead of leaked — its on-close hook still
// runs and still releases the counters it holds.
func (p *Pool) callConnectCb(req *ConnectRequest, sock transport.Socket, err error) {
	p.mu.Lock()
	cb := req.cb
	req.cb = nil
	var chosen *url.URL
	if req.selectedTarget >= 0 && req.selectedTarget < len(p.targets) {
		chosen = p.targets[req.selectedTarget].url
	}
	p.mu.Unlock()

	if cb == nil {
		if sock != nil {
			sock.Close()
		}
		return
	}
	cb(sock, err, req.data, chosen)
}

// resolveReceiver adapts a resolver.Result back into the connect state
// machine for one NAMED-target attempt.
type resolveReceiver struct {
	p   *Pool
	req *ConnectRequest
	idx int
}

func (r *resolveReceiver) Deliver(_ *resolver.Request, result resolver.Result) {
	if result.Err != nil {
		r.p.mu.Lock()
		r.p.targets[r.idx].decRequestCount()
		r.p.decOutstanding()
		r.p.mu.Unlock()
		r.p.recordBalancerOutcome(r.idx, false, 0)
		r.p.callConnectCb(r.req, nil, result.Err)
		return
	}

	addr := r.req.resolver.SelectOne(result.Addrs)
	r.p.mu.Lock()
	service := r.p.targets[r.idx].service
	r.p.mu.Unlock()
	dialAddr := net.JoinHostPort(addr.IP.String(), service)

	r.req.loop.Connect("tcp", dialAddr, func(sock transport.Socket, err error) {
		r.p.onDialResult(r.req, r.idx, sock, err)
	})
}

// Dead-idle-socket warnings are rate-limited to once per process per
// distinct cause, matching spec.md §4.4's "first occurrence per
// process per kind" liveness-probe logging.
var (
	warnDeadIdleEOFOnce  sync.Once
	warnDeadIdleErrOnce  sync.Once
	warnDeadIdleDataOnce sync.Once
)

func warnDeadIdleOnce(p *Pool, n int, perr error) {
	switch {
	case perr == nil && n > 0:
		warnDeadIdleDataOnce.Do(func() {
			p.logger.Warn().Msg("idle socket had unexpected readable data on checkout, discarding")
		})
	case errors.Is(perr, io.EOF):
		warnDeadIdleEOFOnce.Do(func() {
			p.logger.Warn().Msg("idle socket was closed by peer, discarding")
		})
	default:
		warnDeadIdleErrOnce.Do(func() {
			p.logger.Warn().Err(perr).Msg("idle socket liveness probe failed, discarding")
		})
	}
}
