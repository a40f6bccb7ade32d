package pool

import (
	"net"
	"net/url"
	"strings"
	"sync/atomic"
)

// targetType discriminates how a target's peer address was determined.
type targetType int

const (
	// targetNamed defers address resolution to a Resolver at connect time.
	targetNamed targetType = iota
	// targetSockaddr has a fully-formed dial address already (numeric IP
	// or Unix socket path); no resolver is ever consulted.
	targetSockaddr
)

// target is one upstream origin's registry entry: the URL it was
// registered under, how to reach it, its own idle list, and its
// in-flight request counter. Unexported — the pool is the only thing
// that touches a target.
type target struct {
	url     *url.URL
	typ     targetType
	network string // "tcp" or "unix"

	// dialAddr is set for targetSockaddr: a ready-to-dial address
	// (host:port, or a Unix socket path).
	dialAddr string

	// host/service are set for targetNamed: the lowercased hostname to
	// resolve and its pre-rendered decimal port string, so the resolver
	// never needs per-request formatting.
	host    string
	service string

	scheme string
	port   string

	balancerData any

	idleHead, idleTail uint64
	requestCount       int64
}

// defaultPortFor returns the conventional port for a URL scheme, used
// when the URL omits an explicit port.
func defaultPortFor(scheme string) string {
	switch scheme {
	case "https", "wss":
		return "443"
	default:
		return "80"
	}
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	return defaultPortFor(u.Scheme)
}

// decodeUnixSocketHost recognizes the "unix" scheme convention this
// pool uses to carry a filesystem socket path through a URL: the path
// component is the socket path itself (e.g. "unix:///var/run/app.sock").
func decodeUnixSocketHost(u *url.URL) (path string, ok bool) {
	if u.Scheme != "unix" {
		return "", false
	}
	if u.Path != "" {
		return u.Path, true
	}
	return u.Opaque, u.Opaque != ""
}

// detectTargetType classifies a URL the way the registry needs to:
// Unix socket path, numeric IP (SOCKADDR), or hostname (NAMED).
func detectTargetType(u *url.URL) (typ targetType, network, dialAddr, host, service string) {
	if path, ok := decodeUnixSocketHost(u); ok {
		return targetSockaddr, "unix", path, "", ""
	}

	h := u.Hostname()
	port := effectivePort(u)
	if ip := net.ParseIP(h); ip != nil {
		return targetSockaddr, "tcp", net.JoinHostPort(h, port), "", ""
	}
	return targetNamed, "tcp", "", strings.ToLower(h), port
}

// initTarget builds a registry entry from an origin URL, lowercasing
// the authority (scheme and host) unless the target is a Unix socket
// path, where case is filesystem-significant.
func initTarget(origin *url.URL, balancerData any) *target {
	u := *origin
	typ, network, dialAddr, host, service := detectTargetType(&u)

	u.Scheme = strings.ToLower(u.Scheme)
	if typ != targetSockaddr || network != "unix" {
		u.Host = strings.ToLower(u.Host)
	}

	return &target{
		url:          &u,
		typ:          typ,
		network:      network,
		dialAddr:     dialAddr,
		host:         host,
		service:      service,
		scheme:       strings.ToLower(origin.Scheme),
		port:         effectivePort(origin),
		balancerData: balancerData,
	}
}

// matches reports whether u refers to the same origin as t: equal
// scheme, equal effective port, and host-equivalence (case-insensitive
// hostname match, or exact Unix path match).
func (t *target) matches(u *url.URL) bool {
	if !strings.EqualFold(t.scheme, u.Scheme) {
		return false
	}
	if t.typ == targetSockaddr && t.network == "unix" {
		path, ok := decodeUnixSocketHost(u)
		return ok && path == t.dialAddr
	}
	if t.port != effectivePort(u) {
		return false
	}
	return strings.EqualFold(t.url.Hostname(), u.Hostname())
}


// lookupTarget performs the linear scan lookupTarget(pool, url)
// describes: equal scheme, equal effective port, host-equivalent.
// Must be called with the pool mutex held.
func (p *Pool) lookupTarget(u *url.URL) int {
	for i, t := range p.targets {
		if t.matches(u) {
			return i
		}
	}
	return -1
}

// addTarget appends a new target to a global pool and returns its
// index. Must be called with the pool mutex held — global-pool growth
// races with concurrent connects.
func (p *Pool) addTarget(u *url.URL) int {
	if !p.global {
		panic("pool: addTarget called on a specific pool")
	}
	t := initTarget(u, nil)
	p.targets = append(p.targets, t)
	return len(p.targets) - 1
}

// requestCountOf is a small accessor that reads target idx's in-flight
// counter atomically without exposing the target type itself.
func (p *Pool) requestCountOf(idx int) int64 {
	return atomic.LoadInt64(&p.targets[idx].requestCount)
}
