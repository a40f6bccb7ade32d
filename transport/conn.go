package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Conn is the default Socket implementation: a thin wrapper around a
// standard net.Conn (TCP or Unix) that adds the pool's liveness probe,
// export/import, and on-close hook.
type Conn struct {
	net.Conn

	mu        sync.Mutex
	closeHook func(data any)
	closeData any
	closed    bool
}

// NewConn wraps an already-connected net.Conn (imports it) as a Socket.
func NewConn(c net.Conn) *Conn {
	return &Conn{Conn: c}
}

// SetOnClose installs the pool's on-close hook. Matches spec.md's
// OnCloseData contract: installed at checkout/connect time, owned by
// the socket until Close, invoked exactly once.
func (c *Conn) SetOnClose(hook func(data any), data any) {
	c.mu.Lock()
	c.closeHook = hook
	c.closeData = data
	c.mu.Unlock()
}

// OnCloseData returns the data last installed via SetOnClose.
func (c *Conn) OnCloseData() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeData
}

// Close closes the underlying connection and fires the on-close hook
// exactly once, however Close came to be called.
func (c *Conn) Close() error {
	c.mu.Lock()
	hook, data, already := c.closeHook, c.closeData, c.closed
	c.closed = true
	c.closeHook = nil
	c.mu.Unlock()

	err := c.Conn.Close()
	if !already && hook != nil {
		hook(data)
	}
	return err
}

// Peek performs the spec's 1-byte MSG_PEEK liveness probe. A would-block
// result (ok=true, n=0) means the peer has not closed the connection —
// the expected state for a healthy idle socket.
func (c *Conn) Peek() (n int, ok bool, err error) {
	sc, ok2 := c.Conn.(syscall.Conn)
	if !ok2 {
		return 0, false, errors.New("transport: underlying conn does not support raw syscall access")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false, err
	}

	buf := make([]byte, 1)
	var recvN int
	var recvErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		recvN, _, recvErr = unix.Recvfrom(int(fd), buf, unix.MSG_PEEK|unix.MSG_DONTWAIT)
	})
	if ctrlErr != nil {
		return 0, false, ctrlErr
	}

	switch {
	case recvErr == unix.EAGAIN || recvErr == unix.EWOULDBLOCK:
		return 0, true, nil
	case recvErr != nil:
		return 0, false, recvErr
	case recvN == 0:
		return 0, false, io.EOF
	default:
		return recvN, false, nil
	}
}

// Export detaches the socket for out-of-loop storage as an idle entry.
// The Conn has no internal read buffering (callers that need framing do
// their own buffering above the pool), so Buffered is always empty —
// the field exists to satisfy the export/import contract symmetrically.
func (c *Conn) Export() (*Exported, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("transport: cannot export a closed socket")
	}
	return &Exported{Conn: c.Conn}, nil
}

// Import re-attaches a previously exported connection as a fresh Socket.
func Import(e *Exported) *Conn {
	return NewConn(e.Conn)
}
