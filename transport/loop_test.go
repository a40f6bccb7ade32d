package transport

import (
	"net"
	"testing"
	"time"
)

func TestGoroutineLoopConnectSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	loop := NewGoroutineLoop(nil)
	done := make(chan struct {
		sock Socket
		err  error
	}, 1)
	loop.Connect("tcp", ln.Addr().String(), func(s Socket, err error) {
		done <- struct {
			sock Socket
			err  error
		}{s, err}
	})

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("expected a successful connect, got %v", r.err)
		}
		if r.sock == nil {
			t.Fatal("expected a non-nil socket")
		}
		r.sock.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("Connect callback never fired")
	}
}

func TestGoroutineLoopConnectFailure(t *testing.T) {
	loop := NewGoroutineLoop(nil)
	done := make(chan error, 1)
	loop.Connect("tcp", "127.0.0.1:1", func(s Socket, err error) { done <- err })

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a dial error against a closed port")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Connect callback never fired")
	}
}

func TestGoroutineLoopNowIsMonotonic(t *testing.T) {
	loop := NewGoroutineLoop(nil)
	t1 := loop.Now()
	time.Sleep(5 * time.Millisecond)
	t2 := loop.Now()
	if t2 < t1 {
		t.Fatalf("expected Now to be non-decreasing, got %d then %d", t1, t2)
	}
}

func TestGoroutineLoopEveryMillisFiresAndCancels(t *testing.T) {
	loop := NewGoroutineLoop(nil)
	fired := make(chan struct{}, 8)
	cancel := loop.EveryMillis(5*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	cancel()
}
