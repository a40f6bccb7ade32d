package resolver

import (
	"net"
	"testing"
	"time"
)

type recordingReceiver struct {
	done   chan struct{}
	result Result
}

func newRecordingReceiver() *recordingReceiver {
	return &recordingReceiver{done: make(chan struct{}, 1)}
}

func (r *recordingReceiver) Deliver(_ *Request, result Result) {
	r.result = result
	r.done <- struct{}{}
}

func TestAsyncResolverDeliversLookupFailure(t *testing.T) {
	ar := NewAsyncResolver(nil)
	recv := newRecordingReceiver()

	ar.Submit(recv, "this-host-does-not-resolve.invalid", "80")

	select {
	case <-recv.done:
		if recv.result.Err == nil {
			t.Fatal("expected a lookup error for an invalid hostname")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Deliver was never called")
	}
}

func TestAsyncResolverCancelSuppressesDelivery(t *testing.T) {
	ar := NewAsyncResolver(nil)
	recv := newRecordingReceiver()

	req := ar.Submit(recv, "localhost", "80")
	req.Cancel()

	select {
	case <-recv.done:
		t.Fatal("expected Cancel to suppress delivery")
	case <-time.After(200 * time.Millisecond):
		// no delivery within the window: success
	}
}

func TestAsyncResolverCancelIsSafeAfterCompletion(t *testing.T) {
	ar := NewAsyncResolver(nil)
	recv := newRecordingReceiver()

	req := ar.Submit(recv, "localhost", "80")
	select {
	case <-recv.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Deliver was never called")
	}
	req.Cancel() // must not panic once already completed
}

func TestSelectOnePrefersIPv4(t *testing.T) {
	ar := NewAsyncResolver(nil)
	addrs := []net.IPAddr{
		{IP: net.ParseIP("::1")},
		{IP: net.ParseIP("127.0.0.1")},
	}
	got := ar.SelectOne(addrs)
	if got.IP.To4() == nil {
		t.Fatalf("expected an IPv4 address to be preferred, got %v", got.IP)
	}
}

func TestSelectOneFallsBackToFirstWhenNoIPv4(t *testing.T) {
	ar := NewAsyncResolver(nil)
	addrs := []net.IPAddr{
		{IP: net.ParseIP("::1")},
		{IP: net.ParseIP("::2")},
	}
	got := ar.SelectOne(addrs)
	if !got.IP.Equal(net.ParseIP("::1")) {
		t.Fatalf("expected the first address as fallback, got %v", got.IP)
	}
}
