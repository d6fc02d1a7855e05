package transport

import (
	"bytes"
	"testing"
	"time"
)

func TestLoopbackDelivery(t *testing.T) {
	bus := NewLoopbackBus()
	a := bus.Endpoint()
	b := bus.Endpoint()
	c := bus.Endpoint()

	if err := a.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for name, ep := range map[string]*LoopbackEndpoint{"b": b, "c": c} {
		data, ok, err := ep.Receive(time.Second)
		if err != nil || !ok {
			t.Fatalf("%s.Receive = (%v, %v, %v), want datagram", name, data, ok, err)
		}
		if !bytes.Equal(data, []byte("hello")) {
			t.Errorf("%s received %q, want %q", name, data, "hello")
		}
	}

	// Sender must not hear its own datagram.
	if _, ok, _ := a.Receive(0); ok {
		t.Error("sender received its own datagram")
	}
}

func TestLoopbackReceiveTimeout(t *testing.T) {
	bus := NewLoopbackBus()
	ep := bus.Endpoint()

	start := time.Now()
	_, ok, err := ep.Receive(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if ok {
		t.Fatal("Receive on empty bus = ok, want timeout")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Receive returned after %v, want >= 20ms", elapsed)
	}
}

func TestLoopbackMTU(t *testing.T) {
	bus := NewLoopbackBus()
	ep := bus.Endpoint()
	bus.Endpoint()

	oversized := make([]byte, DefaultLoopbackMTU+1)
	if err := ep.Send(oversized); err != ErrDatagramTooLarge {
		t.Errorf("Send(oversized) = %v, want ErrDatagramTooLarge", err)
	}
}

func TestLoopbackDropsWhenQueueFull(t *testing.T) {
	bus := NewLoopbackBus()
	a := bus.Endpoint()
	bus.Endpoint() // receiver that never drains

	for i := 0; i < DefaultLoopbackDepth+10; i++ {
		if err := a.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if bus.Dropped() != 10 {
		t.Errorf("Dropped = %d, want 10", bus.Dropped())
	}
}

func TestLoopbackClosed(t *testing.T) {
	bus := NewLoopbackBus()
	ep := bus.Endpoint()

	if err := ep.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ep.Send([]byte{1}); err != ErrClosed {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	if _, _, err := ep.Receive(0); err != ErrClosed {
		t.Errorf("Receive after Close = %v, want ErrClosed", err)
	}
	if err := ep.Close(); err != ErrClosed {
		t.Errorf("double Close = %v, want ErrClosed", err)
	}
}
