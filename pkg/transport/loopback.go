package transport

import (
	"sync"
	"time"
)

// Default loopback parameters.
const (
	// DefaultLoopbackMTU matches a typical UDP deployment.
	DefaultLoopbackMTU = 1408

	// DefaultLoopbackDepth is the per-endpoint receive queue depth.
	// A full queue drops the datagram, modeling a lossy medium.
	DefaultLoopbackDepth = 64
)

// LoopbackBus is an in-process broadcast medium connecting any number of
// endpoints. Every datagram sent by one endpoint is delivered to the
// receive queues of all other endpoints. Used by tests and single-process
// demos.
type LoopbackBus struct {
	mu        sync.Mutex
	endpoints []*LoopbackEndpoint
	mtu       int
	depth     int
	dropped   uint64
}

// NewLoopbackBus creates a bus with default MTU and queue depth.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{mtu: DefaultLoopbackMTU, depth: DefaultLoopbackDepth}
}

// Endpoint attaches a new endpoint to the bus.
func (b *LoopbackBus) Endpoint() *LoopbackEndpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	ep := &LoopbackEndpoint{
		bus:   b,
		queue: make(chan []byte, b.depth),
	}
	b.endpoints = append(b.endpoints, ep)
	return ep
}

// Dropped returns the number of datagrams discarded due to full queues.
func (b *LoopbackBus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// broadcast delivers data to every endpoint except the sender.
func (b *LoopbackBus) broadcast(from *LoopbackEndpoint, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ep := range b.endpoints {
		if ep == from || ep.closed {
			continue
		}
		// Copy: the sender may reuse its buffer.
		buf := make([]byte, len(data))
		copy(buf, data)
		select {
		case ep.queue <- buf:
		default:
			b.dropped++
		}
	}
}

// LoopbackEndpoint is one attachment point on a LoopbackBus.
type LoopbackEndpoint struct {
	bus    *LoopbackBus
	queue  chan []byte
	closed bool
}

// Send broadcasts one datagram to all other endpoints on the bus.
func (ep *LoopbackEndpoint) Send(data []byte) error {
	ep.bus.mu.Lock()
	closed := ep.closed
	ep.bus.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if len(data) > ep.bus.mtu {
		return ErrDatagramTooLarge
	}
	ep.bus.broadcast(ep, data)
	return nil
}

// Receive waits up to timeout for one datagram.
func (ep *LoopbackEndpoint) Receive(timeout time.Duration) ([]byte, bool, error) {
	ep.bus.mu.Lock()
	closed := ep.closed
	ep.bus.mu.Unlock()
	if closed {
		return nil, false, ErrClosed
	}

	// Fast path: something already queued.
	select {
	case data := <-ep.queue:
		return data, true, nil
	default:
	}
	if timeout <= 0 {
		return nil, false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-ep.queue:
		return data, true, nil
	case <-timer.C:
		return nil, false, nil
	}
}

// MTU returns the bus MTU.
func (ep *LoopbackEndpoint) MTU() int {
	return ep.bus.mtu
}

// Close detaches the endpoint from the bus.
func (ep *LoopbackEndpoint) Close() error {
	ep.bus.mu.Lock()
	defer ep.bus.mu.Unlock()
	if ep.closed {
		return ErrClosed
	}
	ep.closed = true
	return nil
}
