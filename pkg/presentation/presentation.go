package presentation

import (
	"errors"
	"fmt"
	"time"

	"github.com/niicoooo/libcyphal/internal/debug"
	"github.com/niicoooo/libcyphal/pkg/log"
	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/transport"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// Config configures a Presentation owner.
type Config struct {
	// Resource is the arena all session objects are charged against.
	// Required.
	Resource mem.Resource

	// Medium carries the node's transfers. Required.
	Medium transport.Medium

	// NodeID is the local node. The zero value and wire.NodeIDUnset both
	// mean anonymous (subject publishing only, no RPC).
	NodeID wire.NodeID

	// Logger receives stack events. Nil disables logging.
	Logger log.Logger

	// Clock overrides the time source. Nil means time.Now. Tests inject
	// a fake clock here.
	Clock func() time.Time
}

// Presentation owns every session object of one node: it creates them from
// the arena, hands out shared handles, routes received transfers to them,
// and finalizes them in FIFO order of abandonment.
//
// Not safe for concurrent use; all calls must come from the executor
// thread.
type Presentation struct {
	res    mem.Resource
	medium transport.Medium
	logger log.Logger
	local  wire.NodeID
	now    func() time.Time

	// unrefHead is the circular sentinel of the unreferenced chain.
	unrefHead UnrefNode

	publishers  map[wire.PortID]*publisherImpl
	subscribers map[wire.PortID]*subscriberImpl
	clients     map[clientKey]*clientImpl
	servers     map[wire.PortID]*serverImpl
}

// New creates a Presentation owner.
func New(config Config) (*Presentation, error) {
	if config.Resource == nil {
		return nil, errors.New("presentation: Resource is required")
	}
	if config.Medium == nil {
		return nil, errors.New("presentation: Medium is required")
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.NodeID == 0 {
		config.NodeID = wire.NodeIDUnset
	}

	p := &Presentation{
		res:         config.Resource,
		medium:      config.Medium,
		logger:      log.OrNoop(config.Logger),
		local:       config.NodeID,
		now:         config.Clock,
		publishers:  make(map[wire.PortID]*publisherImpl),
		subscribers: make(map[wire.PortID]*subscriberImpl),
		clients:     make(map[clientKey]*clientImpl),
		servers:     make(map[wire.PortID]*serverImpl),
	}
	p.unrefHead.prev = &p.unrefHead
	p.unrefHead.next = &p.unrefHead
	return p, nil
}

// NodeID returns the local node ID.
func (p *Presentation) NodeID() wire.NodeID {
	return p.local
}

// SessionCount returns the number of live session objects, including those
// pending destruction.
func (p *Presentation) SessionCount() int {
	return len(p.publishers) + len(p.subscribers) + len(p.clients) + len(p.servers) + p.PendingDestruction()
}

// PendingDestruction returns the number of objects waiting for the next
// FlushUnreferenced.
func (p *Presentation) PendingDestruction() int {
	n := 0
	for node := p.unrefHead.next; node != &p.unrefHead; node = node.next {
		n++
	}
	return n
}

// FlushUnreferenced destroys every object whose last reference was dropped,
// in the order the objects became unreferenced. Called by the executor
// between iterations, never from inside a session callback or a Destroy.
// Returns the number of objects destroyed.
func (p *Presentation) FlushUnreferenced() int {
	n := 0
	for p.unrefHead.next != &p.unrefHead {
		node := p.unrefHead.next
		obj := node.owner
		debug.Assert(obj != nil, "sentinel reached through a linked node")

		// Unlink first: the drain owns traversal order exclusively and
		// must not depend on Destroy leaving the links alone.
		node.unlinkIfLinked()
		obj.Destroy()
		n++
	}
	return n
}

// markUnreferenced transitions an object to pending destruction: it is
// appended to the unreferenced chain and destroyed by a later
// FlushUnreferenced. The object must already be unregistered from its port
// so no new handle can reach it.
func (p *Presentation) markUnreferenced(node *UnrefNode, port wire.PortID, kind string) {
	node.linkAsUnreferenced(&p.unrefHead)
	p.logger.Log(log.Event{
		Timestamp: p.now(),
		Layer:     log.LayerPresentation,
		Category:  log.CategorySessionPending,
		NodeID:    uint16(p.local),
		Port:      uint16(port),
		Detail:    kind,
	})
}

// ProcessReceived routes one datagram from the medium into the sessions.
// Unroutable transfers (no session on the port, not addressed to this
// node) are dropped silently: on a broadcast medium they are normal.
func (p *Presentation) ProcessReceived(data []byte) error {
	header, payload, err := wire.UnmarshalFrame(data)
	if err != nil {
		p.logger.Log(log.Event{
			Timestamp: p.now(),
			Layer:     log.LayerPresentation,
			Category:  log.CategoryError,
			NodeID:    uint16(p.local),
			Error:     err.Error(),
		})
		return fmt.Errorf("drop malformed datagram: %w", err)
	}
	if header.Source == p.local && p.local.IsSet() {
		// Own multicast loopback.
		return nil
	}

	p.logger.Log(log.Event{
		Timestamp:  p.now(),
		Layer:      log.LayerPresentation,
		Category:   log.CategoryTransferReceived,
		NodeID:     uint16(p.local),
		Port:       uint16(header.Port),
		TransferID: header.TransferID,
		Detail:     header.Kind.String(),
	})

	switch header.Kind {
	case wire.KindMessage:
		if sub, ok := p.subscribers[header.Port]; ok {
			sub.dispatch(header, payload, p.now())
		}
	case wire.KindRequest:
		if header.Destination != p.local {
			return nil
		}
		if srv, ok := p.servers[header.Port]; ok {
			srv.handle(header, payload, p.now())
		}
	case wire.KindResponse:
		if header.Destination != p.local {
			return nil
		}
		key := clientKey{service: header.Port, server: header.Source}
		if cli, ok := p.clients[key]; ok {
			cli.complete(header, payload, p.now())
		}
	}
	return nil
}

// ExpirePending times out client calls whose deadline has passed. Scheduled
// periodically by the node housekeeping callback.
func (p *Presentation) ExpirePending() int {
	now := p.now()
	n := 0
	for _, cli := range p.clients {
		n += cli.expire(now)
	}
	return n
}

// send encodes and transmits one transfer.
func (p *Presentation) send(header wire.TransferHeader, payload []byte) error {
	data, err := wire.MarshalFrame(header, payload)
	if err != nil {
		return fmt.Errorf("encode transfer: %w", err)
	}
	if err := p.medium.Send(data); err != nil {
		return fmt.Errorf("send transfer: %w", err)
	}
	p.logger.Log(log.Event{
		Timestamp:  p.now(),
		Layer:      log.LayerPresentation,
		Category:   log.CategoryTransferSent,
		NodeID:     uint16(p.local),
		Port:       uint16(header.Port),
		TransferID: header.TransferID,
		Detail:     header.Kind.String(),
	})
	return nil
}

// logCreated records construction of a session object.
func (p *Presentation) logCreated(port wire.PortID, kind string) {
	p.logger.Log(log.Event{
		Timestamp: p.now(),
		Layer:     log.LayerPresentation,
		Category:  log.CategorySessionCreated,
		NodeID:    uint16(p.local),
		Port:      uint16(port),
		Detail:    kind,
	})
}

// logAllocFailed records arena exhaustion on session creation.
func (p *Presentation) logAllocFailed(port wire.PortID, kind string, err error) {
	p.logger.Log(log.Event{
		Timestamp: p.now(),
		Layer:     log.LayerPresentation,
		Category:  log.CategoryAllocationFailed,
		NodeID:    uint16(p.local),
		Port:      uint16(port),
		Detail:    kind,
		Error:     err.Error(),
	})
}

// logRetained records a reference-count increment.
func (p *Presentation) logRetained(port wire.PortID, kind string) {
	p.logger.Log(log.Event{
		Timestamp: p.now(),
		Layer:     log.LayerPresentation,
		Category:  log.CategorySessionRetained,
		NodeID:    uint16(p.local),
		Port:      uint16(port),
		Detail:    kind,
	})
}

// logReleased records a reference-count decrement.
func (p *Presentation) logReleased(port wire.PortID, kind string) {
	p.logger.Log(log.Event{
		Timestamp: p.now(),
		Layer:     log.LayerPresentation,
		Category:  log.CategorySessionReleased,
		NodeID:    uint16(p.local),
		Port:      uint16(port),
		Detail:    kind,
	})
}

// logDestroyed records final teardown of a session object.
func (p *Presentation) logDestroyed(port wire.PortID, kind string) {
	p.logger.Log(log.Event{
		Timestamp: p.now(),
		Layer:     log.LayerPresentation,
		Category:  log.CategorySessionDestroyed,
		NodeID:    uint16(p.local),
		Port:      uint16(port),
		Detail:    kind,
	})
}
