package presentation

import (
	"fmt"
	"time"

	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// clientKey identifies one client session: calls to one service on one
// server node.
type clientKey struct {
	service wire.PortID
	server  wire.NodeID
}

// pendingCall tracks one in-flight request until its response or deadline.
type pendingCall struct {
	deadline time.Time
	done     ResponseHandler
}

// clientImpl is the shared per-(service, server) calling session. Calls
// from all handles multiplex over one transfer-id counter; responses match
// back by transfer-id.
type clientImpl struct {
	SharedObject

	pres       *Presentation
	service    wire.PortID
	server     wire.NodeID
	transferID uint64
	pending    map[uint64]pendingCall
}

// Destroy finalizes the session and returns its bytes to the arena. Any
// still-pending calls time out: their completions already fired in
// abandon(), before the object was linked as unreferenced.
func (s *clientImpl) Destroy() {
	s.pres.logDestroyed(s.service, "client")
	mem.Free(s.pres.res, s)
}

// complete resolves the pending call matching a received response.
func (s *clientImpl) complete(header wire.TransferHeader, payload []byte, now time.Time) {
	call, ok := s.pending[header.TransferID]
	if !ok {
		// Late response after deadline; already timed out.
		return
	}
	delete(s.pending, header.TransferID)
	call.done(Response{
		Source:     header.Source,
		TransferID: header.TransferID,
		Payload:    payload,
		Timestamp:  now,
	}, nil)
}

// expire times out pending calls whose deadline has passed. Returns the
// number expired.
func (s *clientImpl) expire(now time.Time) int {
	n := 0
	for id, call := range s.pending {
		if now.Before(call.deadline) {
			continue
		}
		delete(s.pending, id)
		call.done(Response{}, ErrTimeout)
		n++
	}
	return n
}

// abandon fails every pending call when the last handle closes.
func (s *clientImpl) abandon() {
	for id, call := range s.pending {
		delete(s.pending, id)
		call.done(Response{}, ErrClosed)
	}
}

// Client is a shared handle to a per-(service, server) calling session.
// Obtain via Presentation.MakeClient; every handle must be closed exactly
// once.
type Client struct {
	impl *clientImpl
}

// MakeClient returns a handle for calling the given service on the given
// server node, creating the session if this is the first handle. The local
// node must not be anonymous: responses need a return address.
func (p *Presentation) MakeClient(service wire.PortID, server wire.NodeID) (*Client, error) {
	if !p.local.IsSet() {
		return nil, fmt.Errorf("create client for service %d: %w", service, ErrAnonymousNode)
	}
	key := clientKey{service: service, server: server}
	impl, ok := p.clients[key]
	if !ok {
		var err error
		impl, err = mem.New[clientImpl](p.res)
		if err != nil {
			p.logAllocFailed(service, "client", err)
			return nil, fmt.Errorf("create client for service %d: %w", service, err)
		}
		impl.pres = p
		impl.service = service
		impl.server = server
		impl.pending = make(map[uint64]pendingCall)
		impl.owner = impl
		p.clients[key] = impl
		p.logCreated(service, "client")
	}
	impl.Retain()
	p.logRetained(service, "client")
	return &Client{impl: impl}, nil
}

// Service returns the service port this handle calls, or zero after Close.
func (c *Client) Service() wire.PortID {
	if c.impl == nil {
		return 0
	}
	return c.impl.service
}

// Server returns the server node this handle calls, or wire.NodeIDUnset
// after Close.
func (c *Client) Server() wire.NodeID {
	if c.impl == nil {
		return wire.NodeIDUnset
	}
	return c.impl.server
}

// Call sends a request and registers done to run when the response arrives
// or the deadline passes, whichever is first. The completion runs on the
// executor thread. Returns the transfer ID of the request.
func (c *Client) Call(payload []byte, deadline time.Time, done ResponseHandler) (uint64, error) {
	impl := c.impl
	if impl == nil {
		return 0, ErrClosed
	}
	if done == nil {
		return 0, fmt.Errorf("call service %d: nil completion", impl.service)
	}

	id := impl.transferID
	header := wire.TransferHeader{
		Version:     wire.ProtocolVersion,
		Kind:        wire.KindRequest,
		Priority:    wire.PriorityNominal,
		Source:      impl.pres.local,
		Destination: impl.server,
		Port:        impl.service,
		TransferID:  id,
	}
	if err := impl.pres.send(header, payload); err != nil {
		return 0, err
	}
	impl.transferID++
	impl.pending[id] = pendingCall{deadline: deadline, done: done}
	return id, nil
}

// CallValue CBOR-encodes request, calls, and CBOR-decodes the response into
// a fresh T for the completion.
func CallValue[T any](c *Client, request any, deadline time.Time, done func(*T, error)) (uint64, error) {
	payload, err := wire.Marshal(request)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	return c.Call(payload, deadline, func(response Response, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		out := new(T)
		if err := wire.Unmarshal(response.Payload, out); err != nil {
			done(nil, fmt.Errorf("decode response: %w", err))
			return
		}
		done(out, nil)
	})
}

// Close releases this handle's reference. When the last handle closes,
// in-flight calls complete with ErrClosed and the session waits for the
// next FlushUnreferenced. Closing twice is a no-op.
func (c *Client) Close() {
	impl := c.impl
	if impl == nil {
		return
	}
	c.impl = nil

	p := impl.pres
	p.logReleased(impl.service, "client")
	if impl.Release() {
		impl.abandon()
		delete(p.clients, clientKey{service: impl.service, server: impl.server})
		p.markUnreferenced(&impl.UnrefNode, impl.service, "client")
	}
}
