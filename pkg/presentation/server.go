package presentation

import (
	"fmt"
	"time"

	"github.com/niicoooo/libcyphal/pkg/log"
	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// serverImpl is the per-service serving session. Unlike publishers and
// subscribers a service port has exactly one handler, so only one Server
// handle exists per port; the impl still goes through the shared lifecycle
// so its teardown is ordered with everything else.
type serverImpl struct {
	SharedObject

	pres    *Presentation
	service wire.PortID
	handler RequestHandler
	served  uint64
}

// Destroy finalizes the session and returns its bytes to the arena.
func (s *serverImpl) Destroy() {
	s.pres.logDestroyed(s.service, "server")
	mem.Free(s.pres.res, s)
}

// handle answers one received request. Handler errors suppress the
// response; the caller times out.
func (s *serverImpl) handle(header wire.TransferHeader, payload []byte, now time.Time) {
	s.served++
	response, err := s.handler(Request{
		Priority:   header.Priority,
		Source:     header.Source,
		TransferID: header.TransferID,
		Payload:    payload,
		Timestamp:  now,
	})
	if err != nil {
		s.pres.logger.Log(log.Event{
			Timestamp:  now,
			Layer:      log.LayerPresentation,
			Category:   log.CategoryError,
			NodeID:     uint16(s.pres.local),
			Port:       uint16(s.service),
			TransferID: header.TransferID,
			Error:      err.Error(),
		})
		return
	}

	reply := wire.TransferHeader{
		Version:     wire.ProtocolVersion,
		Kind:        wire.KindResponse,
		Priority:    header.Priority,
		Source:      s.pres.local,
		Destination: header.Source,
		Port:        s.service,
		TransferID:  header.TransferID,
	}
	if err := s.pres.send(reply, response); err != nil {
		s.pres.logger.Log(log.Event{
			Timestamp:  now,
			Layer:      log.LayerPresentation,
			Category:   log.CategoryError,
			NodeID:     uint16(s.pres.local),
			Port:       uint16(s.service),
			TransferID: header.TransferID,
			Error:      err.Error(),
		})
	}
}

// Server is the handle to a per-service serving session. Obtain via
// Presentation.MakeServer; must be closed exactly once.
type Server struct {
	impl *serverImpl
}

// MakeServer registers handler for the given service port. A port serves
// at most one handler; a second MakeServer on the same port fails with
// ErrServiceInUse until the first server is closed. The local node must not
// be anonymous.
func (p *Presentation) MakeServer(service wire.PortID, handler RequestHandler) (*Server, error) {
	if !p.local.IsSet() {
		return nil, fmt.Errorf("create server for service %d: %w", service, ErrAnonymousNode)
	}
	if handler == nil {
		return nil, fmt.Errorf("create server for service %d: nil handler", service)
	}
	if _, ok := p.servers[service]; ok {
		return nil, fmt.Errorf("create server for service %d: %w", service, ErrServiceInUse)
	}

	impl, err := mem.New[serverImpl](p.res)
	if err != nil {
		p.logAllocFailed(service, "server", err)
		return nil, fmt.Errorf("create server for service %d: %w", service, err)
	}
	impl.pres = p
	impl.service = service
	impl.handler = handler
	impl.owner = impl
	p.servers[service] = impl
	p.logCreated(service, "server")

	impl.Retain()
	p.logRetained(service, "server")
	return &Server{impl: impl}, nil
}

// Service returns the service port this handle serves, or zero after Close.
func (srv *Server) Service() wire.PortID {
	if srv.impl == nil {
		return 0
	}
	return srv.impl.service
}

// Served returns the number of requests handled, or zero after Close.
func (srv *Server) Served() uint64 {
	if srv.impl == nil {
		return 0
	}
	return srv.impl.served
}

// Close releases the server. The port is free for a new MakeServer
// immediately; the session object itself waits for the next
// FlushUnreferenced. Closing twice is a no-op.
func (srv *Server) Close() {
	impl := srv.impl
	if impl == nil {
		return
	}
	srv.impl = nil

	p := impl.pres
	p.logReleased(impl.service, "server")
	if impl.Release() {
		delete(p.servers, impl.service)
		p.markUnreferenced(&impl.UnrefNode, impl.service, "server")
	}
}
