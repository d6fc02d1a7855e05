package presentation

import (
	"fmt"

	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// publisherImpl is the shared per-subject publishing session. All Publisher
// handles on one subject reference the same impl; the transfer-id counter
// is therefore monotonic across them.
type publisherImpl struct {
	SharedObject

	pres       *Presentation
	subject    wire.PortID
	priority   wire.Priority
	transferID uint64
}

// Destroy finalizes the session and returns its bytes to the arena.
func (s *publisherImpl) Destroy() {
	s.pres.logDestroyed(s.subject, "publisher")
	mem.Free(s.pres.res, s)
}

// publish sends one message transfer on the subject.
func (s *publisherImpl) publish(payload []byte, priority wire.Priority) error {
	header := wire.TransferHeader{
		Version:     wire.ProtocolVersion,
		Kind:        wire.KindMessage,
		Priority:    priority,
		Source:      s.pres.local,
		Destination: wire.NodeIDUnset,
		Port:        s.subject,
		TransferID:  s.transferID,
	}
	if err := s.pres.send(header, payload); err != nil {
		return err
	}
	s.transferID++
	return nil
}

// Publisher is a shared handle to a per-subject publishing session. Obtain
// via Presentation.MakePublisher; every handle must be closed exactly once.
type Publisher struct {
	impl *publisherImpl
}

// MakePublisher returns a handle to the subject's publishing session,
// creating the session if this is the first handle. Arena exhaustion is
// returned to the caller; nothing is constructed in that case.
func (p *Presentation) MakePublisher(subject wire.PortID) (*Publisher, error) {
	impl, ok := p.publishers[subject]
	if !ok {
		var err error
		impl, err = mem.New[publisherImpl](p.res)
		if err != nil {
			p.logAllocFailed(subject, "publisher", err)
			return nil, fmt.Errorf("create publisher on subject %d: %w", subject, err)
		}
		impl.pres = p
		impl.subject = subject
		impl.priority = wire.PriorityNominal
		impl.owner = impl
		p.publishers[subject] = impl
		p.logCreated(subject, "publisher")
	}
	impl.Retain()
	p.logRetained(subject, "publisher")
	return &Publisher{impl: impl}, nil
}

// Subject returns the subject port this handle publishes on, or zero after
// Close.
func (pub *Publisher) Subject() wire.PortID {
	if pub.impl == nil {
		return 0
	}
	return pub.impl.subject
}

// SetPriority sets the priority for subsequent Publish calls from every
// handle sharing this session. No-op after Close.
func (pub *Publisher) SetPriority(priority wire.Priority) {
	if pub.impl == nil {
		return
	}
	pub.impl.priority = priority
}

// Publish sends an opaque payload on the subject.
func (pub *Publisher) Publish(payload []byte) error {
	if pub.impl == nil {
		return ErrClosed
	}
	return pub.impl.publish(payload, pub.impl.priority)
}

// PublishValue CBOR-encodes v and publishes it.
func (pub *Publisher) PublishValue(v any) error {
	if pub.impl == nil {
		return ErrClosed
	}
	payload, err := wire.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return pub.impl.publish(payload, pub.impl.priority)
}

// Close releases this handle's reference. When the last handle closes, the
// session leaves the subject registry and waits for the next
// FlushUnreferenced to be destroyed. Closing twice is a no-op.
func (pub *Publisher) Close() {
	impl := pub.impl
	if impl == nil {
		return
	}
	pub.impl = nil

	p := impl.pres
	p.logReleased(impl.subject, "publisher")
	if impl.Release() {
		delete(p.publishers, impl.subject)
		p.markUnreferenced(&impl.UnrefNode, impl.subject, "publisher")
	}
}
