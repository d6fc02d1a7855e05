package presentation

import (
	"fmt"
	"time"

	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// subscriberImpl is the shared per-subject receiving session. Each handle
// registers its own callback; a received message fans out to all of them.
type subscriberImpl struct {
	SharedObject

	pres     *Presentation
	subject  wire.PortID
	handlers map[uint64]MessageHandler
	nextKey  uint64
	received uint64
}

// Destroy finalizes the session and returns its bytes to the arena.
func (s *subscriberImpl) Destroy() {
	s.pres.logDestroyed(s.subject, "subscriber")
	mem.Free(s.pres.res, s)
}

// dispatch fans one received message out to every handle callback.
func (s *subscriberImpl) dispatch(header wire.TransferHeader, payload []byte, now time.Time) {
	s.received++
	transfer := Transfer{
		Priority:   header.Priority,
		Source:     header.Source,
		TransferID: header.TransferID,
		Payload:    payload,
		Timestamp:  now,
	}
	for _, handler := range s.handlers {
		handler(transfer)
	}
}

// Subscriber is a shared handle to a per-subject receiving session. Obtain
// via Presentation.MakeSubscriber; every handle must be closed exactly once.
type Subscriber struct {
	impl *subscriberImpl
	key  uint64
}

// MakeSubscriber returns a handle to the subject's receiving session,
// creating the session if this is the first handle. The handler runs on
// the executor thread for every message received on the subject while the
// handle is open.
func (p *Presentation) MakeSubscriber(subject wire.PortID, handler MessageHandler) (*Subscriber, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe to subject %d: nil handler", subject)
	}
	impl, ok := p.subscribers[subject]
	if !ok {
		var err error
		impl, err = mem.New[subscriberImpl](p.res)
		if err != nil {
			p.logAllocFailed(subject, "subscriber", err)
			return nil, fmt.Errorf("create subscriber on subject %d: %w", subject, err)
		}
		impl.pres = p
		impl.subject = subject
		impl.handlers = make(map[uint64]MessageHandler)
		impl.owner = impl
		p.subscribers[subject] = impl
		p.logCreated(subject, "subscriber")
	}
	impl.Retain()
	p.logRetained(subject, "subscriber")

	key := impl.nextKey
	impl.nextKey++
	impl.handlers[key] = handler
	return &Subscriber{impl: impl, key: key}, nil
}

// Subject returns the subject port this handle listens on, or zero after
// Close.
func (sub *Subscriber) Subject() wire.PortID {
	if sub.impl == nil {
		return 0
	}
	return sub.impl.subject
}

// Received returns the number of messages the shared session has delivered,
// or zero after Close.
func (sub *Subscriber) Received() uint64 {
	if sub.impl == nil {
		return 0
	}
	return sub.impl.received
}

// Close detaches this handle's callback and releases its reference. When
// the last handle closes, the session leaves the subject registry and
// waits for the next FlushUnreferenced. Closing twice is a no-op.
func (sub *Subscriber) Close() {
	impl := sub.impl
	if impl == nil {
		return
	}
	sub.impl = nil

	delete(impl.handlers, sub.key)

	p := impl.pres
	p.logReleased(impl.subject, "subscriber")
	if impl.Release() {
		delete(p.subscribers, impl.subject)
		p.markUnreferenced(&impl.UnrefNode, impl.subject, "subscriber")
	}
}
