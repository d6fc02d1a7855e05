package presentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/transport"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// pump moves every queued datagram from the medium into the presentation.
func pump(t *testing.T, medium transport.Medium, p *Presentation) int {
	t.Helper()
	n := 0
	for {
		data, ok, err := medium.Receive(0)
		require.NoError(t, err)
		if !ok {
			return n
		}
		require.NoError(t, p.ProcessReceived(data))
		n++
	}
}

func newTestPair(t *testing.T) (pubSide, subSide *Presentation, subMedium transport.Medium, clock *fakeClock) {
	t.Helper()
	bus := transport.NewLoopbackBus()
	clock = &fakeClock{now: time.Unix(1700000000, 0)}

	pubEP := bus.Endpoint()
	subEP := bus.Endpoint()

	var err error
	pubSide, err = New(Config{Resource: mem.NewArena(1 << 16), Medium: pubEP, NodeID: 1, Clock: clock.Now})
	require.NoError(t, err)
	subSide, err = New(Config{Resource: mem.NewArena(1 << 16), Medium: subEP, NodeID: 2, Clock: clock.Now})
	require.NoError(t, err)
	return pubSide, subSide, subEP, clock
}

func TestPublishReachesSubscriber(t *testing.T) {
	pubSide, subSide, subMedium, _ := newTestPair(t)

	var got []Transfer
	sub, err := subSide.MakeSubscriber(100, func(tr Transfer) {
		got = append(got, tr)
	})
	require.NoError(t, err)

	pub, err := pubSide.MakePublisher(100)
	require.NoError(t, err)
	require.NoError(t, pub.Publish([]byte("one")))
	require.NoError(t, pub.Publish([]byte("two")))

	pump(t, subMedium, subSide)

	require.Len(t, got, 2)
	assert.Equal(t, []byte("one"), got[0].Payload)
	assert.Equal(t, []byte("two"), got[1].Payload)
	assert.Equal(t, wire.NodeID(1), got[0].Source)
	assert.Equal(t, uint64(0), got[0].TransferID)
	assert.Equal(t, uint64(1), got[1].TransferID, "transfer IDs must increase per session")
	assert.Equal(t, uint64(2), sub.Received())

	pub.Close()
	sub.Close()
	pubSide.FlushUnreferenced()
	subSide.FlushUnreferenced()
}

func TestSubscriberFanOutAcrossHandles(t *testing.T) {
	pubSide, subSide, subMedium, _ := newTestPair(t)

	hits := make(map[string]int)
	sub1, err := subSide.MakeSubscriber(100, func(Transfer) { hits["first"]++ })
	require.NoError(t, err)
	sub2, err := subSide.MakeSubscriber(100, func(Transfer) { hits["second"]++ })
	require.NoError(t, err)
	require.Same(t, sub1.impl, sub2.impl)

	pub, err := pubSide.MakePublisher(100)
	require.NoError(t, err)
	require.NoError(t, pub.Publish([]byte("x")))
	pump(t, subMedium, subSide)

	assert.Equal(t, 1, hits["first"])
	assert.Equal(t, 1, hits["second"])

	// Closing one handle detaches only its callback.
	sub1.Close()
	require.NoError(t, pub.Publish([]byte("y")))
	pump(t, subMedium, subSide)

	assert.Equal(t, 1, hits["first"])
	assert.Equal(t, 2, hits["second"])
}

func TestSubscriberIgnoresOtherSubjects(t *testing.T) {
	pubSide, subSide, subMedium, _ := newTestPair(t)

	delivered := 0
	_, err := subSide.MakeSubscriber(100, func(Transfer) { delivered++ })
	require.NoError(t, err)

	pub, err := pubSide.MakePublisher(999)
	require.NoError(t, err)
	require.NoError(t, pub.Publish([]byte("other subject")))

	pump(t, subMedium, subSide)
	assert.Equal(t, 0, delivered)
}

func TestPublishValueRoundTrip(t *testing.T) {
	pubSide, subSide, subMedium, _ := newTestPair(t)

	var got wire.Heartbeat
	_, err := subSide.MakeSubscriber(wire.SubjectHeartbeat, func(tr Transfer) {
		require.NoError(t, wire.Unmarshal(tr.Payload, &got))
	})
	require.NoError(t, err)

	pub, err := pubSide.MakePublisher(wire.SubjectHeartbeat)
	require.NoError(t, err)
	require.NoError(t, pub.PublishValue(wire.Heartbeat{Uptime: 7, Health: wire.HealthAdvisory}))

	pump(t, subMedium, subSide)
	assert.Equal(t, uint32(7), got.Uptime)
	assert.Equal(t, wire.HealthAdvisory, got.Health)
}

func TestClosedHandleRejectsPublish(t *testing.T) {
	pubSide, _, _, _ := newTestPair(t)

	pub, err := pubSide.MakePublisher(100)
	require.NoError(t, err)
	pub.Close()

	assert.ErrorIs(t, pub.Publish([]byte("late")), ErrClosed)
	assert.ErrorIs(t, pub.PublishValue(1), ErrClosed)
}
