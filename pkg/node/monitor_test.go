package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niicoooo/libcyphal/pkg/transport"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

func TestMonitorTracksPeers(t *testing.T) {
	bus := transport.NewLoopbackBus()
	clock := &testClock{now: time.Unix(1700000000, 0)}

	a := newTestNode(t, bus, clock, 1, "org.example.a")
	b := newTestNode(t, bus, clock, 2, "org.example.b")
	watcher := newTestNode(t, bus, clock, 9, "org.example.watch")

	monitor, err := NewMonitor(watcher.Presentation(), time.Second, clock.Now)
	require.NoError(t, err)

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	for i := 0; i < 2; i++ {
		clock.Advance(time.Second)
		a.SpinOnce()
		b.SpinOnce()
		watcher.SpinOnce()
	}

	peers := monitor.Peers()
	require.Len(t, peers, 2)
	assert.Equal(t, wire.NodeID(1), peers[0].NodeID)
	assert.Equal(t, wire.NodeID(2), peers[1].NodeID)
	assert.True(t, peers[0].Online)
	assert.True(t, peers[1].Online)
	assert.Equal(t, uint32(2), peers[0].Heartbeat.Uptime)

	// Node b goes silent: offline after three missed periods.
	b.Stop()
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		a.SpinOnce()
		watcher.SpinOnce()
	}

	peers = monitor.Peers()
	require.Len(t, peers, 2)
	assert.True(t, peers[0].Online, "node a still heartbeating")
	assert.False(t, peers[1].Online, "node b silent past the threshold")

	monitor.Close()
	watcher.Presentation().FlushUnreferenced()
}

func TestMonitorIgnoresMalformedHeartbeat(t *testing.T) {
	bus := transport.NewLoopbackBus()
	clock := &testClock{now: time.Unix(1700000000, 0)}

	watcher := newTestNode(t, bus, clock, 9, "org.example.watch")
	monitor, err := NewMonitor(watcher.Presentation(), time.Second, clock.Now)
	require.NoError(t, err)

	// Hand-craft a heartbeat frame with a garbage payload.
	sender := bus.Endpoint()
	data, err := wire.MarshalFrame(wire.TransferHeader{
		Version: wire.ProtocolVersion,
		Kind:    wire.KindMessage,
		Source:  3,
		Port:    wire.SubjectHeartbeat,
	}, []byte{0xFF, 0xFF})
	require.NoError(t, err)
	require.NoError(t, sender.Send(data))

	watcher.SpinOnce()
	assert.Empty(t, monitor.Peers())
}
