package node

import (
	"sort"
	"time"

	"github.com/niicoooo/libcyphal/pkg/presentation"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// OfflineAfter is how many heartbeat periods of silence mark a peer
// offline.
const OfflineAfter = 3

// PeerStatus is the observed liveness of one remote node.
type PeerStatus struct {
	// NodeID is the peer's network identity.
	NodeID wire.NodeID

	// Heartbeat is the last heartbeat received.
	Heartbeat wire.Heartbeat

	// LastSeen is when that heartbeat arrived.
	LastSeen time.Time

	// Online is false after OfflineAfter heartbeat periods of silence.
	Online bool
}

// Monitor tracks network liveness from the heartbeat subject. It holds one
// subscriber handle; Close releases it.
type Monitor struct {
	sub      *presentation.Subscriber
	interval time.Duration
	now      func() time.Time
	peers    map[wire.NodeID]*PeerStatus
}

// NewMonitor subscribes to heartbeats on the given presentation layer.
// interval is the network's heartbeat period (zero means
// DefaultHeartbeatInterval) and drives offline detection.
func NewMonitor(pres *presentation.Presentation, interval time.Duration, clock func() time.Time) (*Monitor, error) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if clock == nil {
		clock = time.Now
	}
	m := &Monitor{
		interval: interval,
		now:      clock,
		peers:    make(map[wire.NodeID]*PeerStatus),
	}

	sub, err := pres.MakeSubscriber(wire.SubjectHeartbeat, m.onHeartbeat)
	if err != nil {
		return nil, err
	}
	m.sub = sub
	return m, nil
}

// onHeartbeat records one received heartbeat.
func (m *Monitor) onHeartbeat(tr presentation.Transfer) {
	var hb wire.Heartbeat
	if err := wire.Unmarshal(tr.Payload, &hb); err != nil {
		return
	}
	peer, ok := m.peers[tr.Source]
	if !ok {
		peer = &PeerStatus{NodeID: tr.Source}
		m.peers[tr.Source] = peer
	}
	peer.Heartbeat = hb
	peer.LastSeen = tr.Timestamp
}

// Peers returns a snapshot of all peers ever heard, sorted by node ID,
// with Online computed against the heartbeat period.
func (m *Monitor) Peers() []PeerStatus {
	deadline := m.now().Add(-OfflineAfter * m.interval)
	out := make([]PeerStatus, 0, len(m.peers))
	for _, peer := range m.peers {
		status := *peer
		status.Online = !peer.LastSeen.Before(deadline)
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Close releases the monitor's subscriber handle.
func (m *Monitor) Close() {
	if m.sub != nil {
		m.sub.Close()
		m.sub = nil
	}
}
