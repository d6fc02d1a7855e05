package libcyphal_test

import (
	"testing"
	"time"

	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/node"
	"github.com/niicoooo/libcyphal/pkg/presentation"
	"github.com/niicoooo/libcyphal/pkg/register"
	"github.com/niicoooo/libcyphal/pkg/transport"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func startNode(t *testing.T, bus *transport.LoopbackBus, clock *fixedClock, id wire.NodeID, name string, registers *register.Table) *node.Node {
	t.Helper()

	n, err := node.New(node.Config{
		NodeID:          id,
		Name:            name,
		Medium:          bus.Endpoint(),
		Registers:       registers,
		Software:        wire.Version{Major: 1},
		Clock:           clock.Now,
		MaxWakeInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create node %d: %v", id, err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Failed to start node %d: %v", id, err)
	}
	t.Cleanup(n.Stop)
	return n
}

// pump spins every node a few times so in-flight datagrams settle.
func pump(nodes ...*node.Node) {
	for i := 0; i < 3; i++ {
		for _, n := range nodes {
			n.SpinOnce()
		}
	}
}

// TestE2E_PubSub tests message delivery between two nodes on a shared bus.
func TestE2E_PubSub(t *testing.T) {
	bus := transport.NewLoopbackBus()
	clock := &fixedClock{now: time.Unix(1700000000, 0)}

	a := startNode(t, bus, clock, 1, "org.example.pub", nil)
	b := startNode(t, bus, clock, 2, "org.example.sub", nil)

	const subject = wire.PortID(100)

	var got []string
	sub, err := b.Presentation().MakeSubscriber(subject, func(tr presentation.Transfer) {
		var text string
		if err := wire.Unmarshal(tr.Payload, &text); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
			return
		}
		got = append(got, text)
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	pub, err := a.Presentation().MakePublisher(subject)
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}
	defer pub.Close()

	for _, msg := range []string{"first", "second", "third"} {
		if err := pub.PublishValue(msg); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	pump(a, b)

	if len(got) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(got))
	}
	if got[0] != "first" || got[1] != "second" || got[2] != "third" {
		t.Errorf("Messages out of order: %v", got)
	}
}

// TestE2E_NodeServices tests GetInfo and register access between nodes.
func TestE2E_NodeServices(t *testing.T) {
	bus := transport.NewLoopbackBus()
	clock := &fixedClock{now: time.Unix(1700000000, 0)}

	registers := register.NewTable()
	if err := registers.Add("motor.gain", register.Float(1.5), true, true); err != nil {
		t.Fatalf("Failed to add register: %v", err)
	}
	if err := registers.Add("motor.model", register.String("m200"), false, false); err != nil {
		t.Fatalf("Failed to add register: %v", err)
	}

	a := startNode(t, bus, clock, 1, "org.example.client", nil)
	b := startNode(t, bus, clock, 2, "org.example.motor", registers)

	// GetInfo round trip.
	infoClient, err := a.Presentation().MakeClient(wire.ServiceGetInfo, 2)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer infoClient.Close()

	var info *wire.NodeInfo
	deadline := clock.Now().Add(time.Second)
	_, err = presentation.CallValue(infoClient, wire.NodeInfoRequest{}, deadline, func(resp *wire.NodeInfo, err error) {
		if err != nil {
			t.Errorf("GetInfo failed: %v", err)
			return
		}
		info = resp
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	pump(b, a)

	if info == nil {
		t.Fatal("No GetInfo response")
	}
	if info.Name != "org.example.motor" {
		t.Errorf("Wrong node name: %q", info.Name)
	}
	if info.Protocol.Major != wire.ProtocolVersion {
		t.Errorf("Wrong protocol version: %d", info.Protocol.Major)
	}

	// Write then read a register remotely.
	regClient, err := a.Presentation().MakeClient(wire.ServiceRegisterAccess, 2)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer regClient.Close()

	var written *wire.RegisterAccessResponse
	req := wire.RegisterAccessRequest{Name: "motor.gain", Value: register.Float(2.25)}
	_, err = presentation.CallValue(regClient, req, deadline, func(resp *wire.RegisterAccessResponse, err error) {
		if err != nil {
			t.Errorf("Register write failed: %v", err)
			return
		}
		written = resp
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	pump(b, a)

	if written == nil {
		t.Fatal("No register access response")
	}
	if written.Value.Float != 2.25 {
		t.Errorf("Write did not apply: %v", written.Value)
	}

	local, err := registers.Get("motor.gain")
	if err != nil {
		t.Fatalf("Failed to read local register: %v", err)
	}
	if local.Value.Float != 2.25 {
		t.Errorf("Server table not updated: %v", local.Value)
	}

	// Immutable registers report the stored value, not the write.
	var refused *wire.RegisterAccessResponse
	req = wire.RegisterAccessRequest{Name: "motor.model", Value: register.String("hacked")}
	_, err = presentation.CallValue(regClient, req, deadline, func(resp *wire.RegisterAccessResponse, err error) {
		if err != nil {
			t.Errorf("Register access failed: %v", err)
			return
		}
		refused = resp
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	pump(b, a)

	if refused == nil {
		t.Fatal("No register access response")
	}
	if refused.Value.String != "m200" {
		t.Errorf("Immutable register changed: %v", refused.Value)
	}
}

// TestE2E_SessionLifecycle tests that closed handles drain through the
// deferred-destruction list and give their arena budget back.
func TestE2E_SessionLifecycle(t *testing.T) {
	bus := transport.NewLoopbackBus()
	clock := &fixedClock{now: time.Unix(1700000000, 0)}
	arena := mem.NewArena(16 << 10)

	n, err := node.New(node.Config{
		NodeID:          5,
		Name:            "org.example.lifecycle",
		Medium:          bus.Endpoint(),
		Resource:        arena,
		Clock:           clock.Now,
		MaxWakeInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Failed to start node: %v", err)
	}

	pres := n.Presentation()
	baseline := pres.SessionCount()

	pub, err := pres.MakePublisher(200)
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}
	sub, err := pres.MakeSubscriber(201, func(presentation.Transfer) {})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if pres.SessionCount() != baseline+2 {
		t.Fatalf("Expected %d sessions, got %d", baseline+2, pres.SessionCount())
	}

	pub.Close()
	sub.Close()
	if pres.PendingDestruction() != 2 {
		t.Fatalf("Expected 2 pending destructions, got %d", pres.PendingDestruction())
	}

	// One spin runs the drain hook.
	result := n.SpinOnce()
	if result.Destroyed != 2 {
		t.Errorf("Expected 2 destructions in spin, got %d", result.Destroyed)
	}
	if pres.SessionCount() != baseline {
		t.Errorf("Sessions leaked: %d", pres.SessionCount())
	}

	n.Stop()
	if used := arena.Stats().Used; used != 0 {
		t.Errorf("Arena budget leaked: %d bytes", used)
	}
}

// TestE2E_HeartbeatUptime tests that heartbeats carry advancing uptime.
func TestE2E_HeartbeatUptime(t *testing.T) {
	bus := transport.NewLoopbackBus()
	clock := &fixedClock{now: time.Unix(1700000000, 0)}

	a := startNode(t, bus, clock, 1, "org.example.beat", nil)
	b := startNode(t, bus, clock, 2, "org.example.listen", nil)

	var beats []wire.Heartbeat
	sub, err := b.Presentation().MakeSubscriber(wire.SubjectHeartbeat, func(tr presentation.Transfer) {
		if tr.Source != 1 {
			return
		}
		var hb wire.Heartbeat
		if err := wire.Unmarshal(tr.Payload, &hb); err != nil {
			t.Errorf("Failed to decode heartbeat: %v", err)
			return
		}
		beats = append(beats, hb)
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		pump(a, b)
	}

	if len(beats) != 3 {
		t.Fatalf("Expected 3 heartbeats, got %d", len(beats))
	}
	for i, hb := range beats {
		if hb.Uptime != uint32(i+1) {
			t.Errorf("Heartbeat %d: uptime %d, want %d", i, hb.Uptime, i+1)
		}
		if hb.Mode != wire.ModeOperational {
			t.Errorf("Heartbeat %d: mode %s", i, hb.Mode)
		}
	}
}
