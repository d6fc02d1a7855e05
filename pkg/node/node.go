package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/niicoooo/libcyphal/pkg/executor"
	"github.com/niicoooo/libcyphal/pkg/log"
	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/presentation"
	"github.com/niicoooo/libcyphal/pkg/register"
	"github.com/niicoooo/libcyphal/pkg/transport"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// Default node parameters.
const (
	// DefaultHeartbeatInterval is the standard heartbeat period.
	DefaultHeartbeatInterval = time.Second

	// DefaultExpireSweepInterval is the cadence of the RPC deadline
	// sweep.
	DefaultExpireSweepInterval = 25 * time.Millisecond

	// DefaultArenaCapacity bounds session memory when the caller does
	// not supply an arena.
	DefaultArenaCapacity = 64 << 10
)

// ErrAlreadyStarted is returned by Start on a started node.
var ErrAlreadyStarted = errors.New("node already started")

// Config configures a Node.
type Config struct {
	// NodeID is the node's network identity. Zero or wire.NodeIDUnset
	// makes the node anonymous (no RPC, no heartbeat identity).
	NodeID wire.NodeID

	// Name is the reversed-DNS node name, e.g. "org.example.evse".
	// Required.
	Name string

	// Medium carries the node's transfers. Required.
	Medium transport.Medium

	// Resource is the session arena. Nil creates a private arena of
	// DefaultArenaCapacity bytes.
	Resource mem.Resource

	// UniqueID identifies the physical node forever. Zero generates a
	// random one.
	UniqueID [16]byte

	// Hardware and Software are the reported revisions.
	Hardware wire.Version
	Software wire.Version

	// Registers is the node's register table. Nil disables the register
	// services.
	Registers *register.Table

	// RegisterFile is where CommandStorePersistentStates saves Registers.
	// Empty refuses the command with CommandStatusBadState.
	RegisterFile string

	// CommandHandler runs ExecuteCommand requests the node does not
	// handle itself. Nil answers CommandStatusBadCommand.
	CommandHandler func(wire.ExecuteCommandRequest) wire.CommandStatus

	// HeartbeatInterval overrides the heartbeat period. Zero means
	// DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// MaxWakeInterval bounds the executor's I/O poll.
	MaxWakeInterval time.Duration

	// Logger receives stack events. Nil disables logging.
	Logger log.Logger

	// Clock overrides the time source. Nil means time.Now.
	Clock func() time.Time
}

// Node is one protocol node: arena, presentation, executor, and the
// standard services. Not safe for concurrent use; everything runs on the
// goroutine calling Run or SpinOnce.
type Node struct {
	config Config
	pres   *presentation.Presentation
	exec   *executor.Executor
	logger log.Logger
	now    func() time.Time

	started   bool
	startTime time.Time
	health    wire.Health
	mode      wire.Mode
	vendor    uint32

	heartbeatPub *presentation.Publisher
	heartbeatID  executor.CallbackID
	expireID     executor.CallbackID
	servers      []*presentation.Server
}

// New creates a node. The node owns its presentation layer and executor;
// Start brings up the standard services.
func New(config Config) (*Node, error) {
	if config.Name == "" {
		return nil, errors.New("node: Name is required")
	}
	if config.Medium == nil {
		return nil, errors.New("node: Medium is required")
	}
	if config.Resource == nil {
		config.Resource = mem.NewArena(DefaultArenaCapacity)
	}
	if config.NodeID == 0 {
		config.NodeID = wire.NodeIDUnset
	}
	if config.UniqueID == ([16]byte{}) {
		config.UniqueID = [16]byte(uuid.New())
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	logger := log.OrNoop(config.Logger)
	pres, err := presentation.New(presentation.Config{
		Resource: config.Resource,
		Medium:   config.Medium,
		NodeID:   config.NodeID,
		Logger:   logger,
		Clock:    config.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	exec := executor.New(executor.Config{
		MaxWakeInterval: config.MaxWakeInterval,
		Clock:           config.Clock,
		Logger:          logger,
	})

	n := &Node{
		config: config,
		pres:   pres,
		exec:   exec,
		logger: logger,
		now:    config.Clock,
		mode:   wire.ModeInitialization,
	}

	// The executor step: user callbacks, then deferred destructions,
	// then the bounded medium poll.
	exec.AddDrainHook(pres.FlushUnreferenced)
	exec.SetPoll(n.poll)
	return n, nil
}

// Presentation exposes the session layer for application sessions.
func (n *Node) Presentation() *presentation.Presentation {
	return n.pres
}

// Executor exposes the cooperative executor for application callbacks.
func (n *Node) Executor() *executor.Executor {
	return n.exec
}

// Info returns the node identity served on the GetInfo port.
func (n *Node) Info() wire.NodeInfo {
	return wire.NodeInfo{
		Protocol: wire.Version{Major: wire.ProtocolVersion},
		Hardware: n.config.Hardware,
		Software: n.config.Software,
		UniqueID: n.config.UniqueID,
		Name:     n.config.Name,
	}
}

// SetHealth sets the health level reported in subsequent heartbeats.
func (n *Node) SetHealth(health wire.Health) {
	n.health = health
}

// SetMode sets the operating mode reported in subsequent heartbeats.
func (n *Node) SetMode(mode wire.Mode) {
	n.mode = mode
}

// SetVendorStatus sets the vendor-specific heartbeat status code.
func (n *Node) SetVendorStatus(code uint32) {
	n.vendor = code
}

// Uptime returns whole seconds since Start.
func (n *Node) Uptime() uint32 {
	if !n.started {
		return 0
	}
	return uint32(n.now().Sub(n.startTime) / time.Second)
}

// Start brings up the heartbeat and the standard services.
func (n *Node) Start() error {
	if n.started {
		return ErrAlreadyStarted
	}

	// Anonymous nodes stay silent: no heartbeat, no services.
	if n.config.NodeID.IsSet() {
		heartbeatPub, err := n.pres.MakePublisher(wire.SubjectHeartbeat)
		if err != nil {
			return fmt.Errorf("start heartbeat: %w", err)
		}
		n.heartbeatPub = heartbeatPub

		if err := n.startServices(); err != nil {
			n.teardown()
			return err
		}
	}

	n.started = true
	n.startTime = n.now()
	n.mode = wire.ModeOperational

	if n.heartbeatPub != nil {
		n.heartbeatID = n.exec.ScheduleEvery(n.config.HeartbeatInterval, n.publishHeartbeat)
	}
	n.expireID = n.exec.ScheduleEvery(DefaultExpireSweepInterval, func(time.Time) {
		n.pres.ExpirePending()
	})

	n.logger.Log(log.Event{
		Timestamp: n.now(),
		Layer:     log.LayerApplication,
		Category:  log.CategorySessionCreated,
		NodeID:    uint16(n.config.NodeID),
		Detail:    "node started: " + n.config.Name,
	})
	return nil
}

// startServices registers the GetInfo, ExecuteCommand, and register servers.
func (n *Node) startServices() error {
	infoSrv, err := n.pres.MakeServer(wire.ServiceGetInfo, func(presentation.Request) ([]byte, error) {
		return wire.Marshal(n.Info())
	})
	if err != nil {
		return fmt.Errorf("start GetInfo server: %w", err)
	}
	n.servers = append(n.servers, infoSrv)

	cmdSrv, err := n.pres.MakeServer(wire.ServiceExecuteCommand, func(req presentation.Request) ([]byte, error) {
		var cmd wire.ExecuteCommandRequest
		if err := wire.Unmarshal(req.Payload, &cmd); err != nil {
			return nil, fmt.Errorf("malformed command request: %w", err)
		}
		return wire.Marshal(wire.ExecuteCommandResponse{Status: n.executeCommand(cmd)})
	})
	if err != nil {
		return fmt.Errorf("start ExecuteCommand server: %w", err)
	}
	n.servers = append(n.servers, cmdSrv)

	if n.config.Registers == nil {
		return nil
	}

	accessSrv, err := n.pres.MakeServer(wire.ServiceRegisterAccess, func(req presentation.Request) ([]byte, error) {
		var access wire.RegisterAccessRequest
		if err := wire.Unmarshal(req.Payload, &access); err != nil {
			return nil, fmt.Errorf("malformed register access request: %w", err)
		}
		return wire.Marshal(n.config.Registers.Access(access))
	})
	if err != nil {
		return fmt.Errorf("start register access server: %w", err)
	}
	n.servers = append(n.servers, accessSrv)

	listSrv, err := n.pres.MakeServer(wire.ServiceRegisterList, func(req presentation.Request) ([]byte, error) {
		var list wire.RegisterListRequest
		if err := wire.Unmarshal(req.Payload, &list); err != nil {
			return nil, fmt.Errorf("malformed register list request: %w", err)
		}
		return wire.Marshal(n.config.Registers.List(list))
	})
	if err != nil {
		return fmt.Errorf("start register list server: %w", err)
	}
	n.servers = append(n.servers, listSrv)
	return nil
}

// executeCommand runs one ExecuteCommand request: the store-registers
// command is handled here, everything else goes to the configured handler.
func (n *Node) executeCommand(req wire.ExecuteCommandRequest) wire.CommandStatus {
	switch req.Command {
	case wire.CommandStorePersistentStates:
		if n.config.Registers == nil || n.config.RegisterFile == "" {
			return wire.CommandStatusBadState
		}
		if err := n.config.Registers.SaveFile(n.config.RegisterFile); err != nil {
			n.logger.Log(log.Event{
				Timestamp: n.now(),
				Layer:     log.LayerApplication,
				Category:  log.CategoryError,
				NodeID:    uint16(n.config.NodeID),
				Port:      uint16(wire.ServiceExecuteCommand),
				Error:     err.Error(),
			})
			return wire.CommandStatusInternalError
		}
		return wire.CommandStatusSuccess
	default:
		if n.config.CommandHandler != nil {
			return n.config.CommandHandler(req)
		}
		return wire.CommandStatusBadCommand
	}
}

// publishHeartbeat is the periodic heartbeat callback.
func (n *Node) publishHeartbeat(time.Time) {
	hb := wire.Heartbeat{
		Uptime:       n.Uptime(),
		Health:       n.health,
		Mode:         n.mode,
		VendorStatus: n.vendor,
	}
	if err := n.heartbeatPub.PublishValue(hb); err != nil {
		n.logger.Log(log.Event{
			Timestamp: n.now(),
			Layer:     log.LayerApplication,
			Category:  log.CategoryError,
			NodeID:    uint16(n.config.NodeID),
			Port:      uint16(wire.SubjectHeartbeat),
			Error:     err.Error(),
		})
	}
}

// poll is the executor's bounded I/O wait: block up to timeout for the
// first datagram, then drain whatever else is already queued.
func (n *Node) poll(timeout time.Duration) {
	for {
		data, ok, err := n.config.Medium.Receive(timeout)
		if err != nil {
			n.logger.Log(log.Event{
				Timestamp: n.now(),
				Layer:     log.LayerTransport,
				Category:  log.CategoryError,
				NodeID:    uint16(n.config.NodeID),
				Error:     err.Error(),
			})
			return
		}
		if !ok {
			return
		}
		// Malformed datagrams are logged inside ProcessReceived.
		_ = n.pres.ProcessReceived(data)
		timeout = 0
	}
}

// SpinOnce runs one executor step. Exposed for applications that interleave
// the node with their own loop.
func (n *Node) SpinOnce() executor.SpinResult {
	return n.exec.SpinOnce()
}

// Run starts the node if needed and spins until ctx is done, then stops.
func (n *Node) Run(ctx context.Context) error {
	if !n.started {
		if err := n.Start(); err != nil {
			return err
		}
	}
	err := n.exec.Spin(ctx)
	n.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop cancels the periodic callbacks, closes the standard sessions and
// destroys them. Application sessions are the application's to close.
func (n *Node) Stop() {
	if !n.started {
		return
	}
	n.exec.Cancel(n.heartbeatID)
	n.exec.Cancel(n.expireID)
	n.teardown()
	n.pres.FlushUnreferenced()
	n.started = false

	n.logger.Log(log.Event{
		Timestamp: n.now(),
		Layer:     log.LayerApplication,
		Category:  log.CategorySessionDestroyed,
		NodeID:    uint16(n.config.NodeID),
		Detail:    "node stopped: " + n.config.Name,
	})
}

// teardown closes the standard session handles.
func (n *Node) teardown() {
	if n.heartbeatPub != nil {
		n.heartbeatPub.Close()
		n.heartbeatPub = nil
	}
	for _, srv := range n.servers {
		srv.Close()
	}
	n.servers = nil
}
