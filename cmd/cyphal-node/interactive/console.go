// Package interactive provides the interactive command-line interface
// for cyphal-node.
//
// The node core is single-threaded, so the console never touches it from
// the readline goroutine. Readline feeds complete lines into a channel
// and a callback scheduled on the node's executor drains that channel,
// which keeps every command on the spin goroutine.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/node"
	"github.com/niicoooo/libcyphal/pkg/presentation"
	"github.com/niicoooo/libcyphal/pkg/register"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// commandPollInterval is how often the executor checks for typed commands.
const commandPollInterval = 20 * time.Millisecond

// callTimeout bounds every RPC issued from the console.
const callTimeout = 2 * time.Second

// Console handles interactive mode for cyphal-node.
type Console struct {
	node      *node.Node
	registers *register.Table
	arena     *mem.Arena
	rl        *readline.Instance

	lines  chan string
	cancel context.CancelFunc

	// Live handles owned by the console, keyed by subject.
	subs map[wire.PortID]*presentation.Subscriber
	pubs map[wire.PortID]*presentation.Publisher
}

// New creates the console. The arena may be nil when the node runs on a
// caller-supplied resource; the stats command then omits memory figures.
func New(n *node.Node, registers *register.Table, arena *mem.Arena) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cyphal> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		node:      n,
		registers: registers,
		arena:     arena,
		rl:        rl,
		lines:     make(chan string, 8),
		subs:      make(map[wire.PortID]*presentation.Subscriber),
		pubs:      make(map[wire.PortID]*presentation.Publisher),
	}, nil
}

// Stdout returns a writer that coordinates with the readline prompt. Use
// it for log output to avoid clobbering the input line.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Attach schedules the command dispatcher on the node's executor and
// starts the readline goroutine. Call before the node spin loop; cancel
// stops the loop when the user quits.
func (c *Console) Attach(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.node.Executor().ScheduleEvery(commandPollInterval, c.dispatchPending)

	go c.readLoop(ctx)

	c.printHelp()
}

// readLoop runs on its own goroutine and only touches readline and the
// line channel.
func (c *Console) readLoop(ctx context.Context) {
	defer c.rl.Close()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			c.cancel()
			return
		}

		select {
		case c.lines <- line:
		case <-ctx.Done():
			return
		}
	}
}

// dispatchPending runs on the executor and executes every line typed
// since the previous tick.
func (c *Console) dispatchPending(time.Time) {
	for {
		select {
		case line := <-c.lines:
			c.execute(line)
		default:
			return
		}
	}
}

func (c *Console) execute(line string) {
	input := strings.TrimSpace(line)
	if input == "" {
		return
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "pub", "p":
		c.cmdPub(args)

	case "sub", "s":
		c.cmdSub(args)

	case "unsub":
		c.cmdUnsub(args)

	case "info", "i":
		c.cmdInfo(args)

	case "rread", "rr":
		c.cmdRegisterRead(args)

	case "rwrite", "rw":
		c.cmdRegisterWrite(args)

	case "rlist", "rl":
		c.cmdRegisterList(args)

	case "cmd":
		c.cmdExecute(args)

	case "reg":
		c.cmdLocalRegisters(args)

	case "health":
		c.cmdHealth(args)

	case "mode":
		c.cmdMode(args)

	case "vendor":
		c.cmdVendor(args)

	case "status", "stats":
		c.cmdStatus()

	case "quit", "exit", "q":
		fmt.Fprintln(c.rl.Stdout(), "Exiting...")
		c.cancel()

	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Cyphal Node Commands:
  Pub/Sub:
    pub <subject> <text>       - Publish a text message on a subject
    sub <subject>              - Subscribe and print incoming messages
    unsub <subject>            - Drop a subscription

  RPC:
    info <node-id>             - Query a remote node's GetInfo service
    rread <node-id> <name>     - Read a remote register
    rwrite <node-id> <name> <value> - Write a remote register
    rlist <node-id>            - List a remote node's registers
    cmd <node-id> <code> [param] - Send an ExecuteCommand request

  Local State:
    reg                        - List local registers
    reg <name>                 - Show one local register
    reg <name> <value>         - Write a local register
    health <nominal|advisory|caution|warning> - Set reported health
    mode <operational|initialization|maintenance|software-update>
    vendor <code>              - Set vendor-specific status code

  General:
    status                     - Show node and session statistics
    help                       - Show this help
    quit                       - Exit`)
}

// cmdPub handles the pub command. Publishers are created on first use and
// kept so repeated publishes share one session.
func (c *Console) cmdPub(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: pub <subject> <text>")
		return
	}

	subject, err := parsePort(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid subject: %v\n", err)
		return
	}

	pub, ok := c.pubs[subject]
	if !ok {
		pub, err = c.node.Presentation().MakePublisher(subject)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Failed to create publisher: %v\n", err)
			return
		}
		c.pubs[subject] = pub
	}

	text := strings.Join(args[1:], " ")
	if err := pub.PublishValue(text); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Publish failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

// cmdSub handles the sub command.
func (c *Console) cmdSub(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: sub <subject>")
		return
	}

	subject, err := parsePort(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid subject: %v\n", err)
		return
	}
	if _, ok := c.subs[subject]; ok {
		fmt.Fprintf(c.rl.Stdout(), "Already subscribed to %d\n", subject)
		return
	}

	sub, err := c.node.Presentation().MakeSubscriber(subject, func(tr presentation.Transfer) {
		c.printTransfer(subject, tr)
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to subscribe: %v\n", err)
		return
	}

	c.subs[subject] = sub
	fmt.Fprintf(c.rl.Stdout(), "Subscribed to subject %d\n", subject)
}

// cmdUnsub handles the unsub command.
func (c *Console) cmdUnsub(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: unsub <subject>")
		return
	}

	subject, err := parsePort(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid subject: %v\n", err)
		return
	}

	sub, ok := c.subs[subject]
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Not subscribed to %d\n", subject)
		return
	}

	sub.Close()
	delete(c.subs, subject)
	fmt.Fprintf(c.rl.Stdout(), "Unsubscribed from subject %d\n", subject)
}

// printTransfer displays one received message. Text payloads decode as a
// CBOR string; anything else prints as hex.
func (c *Console) printTransfer(subject wire.PortID, tr presentation.Transfer) {
	var text string
	body := fmt.Sprintf("% x", tr.Payload)
	if err := wire.Unmarshal(tr.Payload, &text); err == nil {
		body = text
	}

	fmt.Fprintf(c.rl.Stdout(), "\n[%s] subject %d from node %d: %s\n",
		time.Now().Format("15:04:05"), subject, tr.Source, body)
	c.rl.Refresh()
}

// cmdInfo handles the info command.
func (c *Console) cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: info <node-id>")
		return
	}

	server, err := parseNodeID(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid node ID: %v\n", err)
		return
	}

	client, err := c.node.Presentation().MakeClient(wire.ServiceGetInfo, server)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to create client: %v\n", err)
		return
	}

	deadline := time.Now().Add(callTimeout)
	_, err = presentation.CallValue(client, wire.NodeInfoRequest{}, deadline, func(info *wire.NodeInfo, err error) {
		defer client.Close()
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "GetInfo failed: %v\n", err)
			c.rl.Refresh()
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "\nNode %d:\n", server)
		fmt.Fprintf(c.rl.Stdout(), "  Name:      %s\n", info.Name)
		fmt.Fprintf(c.rl.Stdout(), "  Protocol:  %d.%d\n", info.Protocol.Major, info.Protocol.Minor)
		fmt.Fprintf(c.rl.Stdout(), "  Hardware:  %d.%d\n", info.Hardware.Major, info.Hardware.Minor)
		fmt.Fprintf(c.rl.Stdout(), "  Software:  %d.%d\n", info.Software.Major, info.Software.Minor)
		fmt.Fprintf(c.rl.Stdout(), "  Unique ID: %x\n", info.UniqueID)
		c.rl.Refresh()
	})
	if err != nil {
		client.Close()
		fmt.Fprintf(c.rl.Stdout(), "Call failed: %v\n", err)
	}
}

// cmdRegisterRead handles the rread command.
func (c *Console) cmdRegisterRead(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: rread <node-id> <name>")
		return
	}
	c.accessRemote(args[0], wire.RegisterAccessRequest{Name: args[1]})
}

// cmdRegisterWrite handles the rwrite command.
func (c *Console) cmdRegisterWrite(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: rwrite <node-id> <name> <value>")
		return
	}
	c.accessRemote(args[0], wire.RegisterAccessRequest{
		Name:  args[1],
		Value: parseValue(strings.Join(args[2:], " ")),
	})
}

// accessRemote issues one register access call against a remote node.
func (c *Console) accessRemote(nodeArg string, req wire.RegisterAccessRequest) {
	server, err := parseNodeID(nodeArg)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid node ID: %v\n", err)
		return
	}

	client, err := c.node.Presentation().MakeClient(wire.ServiceRegisterAccess, server)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to create client: %v\n", err)
		return
	}

	name := req.Name
	deadline := time.Now().Add(callTimeout)
	_, err = presentation.CallValue(client, req, deadline, func(resp *wire.RegisterAccessResponse, err error) {
		defer client.Close()
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Register access failed: %v\n", err)
			c.rl.Refresh()
			return
		}
		if resp.Value.IsEmpty() {
			fmt.Fprintf(c.rl.Stdout(), "Register not found: %s\n", name)
			c.rl.Refresh()
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "%s = %s%s\n", name, formatValue(resp.Value), registerFlags(resp.Mutable, resp.Persistent))
		c.rl.Refresh()
	})
	if err != nil {
		client.Close()
		fmt.Fprintf(c.rl.Stdout(), "Call failed: %v\n", err)
	}
}

// cmdRegisterList handles the rlist command. Names come back one index
// per call, so the callback chains the next request until the server
// returns an empty name.
func (c *Console) cmdRegisterList(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: rlist <node-id>")
		return
	}

	server, err := parseNodeID(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid node ID: %v\n", err)
		return
	}

	client, err := c.node.Presentation().MakeClient(wire.ServiceRegisterList, server)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to create client: %v\n", err)
		return
	}

	var next func(index uint16)
	next = func(index uint16) {
		deadline := time.Now().Add(callTimeout)
		req := wire.RegisterListRequest{Index: index}
		_, err := presentation.CallValue(client, req, deadline, func(resp *wire.RegisterListResponse, err error) {
			if err != nil {
				fmt.Fprintf(c.rl.Stdout(), "Register list failed: %v\n", err)
				c.rl.Refresh()
				client.Close()
				return
			}
			if resp.Name == "" {
				if index == 0 {
					fmt.Fprintln(c.rl.Stdout(), "No registers")
				}
				c.rl.Refresh()
				client.Close()
				return
			}
			fmt.Fprintf(c.rl.Stdout(), "  %3d  %s\n", index, resp.Name)
			next(index + 1)
		})
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Call failed: %v\n", err)
			client.Close()
		}
	}
	next(0)
}

// cmdExecute handles the cmd command. The code accepts standard
// mnemonics as well as raw numbers.
func (c *Console) cmdExecute(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: cmd <node-id> <code> [param]")
		return
	}

	server, err := parseNodeID(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid node ID: %v\n", err)
		return
	}

	code, err := parseCommandCode(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid command code: %v\n", err)
		return
	}

	req := wire.ExecuteCommandRequest{Command: code}
	if len(args) > 2 {
		req.Parameter = strings.Join(args[2:], " ")
	}

	client, err := c.node.Presentation().MakeClient(wire.ServiceExecuteCommand, server)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to create client: %v\n", err)
		return
	}

	deadline := time.Now().Add(callTimeout)
	_, err = presentation.CallValue(client, req, deadline, func(resp *wire.ExecuteCommandResponse, err error) {
		defer client.Close()
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "ExecuteCommand failed: %v\n", err)
			c.rl.Refresh()
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "Node %d answered: %s\n", server, resp.Status)
		c.rl.Refresh()
	})
	if err != nil {
		client.Close()
		fmt.Fprintf(c.rl.Stdout(), "Call failed: %v\n", err)
	}
}

func parseCommandCode(s string) (uint16, error) {
	switch strings.ToLower(s) {
	case "restart":
		return wire.CommandRestart, nil
	case "store":
		return wire.CommandStorePersistentStates, nil
	case "emergency-stop":
		return wire.CommandEmergencyStop, nil
	case "factory-reset":
		return wire.CommandFactoryReset, nil
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// cmdLocalRegisters handles the reg command.
func (c *Console) cmdLocalRegisters(args []string) {
	if c.registers == nil {
		fmt.Fprintln(c.rl.Stdout(), "No register table configured")
		return
	}

	switch len(args) {
	case 0:
		if c.registers.Len() == 0 {
			fmt.Fprintln(c.rl.Stdout(), "No registers")
			return
		}
		for _, name := range c.registers.Names() {
			reg, err := c.registers.Get(name)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.rl.Stdout(), "  %-32s %s%s\n", name, formatValue(reg.Value), registerFlags(reg.Mutable, reg.Persistent))
		}

	case 1:
		reg, err := c.registers.Get(args[0])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "%s = %s%s\n", args[0], formatValue(reg.Value), registerFlags(reg.Mutable, reg.Persistent))

	default:
		value := parseValue(strings.Join(args[1:], " "))
		if err := c.registers.Set(args[0], value); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Write failed: %v\n", err)
			return
		}
		fmt.Fprintln(c.rl.Stdout(), "OK")
	}
}

// cmdHealth handles the health command.
func (c *Console) cmdHealth(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: health <nominal|advisory|caution|warning>")
		return
	}

	var health wire.Health
	switch strings.ToLower(args[0]) {
	case "nominal":
		health = wire.HealthNominal
	case "advisory":
		health = wire.HealthAdvisory
	case "caution":
		health = wire.HealthCaution
	case "warning":
		health = wire.HealthWarning
	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown health level: %s\n", args[0])
		return
	}

	c.node.SetHealth(health)
	fmt.Fprintf(c.rl.Stdout(), "Health set to %s\n", health)
}

// cmdMode handles the mode command.
func (c *Console) cmdMode(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: mode <operational|initialization|maintenance|software-update>")
		return
	}

	var mode wire.Mode
	switch strings.ToLower(args[0]) {
	case "operational", "op":
		mode = wire.ModeOperational
	case "initialization", "init":
		mode = wire.ModeInitialization
	case "maintenance", "maint":
		mode = wire.ModeMaintenance
	case "software-update", "update":
		mode = wire.ModeSoftwareUpdate
	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown mode: %s\n", args[0])
		return
	}

	c.node.SetMode(mode)
	fmt.Fprintf(c.rl.Stdout(), "Mode set to %s\n", mode)
}

// cmdVendor handles the vendor command.
func (c *Console) cmdVendor(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: vendor <code>")
		return
	}

	code, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid code: %v\n", err)
		return
	}

	c.node.SetVendorStatus(uint32(code))
	fmt.Fprintf(c.rl.Stdout(), "Vendor status set to %d\n", code)
}

// cmdStatus shows node and session statistics.
func (c *Console) cmdStatus() {
	info := c.node.Info()
	pres := c.node.Presentation()

	fmt.Fprintln(c.rl.Stdout(), "\nNode Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Node ID:   %d\n", pres.NodeID())
	fmt.Fprintf(c.rl.Stdout(), "  Name:      %s\n", info.Name)
	fmt.Fprintf(c.rl.Stdout(), "  Uptime:    %ds\n", c.node.Uptime())
	fmt.Fprintf(c.rl.Stdout(), "  Sessions:  %d live, %d pending destruction\n",
		pres.SessionCount(), pres.PendingDestruction())

	if c.arena != nil {
		stats := c.arena.Stats()
		fmt.Fprintf(c.rl.Stdout(), "  Arena:     %d/%d bytes used (peak %d)\n",
			stats.Used, stats.Capacity, stats.Peak)
	}

	if len(c.subs) > 0 {
		subjects := make([]string, 0, len(c.subs))
		for subject, sub := range c.subs {
			subjects = append(subjects, fmt.Sprintf("%d(%d msgs)", subject, sub.Received()))
		}
		fmt.Fprintf(c.rl.Stdout(), "  Subs:      %s\n", strings.Join(subjects, ", "))
	}
	fmt.Fprintln(c.rl.Stdout())
}

// Teardown closes every handle the console still holds. Runs on the
// executor goroutine after the spin loop stops.
func (c *Console) Teardown() {
	for subject, sub := range c.subs {
		sub.Close()
		delete(c.subs, subject)
	}
	for subject, pub := range c.pubs {
		pub.Close()
		delete(c.pubs, subject)
	}
}

func parsePort(s string) (wire.PortID, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return wire.PortID(v), nil
}

func parseNodeID(s string) (wire.NodeID, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	id := wire.NodeID(v)
	if !id.IsSet() {
		return 0, fmt.Errorf("node ID %d is reserved", v)
	}
	return id, nil
}

// parseValue interprets a command argument as a register value: int,
// then float, then bool, falling back to a string.
func parseValue(s string) wire.RegisterValue {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return register.Int(v)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return register.Float(v)
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return register.Bool(v)
	}
	return register.String(strings.Trim(s, "\"'"))
}

func formatValue(v wire.RegisterValue) string {
	switch v.Kind {
	case wire.ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case wire.ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case wire.ValueBool:
		return strconv.FormatBool(v.Bool)
	case wire.ValueString:
		return fmt.Sprintf("%q", v.String)
	case wire.ValueIntList:
		parts := make([]string, len(v.IntList))
		for i, n := range v.IntList {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case wire.ValueFloatList:
		parts := make([]string, len(v.FloatList))
		for i, f := range v.FloatList {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "(empty)"
	}
}

func registerFlags(mutable, persistent bool) string {
	switch {
	case mutable && persistent:
		return "  [mutable, persistent]"
	case mutable:
		return "  [mutable]"
	case persistent:
		return "  [persistent]"
	default:
		return ""
	}
}
