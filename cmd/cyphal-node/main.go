// Command cyphal-node runs a general-purpose protocol node.
//
// The node joins a UDP multicast group, publishes heartbeats, answers
// GetInfo and register access requests, and optionally exposes an
// interactive console for publishing, subscribing, and calling other
// nodes.
//
// Usage:
//
//	cyphal-node [flags]
//
// Flags:
//
//	-node-id uint       Node ID (1-65534); 0 runs anonymous (default 0)
//	-name string        Node name (default "org.opencyphal.node")
//	-group string       UDP multicast group (default "239.66.1.200")
//	-port int           UDP port (default 9382)
//	-mtu int            Datagram MTU (default 1408)
//	-registers string   Register file path (YAML, loaded and saved)
//	-heartbeat duration Heartbeat period (default 1s)
//	-arena int          Session arena capacity in bytes (default 65536)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-event-log string   Append binary stack events to this file
//	-interactive        Enable the interactive console
//
// Examples:
//
//	# Start node 42 with an interactive console
//	cyphal-node -node-id 42 -name org.example.console -interactive
//
//	# Start a node with persistent registers
//	cyphal-node -node-id 7 -registers /var/lib/cyphal/registers.yaml
//
//	# Run anonymous (listen-only, no services)
//	cyphal-node -log-level debug
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/niicoooo/libcyphal/cmd/cyphal-node/interactive"
	"github.com/niicoooo/libcyphal/pkg/log"
	"github.com/niicoooo/libcyphal/pkg/mem"
	"github.com/niicoooo/libcyphal/pkg/node"
	"github.com/niicoooo/libcyphal/pkg/register"
	"github.com/niicoooo/libcyphal/pkg/transport"
	"github.com/niicoooo/libcyphal/pkg/wire"
)

// Config holds the node configuration.
type Config struct {
	NodeID        uint
	Name          string
	Group         string
	Port          int
	MTU           int
	RegisterFile  string
	Heartbeat     time.Duration
	ArenaCapacity int
	LogLevel      string
	EventLog      string
	Interactive   bool
}

var config Config

func init() {
	flag.UintVar(&config.NodeID, "node-id", 0, "Node ID (1-65534); 0 runs anonymous")
	flag.StringVar(&config.Name, "name", "org.opencyphal.node", "Node name")
	flag.StringVar(&config.Group, "group", transport.DefaultUDPConfig().Group, "UDP multicast group")
	flag.IntVar(&config.Port, "port", transport.DefaultUDPConfig().Port, "UDP port")
	flag.IntVar(&config.MTU, "mtu", transport.DefaultUDPConfig().MTU, "Datagram MTU")
	flag.StringVar(&config.RegisterFile, "registers", "", "Register file path (YAML)")
	flag.DurationVar(&config.Heartbeat, "heartbeat", node.DefaultHeartbeatInterval, "Heartbeat period")
	flag.IntVar(&config.ArenaCapacity, "arena", node.DefaultArenaCapacity, "Session arena capacity in bytes")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.EventLog, "event-log", "", "Append binary stack events to this file")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable the interactive console")
}

func main() {
	flag.Parse()

	slogger := newSlogger(config.LogLevel)
	slogger.Info("cyphal node starting",
		"node_id", config.NodeID,
		"name", config.Name,
		"group", config.Group,
		"port", config.Port)

	logger, eventFile, err := buildLogger(slogger)
	if err != nil {
		slogger.Error("failed to open event log", "error", err)
		os.Exit(1)
	}
	if eventFile != nil {
		defer eventFile.Close()
	}

	registers := defaultRegisters()
	if config.RegisterFile != "" {
		applied, err := registers.LoadFile(config.RegisterFile)
		if err != nil {
			slogger.Error("failed to load registers", "path", config.RegisterFile, "error", err)
			os.Exit(1)
		}
		slogger.Info("registers loaded", "path", config.RegisterFile, "applied", applied)
	}

	udpConfig := transport.DefaultUDPConfig()
	udpConfig.Group = config.Group
	udpConfig.Port = config.Port
	udpConfig.MTU = config.MTU

	medium, err := transport.NewUDPMedium(udpConfig)
	if err != nil {
		slogger.Error("failed to open UDP medium", "error", err)
		os.Exit(1)
	}
	defer medium.Close()

	arena := mem.NewArena(uintptr(config.ArenaCapacity))

	n, err := node.New(node.Config{
		NodeID:            wire.NodeID(config.NodeID),
		Name:              config.Name,
		Medium:            medium,
		Resource:          arena,
		Software:          wire.Version{Major: 1, Minor: 0},
		Registers:         registers,
		RegisterFile:      config.RegisterFile,
		HeartbeatInterval: config.Heartbeat,
		Logger:            logger,
	})
	if err != nil {
		slogger.Error("failed to create node", "error", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		slogger.Error("failed to start node", "error", err)
		os.Exit(1)
	}
	slogger.Info("node started", "node_id", config.NodeID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Forward signals into the context so the spin loop sees them.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var console *interactive.Console
	if config.Interactive {
		console, err = interactive.New(n, registers, arena)
		if err != nil {
			slogger.Error("failed to create console", "error", err)
			os.Exit(1)
		}
		// Route slog output through readline to keep the prompt intact.
		slogger = newSloggerTo(console.Stdout(), config.LogLevel)
		console.Attach(ctx, cancel)
	}

	if err := n.Run(ctx); err != nil && err != context.Canceled {
		slogger.Error("spin loop failed", "error", err)
	}

	slogger.Info("shutting down")
	if console != nil {
		console.Teardown()
	}
	n.Stop()

	if config.RegisterFile != "" {
		if err := registers.SaveFile(config.RegisterFile); err != nil {
			slogger.Error("failed to save registers", "path", config.RegisterFile, "error", err)
		} else {
			slogger.Info("registers saved", "path", config.RegisterFile)
		}
	}
}

// defaultRegisters builds the node's standard register set.
func defaultRegisters() *register.Table {
	t := register.NewTable()
	_ = t.Add("node.description", register.String(""), true, true)
	_ = t.Add("node.heartbeat.vendor_status", register.Int(0), true, false)
	_ = t.Add("udp.group", register.String(config.Group), false, false)
	_ = t.Add("udp.port", register.Int(int64(config.Port)), false, false)
	return t
}

// buildLogger assembles the stack logger: slog always, plus the binary
// event file when configured.
func buildLogger(slogger *slog.Logger) (log.Logger, *os.File, error) {
	adapter := log.NewSlogAdapter(slogger)
	if config.EventLog == "" {
		return adapter, nil, nil
	}

	f, err := os.OpenFile(config.EventLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.NewMultiLogger(adapter, log.NewWriterLogger(f)), f, nil
}

func newSlogger(level string) *slog.Logger {
	return newSloggerTo(os.Stderr, level)
}

func newSloggerTo(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
