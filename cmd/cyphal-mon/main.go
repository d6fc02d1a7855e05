// Command cyphal-mon watches heartbeat traffic on a UDP multicast group
// and prints a live table of every node it hears.
//
// The monitor runs anonymously: it subscribes to the heartbeat subject
// but never publishes or answers requests.
//
// Usage:
//
//	cyphal-mon [flags]
//
// Flags:
//
//	-group string       UDP multicast group (default "239.66.1.200")
//	-port int           UDP port (default 9382)
//	-interval duration  Expected heartbeat period (default 1s)
//	-refresh duration   Table refresh period (default 2s)
//	-log-level string   Log level: debug, info, warn, error (default "warn")
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/niicoooo/libcyphal/pkg/log"
	"github.com/niicoooo/libcyphal/pkg/node"
	"github.com/niicoooo/libcyphal/pkg/transport"
)

var (
	group    = flag.String("group", transport.DefaultUDPConfig().Group, "UDP multicast group")
	port     = flag.Int("port", transport.DefaultUDPConfig().Port, "UDP port")
	interval = flag.Duration("interval", node.DefaultHeartbeatInterval, "Expected heartbeat period")
	refresh  = flag.Duration("refresh", 2*time.Second, "Table refresh period")
	logLevel = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	slogger := newSlogger(*logLevel)

	udpConfig := transport.DefaultUDPConfig()
	udpConfig.Group = *group
	udpConfig.Port = *port

	medium, err := transport.NewUDPMedium(udpConfig)
	if err != nil {
		slogger.Error("failed to open UDP medium", "error", err)
		os.Exit(1)
	}
	defer medium.Close()

	n, err := node.New(node.Config{
		Name:   "org.opencyphal.mon",
		Medium: medium,
		Logger: log.NewSlogAdapter(slogger),
	})
	if err != nil {
		slogger.Error("failed to create node", "error", err)
		os.Exit(1)
	}

	monitor, err := node.NewMonitor(n.Presentation(), *interval, nil)
	if err != nil {
		slogger.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	n.Executor().ScheduleEvery(*refresh, func(time.Time) {
		printPeers(monitor)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Printf("Listening on %s:%d (heartbeat period %s)\n", *group, *port, *interval)

	if err := n.Run(ctx); err != nil && err != context.Canceled {
		slogger.Error("spin loop failed", "error", err)
	}

	monitor.Close()
	n.Stop()
}

// printPeers renders the peer table.
func printPeers(monitor *node.Monitor) {
	peers := monitor.Peers()
	if len(peers) == 0 {
		fmt.Printf("[%s] no nodes heard yet\n", time.Now().Format("15:04:05"))
		return
	}

	fmt.Printf("\n[%s] %d node(s):\n", time.Now().Format("15:04:05"), len(peers))
	fmt.Printf("%-8s %-10s %-10s %-16s %-8s %s\n",
		"NODE", "UPTIME", "HEALTH", "MODE", "VENDOR", "STATUS")
	for _, p := range peers {
		status := "online"
		if !p.Online {
			status = fmt.Sprintf("offline (last seen %s)", p.LastSeen.Format("15:04:05"))
		}
		fmt.Printf("%-8d %-10s %-10s %-16s %-8d %s\n",
			p.NodeID,
			(time.Duration(p.Heartbeat.Uptime) * time.Second).String(),
			p.Heartbeat.Health,
			p.Heartbeat.Mode,
			p.Heartbeat.VendorStatus,
			status)
	}
}

func newSlogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
