package transport

import (
	"fmt"
	"net"
	"os"
	"time"
)

// Default UDP medium parameters.
const (
	// DefaultUDPGroup is the multicast group all nodes of one network
	// join.
	DefaultUDPGroup = "239.66.1.200"

	// DefaultUDPPort is the UDP port for the group.
	DefaultUDPPort = 9382

	// DefaultUDPMTU leaves headroom for IP/UDP headers within a standard
	// 1500-byte Ethernet frame.
	DefaultUDPMTU = 1408
)

// UDPConfig configures a UDP multicast medium.
type UDPConfig struct {
	// Group is the multicast group address. Default: DefaultUDPGroup.
	Group string

	// Port is the UDP port. Default: DefaultUDPPort.
	Port int

	// Interface optionally names the network interface to bind.
	// Empty selects the system default.
	Interface string

	// MTU is the largest datagram accepted. Default: DefaultUDPMTU.
	MTU int
}

// DefaultUDPConfig returns the default UDP medium configuration.
func DefaultUDPConfig() UDPConfig {
	return UDPConfig{
		Group: DefaultUDPGroup,
		Port:  DefaultUDPPort,
		MTU:   DefaultUDPMTU,
	}
}

// UDPMedium is a datagram medium over UDP multicast. All nodes of one
// network join the same group; subject and service routing happens above
// the medium, in pkg/presentation.
//
// The OS loops multicast sends back to local group members. The medium
// recognizes and drops these echoes of its own datagrams, so Receive only
// yields traffic from other endpoints, matching LoopbackBus. Without this,
// anonymous nodes (no node ID to filter on) would hear their own
// publications.
type UDPMedium struct {
	group    *net.UDPAddr
	recv     *net.UDPConn
	send     *net.UDPConn
	sendPort int
	localIPs map[string]bool
	mtu      int
	closed   bool
}

// NewUDPMedium joins the configured multicast group.
func NewUDPMedium(config UDPConfig) (*UDPMedium, error) {
	if config.Group == "" {
		config.Group = DefaultUDPGroup
	}
	if config.Port == 0 {
		config.Port = DefaultUDPPort
	}
	if config.MTU <= 0 {
		config.MTU = DefaultUDPMTU
	}

	ip := net.ParseIP(config.Group)
	if ip == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("invalid multicast group %q", config.Group)
	}
	group := &net.UDPAddr{IP: ip, Port: config.Port}

	var iface *net.Interface
	if config.Interface != "" {
		var err error
		iface, err = net.InterfaceByName(config.Interface)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", config.Interface, err)
		}
	}

	recv, err := net.ListenMulticastUDP("udp4", iface, group)
	if err != nil {
		return nil, fmt.Errorf("join group %s: %w", group, err)
	}
	if err := recv.SetReadBuffer(1 << 20); err != nil {
		// Best effort; some platforms clamp silently anyway.
		_ = err
	}

	send, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("open send socket: %w", err)
	}

	return &UDPMedium{
		group:    group,
		recv:     recv,
		send:     send,
		sendPort: send.LocalAddr().(*net.UDPAddr).Port,
		localIPs: localInterfaceIPs(),
		mtu:      config.MTU,
	}, nil
}

// localInterfaceIPs collects the host's interface addresses, used to
// recognize multicast echoes of this medium's own datagrams.
func localInterfaceIPs() map[string]bool {
	ips := make(map[string]bool)
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			ips[ipNet.IP.String()] = true
		}
	}
	return ips
}

// isOwnDatagram reports whether src is this medium's own send socket: a
// local interface address with the send socket's port.
func (m *UDPMedium) isOwnDatagram(src *net.UDPAddr) bool {
	return src != nil && src.Port == m.sendPort && m.localIPs[src.IP.String()]
}

// Send transmits one datagram to the multicast group.
func (m *UDPMedium) Send(data []byte) error {
	if m.closed {
		return ErrClosed
	}
	if len(data) > m.mtu {
		return ErrDatagramTooLarge
	}
	_, err := m.send.WriteToUDP(data, m.group)
	return err
}

// Receive waits up to timeout for one datagram from the group.
func (m *UDPMedium) Receive(timeout time.Duration) ([]byte, bool, error) {
	if m.closed {
		return nil, false, ErrClosed
	}
	if err := m.recv.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, false, err
	}

	buf := make([]byte, m.mtu)
	for {
		n, src, err := m.recv.ReadFromUDP(buf)
		if err != nil {
			if os.IsTimeout(err) {
				return nil, false, nil
			}
			if m.closed {
				return nil, false, ErrClosed
			}
			return nil, false, err
		}
		if m.isOwnDatagram(src) {
			continue
		}
		return buf[:n], true, nil
	}
}

// MTU returns the configured MTU.
func (m *UDPMedium) MTU() int {
	return m.mtu
}

// Close leaves the group and releases both sockets.
func (m *UDPMedium) Close() error {
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	err := m.recv.Close()
	if err2 := m.send.Close(); err == nil {
		err = err2
	}
	return err
}
