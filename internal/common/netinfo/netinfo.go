package netinfo

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Addresses are the URLs the debug API can be reached on.
type Addresses struct {
	Local string
	LAN   string
	Notes []string
}

// DebugAddresses lists where an HTTP listener on bindHost:port is reachable.
func DebugAddresses(bindHost string, port int) Addresses {
	addrs := Addresses{Local: fmt.Sprintf("http://127.0.0.1:%d", port)}

	if !isAllInterfaces(bindHost) {
		addrs.Notes = append(addrs.Notes, fmt.Sprintf("Listening on %s only.", bindHost))
		addrs.Local = fmt.Sprintf("http://%s", net.JoinHostPort(bindHost, fmt.Sprint(port)))
		return addrs
	}

	lan, err := outboundIPv4()
	if err != nil {
		lan, err = firstPrivateIPv4()
	}
	if err != nil {
		addrs.Notes = append(addrs.Notes, "No LAN address found; the debug API is reachable from this host only.")
		return addrs
	}
	addrs.LAN = fmt.Sprintf("http://%s:%d", lan, port)
	return addrs
}

func isAllInterfaces(h string) bool {
	h = strings.TrimSpace(strings.ToLower(h))
	return h == "" || h == "0.0.0.0" || h == "::" || h == "[::]"
}

// outboundIPv4 asks the kernel which source address it would route through.
// No packet is sent for a UDP dial.
func outboundIPv4() (string, error) {
	conn, err := net.Dial("udp4", "1.1.1.1:80")
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || udpAddr.IP == nil {
		return "", errors.New("no local UDP addr")
	}
	ip, ok := netip.AddrFromSlice(udpAddr.IP.To4())
	if !ok || !ip.IsPrivate() {
		return "", errors.New("outbound address is not private")
	}
	return ip.String(), nil
}

func firstPrivateIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			prefix, err := netip.ParsePrefix(a.String())
			if err != nil {
				continue
			}
			if ip := prefix.Addr(); ip.Is4() && ip.IsPrivate() {
				return ip.String(), nil
			}
		}
	}
	return "", errors.New("no private IPv4 found")
}
