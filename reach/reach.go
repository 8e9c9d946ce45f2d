// Package reach decides whether a host is worth attempting: a raw
// transport-layer connect, an optional ICMP fast pre-check, and DNS fallback
// resolution for devices whose learned address is dead but whose hostname
// still resolves somewhere reachable.
package reach

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/logger"
)

// Result is the outcome of a reachability check.
type Result struct {
	Reachable  bool
	ResolvedIP string // Set when the host resolved to an address not yet probed
}

// ProbeTCP attempts a raw TCP connect to host:port within the timeout.
func ProbeTCP(host string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		logger.Debug("TCP probe failed", "addr", addr, "error", err)
		return false
	}
	conn.Close()
	return true
}

// Ping sends a single ICMP echo request as a cheap pre-check. A negative
// answer is advisory only; plenty of devices drop ICMP but accept SSH.
func Ping(host string, settings datamodel.ICMPSettings) bool {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		logger.Debug("Pinger setup failed", "host", host, "error", err)
		return false
	}
	pinger.Count = 1
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pinger.Timeout = timeout
	pinger.SetPrivileged(settings.Privileged)

	if err := pinger.Run(); err != nil {
		logger.Debug("Ping execution failed", "host", host, "error", err)
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

// Resolve looks up the first IPv4 address of a hostname, optionally through
// explicit DNS servers ("8.8.8.8:53").
func Resolve(host string, settings datamodel.DNSSettings) (string, error) {
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	resolver := net.DefaultResolver
	if len(settings.Servers) > 0 {
		server := settings.Servers[0]
		if !strings.Contains(server, ":") {
			server = net.JoinHostPort(server, "53")
		}
		resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: timeout}
				return d.DialContext(ctx, "udp", server)
			},
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", host, err)
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a, nil
		}
	}
	return "", fmt.Errorf("no IPv4 address for %s", host)
}

// Check probes transport-layer reachability of host:port. If the connect
// fails and host is not a literal address, the hostname is resolved and the
// resolved address is reported without being probed — the caller decides
// whether to retry against it.
func Check(host string, port int, timeout time.Duration, dns datamodel.DNSSettings) Result {
	if ProbeTCP(host, port, timeout) {
		return Result{Reachable: true}
	}
	if net.ParseIP(host) != nil {
		return Result{Reachable: false}
	}
	resolved, err := Resolve(host, dns)
	if err != nil {
		logger.Debug("Fallback resolution failed", "host", host, "error", err)
		return Result{Reachable: false}
	}
	return Result{Reachable: false, ResolvedIP: resolved}
}
