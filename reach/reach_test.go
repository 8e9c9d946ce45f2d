package reach

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/lukeod/gonettopo/datamodel"
)

func listen(t *testing.T) (string, int, func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, port, func() { l.Close() }
}

func TestProbeTCP(t *testing.T) {
	host, port, stop := listen(t)
	defer stop()

	t.Run("open port", func(t *testing.T) {
		if !ProbeTCP(host, port, time.Second) {
			t.Error("probe of listening port should succeed")
		}
	})

	t.Run("closed port", func(t *testing.T) {
		// The listener's port after close is almost certainly free again.
		h, p, stopClosed := listen(t)
		stopClosed()
		if ProbeTCP(h, p, 500*time.Millisecond) {
			t.Error("probe of closed port should fail")
		}
	})
}

func TestCheck(t *testing.T) {
	host, port, stop := listen(t)
	defer stop()

	t.Run("reachable literal", func(t *testing.T) {
		res := Check(host, port, time.Second, datamodel.DNSSettings{})
		if !res.Reachable {
			t.Error("expected reachable")
		}
		if res.ResolvedIP != "" {
			t.Errorf("literal address should not trigger resolution, got %q", res.ResolvedIP)
		}
	})

	t.Run("unreachable literal does not resolve", func(t *testing.T) {
		h, p, stopClosed := listen(t)
		stopClosed()
		res := Check(h, p, 500*time.Millisecond, datamodel.DNSSettings{})
		if res.Reachable {
			t.Error("expected unreachable")
		}
		if res.ResolvedIP != "" {
			t.Errorf("literal address must not fall back to DNS, got %q", res.ResolvedIP)
		}
	})

	t.Run("hostname falls back to resolution", func(t *testing.T) {
		// localhost resolves everywhere; the closed port forces the fallback.
		h, p, stopClosed := listen(t)
		stopClosed()
		_ = h
		res := Check("localhost", p, 500*time.Millisecond, datamodel.DNSSettings{TimeoutSeconds: 2})
		if res.Reachable {
			t.Error("expected unreachable")
		}
		if res.ResolvedIP == "" {
			t.Error("hostname should have resolved to an address")
		}
	})
}

func TestResolve(t *testing.T) {
	ip, err := Resolve("localhost", datamodel.DNSSettings{TimeoutSeconds: 2})
	if err != nil {
		t.Fatalf("Resolve(localhost): %v", err)
	}
	if net.ParseIP(ip) == nil || net.ParseIP(ip).To4() == nil {
		t.Errorf("Resolve returned %q, want an IPv4 literal", ip)
	}
}
