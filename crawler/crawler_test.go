package crawler

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/output"
	"github.com/lukeod/gonettopo/parser"
	"github.com/lukeod/gonettopo/reach"
	"github.com/lukeod/gonettopo/session"
	"github.com/lukeod/gonettopo/testutils"
)

// Loopback addresses refuse connections instantly, so the advisory TCP
// probes inside the workflow cost nothing.
const (
	ipCore = "127.0.10.1"
	ipEdge = "127.0.10.2"
	ipAP   = "127.0.10.3"
)

const cdpFromCore = `-------------------------
Device ID: edge-sw2
Entry address(es):
  IP address: ` + ipEdge + `
Platform: cisco WS-C2960X-24,  Capabilities: Switch
Interface: GigabitEthernet0/1,  Port ID (outgoing port): Gi0/2
Holdtime : 155 sec
`

const cdpWithAP = cdpFromCore + `
-------------------------
Device ID: lab-ap-floor2
Entry address(es):
  IP address: ` + ipAP + `
Platform: cisco AIR-AP3802I,  Capabilities: Trans-Bridge
Interface: GigabitEthernet0/5,  Port ID (outgoing port): Gi0
Holdtime : 120 sec
`

const cdpBackToCore = `-------------------------
Device ID: core-sw1
Entry address(es):
  IP address: ` + ipCore + `
Platform: cisco WS-C3850-24T,  Capabilities: Switch
Interface: GigabitEthernet0/2,  Port ID (outgoing port): Gi0/1
Holdtime : 151 sec
`

func testConfig(maxHops int) *datamodel.CrawlConfig {
	return &datamodel.CrawlConfig{
		MaxHops:            maxHops,
		DiscoveryCommands:  []string{"show cdp neighbors detail", "show lldp neighbors detail"},
		PaginationCommands: []string{"terminal length 0"},
		Timeouts: datamodel.TimeoutSettings{
			DeviceBudgetSeconds: 10,
			SocketFraction:      0.25,
			CredentialFraction:  0.33,
			CommandSeconds:      2,
			PollIntervalMS:      10,
			PromptAttempts:      3,
			PromptSeconds:       1,
			InterCommandDelayMS: 1,
		},
	}
}

func testCredentials() []datamodel.Credential {
	return []datamodel.Credential{{Username: "admin", Password: "secret", Port: 22, Priority: 1}}
}

func testRegistry() *parser.Registry {
	r := parser.NewRegistry(parser.NewTextFSMEngine())
	r.RegisterBuiltinFallbacks()
	return r
}

func alwaysReachable(string, int, time.Duration, datamodel.DNSSettings) reach.Result {
	return reach.Result{Reachable: true}
}

func newTestCrawler(cfg *datamodel.CrawlConfig, devices map[string]*testutils.ScriptedDevice, w *output.Writer) *Crawler {
	c := New(cfg, testCredentials(), testRegistry(), w)
	c.Dial = testutils.DialerFor(devices)
	c.CheckReach = alwaysReachable
	return c
}

func TestTwoDeviceCrawl(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "topology.json")
	graphPath := filepath.Join(dir, "graph.json")

	fakes := map[string]*testutils.ScriptedDevice{
		ipCore: {
			Prompt:  "core-sw1#",
			Outputs: map[string]string{"show cdp neighbors detail": cdpFromCore},
		},
		ipEdge: {Prompt: "edge-sw2#"},
	}

	c := newTestCrawler(testConfig(1), fakes, output.NewWriter(devicePath, graphPath))
	if err := c.AddSeed("core-sw1", ipCore); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}

	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}

	core := devices[ipCore]
	if core == nil || !core.Visited || core.Failed {
		t.Fatalf("core device state = %+v", core)
	}
	if core.HopCount != 0 || core.Hostname != "core-sw1" {
		t.Errorf("core = hop %d hostname %q", core.HopCount, core.Hostname)
	}
	if core.SuccessfulCredential != "admin" {
		t.Errorf("SuccessfulCredential = %q", core.SuccessfulCredential)
	}
	if len(core.Neighbors) != 1 {
		t.Errorf("core neighbors = %d, want 1", len(core.Neighbors))
	}

	edge := devices[ipEdge]
	if edge == nil || !edge.Visited {
		t.Fatalf("edge device state = %+v", edge)
	}
	if edge.HopCount != 1 || edge.Parent != ipCore {
		t.Errorf("edge = hop %d parent %q", edge.HopCount, edge.Parent)
	}
	if edge.Hostname != "edge-sw2" {
		t.Errorf("edge hostname = %q", edge.Hostname)
	}
	if edge.Platform != "cisco WS-C2960X-24" {
		t.Errorf("edge platform = %q", edge.Platform)
	}

	// Both ends of the link, under normalized names.
	link, ok := core.LocalInterfaces["GigabitEthernet0/1"]
	if !ok || link.ConnectedTo != ipEdge || link.RemoteInterface != "GigabitEthernet0/2" {
		t.Errorf("core link = %+v (present=%v)", link, ok)
	}
	back, ok := edge.LocalInterfaces["GigabitEthernet0/2"]
	if !ok || back.ConnectedTo != ipCore || back.RemoteInterface != "GigabitEthernet0/1" {
		t.Errorf("edge link = %+v (present=%v)", back, ok)
	}

	// The edge device sits at the hop limit: identified, never interrogated.
	for _, cmd := range fakes[ipEdge].Commands() {
		if strings.Contains(cmd, "show cdp") || strings.Contains(cmd, "show lldp") {
			t.Errorf("discovery command %q issued at the hop limit", cmd)
		}
	}

	// Snapshots landed on disk.
	if _, err := os.Stat(devicePath); err != nil {
		t.Errorf("device table not written: %v", err)
	}
	if _, err := os.Stat(graphPath); err != nil {
		t.Errorf("graph not written: %v", err)
	}
}

func TestNoRevisit(t *testing.T) {
	fakes := map[string]*testutils.ScriptedDevice{
		ipCore: {
			Prompt:  "core-sw1#",
			Outputs: map[string]string{"show cdp neighbors detail": cdpFromCore},
		},
		ipEdge: {
			Prompt:  "edge-sw2#",
			Outputs: map[string]string{"show cdp neighbors detail": cdpBackToCore},
		},
	}

	c := newTestCrawler(testConfig(2), fakes, nil)
	if err := c.AddSeed("", ipCore); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := fakes[ipCore].Dials(); got != 1 {
		t.Errorf("core dialed %d times, want 1", got)
	}
	if got := fakes[ipEdge].Dials(); got != 1 {
		t.Errorf("edge dialed %d times, want 1", got)
	}
	if len(devices) != 2 {
		t.Errorf("devices = %d, want 2", len(devices))
	}
	// The back-reference still recorded the adjacency on both ends.
	if devices[ipCore].HopCount != 0 || devices[ipEdge].HopCount != 1 {
		t.Errorf("hop counts = %d/%d, want 0/1",
			devices[ipCore].HopCount, devices[ipEdge].HopCount)
	}
}

func TestMaxHopsZero(t *testing.T) {
	fakes := map[string]*testutils.ScriptedDevice{
		ipCore: {
			Prompt:  "core-sw1#",
			Outputs: map[string]string{"show cdp neighbors detail": cdpFromCore},
		},
	}

	c := newTestCrawler(testConfig(0), fakes, nil)
	if err := c.AddSeed("", ipCore); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(devices) != 1 {
		t.Fatalf("devices = %d, want seed only", len(devices))
	}
	if !devices[ipCore].Visited {
		t.Error("seed should still be logged into and identified")
	}
	for _, cmd := range fakes[ipCore].Commands() {
		if strings.Contains(cmd, "neighbors") {
			t.Errorf("discovery command %q issued with zero hop budget", cmd)
		}
	}
}

func TestExcludePatterns(t *testing.T) {
	cfg := testConfig(1)
	cfg.ExcludePatterns = []string{"LAB-AP"}

	fakes := map[string]*testutils.ScriptedDevice{
		ipCore: {
			Prompt:  "core-sw1#",
			Outputs: map[string]string{"show cdp neighbors detail": cdpWithAP},
		},
		ipEdge: {Prompt: "edge-sw2#"},
	}

	c := newTestCrawler(cfg, fakes, nil)
	if err := c.AddSeed("", ipCore); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, exists := devices[ipAP]; exists {
		t.Error("excluded neighbor materialized anyway")
	}
	if len(devices) != 2 {
		t.Errorf("devices = %d, want 2", len(devices))
	}
	if len(devices[ipCore].Neighbors) != 1 {
		t.Errorf("neighbors = %d, want only the non-excluded one", len(devices[ipCore].Neighbors))
	}
}

func TestRekeyOnResolvedAddress(t *testing.T) {
	const deadIP = "127.0.10.40"
	const liveIP = "127.0.10.41"

	fakes := map[string]*testutils.ScriptedDevice{
		liveIP: {Prompt: "core-sw9#"},
	}

	c := newTestCrawler(testConfig(0), fakes, nil)
	c.CheckReach = func(host string, _ int, _ time.Duration, _ datamodel.DNSSettings) reach.Result {
		if host == deadIP {
			return reach.Result{Reachable: false, ResolvedIP: liveIP}
		}
		return reach.Result{Reachable: true}
	}
	c.Probe = func(string, int, time.Duration) bool { return true }

	if err := c.AddSeed("core-sw9", deadIP); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, stale := devices[deadIP]; stale {
		t.Error("dead address still keys the device after re-key")
	}
	dev := devices[liveIP]
	if dev == nil {
		t.Fatal("device not re-keyed to the resolved address")
	}
	if dev.IPAddress != liveIP {
		t.Errorf("IPAddress = %q, want %q", dev.IPAddress, liveIP)
	}
	if dev.ReachabilityStatus != datamodel.ReachResolved {
		t.Errorf("ReachabilityStatus = %q, want %q", dev.ReachabilityStatus, datamodel.ReachResolved)
	}
	if !dev.Visited {
		t.Error("re-keyed device should have been visited")
	}
}

func TestDeviceBudgetWatchdog(t *testing.T) {
	const ipHung = "127.0.10.50"

	fakes := map[string]*testutils.ScriptedDevice{
		ipEdge: {Prompt: "edge-sw2#"},
	}
	scripted := testutils.DialerFor(fakes)

	cfg := testConfig(0)
	cfg.Timeouts.DeviceBudgetSeconds = 1
	// Prompt detection on its own would outlast the budget many times over.
	cfg.Timeouts.PromptAttempts = 30
	cfg.Timeouts.PromptSeconds = 1

	c := New(cfg, testCredentials(), testRegistry(), nil)
	c.CheckReach = alwaysReachable

	tornDown := make(chan struct{})
	c.Dial = func(host string, cred datamodel.Credential, timeout time.Duration) (*session.Client, error) {
		if host != ipHung {
			return scripted(host, cred, timeout)
		}
		client := session.NewClient(session.Config{
			Host:           host,
			CommandTimeout: 2 * time.Second,
			PollInterval:   10 * time.Millisecond,
			PromptAttempts: 30,
			PromptTimeout:  time.Second,
		})
		inR, inW := io.Pipe()
		outR, outW := io.Pipe()
		t.Cleanup(func() { outW.Close() })
		client.AttachTransport(inW, outR)
		// Swallow every write and answer nothing; EOF arrives only when the
		// watchdog tears the session down under the stuck workflow.
		go func() {
			io.Copy(io.Discard, inR)
			close(tornDown)
		}()
		return client, nil
	}

	if err := c.AddSeed("", ipHung); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	if err := c.AddSeed("", ipEdge); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}

	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	hung := devices[ipHung]
	if !hung.Failed {
		t.Error("hung device not marked failed")
	}
	if hung.Visited {
		t.Error("hung device should not count as visited")
	}
	if !strings.Contains(hung.ErrorMsg, "device budget") {
		t.Errorf("ErrorMsg = %q, want the budget timeout recorded", hung.ErrorMsg)
	}

	select {
	case <-tornDown:
	case <-time.After(2 * time.Second):
		t.Error("watchdog never disconnected the hung session")
	}

	edge := devices[ipEdge]
	if edge == nil || !edge.Visited {
		t.Errorf("crawl did not continue past the hung device: %+v", edge)
	}
}

func TestUnreachableDevice(t *testing.T) {
	fakes := map[string]*testutils.ScriptedDevice{}
	c := newTestCrawler(testConfig(0), fakes, nil)
	c.CheckReach = func(string, int, time.Duration, datamodel.DNSSettings) reach.Result {
		return reach.Result{Reachable: false}
	}

	if err := c.AddSeed("", ipCore); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	dev := devices[ipCore]
	if dev.Visited || dev.Failed {
		t.Errorf("unreachable device state = visited=%v failed=%v", dev.Visited, dev.Failed)
	}
	if dev.ReachabilityStatus != datamodel.ReachUnreachable {
		t.Errorf("ReachabilityStatus = %q", dev.ReachabilityStatus)
	}
}

func TestAuthenticationExhausted(t *testing.T) {
	fakes := map[string]*testutils.ScriptedDevice{
		ipCore: {Prompt: "core-sw1#", AcceptUser: "someone-else"},
	}

	c := newTestCrawler(testConfig(1), fakes, nil)
	if err := c.AddSeed("", ipCore); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	dev := devices[ipCore]
	if !dev.Failed {
		t.Error("device should be marked failed after credential exhaustion")
	}
	if dev.SuccessfulCredential != "" {
		t.Errorf("SuccessfulCredential = %q, want empty", dev.SuccessfulCredential)
	}
	if !strings.Contains(dev.ErrorMsg, "credentials") {
		t.Errorf("ErrorMsg = %q", dev.ErrorMsg)
	}
}

func TestRunWithoutCredentials(t *testing.T) {
	c := New(testConfig(1), nil, testRegistry(), nil)
	if err := c.AddSeed("", ipCore); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	if _, err := c.Run(context.Background()); !errors.Is(err, datamodel.ErrNoCredentials) {
		t.Fatalf("error = %v, want ErrNoCredentials", err)
	}
}

func TestAddSeed(t *testing.T) {
	c := New(testConfig(1), testCredentials(), testRegistry(), nil)

	t.Run("bare IP in hostname position", func(t *testing.T) {
		if err := c.AddSeed(ipCore, ""); err != nil {
			t.Fatalf("AddSeed: %v", err)
		}
		if _, ok := c.ipIndex[ipCore]; !ok {
			t.Error("seed not registered under its address")
		}
	})

	t.Run("duplicate is ignored", func(t *testing.T) {
		before := len(c.order)
		if err := c.AddSeed("again", ipCore); err != nil {
			t.Fatalf("AddSeed: %v", err)
		}
		if len(c.order) != before {
			t.Error("duplicate seed created a second device")
		}
	})

	t.Run("non-literal address is rejected", func(t *testing.T) {
		if err := c.AddSeed("sw1", "not-an-ip"); err == nil {
			t.Fatal("expected an error for a non-literal address")
		}
	})
}

func TestNeighborBackfill(t *testing.T) {
	cfg := testConfig(1)
	fakes := map[string]*testutils.ScriptedDevice{
		ipCore: {
			Prompt:  "core-sw1#",
			Outputs: map[string]string{"show cdp neighbors detail": cdpFromCore},
		},
		// The edge device authenticates nobody, so it stays unvisited and
		// must be identified from what the core reported about it.
		ipEdge: {Prompt: "edge-sw2#", AcceptUser: "someone-else"},
	}

	c := newTestCrawler(cfg, fakes, nil)
	if err := c.AddSeed("", ipCore); err != nil {
		t.Fatalf("AddSeed: %v", err)
	}
	devices, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	edge := devices[ipEdge]
	if edge.Visited {
		t.Fatal("edge should not have been visited")
	}
	if edge.Hostname != "edge-sw2" {
		t.Errorf("backfilled hostname = %q", edge.Hostname)
	}
	if edge.Platform != "cisco WS-C2960X-24" {
		t.Errorf("backfilled platform = %q", edge.Platform)
	}
}
