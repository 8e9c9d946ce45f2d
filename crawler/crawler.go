// Package crawler implements the breadth-first topology traversal. It owns
// the device arena (every node ever referenced, keyed by a stable internal
// id), walks the frontier hop by hop, and drives the per-device workflow:
// reachability, credential resolution, prompt detection, pagination
// suppression, neighbor discovery, and neighbor materialization.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/lukeod/gonettopo/creds"
	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/logger"
	"github.com/lukeod/gonettopo/output"
	"github.com/lukeod/gonettopo/parser"
	"github.com/lukeod/gonettopo/reach"
	"github.com/lukeod/gonettopo/snmpid"
)

// Crawler holds the traversal state for one run. It is not reusable; build a
// fresh one per crawl.
type Crawler struct {
	cfg         *datamodel.CrawlConfig
	credentials []datamodel.Credential
	registry    *parser.Registry
	writer      *output.Writer
	log         *slog.Logger

	// Dial overrides how authenticated sessions are opened; tests inject
	// fakes here. Nil means real SSH.
	Dial creds.Dialer

	// CheckReach and Probe are the reachability primitives, injectable the
	// same way.
	CheckReach func(host string, port int, timeout time.Duration, dns datamodel.DNSSettings) reach.Result
	Probe      func(host string, port int, timeout time.Duration) bool

	// Progress receives human-facing status lines and raw device output
	// lines as they arrive. Optional.
	Progress func(line string)

	// The arena. Devices are created once, keyed by a stable id, and never
	// deleted; ipIndex maps the current management address of each device to
	// its id so an address re-key is a two-map update, not a copy.
	devices map[int]*datamodel.DiscoveredDevice
	ipIndex map[string]int
	order   []int
	nextID  int

	visitedHostnames map[string]bool
}

// New builds a crawler over the given configuration, credential list,
// template registry, and snapshot writer. A nil writer disables persistence.
func New(cfg *datamodel.CrawlConfig, credentials []datamodel.Credential, registry *parser.Registry, writer *output.Writer) *Crawler {
	return &Crawler{
		cfg:              cfg,
		credentials:      credentials,
		registry:         registry,
		writer:           writer,
		log:              logger.WithModule("crawler"),
		CheckReach:       reach.Check,
		Probe:            reach.ProbeTCP,
		devices:          make(map[int]*datamodel.DiscoveredDevice),
		ipIndex:          make(map[string]int),
		visitedHostnames: make(map[string]bool),
	}
}

// SetLogger replaces the crawler's logger; the credential and session layers
// inherit it. Call before Run.
func (c *Crawler) SetLogger(l *slog.Logger) {
	if l != nil {
		c.log = l
	}
}

// AddSeed registers a starting device at hop zero. The address must be a
// literal IP; the hostname is optional and may be empty.
func (c *Crawler) AddSeed(hostname, ip string) error {
	if ip == "" && net.ParseIP(hostname) != nil {
		hostname, ip = "", hostname
	}
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("seed %q: %q is not a literal IP address", hostname, ip)
	}
	if _, exists := c.ipIndex[ip]; exists {
		c.log.Warn("Duplicate seed ignored", "ip", ip)
		return nil
	}
	dev := c.addDevice(hostname, ip, 0, "")
	c.log.Info("Seed registered", "hostname", dev.Hostname, "ip", ip)
	return nil
}

// Run walks the frontier breadth-first up to the configured hop limit.
// Devices at the final hop are still logged into and identified, but no
// discovery commands are issued on them, so the frontier stops growing.
func (c *Crawler) Run(ctx context.Context) (map[string]*datamodel.DiscoveredDevice, error) {
	if len(c.credentials) == 0 {
		return nil, datamodel.ErrNoCredentials
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("no seed devices registered")
	}

	for hop := 0; hop <= c.cfg.MaxHops; hop++ {
		frontier := c.idsAtHop(hop)
		if len(frontier) == 0 {
			continue
		}
		c.log.Info("Processing hop", "hop", hop, "devices", len(frontier))
		for _, id := range frontier {
			select {
			case <-ctx.Done():
				c.snapshot()
				return c.Devices(), ctx.Err()
			default:
			}
			c.processDevice(ctx, id)
			c.snapshot()
		}
	}

	c.postProcess()
	c.snapshot()
	return c.Devices(), nil
}

// Devices returns the arena keyed by each device's current management address.
func (c *Crawler) Devices() map[string]*datamodel.DiscoveredDevice {
	out := make(map[string]*datamodel.DiscoveredDevice, len(c.order))
	for _, id := range c.order {
		dev := c.devices[id]
		out[dev.IPAddress] = dev
	}
	return out
}

// idsAtHop returns the unprocessed devices sitting at exactly the given hop,
// in the order they were first referenced.
func (c *Crawler) idsAtHop(hop int) []int {
	var ids []int
	for _, id := range c.order {
		dev := c.devices[id]
		if dev.HopCount == hop && !dev.Visited && !dev.Failed {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Crawler) addDevice(hostname, ip string, hop int, parent string) *datamodel.DiscoveredDevice {
	dev := &datamodel.DiscoveredDevice{
		Hostname:           hostname,
		IPAddress:          ip,
		Parent:             parent,
		HopCount:           hop,
		ReachabilityStatus: datamodel.ReachUnknown,
		LocalInterfaces:    make(map[string]datamodel.InterfaceLink),
		FirstSeen:          time.Now().UTC().Format(time.RFC3339),
	}
	id := c.nextID
	c.nextID++
	c.devices[id] = dev
	c.ipIndex[ip] = id
	c.order = append(c.order, id)
	return dev
}

// rekey moves a device to a new management address in a single step: the old
// index entry is removed and the new one installed before anything else can
// observe the device. A collision with an existing device aborts the re-key.
func (c *Crawler) rekey(id int, newIP string) bool {
	dev := c.devices[id]
	if existing, taken := c.ipIndex[newIP]; taken && existing != id {
		c.log.Warn("Re-key collision, keeping original address",
			"old_ip", dev.IPAddress, "new_ip", newIP)
		return false
	}
	delete(c.ipIndex, dev.IPAddress)
	c.ipIndex[newIP] = id
	c.log.Info("Device re-keyed to resolved address", "old_ip", dev.IPAddress, "new_ip", newIP)
	dev.IPAddress = newIP
	return true
}

// processDevice races the device workflow against the whole-device budget.
// The workflow goroutine never touches the arena; it reports back through a
// result value, so a timed-out straggler can be abandoned safely after its
// session is torn down under it.
func (c *Crawler) processDevice(ctx context.Context, id int) {
	dev := c.devices[id]
	budget := time.Duration(c.cfg.Timeouts.DeviceBudgetSeconds) * time.Second

	c.progress(fmt.Sprintf("--- %s (hop %d) ---", dev.IPAddress, dev.HopCount))

	holder := &sessionHolder{}
	resCh := make(chan *visitResult, 1)
	go func() {
		resCh <- c.visit(dev.IPAddress, dev.Hostname, dev.HopCount, holder)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case res := <-resCh:
		c.applyResult(id, res)
	case <-timer.C:
		holder.disconnect()
		derr := &datamodel.DiscoveryTimeoutError{Host: dev.IPAddress, Budget: budget}
		dev.Failed = true
		dev.ErrorMsg = derr.Error()
		dev.LastUpdated = time.Now().UTC().Format(time.RFC3339)
		c.log.Warn("Device budget exceeded", "ip", dev.IPAddress, "budget", budget)
	case <-ctx.Done():
		holder.disconnect()
		dev.Failed = true
		dev.ErrorMsg = ctx.Err().Error()
		dev.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	}
}

// applyResult folds a completed workflow back into the arena. Runs on the
// traversal goroutine only.
func (c *Crawler) applyResult(id int, res *visitResult) {
	dev := c.devices[id]
	dev.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if res.RekeyedIP != "" {
		if !c.rekey(id, res.RekeyedIP) {
			dev.Visited = true
			dev.ErrorMsg = fmt.Sprintf("resolved address %s already belongs to another device", res.RekeyedIP)
			return
		}
		dev.ReachabilityStatus = datamodel.ReachResolved
	}

	switch {
	case res.Unreachable:
		dev.ReachabilityStatus = datamodel.ReachUnreachable
		dev.ErrorMsg = "management port unreachable"
		c.log.Info("Device unreachable", "ip", dev.IPAddress)
		return
	case res.Err != nil:
		dev.Failed = true
		dev.ErrorMsg = res.Err.Error()
		c.log.Warn("Device workflow failed", "ip", dev.IPAddress, "error", res.Err)
		return
	case res.AuthFailed:
		dev.Failed = true
		dev.ErrorMsg = "all credentials rejected"
		c.log.Warn("Authentication exhausted", "ip", dev.IPAddress)
		return
	}

	if dev.ReachabilityStatus != datamodel.ReachResolved {
		dev.ReachabilityStatus = datamodel.ReachReachable
	}
	dev.SuccessfulCredential = res.CredentialUser

	if res.Hostname != "" {
		key := strings.ToLower(res.Hostname)
		if c.visitedHostnames[key] {
			// Same device reached over a second address. Keep the entry but
			// do not walk its neighbors again.
			dev.Visited = true
			dev.Hostname = res.Hostname
			dev.ErrorMsg = fmt.Sprintf("already visited as %s", res.Hostname)
			c.log.Info("Duplicate device skipped", "ip", dev.IPAddress, "hostname", res.Hostname)
			return
		}
		dev.Hostname = res.Hostname
		c.visitedHostnames[key] = true
	}

	dev.Visited = true

	if res.ExcludedSelf {
		dev.ErrorMsg = "hostname matches an exclude pattern"
		c.log.Info("Device excluded by pattern", "ip", dev.IPAddress, "hostname", dev.Hostname)
		return
	}

	c.materializeNeighbors(dev, res.Neighbors)
}

// excluded reports whether a hostname matches any exclude pattern,
// case-insensitively, by substring.
func (c *Crawler) excluded(hostname string) bool {
	if hostname == "" {
		return false
	}
	lower := strings.ToLower(hostname)
	for _, pattern := range c.cfg.ExcludePatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func (c *Crawler) progress(line string) {
	if c.Progress != nil {
		c.Progress(line)
	}
}

func (c *Crawler) snapshot() {
	if c.writer == nil {
		return
	}
	if err := c.writer.WriteSnapshot(c.Devices()); err != nil {
		c.log.Error("Snapshot write failed", "error", err)
	}
}

// postProcess backfills identity onto devices that were referenced but never
// logged into: first from what their visited neighbors reported about them,
// then optionally over SNMP.
func (c *Crawler) postProcess() {
	byIP := c.Devices()
	for _, id := range c.order {
		dev := c.devices[id]
		if !dev.Visited {
			continue
		}
		for _, rec := range dev.Neighbors {
			ip := rec.IP()
			if ip == "" {
				continue
			}
			target, ok := byIP[ip]
			if !ok || target.Visited {
				continue
			}
			if target.Hostname == "" {
				target.Hostname = rec.Hostname()
			}
			if target.Platform == "" {
				target.Platform = rec.Platform()
			}
		}
	}

	if !c.cfg.SNMP.IsEnabled {
		return
	}
	for _, id := range c.order {
		dev := c.devices[id]
		if dev.Visited || dev.ReachabilityStatus == datamodel.ReachUnreachable {
			continue
		}
		ident, err := snmpid.QueryIdentity(dev.IPAddress, c.cfg.SNMP)
		if err != nil {
			c.log.Debug("SNMP identity backfill failed", "ip", dev.IPAddress, "error", err)
			continue
		}
		if dev.Hostname == "" {
			dev.Hostname = ident.Hostname
		}
		if dev.Platform == "" {
			dev.Platform = ident.Description
		}
	}
}
