package crawler

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/lukeod/gonettopo/creds"
	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/reach"
	"github.com/lukeod/gonettopo/session"
)

// visitResult carries everything a device workflow learned back to the
// traversal goroutine. The workflow writes it, applyResult reads it; nothing
// is shared while the workflow runs.
type visitResult struct {
	RekeyedIP      string
	Unreachable    bool
	AuthFailed     bool
	ExcludedSelf   bool
	Hostname       string
	CredentialUser string
	Neighbors      []datamodel.NeighborRecord
	Err            error
}

// sessionHolder lets the budget watchdog tear down whatever session the
// workflow currently holds, forcing its blocked I/O to error out.
type sessionHolder struct {
	mu     sync.Mutex
	client *session.Client
}

func (h *sessionHolder) set(c *session.Client) {
	h.mu.Lock()
	h.client = c
	h.mu.Unlock()
}

func (h *sessionHolder) disconnect() {
	h.mu.Lock()
	c := h.client
	h.mu.Unlock()
	if c != nil {
		c.Disconnect()
	}
}

// visit runs the whole per-device workflow against target. It must not touch
// the arena: on budget expiry the traversal abandons it mid-flight.
func (c *Crawler) visit(target, hostname string, hop int, holder *sessionHolder) *visitResult {
	res := &visitResult{}
	t := c.cfg.Timeouts
	budget := time.Duration(t.DeviceBudgetSeconds) * time.Second
	probeTimeout := time.Duration(float64(budget) * t.SocketFraction)
	port := c.credentials[0].Port
	if port == 0 {
		port = 22
	}

	check := c.CheckReach(target, port, probeTimeout, c.cfg.DNS)
	if !check.Reachable {
		// A dead learned address with a known hostname gets one DNS shot:
		// the device may have been readdressed since its neighbor cached it.
		resolved := check.ResolvedIP
		if resolved == "" && hostname != "" {
			if r, err := reach.Resolve(hostname, c.cfg.DNS); err == nil && r != target {
				resolved = r
			}
		}
		if resolved == "" || !c.Probe(resolved, port, probeTimeout) {
			res.Unreachable = true
			return res
		}
		res.RekeyedIP = resolved
		target = resolved
	}

	if c.cfg.ICMP.IsEnabled && !reach.Ping(target, c.cfg.ICMP) {
		c.log.Debug("No ICMP echo, continuing anyway", "ip", target)
	}

	resolver := &creds.Resolver{
		Credentials:        c.credentials,
		Budget:             budget,
		SocketFraction:     t.SocketFraction,
		CredentialFraction: t.CredentialFraction,
		DNS:                c.cfg.DNS,
		Dial:               c.Dial,
		Log:                c.log,
		CommandTimeout:     time.Duration(t.CommandSeconds) * time.Second,
		PollInterval:       time.Duration(t.PollIntervalMS) * time.Millisecond,
		PromptAttempts:     t.PromptAttempts,
		PromptTimeout:      time.Duration(t.PromptSeconds) * time.Second,
		OnLine:             c.Progress,
	}

	attempt, err := resolver.TryCredentials(target)
	if err != nil {
		res.Err = err
		return res
	}
	if attempt == nil {
		res.AuthFailed = true
		return res
	}
	client := attempt.Client
	holder.set(client)
	defer client.Disconnect()
	res.CredentialUser = attempt.Credential.Username

	if client.State() == session.StateConnected {
		if err := client.CreateShell(); err != nil {
			res.Err = err
			return res
		}
	}

	prompt, err := client.FindPrompt()
	if err != nil {
		res.Err = err
		return res
	}
	if strings.HasSuffix(prompt, ">") && attempt.Credential.EnablePassword != "" {
		elevated, err := client.Elevate(attempt.Credential.EnablePassword)
		if err != nil {
			c.log.Debug("Privilege elevation failed, staying in user EXEC", "ip", target, "error", err)
		} else {
			prompt = elevated
		}
	}
	res.Hostname = session.HostnameFromPrompt(prompt)
	c.progress("prompt: " + prompt)

	if c.excluded(res.Hostname) {
		res.ExcludedSelf = true
		return res
	}

	delay := time.Duration(t.InterCommandDelayMS) * time.Millisecond

	// Every pagination candidate is tried; wrong-vendor commands just error
	// on the device and are ignored.
	for _, cmd := range c.cfg.PaginationCommands {
		if _, err := client.Run(cmd); err != nil {
			c.log.Debug("Pagination command failed", "command", cmd, "error", err)
		}
		time.Sleep(delay)
	}

	// Devices at the hop limit are identified but not asked for neighbors.
	if hop >= c.cfg.MaxHops {
		return res
	}

	for _, cmd := range c.cfg.DiscoveryCommands {
		out, err := client.Run(cmd)
		if err != nil {
			var cte *datamodel.CommandTimeoutError
			if errors.As(err, &cte) {
				c.log.Warn("Discovery command timed out", "ip", target, "command", cmd)
				continue
			}
			res.Err = err
			return res
		}
		records := c.registry.Parse(out)
		c.log.Debug("Discovery command parsed", "command", cmd, "records", len(records))
		res.Neighbors = append(res.Neighbors, records...)
		time.Sleep(delay)
	}
	return res
}
