package session

import (
	"strings"
	"time"

	"github.com/lukeod/gonettopo/datamodel"
)

// Elevate enters privileged mode on devices that land in user EXEC after
// login. It sends "enable", answers the password challenge, and re-detects
// the prompt, which changes its terminator on success. Devices that elevate
// without a challenge are handled too.
func (c *Client) Elevate(enablePassword string) (string, error) {
	c.mu.Lock()
	if c.state != StateShellReady {
		state := c.state
		c.mu.Unlock()
		return "", &datamodel.ConnectionError{Host: c.cfg.Host, Err: errWrongState("elevate", state)}
	}
	mark := c.buf.Len()
	c.mu.Unlock()

	c.drainEvents()
	if err := c.writeLine("enable"); err != nil {
		return "", &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
	}

	deadline := time.NewTimer(c.cfg.PromptTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	answered := false
	for {
		expired := false
		select {
		case <-c.dataCh:
		case <-ticker.C:
		case <-deadline.C:
			expired = true
		}

		out := c.bufferSince(mark)
		if !answered && strings.Contains(strings.ToLower(out), "assword") {
			if err := c.writeLine(enablePassword); err != nil {
				return "", &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
			}
			answered = true
			continue
		}
		if genericPromptTail(out) && (answered || !strings.Contains(strings.ToLower(out), "assword")) {
			break
		}
		if expired {
			break
		}
	}

	c.setPrompt("")
	return c.FindPrompt()
}
