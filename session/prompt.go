package session

import (
	"regexp"
	"strings"
	"time"

	"github.com/lukeod/gonettopo/datamodel"
)

// promptRe matches the common prompt shapes devices present once the login
// banner settles: "hostname#", "hostname>", "user@host$", "hostname(config)#",
// plus bracketed Huawei/H3C variants.
var promptRe = regexp.MustCompile(`^[\w<(\[][\w.()\[\]<>@:/~-]{0,62}[#>$]$`)

// FindPrompt infers the shell prompt. The protocol never advertises it, so
// the client first matches the prompt shapes against whatever has already
// arrived, then nudges the device with empty lines, racing pattern matching
// against a per-attempt timeout.
func (c *Client) FindPrompt() (string, error) {
	c.mu.Lock()
	if c.state != StateShellReady {
		state := c.state
		c.mu.Unlock()
		return "", &datamodel.ConnectionError{Host: c.cfg.Host, Err: errWrongState("findPrompt", state)}
	}
	c.mu.Unlock()

	if p := c.scanPrompt(); p != "" {
		c.setPrompt(p)
		return p, nil
	}

	for attempt := 1; attempt <= c.cfg.PromptAttempts; attempt++ {
		c.drainEvents()
		if err := c.writeLine(""); err != nil {
			return "", &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
		}

		deadline := time.NewTimer(c.cfg.PromptTimeout)
		ticker := time.NewTicker(c.cfg.PollInterval)
		found := ""
		for found == "" {
			expired := false
			select {
			case <-c.dataCh:
			case <-ticker.C:
			case <-deadline.C:
				expired = true
			}
			found = c.scanPrompt()
			if expired {
				break
			}
		}
		ticker.Stop()
		deadline.Stop()

		if found != "" {
			c.setPrompt(found)
			c.log.Debug("Prompt detected", "prompt", found, "attempt", attempt)
			return found, nil
		}
		c.log.Debug("Prompt not yet visible", "attempt", attempt)
	}

	return "", &datamodel.PromptDetectionError{Host: c.cfg.Host, Attempts: c.cfg.PromptAttempts}
}

// scanPrompt checks whether the last settled line of the session buffer
// looks like a prompt.
func (c *Client) scanPrompt() string {
	last := lastNonBlankLine(c.Buffer())
	if last != "" && promptRe.MatchString(last) {
		return last
	}
	return ""
}

func (c *Client) setPrompt(p string) {
	c.mu.Lock()
	c.prompt = p
	c.mu.Unlock()
}

func lastNonBlankLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// HostnameFromPrompt strips the mode suffix and decorations from a detected
// prompt: "core-sw1(config)#" yields "core-sw1", "<HUAWEI>" yields "HUAWEI".
func HostnameFromPrompt(prompt string) string {
	p := strings.TrimSpace(prompt)
	p = strings.TrimRight(p, "#>$ ")
	if i := strings.Index(p, "("); i > 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "<>[]")
	if i := strings.Index(p, "@"); i >= 0 {
		p = p[i+1:]
	}
	return p
}

// StripArtifacts normalizes line endings and removes terminal escape
// sequences and control characters. Raw device output is terminal-oriented,
// with pager backspaces, ANSI color, and carriage-return redraws, and those
// artifacts corrupt prompt and pattern matching if left in place.
func StripArtifacts(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	out := make([]byte, 0, len(s))
	skipCSI := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if skipCSI {
			// CSI sequences end with an alphabetic final byte.
			if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') {
				skipCSI = false
			}
			continue
		}
		if ch == 0x1b {
			skipCSI = true
			continue
		}
		if ch < 0x20 && ch != '\n' && ch != '\t' {
			continue
		}
		out = append(out, ch)
	}
	return string(out)
}

type errWrongStateT struct {
	op    string
	state State
}

func (e errWrongStateT) Error() string {
	return e.op + " called in state " + e.state.String()
}

func errWrongState(op string, s State) error { return errWrongStateT{op: op, state: s} }
