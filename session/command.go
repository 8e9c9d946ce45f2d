package session

import (
	"strings"
	"time"

	"github.com/lukeod/gonettopo/datamodel"
)

// Run writes the command to the shell and waits for it to complete.
// Completion is detected by re-checking the output buffer on every
// data-arrival event AND on a short poll interval, because some devices do
// not emit a distinguishable end-of-output marker in one piece. The command
// has completed when the buffer tail is the previously detected prompt
// (exact or trailing-whitespace-tolerant); when the timeout expires, a
// generic "ends with #/>/$" heuristic gets one last say before the command
// is declared timed out.
func (c *Client) Run(command string) (string, error) {
	c.mu.Lock()
	if c.state != StateShellReady {
		state := c.state
		c.mu.Unlock()
		return "", &datamodel.ConnectionError{Host: c.cfg.Host, Err: errWrongState("run", state)}
	}
	c.state = StateCommandInFlight
	mark := c.buf.Len()
	prompt := c.prompt
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.state == StateCommandInFlight {
			c.state = StateShellReady
		}
		c.mu.Unlock()
	}()

	c.drainEvents()
	if err := c.writeLine(command); err != nil {
		return "", &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
	}
	c.log.Debug("Command sent", "command", command)

	deadline := time.NewTimer(c.cfg.CommandTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.dataCh:
		case <-ticker.C:
		case <-deadline.C:
			out := c.bufferSince(mark)
			if genericPromptTail(out) {
				// The device finished but its prompt drifted from the one
				// detected at login (mode change, renamed host).
				return extractCommandOutput(out, command, prompt), nil
			}
			c.log.Debug("Command timed out", "command", command, "timeout", c.cfg.CommandTimeout)
			return extractCommandOutput(out, command, prompt),
				&datamodel.CommandTimeoutError{Command: command, Timeout: c.cfg.CommandTimeout}
		}

		out := c.bufferSince(mark)
		if promptTerminated(out, prompt) {
			return extractCommandOutput(out, command, prompt), nil
		}
	}
}

// promptTerminated reports whether the output tail is the detected prompt.
func promptTerminated(out, prompt string) bool {
	if prompt == "" {
		return genericPromptTail(out)
	}
	last := lastNonBlankLine(out)
	if last == "" {
		return false
	}
	if last == prompt || strings.TrimRight(last, " \t") == prompt {
		return true
	}
	return strings.HasSuffix(last, prompt)
}

// genericPromptTail is the timeout fallback: any line ending in a common
// prompt terminator counts.
func genericPromptTail(out string) bool {
	last := lastNonBlankLine(out)
	if last == "" {
		return false
	}
	return strings.HasSuffix(last, "#") || strings.HasSuffix(last, ">") || strings.HasSuffix(last, "$")
}

// extractCommandOutput trims the command echo from the front and the prompt
// from the back, leaving only the device's response.
func extractCommandOutput(out, command, prompt string) string {
	lines := strings.Split(out, "\n")

	for len(lines) > 0 {
		last := strings.TrimSpace(lines[len(lines)-1])
		if last == "" || isPromptLine(last, prompt) {
			lines = lines[:len(lines)-1]
			continue
		}
		break
	}

	cmd := strings.TrimSpace(command)
	for len(lines) > 0 {
		first := strings.TrimSpace(lines[0])
		if first == "" || first == cmd || (cmd != "" && strings.HasSuffix(first, cmd)) {
			lines = lines[1:]
			continue
		}
		break
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func isPromptLine(line, prompt string) bool {
	if prompt != "" && (line == prompt || strings.HasSuffix(line, prompt)) {
		return true
	}
	return promptRe.MatchString(line)
}
