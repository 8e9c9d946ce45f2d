// Package testutils provides shared helpers for tests: temp fixture files,
// canned device output, a fake structured-template engine, and scripted
// devices that speak the interactive shell protocol over in-memory pipes.
package testutils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lukeod/gonettopo/creds"
	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/session"
)

// TempFile writes content into a file under t.TempDir and returns its path.
func TempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp file %s: %v", name, err)
	}
	return path
}

// SampleCDPOutput is a two-neighbor CDP detail response in IOS format.
const SampleCDPOutput = `-------------------------
Device ID: dist-sw1.example.net
Entry address(es):
  IP address: 10.10.0.2
Platform: cisco WS-C3850-24T,  Capabilities: Switch IGMP
Interface: GigabitEthernet0/1,  Port ID (outgoing port): GigabitEthernet1/0/24
Holdtime : 155 sec

-------------------------
Device ID: edge-rtr1.example.net
Entry address(es):
  IP address: 10.10.0.3
Platform: cisco ISR4331/K9,  Capabilities: Router
Interface: GigabitEthernet0/2,  Port ID (outgoing port): GigabitEthernet0/0/1
Holdtime : 142 sec
`

// SampleLLDPOutput is a single-neighbor LLDP detail response.
const SampleLLDPOutput = `------------------------------------------------
Local Intf: Gi0/3
Chassis id: 00aa.bb11.cc22
Port id: Gi1/0/1
Port Description: uplink
System Name: access-sw2.example.net

Management Addresses:
    IP: 10.10.0.4
`

// FakeEngine is a canned parser.Engine: it returns the rows registered for a
// template pattern and ignores the text.
type FakeEngine struct {
	Records map[string][]map[string]string
	Err     error
}

func (e *FakeEngine) Match(template, text string) ([]map[string]string, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Records[template], nil
}

// ScriptedDevice emulates one network device behind the shell protocol. It
// echoes each command, answers from Outputs, and re-presents its prompt, the
// way a real PTY shell would.
type ScriptedDevice struct {
	Prompt     string
	Outputs    map[string]string
	AcceptUser string // When set, only this username authenticates

	mu       sync.Mutex
	commands []string
	dials    int
}

// Commands returns every non-empty line the device has received.
func (d *ScriptedDevice) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

// Dials returns how many sessions were opened against the device.
func (d *ScriptedDevice) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *ScriptedDevice) serve(in io.Reader, out io.WriteCloser) {
	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			out.Close()
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		if cmd == "" {
			fmt.Fprintf(out, "\r\n%s", d.Prompt)
			continue
		}
		d.mu.Lock()
		d.commands = append(d.commands, cmd)
		d.mu.Unlock()

		body, ok := d.Outputs[cmd]
		if !ok {
			body = "% Invalid input detected at '^' marker."
		}
		fmt.Fprintf(out, "%s\r\n%s\r\n%s", cmd, body, d.Prompt)
	}
}

// DialerFor returns a creds.Dialer that connects to scripted devices by
// address instead of opening real SSH sessions.
func DialerFor(devices map[string]*ScriptedDevice) creds.Dialer {
	return func(host string, cred datamodel.Credential, timeout time.Duration) (*session.Client, error) {
		dev, ok := devices[host]
		if !ok {
			return nil, fmt.Errorf("no scripted device at %s", host)
		}
		if dev.AcceptUser != "" && cred.Username != dev.AcceptUser {
			return nil, fmt.Errorf("authentication failed for %s", cred.Username)
		}
		dev.mu.Lock()
		dev.dials++
		dev.mu.Unlock()

		client := session.NewClient(session.Config{
			Host:           host,
			CommandTimeout: 2 * time.Second,
			PollInterval:   10 * time.Millisecond,
			PromptAttempts: 3,
			PromptTimeout:  500 * time.Millisecond,
		})
		inR, inW := io.Pipe()
		outR, outW := io.Pipe()
		client.AttachTransport(inW, outR)
		go dev.serve(inR, outW)
		return client, nil
	}
}
