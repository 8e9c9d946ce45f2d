// Package session implements the interactive remote-shell protocol client.
// It owns one authenticated SSH connection per device and turns the raw,
// unframed byte stream of a PTY shell into command/response semantics:
// prompt auto-detection, command echo handling, and completion detection by
// racing data-arrival events against a periodic buffer re-check.
package session

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/logger"
)

// State is the connection lifecycle phase. No transition skips Connected
// on the way to ShellReady.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateShellReady
	StateCommandInFlight
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateShellReady:
		return "SHELL_READY"
	case StateCommandInFlight:
		return "COMMAND_IN_FLIGHT"
	default:
		return "DISCONNECTED"
	}
}

// AlgorithmSet records the algorithm ordering offered during negotiation,
// kept for diagnostics after a successful connect.
type AlgorithmSet struct {
	KeyExchanges []string
	Ciphers      []string
	MACs         []string
	HostKeys     []string
}

// Wide, explicitly ordered algorithm offer: strong algorithms first, legacy
// algorithms retained at the end so decade-old device firmware can still
// negotiate a shared suite. Only names implemented by x/crypto/ssh appear.
var defaultAlgorithms = AlgorithmSet{
	KeyExchanges: []string{
		"curve25519-sha256",
		"curve25519-sha256@libssh.org",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group-exchange-sha256",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group-exchange-sha1",
		"diffie-hellman-group1-sha1",
	},
	Ciphers: []string{
		"aes128-gcm@openssh.com",
		"aes256-gcm@openssh.com",
		"chacha20-poly1305@openssh.com",
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
		"aes128-cbc",
		"3des-cbc",
	},
	MACs: []string{
		"hmac-sha2-256-etm@openssh.com",
		"hmac-sha2-512-etm@openssh.com",
		"hmac-sha2-256",
		"hmac-sha2-512",
		"hmac-sha1",
		"hmac-sha1-96",
	},
	HostKeys: []string{
		"ssh-ed25519",
		"ecdsa-sha2-nistp256",
		"ecdsa-sha2-nistp384",
		"ecdsa-sha2-nistp521",
		"rsa-sha2-512",
		"rsa-sha2-256",
		"ssh-rsa",
	},
}

// Config carries everything one session needs. Zero timeouts fall back to
// the package defaults in NewClient.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	KeyMaterial   string // PEM private key; takes precedence over Password
	KeyPassphrase string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	PollInterval   time.Duration
	PromptAttempts int
	PromptTimeout  time.Duration

	// OnLine is invoked once per completed output line, for human-facing
	// logging. It runs on the session's reader goroutine.
	OnLine func(line string)

	Log *slog.Logger
}

// Client manages one authenticated interactive remote-shell connection.
type Client struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	state   State
	client  *ssh.Client
	shell   *ssh.Session
	stdin   io.WriteCloser
	buf     bytes.Buffer // full-session capture, for pattern search
	lineRem string       // partial line awaiting its terminator
	prompt  string
	algos   AlgorithmSet

	// dataCh carries data-arrival wakeups to whichever single command or
	// prompt wait is in scope; it is drained when that scope ends.
	dataCh  chan struct{}
	readers sync.WaitGroup
}

// NewClient builds a client; it does not touch the network.
func NewClient(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.PromptAttempts <= 0 {
		cfg.PromptAttempts = 3
	}
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = 5 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = logger.WithModule("session")
	}
	return &Client{
		cfg:    cfg,
		log:    log.With("host", cfg.Host),
		state:  StateDisconnected,
		dataCh: make(chan struct{}, 1),
	}
}

// State reports the current lifecycle phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Prompt returns the detected prompt, empty until FindPrompt succeeds.
func (c *Client) Prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt
}

// Algorithms returns the algorithm ordering offered on the last Connect.
func (c *Client) Algorithms() AlgorithmSet {
	return c.algos
}

// Connect establishes the SSH transport and authenticates. Both plain
// password and challenge/response (keyboard-interactive) authentication are
// offered; the interactive method answers every server prompt with the same
// secret, which is what network devices expect.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("connect called in state %s", c.state)
	}
	c.mu.Unlock()

	auth, err := c.authMethods()
	if err != nil {
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
	}

	sshConfig := &ssh.ClientConfig{
		User:              c.cfg.Username,
		Auth:              auth,
		HostKeyCallback:   ssh.InsecureIgnoreHostKey(),
		HostKeyAlgorithms: defaultAlgorithms.HostKeys,
		Timeout:           c.cfg.ConnectTimeout,
		Config: ssh.Config{
			KeyExchanges: defaultAlgorithms.KeyExchanges,
			Ciphers:      defaultAlgorithms.Ciphers,
			MACs:         defaultAlgorithms.MACs,
		},
	}

	address := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.Dial("tcp", address)
	if err != nil {
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
	}
	// Negotiation and auth must not hang past the connect budget either.
	_ = conn.SetDeadline(time.Now().Add(c.cfg.ConnectTimeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if err != nil {
		conn.Close()
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
	}
	_ = conn.SetDeadline(time.Time{})

	c.mu.Lock()
	c.client = ssh.NewClient(sshConn, chans, reqs)
	c.algos = defaultAlgorithms
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Debug("SSH transport established", "address", address, "user", c.cfg.Username,
		"kex_offer", strings.Join(c.algos.KeyExchanges, ","),
		"cipher_offer", strings.Join(c.algos.Ciphers, ","),
		"mac_offer", strings.Join(c.algos.MACs, ","))
	return nil
}

// authMethods builds the ordered authentication offer from the credential.
func (c *Client) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if c.cfg.KeyMaterial != "" {
		var signer ssh.Signer
		var err error
		if c.cfg.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(c.cfg.KeyMaterial), []byte(c.cfg.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(c.cfg.KeyMaterial))
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if c.cfg.Password != "" {
		password := c.cfg.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("credential has neither password nor key material")
	}
	return methods, nil
}

// CreateShell allocates a PTY-backed shell channel and starts the output
// readers. Incoming bytes feed both the full-session buffer (substring
// search for completion detection) and the line-reassembly buffer (the
// OnLine callback).
func (c *Client) CreateShell() error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return fmt.Errorf("createShell called in state %s", c.state)
	}
	client := c.client
	c.mu.Unlock()

	shell, err := client.NewSession()
	if err != nil {
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: fmt.Errorf("opening shell channel: %w", err)}
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	var ptyErr error
	for _, term := range []string{"vt100", "xterm", "ansi", "dumb"} {
		if ptyErr = shell.RequestPty(term, 80, 24, modes); ptyErr == nil {
			break
		}
	}
	if ptyErr != nil {
		shell.Close()
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: fmt.Errorf("requesting pty: %w", ptyErr)}
	}

	stdin, err := shell.StdinPipe()
	if err != nil {
		shell.Close()
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
	}
	stdout, err := shell.StdoutPipe()
	if err != nil {
		shell.Close()
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
	}
	stderr, err := shell.StderrPipe()
	if err != nil {
		shell.Close()
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: err}
	}
	if err := shell.Shell(); err != nil {
		shell.Close()
		return &datamodel.ConnectionError{Host: c.cfg.Host, Err: fmt.Errorf("starting shell: %w", err)}
	}

	c.attachShell(shell, stdin, stdout, stderr)
	c.log.Debug("Shell channel ready")
	return nil
}

// AttachTransport wires an externally established byte-stream transport as
// the shell, bypassing SSH entirely. Callers that tunnel through a jump host
// themselves, and test fakes, use this instead of Connect/CreateShell.
func (c *Client) AttachTransport(stdin io.WriteCloser, outputs ...io.Reader) {
	c.attachShell(nil, stdin, outputs...)
}

// attachShell wires the shell streams into the client. Split out so tests
// can drive the framing logic over in-memory pipes.
func (c *Client) attachShell(shell *ssh.Session, stdin io.WriteCloser, outputs ...io.Reader) {
	c.mu.Lock()
	c.shell = shell
	c.stdin = stdin
	c.state = StateShellReady
	c.mu.Unlock()

	for _, r := range outputs {
		if r == nil {
			continue
		}
		c.readers.Add(1)
		go c.readLoop(r)
	}
}

// readLoop appends incoming bytes to the session buffer and reassembles
// lines for the output callback.
func (c *Client) readLoop(r io.Reader) {
	defer c.readers.Done()
	chunk := make([]byte, 2048)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			c.ingest(chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) ingest(b []byte) {
	var complete []string

	c.mu.Lock()
	c.buf.Write(b)
	// CRLF to LF; bare CR is a redraw artifact, drop it.
	s := strings.ReplaceAll(c.lineRem+string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	parts := strings.Split(s, "\n")
	c.lineRem = parts[len(parts)-1]
	complete = parts[:len(parts)-1]
	cb := c.cfg.OnLine
	c.mu.Unlock()

	if cb != nil {
		for _, line := range complete {
			cb(line)
		}
	}
	c.notify()
}

// notify wakes the current waiter without blocking the reader.
func (c *Client) notify() {
	select {
	case c.dataCh <- struct{}{}:
	default:
	}
}

// drainEvents clears stale wakeups when a new wait scope begins.
func (c *Client) drainEvents() {
	select {
	case <-c.dataCh:
	default:
	}
}

// Buffer returns a cleaned copy of everything received this session.
func (c *Client) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StripArtifacts(c.buf.String())
}

func (c *Client) bufferSince(mark int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := c.buf.Bytes()
	if mark > len(raw) {
		mark = len(raw)
	}
	return StripArtifacts(string(raw[mark:]))
}

// writeLine sends text plus CRLF; network devices expect the carriage return.
func (c *Client) writeLine(text string) error {
	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("shell not ready")
	}
	_, err := stdin.Write([]byte(text + "\r\n"))
	return err
}

// Disconnect flushes any partial output line through the callback and tears
// down channel and transport. Safe to call repeatedly and from failure paths.
func (c *Client) Disconnect() {
	c.mu.Lock()
	rem := c.lineRem
	c.lineRem = ""
	cb := c.cfg.OnLine
	stdin := c.stdin
	shell := c.shell
	client := c.client
	c.stdin = nil
	c.shell = nil
	c.client = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if cb != nil && rem != "" {
		cb(rem)
	}
	if stdin != nil {
		stdin.Close()
	}
	if shell != nil {
		shell.Close()
	}
	if client != nil {
		client.Close()
	}
}
