// Package creds loads the ordered credential list from JSON and resolves
// which credential, if any, can log into a given host.
package creds

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"time"

	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/logger"
	"github.com/lukeod/gonettopo/reach"
	"github.com/lukeod/gonettopo/session"
)

// Load reads a JSON array of credentials, drops unusable entries, and
// returns the rest sorted by ascending priority. Zero usable credentials is
// fatal to the run.
func Load(path string) ([]datamodel.Credential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}

	var all []datamodel.Credential
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}

	usable := make([]datamodel.Credential, 0, len(all))
	for i, c := range all {
		if c.Username == "" || (c.Password == "" && c.KeyMaterial == "") {
			logger.Warn("Skipping credential without username or secret", "file", path, "index", i)
			continue
		}
		if c.Port == 0 {
			c.Port = 22
		}
		usable = append(usable, c)
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%s: %w", path, datamodel.ErrNoCredentials)
	}

	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Priority < usable[j].Priority
	})
	return usable, nil
}

// Attempt is a successful credential resolution: an authenticated client and
// the address it actually connected to.
type Attempt struct {
	Credential  datamodel.Credential
	Client      *session.Client
	ConnectedIP string
}

// Dialer opens an authenticated session; injectable for tests.
type Dialer func(host string, cred datamodel.Credential, timeout time.Duration) (*session.Client, error)

// Resolver probes reachability and walks the credential list in priority
// order. The socket probe gets ~25% of the per-device budget; each
// credential attempt gets ~33%.
type Resolver struct {
	Credentials        []datamodel.Credential
	Budget             time.Duration
	SocketFraction     float64
	CredentialFraction float64
	DNS                datamodel.DNSSettings
	Dial               Dialer
	Log                *slog.Logger

	// Session knobs passed through to dialed clients.
	CommandTimeout time.Duration
	PollInterval   time.Duration
	PromptAttempts int
	PromptTimeout  time.Duration
	OnLine         func(string)
}

func (r *Resolver) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.WithModule("creds")
}

func (r *Resolver) socketTimeout() time.Duration {
	f := r.SocketFraction
	if f <= 0 {
		f = 0.25
	}
	return time.Duration(float64(r.Budget) * f)
}

func (r *Resolver) credentialTimeout() time.Duration {
	f := r.CredentialFraction
	if f <= 0 {
		f = 0.33
	}
	return time.Duration(float64(r.Budget) * f)
}

// TryCredentials probes host and attempts each credential in priority order,
// returning the first success. A nil Attempt with nil error means every
// credential failed — an expected outcome, not an error.
func (r *Resolver) TryCredentials(host string) (*Attempt, error) {
	if len(r.Credentials) == 0 {
		return nil, datamodel.ErrNoCredentials
	}

	log := r.log().With("host", host)
	port := r.Credentials[0].Port

	reachable := reach.ProbeTCP(host, port, r.socketTimeout())
	if !reachable {
		// For literal addresses the probe is advisory only; some devices
		// rate-limit the half-open connect but still accept a real login.
		if net.ParseIP(host) == nil {
			log.Debug("Host unreachable and not a literal address, giving up")
			return nil, nil
		}
		log.Debug("TCP probe failed, attempting credentials anyway")
	}

	for _, cred := range r.Credentials {
		log.Debug("Attempting credential", "username", cred.Username, "priority", cred.Priority)
		client, err := r.dial(host, cred)
		if err != nil {
			log.Debug("Credential failed", "username", cred.Username, "error", err)
			continue
		}
		log.Info("Credential accepted", "username", cred.Username)
		return &Attempt{Credential: cred, Client: client, ConnectedIP: host}, nil
	}

	log.Debug("All credentials exhausted")
	return nil, nil
}

func (r *Resolver) dial(host string, cred datamodel.Credential) (*session.Client, error) {
	if r.Dial != nil {
		return r.Dial(host, cred, r.credentialTimeout())
	}
	client := session.NewClient(session.Config{
		Host:           host,
		Port:           cred.Port,
		Username:       cred.Username,
		Password:       cred.Password,
		KeyMaterial:    cred.KeyMaterial,
		KeyPassphrase:  cred.KeyPassphrase,
		ConnectTimeout: r.credentialTimeout(),
		CommandTimeout: r.CommandTimeout,
		PollInterval:   r.PollInterval,
		PromptAttempts: r.PromptAttempts,
		PromptTimeout:  r.PromptTimeout,
		OnLine:         r.OnLine,
		Log:            r.Log,
	})
	if err := client.Connect(); err != nil {
		return nil, err
	}
	return client, nil
}
