// Package datamodel defines the core data structures used throughout the
// gonettopo application, including configuration structures parsed
// from YAML, the credential shape read from JSON, and the structures
// for storing crawl results.
package datamodel

// CrawlConfig is the main configuration structure.
type CrawlConfig struct {
	MaxHops            int                  `yaml:"max_hops"`            // Breadth-first hop limit, default 4
	ExcludePatterns    []string             `yaml:"exclude_patterns"`    // Case-insensitive hostname substrings to skip
	DiscoveryCommands  []string             `yaml:"discovery_commands"`  // Neighbor-discovery commands run on each device
	PaginationCommands []string             `yaml:"pagination_commands"` // Candidate commands to disable CLI paging
	TemplateDir        string               `yaml:"template_dir"`        // Directory containing structured templates
	OutputPath         string               `yaml:"output_path"`         // Device table JSON document
	GraphOutputPath    string               `yaml:"graph_output_path"`   // Topology graph JSON document
	ConcurrentCrawlers int                  `yaml:"concurrent_crawlers"` // Reserved knob; BFS traversal is sequential
	Timeouts           TimeoutSettings      `yaml:"timeouts"`
	ICMP               ICMPSettings         `yaml:"icmp"`
	DNS                DNSSettings          `yaml:"dns"`
	SNMP               SNMPIdentitySettings `yaml:"snmp"`
}

// TimeoutSettings groups the empirically tuned per-step budgets. The values
// were tuned against specific vendor CLIs; they are defaults, not laws.
type TimeoutSettings struct {
	DeviceBudgetSeconds  int     `yaml:"device_budget_seconds"`  // Whole-device workflow budget, default 60
	SocketFraction       float64 `yaml:"socket_fraction"`        // Share of budget for the raw TCP probe, default 0.25
	CredentialFraction   float64 `yaml:"credential_fraction"`    // Share of budget per credential attempt, default 0.33
	CommandSeconds       int     `yaml:"command_seconds"`        // Per-command completion wait, default 30
	PollIntervalMS       int     `yaml:"poll_interval_ms"`       // Buffer re-check interval, default 250
	PromptAttempts       int     `yaml:"prompt_attempts"`        // Empty-line nudges during prompt detection, default 3
	PromptSeconds        int     `yaml:"prompt_seconds"`         // Per-attempt prompt wait, default 5
	InterCommandDelayMS  int     `yaml:"inter_command_delay_ms"` // Pause between commands, default 100
}

// ICMPSettings controls the optional ping pre-check before the TCP probe.
type ICMPSettings struct {
	IsEnabled      bool `yaml:"is_enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	Privileged     bool `yaml:"privileged"` // Use raw sockets
}

// DNSSettings controls hostname fallback resolution.
type DNSSettings struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Servers        []string `yaml:"servers,omitempty"` // Optional explicit DNS servers ("8.8.8.8:53")
}

// SNMPIdentitySettings controls the optional SNMP identity backfill pass for
// devices that could not be logged into.
type SNMPIdentitySettings struct {
	IsEnabled      bool   `yaml:"is_enabled"`
	Version        string `yaml:"version"` // "v2c" or "v3"
	Community      string `yaml:"community,omitempty"`
	Username       string `yaml:"username,omitempty"`
	AuthProtocol   string `yaml:"auth_protocol,omitempty"`
	AuthPassword   string `yaml:"auth_password,omitempty"`
	PrivProtocol   string `yaml:"priv_protocol,omitempty"`
	PrivPassword   string `yaml:"priv_password,omitempty"`
	SecurityLevel  string `yaml:"security_level,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
}

// Credential is one entry of the credentials JSON file. Credentials are
// attempted in ascending Priority and are immutable once loaded.
type Credential struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	KeyMaterial    string `json:"key_material,omitempty"`   // PEM-encoded private key
	KeyPassphrase  string `json:"key_passphrase,omitempty"`
	Port           int    `json:"port"`
	EnablePassword string `json:"enable_password,omitempty"`
	Priority       int    `json:"priority"`
}

// Result structures

// ReachabilityStatus values recorded on a device.
const (
	ReachUnknown     = "unknown"
	ReachReachable   = "reachable"
	ReachUnreachable = "unreachable"
	ReachResolved    = "resolved" // Hostname resolved to a different working address
)

// DiscoveredDevice is the mutable aggregate of everything known about one
// network node. It is created when first referenced (as a seed or as a
// neighbor), mutated during its single discovery pass, and never deleted.
type DiscoveredDevice struct {
	Hostname             string                   `json:"hostname,omitempty"`
	IPAddress            string                   `json:"ip_address"`
	Platform             string                   `json:"platform,omitempty"`
	SerialNumber         string                   `json:"serial_number,omitempty"`
	Model                string                   `json:"model,omitempty"`
	SoftwareVersion      string                   `json:"software_version,omitempty"`
	Interfaces           []InterfaceRecord        `json:"interfaces,omitempty"`
	Neighbors            []NeighborRecord         `json:"neighbors,omitempty"`
	LocalInterfaces      map[string]InterfaceLink `json:"local_interfaces,omitempty"`
	Parent               string                   `json:"parent,omitempty"` // IP of the discovering device
	HopCount             int                      `json:"hop_count"`
	Visited              bool                     `json:"visited"`
	Failed               bool                     `json:"failed"`
	ErrorMsg             string                   `json:"error_msg,omitempty"`
	ReachabilityStatus   string                   `json:"reachability_status,omitempty"`
	SuccessfulCredential string                   `json:"successful_credential,omitempty"` // Username only, never the secret
	FirstSeen            string                   `json:"first_seen"`             // ISO8601
	LastUpdated          string                   `json:"last_updated,omitempty"` // ISO8601
}

// InterfaceRecord is one local interface together with what it connects to.
type InterfaceRecord struct {
	Name            string `json:"name"`
	ConnectedTo     string `json:"connected_to,omitempty"`     // Remote device IP
	RemoteInterface string `json:"remote_interface,omitempty"`
}

// InterfaceLink is the value side of the LocalInterfaces map.
type InterfaceLink struct {
	ConnectedTo     string `json:"connected_to"`
	RemoteInterface string `json:"remote_interface,omitempty"`
}
