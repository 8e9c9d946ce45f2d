// Package config is responsible for loading the YAML crawl-settings file,
// unmarshalling it into the structures defined in the datamodel module, and
// performing validation to ensure the configuration is semantically correct.
// Every timing threshold in here is an empirically tuned default for real
// vendor CLIs, exposed as configuration rather than baked in.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lukeod/gonettopo/datamodel"
)

// maxHopsUnset marks max_hops as absent from the file, so an explicit zero
// (seeds only, no neighbor discovery) survives default application.
const maxHopsUnset = math.MinInt

// Default returns a ready-to-use configuration with every default applied.
func Default() *datamodel.CrawlConfig {
	cfg := &datamodel.CrawlConfig{MaxHops: maxHopsUnset}
	setDefaults(cfg)
	return cfg
}

// LoadConfig loads and validates the configuration from a YAML file.
func LoadConfig(filePath string) (*datamodel.CrawlConfig, error) {
	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", filePath, err)
	}

	cfg := datamodel.CrawlConfig{MaxHops: maxHopsUnset}
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling YAML from %s: %w", filePath, err)
	}

	setDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults applies default values to the configuration where not specified.
func setDefaults(cfg *datamodel.CrawlConfig) {
	if cfg.MaxHops == maxHopsUnset {
		cfg.MaxHops = 4
	}
	if len(cfg.DiscoveryCommands) == 0 {
		cfg.DiscoveryCommands = []string{
			"show cdp neighbors detail",
			"show lldp neighbors detail",
		}
	}
	if len(cfg.PaginationCommands) == 0 {
		cfg.PaginationCommands = []string{
			"terminal length 0",
			"screen-length 0 temporary",
			"screen-length disable",
			"set cli screen-length 0",
			"no page",
		}
	}
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = "./templates"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = "./network_topology.json"
	}
	if cfg.GraphOutputPath == "" {
		cfg.GraphOutputPath = "./network_graph.json"
	}
	if cfg.ConcurrentCrawlers == 0 {
		cfg.ConcurrentCrawlers = 1 // Reserved; the BFS traversal is sequential
	}

	t := &cfg.Timeouts
	if t.DeviceBudgetSeconds == 0 {
		t.DeviceBudgetSeconds = 60
	}
	if t.SocketFraction == 0 {
		t.SocketFraction = 0.25
	}
	if t.CredentialFraction == 0 {
		t.CredentialFraction = 0.33
	}
	if t.CommandSeconds == 0 {
		t.CommandSeconds = 30
	}
	if t.PollIntervalMS == 0 {
		t.PollIntervalMS = 250
	}
	if t.PromptAttempts == 0 {
		t.PromptAttempts = 3
	}
	if t.PromptSeconds == 0 {
		t.PromptSeconds = 5
	}
	if t.InterCommandDelayMS == 0 {
		t.InterCommandDelayMS = 100
	}

	if cfg.ICMP.TimeoutSeconds == 0 {
		cfg.ICMP.TimeoutSeconds = 2
	}
	if cfg.DNS.TimeoutSeconds == 0 {
		cfg.DNS.TimeoutSeconds = 5
	}
	if cfg.SNMP.IsEnabled {
		if cfg.SNMP.Version == "" {
			cfg.SNMP.Version = "v2c"
		}
		if cfg.SNMP.TimeoutSeconds == 0 {
			cfg.SNMP.TimeoutSeconds = 5
		}
	}
}

// validateConfig performs semantic validation on the loaded configuration.
func validateConfig(cfg *datamodel.CrawlConfig) error {
	if cfg.MaxHops < 0 {
		return fmt.Errorf("max_hops must not be negative, got %d", cfg.MaxHops)
	}

	t := cfg.Timeouts
	if t.DeviceBudgetSeconds <= 0 {
		return fmt.Errorf("device_budget_seconds must be positive, got %d", t.DeviceBudgetSeconds)
	}
	if t.SocketFraction <= 0 || t.SocketFraction > 1 {
		return fmt.Errorf("socket_fraction must be in (0, 1], got %v", t.SocketFraction)
	}
	if t.CredentialFraction <= 0 || t.CredentialFraction > 1 {
		return fmt.Errorf("credential_fraction must be in (0, 1], got %v", t.CredentialFraction)
	}
	if t.CommandSeconds <= 0 {
		return fmt.Errorf("command_seconds must be positive, got %d", t.CommandSeconds)
	}
	if t.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", t.PollIntervalMS)
	}
	if t.PromptAttempts <= 0 {
		return fmt.Errorf("prompt_attempts must be positive, got %d", t.PromptAttempts)
	}

	for _, cmd := range cfg.DiscoveryCommands {
		if cmd == "" {
			return fmt.Errorf("discovery_commands contains an empty command")
		}
	}
	for _, pattern := range cfg.ExcludePatterns {
		if pattern == "" {
			return fmt.Errorf("exclude_patterns contains an empty pattern")
		}
	}

	if cfg.SNMP.IsEnabled {
		switch cfg.SNMP.Version {
		case "v2c":
			if cfg.SNMP.Community == "" {
				return fmt.Errorf("snmp v2c requires a community string")
			}
		case "v3":
			if cfg.SNMP.Username == "" {
				return fmt.Errorf("snmp v3 requires a username")
			}
		default:
			return fmt.Errorf("invalid snmp version %q (want v2c or v3)", cfg.SNMP.Version)
		}
	}

	return nil
}
