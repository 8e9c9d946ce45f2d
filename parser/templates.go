package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lukeod/gonettopo/datamodel"
)

// templateFiles maps a discovery-command substring to the template filename
// expected in the template directory. Lookup is first match wins.
var templateFiles = []struct {
	Substr   string
	Filename string
}{
	{"cdp neighbors", "cisco_ios_show_cdp_neighbors_detail.textfsm"},
	{"lldp neighbors", "cisco_ios_show_lldp_neighbors_detail.textfsm"},
}

// TemplateFileFor returns the template filename for a discovery command, or
// "" when the command has no structured template.
func TemplateFileFor(command string) string {
	lower := strings.ToLower(command)
	for _, tf := range templateFiles {
		if strings.Contains(lower, tf.Substr) {
			return tf.Filename
		}
	}
	return ""
}

// LoadTemplatesFromDirectory registers a structured template for each
// discovery command that has one in dir. A missing or unreadable file is
// logged and skipped; template loading is never fatal.
func (r *Registry) LoadTemplatesFromDirectory(commands []string, dir string) {
	priority := 0
	for _, command := range commands {
		filename := TemplateFileFor(command)
		if filename == "" {
			r.log.Debug("No structured template mapped for command", "command", command)
			continue
		}
		path := filepath.Join(dir, filename)
		content, err := os.ReadFile(path)
		if err != nil {
			lerr := &datamodel.TemplateLoadError{Name: filename, Err: err}
			r.log.Warn("Skipping structured template", "path", path, "error", lerr)
			continue
		}
		r.AddTemplate(MethodStructured, string(content), priority, filename)
		r.log.Info("Loaded structured template", "template", filename, "command", command)
		priority++
	}
}

// Built-in regex fallbacks for when no structured template is available.
// Registered at low priority; structured templates always win regardless.
const (
	cdpFallbackPattern = `Device ID:\s*(?P<device_id>\S+)` +
		`.*?IP address:\s*(?P<mgmt_address>\S+)` +
		`.*?Platform:\s*(?P<platform>[^,\n]+),` +
		`.*?Interface:\s*(?P<local_interface>[^,\s]+),\s*Port ID \(outgoing port\):\s*(?P<remote_interface>\S+)`

	lldpFallbackPattern = `Local Intf:\s*(?P<local_interface>\S+)` +
		`.*?Port id:\s*(?P<port_id>\S+)` +
		`.*?System Name:\s*(?P<system_name>\S+)` +
		`.*?IP:\s*(?P<mgmt_address>\S+)`
)

// RegisterBuiltinFallbacks adds the regex fallback templates for CDP and
// LLDP detail output.
func (r *Registry) RegisterBuiltinFallbacks() {
	r.AddTemplate(MethodRegex, cdpFallbackPattern, 100, "builtin_cdp_detail_regex")
	r.AddTemplate(MethodRegex, lldpFallbackPattern, 110, "builtin_lldp_detail_regex")
}
