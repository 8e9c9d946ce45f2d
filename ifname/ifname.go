// Package ifname maps vendor-specific interface name abbreviations to a
// canonical long form (and back to the conventional short form). Device CLIs
// abbreviate inconsistently — CDP may report "Gig 0/1" where LLDP reports
// "Gi0/1" — so topology edges only line up after both ends are normalized.
package ifname

import (
	"regexp"
	"strings"
)

// canonical maps every known abbreviation (lowercased) to the long form.
// Both the abbreviation and the long form itself are keys, which makes
// Normalize idempotent.
var canonical = map[string]string{
	"e":                   "Ethernet",
	"eth":                 "Ethernet",
	"ethernet":            "Ethernet",
	"fa":                  "FastEthernet",
	"fas":                 "FastEthernet",
	"fastethernet":        "FastEthernet",
	"gi":                  "GigabitEthernet",
	"gig":                 "GigabitEthernet",
	"ge":                  "GigabitEthernet",
	"gigabitethernet":     "GigabitEthernet",
	"te":                  "TenGigabitEthernet",
	"ten":                 "TenGigabitEthernet",
	"tengige":             "TenGigabitEthernet",
	"tengigabitethernet":  "TenGigabitEthernet",
	"xge":                 "TenGigabitEthernet",
	"twe":                 "TwentyFiveGigE",
	"twentyfivegige":      "TwentyFiveGigE",
	"fo":                  "FortyGigabitEthernet",
	"fortygige":           "FortyGigabitEthernet",
	"fortygigabitethernet": "FortyGigabitEthernet",
	"hu":                  "HundredGigE",
	"hundredgige":         "HundredGigE",
	"se":                  "Serial",
	"ser":                 "Serial",
	"serial":              "Serial",
	"po":                  "Port-channel",
	"port-channel":        "Port-channel",
	"lo":                  "Loopback",
	"loopback":            "Loopback",
	"vl":                  "Vlan",
	"vlan":                "Vlan",
	"tu":                  "Tunnel",
	"tunnel":              "Tunnel",
	"mgmt":                "Management",
	"management":          "Management",
	"meth":                "MEth",
	"wlan-gigabitethernet": "Wlan-GigabitEthernet",
}

// short maps the long canonical form to the conventional abbreviation.
var short = map[string]string{
	"Ethernet":             "Eth",
	"FastEthernet":         "Fa",
	"GigabitEthernet":      "Gi",
	"TenGigabitEthernet":   "Te",
	"TwentyFiveGigE":       "Twe",
	"FortyGigabitEthernet": "Fo",
	"HundredGigE":          "Hu",
	"Serial":               "Se",
	"Port-channel":         "Po",
	"Loopback":             "Lo",
	"Vlan":                 "Vl",
	"Tunnel":               "Tu",
	"Management":           "Mgmt",
	"MEth":                 "MEth",
	"Wlan-GigabitEthernet": "Wlan-Gi",
}

// namePattern splits an interface name into its alphabetic type prefix and
// the numeric locator ("0/1", "1/0/24.100", ...). Whitespace between the
// two ("Gig 0/1") is tolerated.
var namePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z-]*)\s*([\d/.:]\S*)?$`)

// Normalize returns the canonical long form of a vendor interface name.
// Unknown prefixes are returned trimmed but otherwise untouched.
// Normalize(Normalize(x)) == Normalize(x) for all x.
func Normalize(name string) string {
	prefix, locator, ok := splitName(name)
	if !ok {
		return strings.TrimSpace(name)
	}
	long, known := canonical[strings.ToLower(prefix)]
	if !known {
		return prefix + locator
	}
	return long + locator
}

// Short returns the conventional abbreviated form ("Gi0/1") of any known
// interface name, long or short. Unknown prefixes pass through.
func Short(name string) string {
	prefix, locator, ok := splitName(name)
	if !ok {
		return strings.TrimSpace(name)
	}
	long, known := canonical[strings.ToLower(prefix)]
	if !known {
		return prefix + locator
	}
	if abbr, ok := short[long]; ok {
		return abbr + locator
	}
	return long + locator
}

func splitName(name string) (prefix, locator string, ok bool) {
	m := namePattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
