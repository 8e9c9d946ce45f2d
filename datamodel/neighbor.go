package datamodel

// NeighborRecord is the loosely-typed field bag produced by the parsing
// pipeline. Vendor templates emit different field names for the same logical
// attribute (and uppercase variants), so consumers probe an ordered list of
// candidate keys and take the first non-empty value. The alias lists and
// their order are a compatibility contract with real device output; do not
// tidy them.
type NeighborRecord map[string]string

// Ordered alias tables, one per logical attribute.
var (
	NeighborIPAliases = []string{
		"mgmt_address", "management_ip", "MGMT_ADDRESS", "MGMT_IP",
		"ip_address", "IP_ADDRESS", "neighbor_ip",
	}
	NeighborHostnameAliases = []string{
		"device_id", "DEST_HOST", "NEIGHBOR_NAME", "neighbor_name",
		"neighbor", "system_name", "SYSNAME",
	}
	NeighborPlatformAliases = []string{
		"platform", "PLATFORM", "capabilities", "CAPABILITIES",
	}
	NeighborLocalIfaceAliases = []string{
		"local_interface", "LOCAL_INTERFACE", "local_port", "LOCAL_PORT", "intf",
	}
	NeighborRemoteIfaceAliases = []string{
		"remote_interface", "NEIGHBOR_INTERFACE", "neighbor_interface",
		"remote_port", "NEIGHBOR_PORT", "port_id",
	}
)

// FirstOf returns the first non-empty value among the given candidate keys.
func (n NeighborRecord) FirstOf(keys []string) string {
	for _, k := range keys {
		if v, ok := n[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// IP returns the neighbor's management address, if any alias is present.
func (n NeighborRecord) IP() string { return n.FirstOf(NeighborIPAliases) }

// Hostname returns the neighbor's name, if any alias is present.
func (n NeighborRecord) Hostname() string { return n.FirstOf(NeighborHostnameAliases) }

// Platform returns the neighbor's platform string, if any alias is present.
func (n NeighborRecord) Platform() string { return n.FirstOf(NeighborPlatformAliases) }

// LocalInterface returns the discovering device's interface name.
func (n NeighborRecord) LocalInterface() string { return n.FirstOf(NeighborLocalIfaceAliases) }

// RemoteInterface returns the neighbor-side interface name.
func (n NeighborRecord) RemoteInterface() string { return n.FirstOf(NeighborRemoteIfaceAliases) }
