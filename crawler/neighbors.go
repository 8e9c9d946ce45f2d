package crawler

import (
	"net"

	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/ifname"
	"github.com/lukeod/gonettopo/reach"
)

// materializeNeighbors folds parsed neighbor records into the arena: each
// record is kept on the reporting device, resolved to an address when it only
// carries a hostname, deduplicated against devices already known, and wired
// to the reporting device through its interface pair.
func (c *Crawler) materializeNeighbors(parent *datamodel.DiscoveredDevice, records []datamodel.NeighborRecord) {
	for _, rec := range records {
		hostname := rec.Hostname()
		if c.excluded(hostname) {
			c.log.Debug("Neighbor excluded by pattern", "hostname", hostname)
			continue
		}
		parent.Neighbors = append(parent.Neighbors, rec)

		ip := rec.IP()
		if net.ParseIP(ip) == nil {
			if hostname == "" {
				continue
			}
			resolved, err := reach.Resolve(hostname, c.cfg.DNS)
			if err != nil {
				c.log.Debug("Neighbor has no usable address", "hostname", hostname, "error", err)
				continue
			}
			ip = resolved
		}
		if ip == parent.IPAddress {
			continue
		}

		var neighbor *datamodel.DiscoveredDevice
		if id, known := c.ipIndex[ip]; known {
			neighbor = c.devices[id]
			if neighbor.Hostname == "" {
				neighbor.Hostname = hostname
			}
			if neighbor.Platform == "" {
				neighbor.Platform = rec.Platform()
			}
		} else {
			neighbor = c.addDevice(hostname, ip, parent.HopCount+1, parent.IPAddress)
			neighbor.Platform = rec.Platform()
			c.log.Info("Neighbor discovered", "hostname", hostname, "ip", ip, "hop", neighbor.HopCount)
		}

		c.linkInterfaces(parent, neighbor, rec)
	}
}

// linkInterfaces records the adjacency on both ends under normalized
// interface names, so "Gi0/1" from one side and "GigabitEthernet0/1" from the
// other land on the same key.
func (c *Crawler) linkInterfaces(parent, neighbor *datamodel.DiscoveredDevice, rec datamodel.NeighborRecord) {
	local := ifname.Normalize(rec.LocalInterface())
	remote := ifname.Normalize(rec.RemoteInterface())

	if local != "" {
		parent.LocalInterfaces[local] = datamodel.InterfaceLink{
			ConnectedTo:     neighbor.IPAddress,
			RemoteInterface: remote,
		}
		upsertInterface(parent, local, neighbor.IPAddress, remote)
	}
	if remote != "" {
		if neighbor.LocalInterfaces == nil {
			neighbor.LocalInterfaces = make(map[string]datamodel.InterfaceLink)
		}
		neighbor.LocalInterfaces[remote] = datamodel.InterfaceLink{
			ConnectedTo:     parent.IPAddress,
			RemoteInterface: local,
		}
		upsertInterface(neighbor, remote, parent.IPAddress, local)
	}
}

func upsertInterface(dev *datamodel.DiscoveredDevice, name, connectedTo, remoteInterface string) {
	for i := range dev.Interfaces {
		if dev.Interfaces[i].Name == name {
			dev.Interfaces[i].ConnectedTo = connectedTo
			dev.Interfaces[i].RemoteInterface = remoteInterface
			return
		}
	}
	dev.Interfaces = append(dev.Interfaces, datamodel.InterfaceRecord{
		Name:            name,
		ConnectedTo:     connectedTo,
		RemoteInterface: remoteInterface,
	})
}
