// Package output serializes crawl results to JSON documents: the full device
// table and a derived node/link graph. Snapshots are written atomically so a
// crawl killed mid-write never leaves a truncated document behind.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/logger"
)

// DeviceDocument is the shape of the device-table JSON file.
type DeviceDocument struct {
	Devices  map[string]*datamodel.DiscoveredDevice `json:"devices"`
	Metadata Metadata                               `json:"metadata"`
}

// Metadata summarizes a snapshot.
type Metadata struct {
	DeviceCount  int    `json:"device_count"`
	VisitedCount int    `json:"visited_count"`
	FailedCount  int    `json:"failed_count"`
	DiscoveredAt string `json:"discovered_at"` // ISO8601
}

// GraphDocument is the shape of the topology-graph JSON file.
type GraphDocument struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Node is one device in the graph, keyed by IP.
type Node struct {
	ID       string `json:"id"` // IP address
	Hostname string `json:"hostname,omitempty"`
	Platform string `json:"platform,omitempty"`
	HopCount int    `json:"hop_count"`
	Visited  bool   `json:"visited"`
}

// Link is one undirected adjacency with the interface pair that forms it.
type Link struct {
	Source          string `json:"source"`
	Target          string `json:"target"`
	SourceInterface string `json:"source_interface,omitempty"`
	TargetInterface string `json:"target_interface,omitempty"`
}

// Writer persists snapshots to the configured paths.
type Writer struct {
	DevicePath string
	GraphPath  string
}

// NewWriter returns a Writer for the two output paths. An empty GraphPath
// disables the graph document.
func NewWriter(devicePath, graphPath string) *Writer {
	return &Writer{DevicePath: devicePath, GraphPath: graphPath}
}

// WriteSnapshot writes the current device table, and the derived graph when a
// graph path is configured. Called after every completed device so a crash
// loses at most one device's worth of results.
func (w *Writer) WriteSnapshot(devices map[string]*datamodel.DiscoveredDevice) error {
	log := logger.WithModule("output")

	doc := DeviceDocument{
		Devices: devices,
		Metadata: Metadata{
			DeviceCount:  len(devices),
			DiscoveredAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
	for _, d := range devices {
		if d.Visited {
			doc.Metadata.VisitedCount++
		}
		if d.Failed {
			doc.Metadata.FailedCount++
		}
	}

	if err := writeJSONAtomic(w.DevicePath, doc); err != nil {
		return fmt.Errorf("writing device table to %s: %w", w.DevicePath, err)
	}
	log.Debug("Device table written", "path", w.DevicePath, "devices", len(devices))

	if w.GraphPath == "" {
		return nil
	}
	graph := BuildGraph(devices)
	if err := writeJSONAtomic(w.GraphPath, graph); err != nil {
		return fmt.Errorf("writing graph to %s: %w", w.GraphPath, err)
	}
	log.Debug("Graph written", "path", w.GraphPath, "nodes", len(graph.Nodes), "links", len(graph.Links))
	return nil
}

// BuildGraph derives the node/link view from the device table. Links are
// undirected: an adjacency reported from both ends collapses into one link,
// keeping the interface names from whichever end reported first.
func BuildGraph(devices map[string]*datamodel.DiscoveredDevice) *GraphDocument {
	graph := &GraphDocument{Nodes: []Node{}, Links: []Link{}}

	ips := make([]string, 0, len(devices))
	for ip := range devices {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	for _, ip := range ips {
		d := devices[ip]
		graph.Nodes = append(graph.Nodes, Node{
			ID:       ip,
			Hostname: d.Hostname,
			Platform: d.Platform,
			HopCount: d.HopCount,
			Visited:  d.Visited,
		})
	}

	seen := map[string]bool{}
	for _, ip := range ips {
		d := devices[ip]
		localNames := make([]string, 0, len(d.LocalInterfaces))
		for name := range d.LocalInterfaces {
			localNames = append(localNames, name)
		}
		sort.Strings(localNames)

		for _, name := range localNames {
			link := d.LocalInterfaces[name]
			if link.ConnectedTo == "" {
				continue
			}
			key := linkKey(ip, link.ConnectedTo)
			if seen[key] {
				continue
			}
			seen[key] = true
			graph.Links = append(graph.Links, Link{
				Source:          ip,
				Target:          link.ConnectedTo,
				SourceInterface: name,
				TargetInterface: link.RemoteInterface,
			})
		}
	}
	return graph
}

func linkKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// writeJSONAtomic marshals v and renames a temp file into place.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
