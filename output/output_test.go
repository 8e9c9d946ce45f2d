package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lukeod/gonettopo/datamodel"
)

func sampleDevices() map[string]*datamodel.DiscoveredDevice {
	return map[string]*datamodel.DiscoveredDevice{
		"10.0.0.1": {
			Hostname:  "core-sw1",
			IPAddress: "10.0.0.1",
			HopCount:  0,
			Visited:   true,
			LocalInterfaces: map[string]datamodel.InterfaceLink{
				"GigabitEthernet0/1": {ConnectedTo: "10.0.0.2", RemoteInterface: "GigabitEthernet0/2"},
			},
		},
		"10.0.0.2": {
			Hostname:  "edge-sw2",
			IPAddress: "10.0.0.2",
			HopCount:  1,
			Visited:   true,
			LocalInterfaces: map[string]datamodel.InterfaceLink{
				"GigabitEthernet0/2": {ConnectedTo: "10.0.0.1", RemoteInterface: "GigabitEthernet0/1"},
			},
		},
		"10.0.0.3": {
			IPAddress: "10.0.0.3",
			HopCount:  1,
			Failed:    true,
			ErrorMsg:  "all credentials rejected",
		},
	}
}

func TestWriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "topology.json")
	graphPath := filepath.Join(dir, "graph.json")

	w := NewWriter(devicePath, graphPath)
	if err := w.WriteSnapshot(sampleDevices()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	raw, err := os.ReadFile(devicePath)
	if err != nil {
		t.Fatalf("reading device table: %v", err)
	}
	var doc DeviceDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("device table is not valid JSON: %v", err)
	}
	if doc.Metadata.DeviceCount != 3 || doc.Metadata.VisitedCount != 2 || doc.Metadata.FailedCount != 1 {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Devices["10.0.0.1"].Hostname != "core-sw1" {
		t.Errorf("device 10.0.0.1 = %+v", doc.Devices["10.0.0.1"])
	}
	if doc.Metadata.DiscoveredAt == "" {
		t.Error("DiscoveredAt not stamped")
	}

	rawGraph, err := os.ReadFile(graphPath)
	if err != nil {
		t.Fatalf("reading graph: %v", err)
	}
	var graph GraphDocument
	if err := json.Unmarshal(rawGraph, &graph); err != nil {
		t.Fatalf("graph is not valid JSON: %v", err)
	}
	if len(graph.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3", len(graph.Nodes))
	}
	if len(graph.Links) != 1 {
		t.Errorf("links = %d, want 1 (bidirectional reports collapse)", len(graph.Links))
	}
}

func TestWriteSnapshotOverwrites(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "topology.json")

	w := NewWriter(devicePath, "")
	devices := sampleDevices()
	if err := w.WriteSnapshot(devices); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	devices["10.0.0.4"] = &datamodel.DiscoveredDevice{IPAddress: "10.0.0.4", HopCount: 2}
	if err := w.WriteSnapshot(devices); err != nil {
		t.Fatalf("second snapshot: %v", err)
	}

	raw, _ := os.ReadFile(devicePath)
	var doc DeviceDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Metadata.DeviceCount != 4 {
		t.Errorf("DeviceCount = %d, want 4 after overwrite", doc.Metadata.DeviceCount)
	}
}

func TestBuildGraph(t *testing.T) {
	t.Run("bidirectional links deduplicate", func(t *testing.T) {
		graph := BuildGraph(sampleDevices())
		if len(graph.Links) != 1 {
			t.Fatalf("links = %d, want 1", len(graph.Links))
		}
		l := graph.Links[0]
		if l.Source != "10.0.0.1" || l.Target != "10.0.0.2" {
			t.Errorf("link = %+v", l)
		}
		if l.SourceInterface != "GigabitEthernet0/1" || l.TargetInterface != "GigabitEthernet0/2" {
			t.Errorf("interface pair = %q/%q", l.SourceInterface, l.TargetInterface)
		}
	})

	t.Run("nodes are sorted and complete", func(t *testing.T) {
		graph := BuildGraph(sampleDevices())
		want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
		for i, ip := range want {
			if graph.Nodes[i].ID != ip {
				t.Errorf("node %d = %q, want %q", i, graph.Nodes[i].ID, ip)
			}
		}
		if !graph.Nodes[0].Visited || graph.Nodes[2].Visited {
			t.Error("visited flags not carried onto nodes")
		}
	})

	t.Run("empty arena", func(t *testing.T) {
		graph := BuildGraph(map[string]*datamodel.DiscoveredDevice{})
		if len(graph.Nodes) != 0 || len(graph.Links) != 0 {
			t.Errorf("graph = %+v, want empty", graph)
		}
	})
}
