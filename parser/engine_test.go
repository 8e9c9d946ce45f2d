package parser

import "testing"

const deviceIDTemplate = `Value DEVICE_ID (\S+)
Value MGMT_ADDRESS (\S+)

Start
  ^Device ID: ${DEVICE_ID}
  ^  IP address: ${MGMT_ADDRESS} -> Record
`

func TestTextFSMEngine(t *testing.T) {
	e := NewTextFSMEngine()

	t.Run("extracts records", func(t *testing.T) {
		text := "Device ID: core-sw1\n  IP address: 10.0.0.1\nDevice ID: core-sw2\n  IP address: 10.0.0.2\n"
		rows, err := e.Match(deviceIDTemplate, text)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("rows = %d, want 2", len(rows))
		}
		if rows[0]["DEVICE_ID"] != "core-sw1" || rows[0]["MGMT_ADDRESS"] != "10.0.0.1" {
			t.Errorf("row[0] = %v", rows[0])
		}
		if rows[1]["DEVICE_ID"] != "core-sw2" {
			t.Errorf("row[1] = %v", rows[1])
		}
	})

	t.Run("malformed template is an error not a panic", func(t *testing.T) {
		if _, err := e.Match("this is not a template", "text"); err == nil {
			t.Fatal("expected an error for a malformed template")
		}
	})

	t.Run("no matches yields no rows", func(t *testing.T) {
		rows, err := e.Match(deviceIDTemplate, "nothing relevant here\n")
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("rows = %v, want none", rows)
		}
	})
}
