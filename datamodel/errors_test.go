package datamodel

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorWrapping(t *testing.T) {
	t.Run("connection error unwraps", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := &ConnectionError{Host: "10.0.0.1", Err: inner}
		if !errors.Is(err, inner) {
			t.Error("ConnectionError should unwrap to its cause")
		}
		if !strings.Contains(err.Error(), "10.0.0.1") {
			t.Errorf("message %q should name the host", err.Error())
		}
	})

	t.Run("no credentials sentinel survives wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("creds.json: %w", ErrNoCredentials)
		if !errors.Is(wrapped, ErrNoCredentials) {
			t.Error("wrapped sentinel should still match")
		}
	})

	t.Run("command timeout matches errors.As", func(t *testing.T) {
		var err error = &CommandTimeoutError{Command: "show version", Timeout: 30 * time.Second}
		var cte *CommandTimeoutError
		if !errors.As(err, &cte) {
			t.Fatal("errors.As should match CommandTimeoutError")
		}
		if cte.Command != "show version" {
			t.Errorf("Command = %q", cte.Command)
		}
	})

	t.Run("messages carry their context", func(t *testing.T) {
		cases := []struct {
			err  error
			want string
		}{
			{&PromptDetectionError{Host: "sw1", Attempts: 3}, "3 attempts"},
			{&DiscoveryTimeoutError{Host: "sw1", Budget: time.Minute}, "1m0s"},
			{&TemplateLoadError{Name: "cdp.textfsm", Err: errors.New("gone")}, "cdp.textfsm"},
			{&ParseError{Template: "lldp", Err: errors.New("bad state")}, "lldp"},
		}
		for _, c := range cases {
			if !strings.Contains(c.err.Error(), c.want) {
				t.Errorf("%T message %q missing %q", c.err, c.err.Error(), c.want)
			}
		}
	})
}
