package session

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

// enableShell presents a user EXEC prompt until the enable password arrives.
func startEnableShell(t *testing.T, c *Client, password string) {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	c.attachShell(nil, inW, outR)

	go func() {
		r := bufio.NewReader(inR)
		elevated := false
		awaitingPassword := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				outW.Close()
				return
			}
			cmd := strings.TrimRight(line, "\r\n")
			switch {
			case awaitingPassword:
				awaitingPassword = false
				if cmd == password {
					elevated = true
					fmt.Fprint(outW, "\r\nlab-sw1#")
				} else {
					fmt.Fprint(outW, "\r\n% Access denied\r\nlab-sw1>")
				}
			case cmd == "enable":
				awaitingPassword = true
				fmt.Fprintf(outW, "%s\r\nPassword: ", cmd)
			case cmd == "":
				if elevated {
					fmt.Fprint(outW, "\r\nlab-sw1#")
				} else {
					fmt.Fprint(outW, "\r\nlab-sw1>")
				}
			default:
				fmt.Fprintf(outW, "%s\r\noutput\r\nlab-sw1#", cmd)
			}
		}
	}()
}

func TestElevate(t *testing.T) {
	t.Run("password challenge answered", func(t *testing.T) {
		c := testClient("lab-sw1")
		startEnableShell(t, c, "letmein")
		defer c.Disconnect()

		prompt, err := c.FindPrompt()
		if err != nil {
			t.Fatalf("FindPrompt: %v", err)
		}
		if prompt != "lab-sw1>" {
			t.Fatalf("login prompt = %q, want user EXEC", prompt)
		}

		elevated, err := c.Elevate("letmein")
		if err != nil {
			t.Fatalf("Elevate: %v", err)
		}
		if elevated != "lab-sw1#" {
			t.Errorf("elevated prompt = %q, want privileged", elevated)
		}
		if c.Prompt() != "lab-sw1#" {
			t.Errorf("Prompt() = %q after elevation", c.Prompt())
		}
	})

	t.Run("wrong password keeps user EXEC", func(t *testing.T) {
		c := testClient("lab-sw1")
		startEnableShell(t, c, "letmein")
		defer c.Disconnect()

		if _, err := c.FindPrompt(); err != nil {
			t.Fatalf("FindPrompt: %v", err)
		}
		prompt, err := c.Elevate("wrong")
		if err != nil {
			t.Fatalf("Elevate: %v", err)
		}
		if prompt != "lab-sw1>" {
			t.Errorf("prompt = %q, want user EXEC after rejection", prompt)
		}
	})

	t.Run("wrong state", func(t *testing.T) {
		c := testClient("lab-sw1")
		if _, err := c.Elevate("x"); err == nil {
			t.Fatal("Elevate before shell attach should fail")
		}
	})
}

func TestElevateTimeoutFallsBackToPromptDetection(t *testing.T) {
	c := NewClient(Config{
		Host:           "lab-sw1",
		CommandTimeout: time.Second,
		PollInterval:   10 * time.Millisecond,
		PromptAttempts: 2,
		PromptTimeout:  150 * time.Millisecond,
	})
	// A shell that swallows "enable" silently but still answers nudges.
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	c.attachShell(nil, inW, outR)
	defer c.Disconnect()

	go func() {
		r := bufio.NewReader(inR)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				outW.Close()
				return
			}
			if strings.TrimRight(line, "\r\n") == "" {
				fmt.Fprint(outW, "\r\nlab-sw1>")
			}
		}
	}()

	if _, err := c.FindPrompt(); err != nil {
		t.Fatalf("FindPrompt: %v", err)
	}
	prompt, err := c.Elevate("letmein")
	if err != nil {
		t.Fatalf("Elevate should recover via prompt detection: %v", err)
	}
	if prompt != "lab-sw1>" {
		t.Errorf("prompt = %q", prompt)
	}
}
