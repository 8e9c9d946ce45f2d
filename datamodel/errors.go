package datamodel

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoCredentials is returned at startup when the credentials file yields
// zero usable entries. It is the only error fatal to a whole run.
var ErrNoCredentials = errors.New("no usable credentials")

// ConnectionError reports a transport, negotiation, or authentication failure.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PromptDetectionError reports that no shell prompt could be inferred.
type PromptDetectionError struct {
	Host     string
	Attempts int
}

func (e *PromptDetectionError) Error() string {
	return fmt.Sprintf("no prompt detected on %s after %d attempts", e.Host, e.Attempts)
}

// CommandTimeoutError reports a single command that never produced a prompt.
type CommandTimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("command %q did not complete within %s", e.Command, e.Timeout)
}

// DiscoveryTimeoutError reports a device that exceeded its whole-workflow budget.
type DiscoveryTimeoutError struct {
	Host   string
	Budget time.Duration
}

func (e *DiscoveryTimeoutError) Error() string {
	return fmt.Sprintf("discovery of %s exceeded the %s device budget", e.Host, e.Budget)
}

// TemplateLoadError reports a template file that could not be read or parsed.
// It is logged and skipped, never fatal.
type TemplateLoadError struct {
	Name string
	Err  error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("template %s could not be loaded: %v", e.Name, e.Err)
}

func (e *TemplateLoadError) Unwrap() error { return e.Err }

// ParseError reports a single template that failed against a given text.
// The pipeline records it and moves on to the next template.
type ParseError struct {
	Template string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template %s failed to parse output: %v", e.Template, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
