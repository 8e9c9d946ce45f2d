// Package parser turns raw, terminal-oriented command output into structured
// neighbor records. A registry of named, prioritized templates is walked in
// order — structured (TextFSM) templates before regex templates — and the
// first template to yield at least one record wins.
package parser

import (
	"fmt"
	"strings"

	"github.com/sirikothe/gotextfsm"
)

// Engine is the external template-matching capability: given a template and
// raw text it returns zero or more field-value records. Implementations must
// be deterministic, stateless per call, and tolerant of malformed templates.
type Engine interface {
	Match(template, text string) ([]map[string]string, error)
}

// TextFSMEngine matches structured templates with the gotextfsm
// finite-state-machine engine.
type TextFSMEngine struct{}

// NewTextFSMEngine returns the production structured-template engine.
func NewTextFSMEngine() *TextFSMEngine { return &TextFSMEngine{} }

// Match parses the template and applies it to text. Template parse failures
// are returned as errors rather than panics; the registry logs and skips.
func (e *TextFSMEngine) Match(template, text string) ([]map[string]string, error) {
	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(template); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	out := gotextfsm.ParserOutput{}
	if err := out.ParseTextString(text, fsm, true); err != nil {
		return nil, fmt.Errorf("applying template: %w", err)
	}

	records := make([]map[string]string, 0, len(out.Dict))
	for _, row := range out.Dict {
		rec := make(map[string]string, len(row))
		for k, v := range row {
			rec[k] = stringify(v)
		}
		records = append(records, rec)
	}
	return records, nil
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, " ")
	default:
		return fmt.Sprint(val)
	}
}
