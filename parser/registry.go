package parser

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/logger"
)

// Method distinguishes the two template kinds. All structured templates sort
// before all regex templates regardless of priority.
type Method int

const (
	MethodStructured Method = iota
	MethodRegex
)

func (m Method) String() string {
	if m == MethodStructured {
		return "structured"
	}
	return "regex"
}

// Template is one named extraction strategy.
type Template struct {
	Method   Method
	Pattern  string
	Priority int
	Name     string
}

// Registry holds the prioritized template list. Not safe for concurrent
// mutation; the crawler loads templates once before traversal.
type Registry struct {
	// StopAtFirstMatch makes the first template that yields records win;
	// when false, records from every matching template accumulate.
	StopAtFirstMatch bool

	engine    Engine
	templates []Template
	log       *slog.Logger
}

// NewRegistry creates an empty registry backed by the given structured
// template engine.
func NewRegistry(engine Engine) *Registry {
	return &Registry{
		StopAtFirstMatch: true,
		engine:           engine,
		log:              logger.WithModule("parser"),
	}
}

// AddTemplate inserts a template and re-establishes the ordering invariant:
// structured before regex, then ascending priority, insertion order for ties.
func (r *Registry) AddTemplate(method Method, pattern string, priority int, name string) {
	r.templates = append(r.templates, Template{
		Method:   method,
		Pattern:  pattern,
		Priority: priority,
		Name:     name,
	})
	sort.SliceStable(r.templates, func(i, j int) bool {
		if r.templates[i].Method != r.templates[j].Method {
			return r.templates[i].Method < r.templates[j].Method
		}
		return r.templates[i].Priority < r.templates[j].Priority
	})
}

// Templates returns the registry contents in evaluation order.
func (r *Registry) Templates() []Template {
	out := make([]Template, len(r.templates))
	copy(out, r.templates)
	return out
}

// Parse walks the templates in registry order and returns the records of the
// first template that yields any. It never fails: no neighbor data is a
// normal outcome for leaf devices, and per-template errors only advance the
// pipeline to the next template.
func (r *Registry) Parse(text string) []datamodel.NeighborRecord {
	cleaned := CleanOutput(text)
	if strings.TrimSpace(cleaned) == "" {
		return nil
	}

	var collected []datamodel.NeighborRecord
	for _, t := range r.templates {
		var records []datamodel.NeighborRecord
		switch t.Method {
		case MethodStructured:
			rows, err := r.engine.Match(t.Pattern, cleaned)
			if err != nil {
				perr := &datamodel.ParseError{Template: t.Name, Err: err}
				r.log.Debug("Structured template failed", "template", t.Name, "error", perr)
				continue
			}
			records = toNeighborRecords(rows)
		case MethodRegex:
			var err error
			records, err = applyRegex(t.Pattern, cleaned)
			if err != nil {
				perr := &datamodel.ParseError{Template: t.Name, Err: err}
				r.log.Debug("Regex template failed", "template", t.Name, "error", perr)
				continue
			}
		}

		if len(records) > 0 {
			r.log.Debug("Template matched", "template", t.Name, "method", t.Method.String(), "records", len(records))
			if r.StopAtFirstMatch {
				return records
			}
			collected = append(collected, records...)
		}
	}
	return collected
}

// applyRegex applies the pattern globally, multiline, case-insensitively,
// collecting every named-group match.
func applyRegex(pattern, text string) ([]datamodel.NeighborRecord, error) {
	re, err := regexp.Compile("(?ims)" + pattern)
	if err != nil {
		return nil, err
	}

	names := re.SubexpNames()
	matches := re.FindAllStringSubmatch(text, -1)
	records := make([]datamodel.NeighborRecord, 0, len(matches))
	for _, m := range matches {
		rec := datamodel.NeighborRecord{}
		for i, name := range names {
			if i == 0 || name == "" || i >= len(m) {
				continue
			}
			if v := strings.TrimSpace(m[i]); v != "" {
				rec[name] = v
			}
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records, nil
}

func toNeighborRecords(rows []map[string]string) []datamodel.NeighborRecord {
	records := make([]datamodel.NeighborRecord, 0, len(rows))
	for _, row := range rows {
		rec := datamodel.NeighborRecord{}
		for k, v := range row {
			if strings.TrimSpace(v) != "" {
				rec[k] = strings.TrimSpace(v)
			}
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records
}
