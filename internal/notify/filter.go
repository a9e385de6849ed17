package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/event-notifier/internal/event"
)

// FilterMode selects how individual predicates combine.
type FilterMode string

const (
	// FilterModeAll requires every predicate to match (conjunctive).
	FilterModeAll FilterMode = "all"
	// FilterModeAny requires at least one predicate to match (disjunctive).
	FilterModeAny FilterMode = "any"
)

// predicate compares one event attribute against an expected value. Equals
// may be a single string or a list of strings (any-of).
type predicate struct {
	Attribute string `json:"attribute"`
	Equals    any    `json:"equals"`
}

// Filter is a declarative predicate set over event context attributes,
// including extensions. Evaluation is pure: no rendering, no I/O.
type Filter struct {
	predicates []predicate
	mode       FilterMode
}

// ParseFilter decodes a JSON filter specification. An empty spec yields a
// filter that matches every event. Mode defaults to "all".
func ParseFilter(specJSON, mode string) (*Filter, error) {
	f := &Filter{mode: FilterModeAll}

	switch FilterMode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", FilterModeAll:
	case FilterModeAny:
		f.mode = FilterModeAny
	default:
		return nil, fmt.Errorf("filter: unsupported mode %q", mode)
	}

	specJSON = strings.TrimSpace(specJSON)
	if specJSON == "" {
		return f, nil
	}

	if err := json.Unmarshal([]byte(specJSON), &f.predicates); err != nil {
		return nil, fmt.Errorf("filter: invalid specification: %w", err)
	}
	for i, p := range f.predicates {
		if strings.TrimSpace(p.Attribute) == "" {
			return nil, fmt.Errorf("filter: predicate %d is missing an attribute", i)
		}
	}

	return f, nil
}

// Matches evaluates the predicate set against the event context. An empty
// predicate set matches everything.
func (f *Filter) Matches(ctx *event.Context) bool {
	if len(f.predicates) == 0 {
		return true
	}

	for _, p := range f.predicates {
		matched := p.matches(ctx)
		if matched && f.mode == FilterModeAny {
			return true
		}
		if !matched && f.mode == FilterModeAll {
			return false
		}
	}

	return f.mode == FilterModeAll
}

func (p predicate) matches(ctx *event.Context) bool {
	actual, ok := attributeValue(ctx, p.Attribute)
	if !ok {
		return false
	}

	switch expected := p.Equals.(type) {
	case string:
		return actual == expected
	case []any:
		for _, candidate := range expected {
			if actual == stringify(candidate) {
				return true
			}
		}
		return false
	case nil:
		// Presence check: the attribute exists with any value.
		return true
	default:
		return actual == stringify(expected)
	}
}

func attributeValue(ctx *event.Context, name string) (string, bool) {
	if v, ok := ctx.Attribute(name); ok {
		return v, true
	}
	if v, ok := ctx.Extension(name); ok {
		return stringify(v), true
	}
	return "", false
}
