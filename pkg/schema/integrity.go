package schema

import (
	"fmt"
	"sort"
	"strings"
)

// WarningKind classifies a schema integrity warning.
type WarningKind int

const (
	WarnUnknownParent WarningKind = iota
	WarnDuplicateAbbreviation
	WarnUnknownAggregation
	WarnMissingComposition
	WarnMissingIdentAttribute
	WarnDuplicateIdentValue
	WarnCycle
)

func (k WarningKind) String() string {
	switch k {
	case WarnUnknownParent:
		return "unknown_parent"
	case WarnDuplicateAbbreviation:
		return "duplicate_abbreviation"
	case WarnUnknownAggregation:
		return "unknown_aggregation"
	case WarnMissingComposition:
		return "missing_composition"
	case WarnMissingIdentAttribute:
		return "missing_ident_attribute"
	case WarnDuplicateIdentValue:
		return "duplicate_ident_value"
	case WarnCycle:
		return "cycle"
	default:
		return fmt.Sprintf("warning(%d)", int(k))
	}
}

// Warning is a non fatal schema integrity problem. The schema stays usable.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// CheckIntegrity inspects the current state of the model. The result is
// independent of the warnings recorded while loading.
func (m *Model) CheckIntegrity() []Warning {
	var out []Warning
	add := func(kind WarningKind, subject, format string, args ...any) {
		out = append(out, Warning{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	abbreviations := map[string][]string{}
	idents := map[string][]string{}
	for _, o := range m.registry.Objects() {
		if o.abbreviation != "" {
			key := strings.ToLower(o.abbreviation)
			abbreviations[key] = append(abbreviations[key], o.name)
		}
		if o.identAttr == nil {
			continue
		}
		if o.identAttr.pset == nil || o.identAttr.pset.owner != o {
			add(WarnMissingIdentAttribute, o.id, "identifying attribute of %s is not part of its property sets", o)
			continue
		}
		if v := o.IdentValue(); v != "" {
			idents[v] = append(idents[v], o.name)
		} else {
			add(WarnMissingIdentAttribute, o.id, "identifying attribute of %s has no value", o)
		}
	}
	for _, key := range sortedKeys(abbreviations) {
		if names := abbreviations[key]; len(names) > 1 {
			add(WarnDuplicateAbbreviation, key, "abbreviation %q used by %s", key, strings.Join(names, ", "))
		}
	}
	for _, key := range sortedKeys(idents) {
		if names := idents[key]; len(names) > 1 {
			add(WarnDuplicateIdentValue, key, "identifying value %q used by %s", key, strings.Join(names, ", "))
		}
	}

	for _, cycle := range m.aggregationCycles() {
		add(WarnCycle, cycle[0], "aggregation cycle: %s", strings.Join(cycle, " -> "))
	}
	return out
}

// aggregationCycles returns one path per back edge in the aggregation graph.
func (m *Model) aggregationCycles() [][]string {
	visited := map[*Object]bool{}
	onStack := map[*Object]bool{}
	var stack []*Object
	var cycles [][]string

	var visit func(o *Object)
	visit = func(o *Object) {
		visited[o] = true
		onStack[o] = true
		stack = append(stack, o)
		for _, e := range o.aggregatesTo {
			if onStack[e.to] {
				var path []string
				start := false
				for _, s := range stack {
					if s == e.to {
						start = true
					}
					if start {
						path = append(path, s.name)
					}
				}
				cycles = append(cycles, append(path, e.to.name))
				continue
			}
			if !visited[e.to] {
				visit(e.to)
			}
		}
		stack = stack[:len(stack)-1]
		onStack[o] = false
	}

	for _, o := range m.registry.Objects() {
		if !visited[o] {
			visit(o)
		}
	}
	return cycles
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
