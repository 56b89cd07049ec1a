package instances

import (
	"context"
	"sort"
)

// Instance is one occurrence read from a model file.
type Instance interface {
	GUID() string
	Name() string
	Type() string
	IsGroup() bool
	// PropertySet returns the attribute values of the named set.
	PropertySet(name string) (map[string]any, bool)
	PropertySetNames() []string
}

// Reader turns a model file into its instances.
type Reader interface {
	Read(ctx context.Context, path string) (*File, error)
}

// Value looks up a single attribute value. present reports whether the
// attribute key exists; the value may still be nil.
func Value(inst Instance, pset, attribute string) (value any, present bool) {
	values, ok := inst.PropertySet(pset)
	if !ok {
		return nil, false
	}
	value, present = values[attribute]
	return value, present
}

// Element is the in-memory Instance produced by FileReader.
type Element struct {
	guid         string
	name         string
	typ          string
	group        bool
	propertySets map[string]map[string]any
}

// NewElement builds an Element. propertySets is copied.
func NewElement(guid, name, typ string, group bool, propertySets map[string]map[string]any) *Element {
	e := &Element{
		guid:         guid,
		name:         name,
		typ:          typ,
		group:        group,
		propertySets: make(map[string]map[string]any, len(propertySets)),
	}
	for pset, values := range propertySets {
		copied := make(map[string]any, len(values))
		for k, v := range values {
			copied[k] = v
		}
		e.propertySets[pset] = copied
	}
	return e
}

func (e *Element) GUID() string  { return e.guid }
func (e *Element) Name() string  { return e.name }
func (e *Element) Type() string  { return e.typ }
func (e *Element) IsGroup() bool { return e.group }

func (e *Element) PropertySet(name string) (map[string]any, bool) {
	values, ok := e.propertySets[name]
	return values, ok
}

func (e *Element) PropertySetNames() []string {
	names := make([]string, 0, len(e.propertySets))
	for name := range e.propertySets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Element) String() string {
	return e.typ + " " + e.guid
}
