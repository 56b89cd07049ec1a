package schema

import (
	"fmt"
	"reflect"
	"sort"
)

// ChangeKind classifies a difference between two schemas.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// Change is one difference found by Diff.
type Change struct {
	Kind        ChangeKind `json:"kind"`
	Object      string     `json:"object"`
	PropertySet string     `json:"property_set,omitempty"`
	Attribute   string     `json:"attribute,omitempty"`
	Field       string     `json:"field,omitempty"`
	Old         string     `json:"old,omitempty"`
	New         string     `json:"new,omitempty"`
}

func (c Change) String() string {
	target := c.Object
	if c.PropertySet != "" {
		target += " / " + c.PropertySet
	}
	if c.Attribute != "" {
		target += " : " + c.Attribute
	}
	if c.Kind == ChangeModified {
		return fmt.Sprintf("%s %s %s: %q -> %q", c.Kind, target, c.Field, c.Old, c.New)
	}
	return fmt.Sprintf("%s %s", c.Kind, target)
}

// Diff compares two schemas. Objects are matched by identifying value,
// concepts by name; property sets and attributes by name.
func Diff(oldModel, newModel *Model) []Change {
	oldObjects := objectKeys(oldModel)
	newObjects := objectKeys(newModel)

	var changes []Change
	for _, key := range sortedKeys(oldObjects) {
		o := oldObjects[key]
		n, ok := newObjects[key]
		if !ok {
			changes = append(changes, Change{Kind: ChangeRemoved, Object: key})
			continue
		}
		if o.name != n.name {
			changes = append(changes, Change{Kind: ChangeModified, Object: key, Field: "name", Old: o.name, New: n.name})
		}
		if o.abbreviation != n.abbreviation {
			changes = append(changes, Change{Kind: ChangeModified, Object: key, Field: "abbreviation", Old: o.abbreviation, New: n.abbreviation})
		}
		changes = append(changes, diffPropertySets(key, o, n)...)
	}
	for _, key := range sortedKeys(newObjects) {
		if _, ok := oldObjects[key]; !ok {
			changes = append(changes, Change{Kind: ChangeAdded, Object: key})
		}
	}
	return changes
}

func objectKeys(m *Model) map[string]*Object {
	out := map[string]*Object{}
	for _, o := range m.registry.Objects() {
		key := o.IdentValue()
		if o.IsConcept() || key == "" {
			key = o.name
		}
		if _, dup := out[key]; !dup {
			out[key] = o
		}
	}
	return out
}

func diffPropertySets(key string, o, n *Object) []Change {
	var changes []Change
	newSets := map[string]*PropertySet{}
	for _, p := range n.propertySets {
		newSets[p.name] = p
	}
	oldNames := map[string]bool{}
	for _, p := range o.propertySets {
		oldNames[p.name] = true
		np, ok := newSets[p.name]
		if !ok {
			changes = append(changes, Change{Kind: ChangeRemoved, Object: key, PropertySet: p.name})
			continue
		}
		changes = append(changes, diffAttributes(key, p, np)...)
	}
	for _, p := range n.propertySets {
		if !oldNames[p.name] {
			changes = append(changes, Change{Kind: ChangeAdded, Object: key, PropertySet: p.name})
		}
	}
	return changes
}

func diffAttributes(key string, o, n *PropertySet) []Change {
	var changes []Change
	newAttrs := map[string]*Attribute{}
	for _, a := range n.attributes {
		newAttrs[a.name] = a
	}
	oldNames := map[string]bool{}
	for _, a := range o.attributes {
		oldNames[a.name] = true
		na, ok := newAttrs[a.name]
		if !ok {
			changes = append(changes, Change{Kind: ChangeRemoved, Object: key, PropertySet: o.name, Attribute: a.name})
			continue
		}
		base := Change{Kind: ChangeModified, Object: key, PropertySet: o.name, Attribute: a.name}
		if a.kind != na.kind {
			c := base
			c.Field, c.Old, c.New = "kind", a.kind.String(), na.kind.String()
			changes = append(changes, c)
		}
		if a.dataType != na.dataType {
			c := base
			c.Field, c.Old, c.New = "data_type", a.dataType.String(), na.dataType.String()
			changes = append(changes, c)
		}
		if !sameValues(a.values, na.values) {
			c := base
			c.Field, c.Old, c.New = "values", fmt.Sprint(a.values), fmt.Sprint(na.values)
			changes = append(changes, c)
		}
	}
	for _, a := range n.attributes {
		if !oldNames[a.name] {
			changes = append(changes, Change{Kind: ChangeAdded, Object: key, PropertySet: o.name, Attribute: a.name})
		}
	}
	return changes
}

// sameValues compares value lists ignoring order.
func sameValues(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	for i := range a {
		as[i] = fmt.Sprint(a[i])
		bs[i] = fmt.Sprint(b[i])
	}
	sort.Strings(as)
	sort.Strings(bs)
	return reflect.DeepEqual(as, bs)
}
