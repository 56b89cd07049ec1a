package schema

import (
	"fmt"
	"strings"
)

// Object is a class of building element.
type Object struct {
	id           string
	name         string
	abbreviation string
	description  string

	// identAttr is nil for concept classes.
	identAttr *Attribute

	parent   *Object
	children []*Object

	propertySets []*PropertySet

	aggregatesTo   []*AggregationEdge
	aggregatesFrom []*AggregationEdge
}

func (o *Object) ID() string           { return o.id }
func (o *Object) Name() string         { return o.name }
func (o *Object) Abbreviation() string { return o.abbreviation }
func (o *Object) Description() string  { return o.description }
func (o *Object) Parent() *Object      { return o.parent }

// IdentAttribute returns the identifying attribute or nil for a concept.
func (o *Object) IdentAttribute() *Attribute { return o.identAttr }

// IsConcept reports whether the object has no identifying attribute.
func (o *Object) IsConcept() bool { return o.identAttr == nil }

// IdentValue is the first declared value of the identifying attribute.
func (o *Object) IdentValue() string {
	if o.identAttr == nil || len(o.identAttr.values) == 0 {
		return ""
	}
	return fmt.Sprint(o.identAttr.values[0])
}

func (o *Object) Children() []*Object {
	return append([]*Object(nil), o.children...)
}

func (o *Object) PropertySets() []*PropertySet {
	return append([]*PropertySet(nil), o.propertySets...)
}

// PropertySet returns the owned property set with the given name.
func (o *Object) PropertySet(name string) *PropertySet {
	for _, p := range o.propertySets {
		if p.name == name {
			return p
		}
	}
	return nil
}

func (o *Object) propertySetFold(name string) *PropertySet {
	for _, p := range o.propertySets {
		if strings.EqualFold(p.name, name) {
			return p
		}
	}
	return nil
}

// AggregatesTo lists the edges whose source is this object.
func (o *Object) AggregatesTo() []*AggregationEdge {
	return append([]*AggregationEdge(nil), o.aggregatesTo...)
}

// AggregatesFrom lists the edges whose target is this object.
func (o *Object) AggregatesFrom() []*AggregationEdge {
	return append([]*AggregationEdge(nil), o.aggregatesFrom...)
}

func (o *Object) String() string {
	if o.abbreviation != "" {
		return fmt.Sprintf("%s (%s)", o.name, o.abbreviation)
	}
	return o.name
}

// PropertySet is a named group of attributes. A property set without an
// owning object is predefined and may be used as a parent by any object.
type PropertySet struct {
	id    string
	name  string
	owner *Object

	parent   *PropertySet
	children []*PropertySet

	attributes []*Attribute
}

func (p *PropertySet) ID() string           { return p.id }
func (p *PropertySet) Name() string         { return p.name }
func (p *PropertySet) Object() *Object      { return p.owner }
func (p *PropertySet) Parent() *PropertySet { return p.parent }
func (p *PropertySet) IsPredefined() bool   { return p.owner == nil }

func (p *PropertySet) Children() []*PropertySet {
	return append([]*PropertySet(nil), p.children...)
}

func (p *PropertySet) Attributes() []*Attribute {
	return append([]*Attribute(nil), p.attributes...)
}

// Attribute returns the attribute with the given name.
func (p *PropertySet) Attribute(name string) *Attribute {
	for _, a := range p.attributes {
		if a.name == name {
			return a
		}
	}
	return nil
}

func (p *PropertySet) attributeFold(name string) *Attribute {
	for _, a := range p.attributes {
		if strings.EqualFold(a.name, name) {
			return a
		}
	}
	return nil
}

// childOf returns the attribute of p that is linked to parent.
func (p *PropertySet) childOf(parent *Attribute) *Attribute {
	for _, a := range p.attributes {
		if a.parent == parent {
			return a
		}
	}
	return nil
}

func (p *PropertySet) String() string {
	if p.owner == nil {
		return p.name
	}
	return p.owner.name + ":" + p.name
}

// Attribute is a single typed property definition.
type Attribute struct {
	id          string
	name        string
	description string
	values      []any
	kind        ValueKind
	dataType    DataType

	childInheritsValues bool

	parent   *Attribute
	children []*Attribute
	pset     *PropertySet
}

func (a *Attribute) ID() string                 { return a.id }
func (a *Attribute) Name() string               { return a.name }
func (a *Attribute) Description() string        { return a.description }
func (a *Attribute) Kind() ValueKind            { return a.kind }
func (a *Attribute) DataType() DataType         { return a.dataType }
func (a *Attribute) ChildInheritsValues() bool  { return a.childInheritsValues }
func (a *Attribute) Parent() *Attribute         { return a.parent }
func (a *Attribute) PropertySet() *PropertySet  { return a.pset }
func (a *Attribute) IsChild() bool              { return a.parent != nil }

func (a *Attribute) Values() []any {
	return append([]any(nil), a.values...)
}

func (a *Attribute) Children() []*Attribute {
	return append([]*Attribute(nil), a.children...)
}

// IsIdentifier reports whether a is the identifying attribute of its object.
func (a *Attribute) IsIdentifier() bool {
	return a.pset != nil && a.pset.owner != nil && a.pset.owner.identAttr == a
}

// frozen reports whether the values are mirrored from the parent.
func (a *Attribute) frozen() bool {
	return a.parent != nil && a.parent.childInheritsValues
}

func (a *Attribute) String() string {
	if a.pset == nil {
		return a.name
	}
	return a.pset.name + ":" + a.name
}

// AggregationEdge links two objects in the composition graph.
type AggregationEdge struct {
	id   string
	from *Object
	to   *Object
	kind ConnectionKind
}

func (e *AggregationEdge) ID() string           { return e.id }
func (e *AggregationEdge) From() *Object        { return e.from }
func (e *AggregationEdge) To() *Object          { return e.to }
func (e *AggregationEdge) Kind() ConnectionKind { return e.kind }

func removeAttr(list []*Attribute, a *Attribute) []*Attribute {
	for i, x := range list {
		if x == a {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func removePset(list []*PropertySet, p *PropertySet) []*PropertySet {
	for i, x := range list {
		if x == p {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func removeObject(list []*Object, o *Object) []*Object {
	for i, x := range list {
		if x == o {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func removeEdge(list []*AggregationEdge, e *AggregationEdge) []*AggregationEdge {
	for i, x := range list {
		if x == e {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
