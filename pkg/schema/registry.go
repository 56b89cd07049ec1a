package schema

import "strings"

// Registry owns identity for the entities of one schema. Lookups are by
// identifier; iteration follows insertion order.
type Registry struct {
	objects      map[string]*Object
	propertySets map[string]*PropertySet
	attributes   map[string]*Attribute
	edges        map[string]*AggregationEdge

	objectOrder []string
	psetOrder   []string
	attrOrder   []string
	edgeOrder   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects:      make(map[string]*Object),
		propertySets: make(map[string]*PropertySet),
		attributes:   make(map[string]*Attribute),
		edges:        make(map[string]*AggregationEdge),
	}
}

func (r *Registry) addObject(o *Object) {
	r.objects[o.id] = o
	r.objectOrder = append(r.objectOrder, o.id)
}

func (r *Registry) addPropertySet(p *PropertySet) {
	r.propertySets[p.id] = p
	r.psetOrder = append(r.psetOrder, p.id)
}

func (r *Registry) addAttribute(a *Attribute) {
	r.attributes[a.id] = a
	r.attrOrder = append(r.attrOrder, a.id)
}

func (r *Registry) addEdge(e *AggregationEdge) {
	r.edges[e.id] = e
	r.edgeOrder = append(r.edgeOrder, e.id)
}

func (r *Registry) removeObject(o *Object) {
	delete(r.objects, o.id)
	r.objectOrder = dropID(r.objectOrder, o.id)
}

func (r *Registry) removePropertySet(p *PropertySet) {
	delete(r.propertySets, p.id)
	r.psetOrder = dropID(r.psetOrder, p.id)
}

func (r *Registry) removeAttribute(a *Attribute) {
	delete(r.attributes, a.id)
	r.attrOrder = dropID(r.attrOrder, a.id)
}

func (r *Registry) removeEdge(e *AggregationEdge) {
	delete(r.edges, e.id)
	r.edgeOrder = dropID(r.edgeOrder, e.id)
}

func dropID(ids []string, id string) []string {
	for i, x := range ids {
		if x == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Object looks up an object by identifier.
func (r *Registry) Object(id string) (*Object, bool) {
	o, ok := r.objects[id]
	return o, ok
}

// PropertySet looks up a property set by identifier.
func (r *Registry) PropertySet(id string) (*PropertySet, bool) {
	p, ok := r.propertySets[id]
	return p, ok
}

// Attribute looks up an attribute by identifier.
func (r *Registry) Attribute(id string) (*Attribute, bool) {
	a, ok := r.attributes[id]
	return a, ok
}

// Edge looks up an aggregation edge by identifier.
func (r *Registry) Edge(id string) (*AggregationEdge, bool) {
	e, ok := r.edges[id]
	return e, ok
}

func (r *Registry) Objects() []*Object {
	out := make([]*Object, 0, len(r.objectOrder))
	for _, id := range r.objectOrder {
		out = append(out, r.objects[id])
	}
	return out
}

func (r *Registry) PropertySets() []*PropertySet {
	out := make([]*PropertySet, 0, len(r.psetOrder))
	for _, id := range r.psetOrder {
		out = append(out, r.propertySets[id])
	}
	return out
}

func (r *Registry) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(r.attrOrder))
	for _, id := range r.attrOrder {
		out = append(out, r.attributes[id])
	}
	return out
}

func (r *Registry) Edges() []*AggregationEdge {
	out := make([]*AggregationEdge, 0, len(r.edgeOrder))
	for _, id := range r.edgeOrder {
		out = append(out, r.edges[id])
	}
	return out
}

// PredefinedPropertySets returns the property sets without an owning object.
func (r *Registry) PredefinedPropertySets() []*PropertySet {
	var out []*PropertySet
	for _, id := range r.psetOrder {
		if p := r.propertySets[id]; p.owner == nil {
			out = append(out, p)
		}
	}
	return out
}

// ObjectByName returns the first object with the given name.
func (r *Registry) ObjectByName(name string) (*Object, bool) {
	for _, id := range r.objectOrder {
		if o := r.objects[id]; o.name == name {
			return o, true
		}
	}
	return nil, false
}

// ObjectByAbbreviation matches case-insensitively.
func (r *Registry) ObjectByAbbreviation(abbreviation string) (*Object, bool) {
	for _, id := range r.objectOrder {
		if o := r.objects[id]; o.abbreviation != "" && strings.EqualFold(o.abbreviation, abbreviation) {
			return o, true
		}
	}
	return nil, false
}

// ObjectByIdentValue returns the non-concept object whose identifying value equals v.
func (r *Registry) ObjectByIdentValue(v string) (*Object, bool) {
	for _, id := range r.objectOrder {
		if o := r.objects[id]; !o.IsConcept() && o.IdentValue() == v {
			return o, true
		}
	}
	return nil, false
}

// Len returns the number of registered objects, property sets and attributes.
func (r *Registry) Len() (objects, propertySets, attributes int) {
	return len(r.objects), len(r.propertySets), len(r.attributes)
}
