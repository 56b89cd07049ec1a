package schema

import "fmt"

// Snapshot is an immutable view of a Model handed to check runs. It shares
// no mutable state with the Model, so edits made after it was taken do not
// affect a running check.
type Snapshot struct {
	objects  []*ObjectSpec
	byID     map[string]*ObjectSpec
	byIdent  map[string]*ObjectSpec
	warnings []Warning
}

// ObjectSpec is the read-only view of an Object.
type ObjectSpec struct {
	id           string
	name         string
	abbreviation string
	identValue   string
	concept      bool
	tested       bool
	propertySets []*PropertySetSpec
	allowed      map[string]bool
}

func (o *ObjectSpec) ID() string           { return o.id }
func (o *ObjectSpec) Name() string         { return o.name }
func (o *ObjectSpec) Abbreviation() string { return o.abbreviation }
func (o *ObjectSpec) IdentValue() string   { return o.identValue }
func (o *ObjectSpec) IsConcept() bool      { return o.concept }

// Tested reports whether instances of the object are checked at all.
func (o *ObjectSpec) Tested() bool { return o.tested }

// PropertySets returns the property sets selected for checking.
func (o *ObjectSpec) PropertySets() []*PropertySetSpec {
	return append([]*PropertySetSpec(nil), o.propertySets...)
}

// AllowedParents returns the identifiers of objects an instance may be grouped under.
func (o *ObjectSpec) AllowedParents() []string {
	out := make([]string, 0, len(o.allowed))
	for id := range o.allowed {
		out = append(out, id)
	}
	return out
}

// PropertySetSpec is the read-only view of a PropertySet.
type PropertySetSpec struct {
	name       string
	attributes []*AttributeSpec
}

func (p *PropertySetSpec) Name() string { return p.name }

func (p *PropertySetSpec) Attributes() []*AttributeSpec {
	return append([]*AttributeSpec(nil), p.attributes...)
}

// AttributeSpec is the read-only view of an Attribute.
type AttributeSpec struct {
	id          string
	name        string
	propertySet string
	values      []any
	kind        ValueKind
	dataType    DataType
}

// NewAttributeSpec builds a standalone attribute view.
func NewAttributeSpec(propertySet, name string, kind ValueKind, dataType DataType, values ...any) *AttributeSpec {
	return &AttributeSpec{
		id:          propertySet + ":" + name,
		name:        name,
		propertySet: propertySet,
		values:      expandValues(values),
		kind:        kind,
		dataType:    dataType,
	}
}

func (a *AttributeSpec) ID() string          { return a.id }
func (a *AttributeSpec) Name() string        { return a.name }
func (a *AttributeSpec) PropertySet() string { return a.propertySet }
func (a *AttributeSpec) Kind() ValueKind     { return a.kind }
func (a *AttributeSpec) DataType() DataType  { return a.dataType }

// Values returns a copy of the declared values.
func (a *AttributeSpec) Values() []any { return cloneValues(a.values) }

func (a *AttributeSpec) String() string {
	return fmt.Sprintf("%s:%s", a.propertySet, a.name)
}

// SnapshotOption configures Snapshot.
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	excluded map[string]bool
}

// WithExcluded leaves the given objects, property sets and attributes out
// of the check. An object without any selected attribute is not tested.
func WithExcluded(ids ...string) SnapshotOption {
	return func(c *snapshotConfig) {
		for _, id := range ids {
			c.excluded[id] = true
		}
	}
}

// Snapshot copies the parts of the model a check needs.
func (m *Model) Snapshot(opts ...SnapshotOption) *Snapshot {
	cfg := &snapshotConfig{excluded: map[string]bool{}}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Snapshot{
		byID:    map[string]*ObjectSpec{},
		byIdent: map[string]*ObjectSpec{},
	}
	for _, o := range m.registry.Objects() {
		spec := &ObjectSpec{
			id:           o.id,
			name:         o.name,
			abbreviation: o.abbreviation,
			identValue:   o.IdentValue(),
			concept:      o.IsConcept(),
			allowed:      map[string]bool{},
		}
		if !cfg.excluded[o.id] {
			for _, p := range o.propertySets {
				if cfg.excluded[p.id] {
					continue
				}
				ps := &PropertySetSpec{name: p.name}
				for _, a := range p.attributes {
					if cfg.excluded[a.id] {
						continue
					}
					ps.attributes = append(ps.attributes, &AttributeSpec{
						id:          a.id,
						name:        a.name,
						propertySet: p.name,
						values:      cloneValues(a.values),
						kind:        a.kind,
						dataType:    a.dataType,
					})
				}
				if len(ps.attributes) > 0 {
					spec.propertySets = append(spec.propertySets, ps)
				}
			}
		}
		spec.tested = len(spec.propertySets) > 0
		s.objects = append(s.objects, spec)
		s.byID[o.id] = spec
		if !spec.concept && spec.identValue != "" {
			if _, dup := s.byIdent[spec.identValue]; !dup {
				s.byIdent[spec.identValue] = spec
			}
		}
	}

	for _, o := range m.registry.Objects() {
		parents, cycles := allowedParents(o)
		for _, p := range parents {
			s.byID[o.id].allowed[p.id] = true
		}
		for _, c := range cycles {
			s.warnings = append(s.warnings, Warning{
				Kind:    WarnCycle,
				Subject: o.id,
				Message: fmt.Sprintf("inheritance cycle while resolving parents of %s at %s", o, c),
			})
		}
	}
	return s
}

// allowedParents walks the incoming aggregation edges of o. AGGREGATION
// edges yield their source; INHERITANCE edges are transparent and the walk
// continues at the source's own incoming edges.
func allowedParents(o *Object) (parents []*Object, cycles []*Object) {
	seen := map[*Object]bool{}
	visited := map[*Object]bool{o: true}
	var walk func(x *Object)
	walk = func(x *Object) {
		for _, e := range x.aggregatesFrom {
			if e.kind != Inheritance {
				if !seen[e.from] {
					seen[e.from] = true
					parents = append(parents, e.from)
				}
				continue
			}
			if visited[e.from] {
				cycles = append(cycles, e.from)
				continue
			}
			visited[e.from] = true
			walk(e.from)
		}
	}
	walk(o)
	return parents, cycles
}

// Objects returns every object of the snapshot.
func (s *Snapshot) Objects() []*ObjectSpec {
	return append([]*ObjectSpec(nil), s.objects...)
}

// Object looks up an object by identifier.
func (s *Snapshot) Object(id string) (*ObjectSpec, bool) {
	o, ok := s.byID[id]
	return o, ok
}

// ObjectByIdentValue resolves the object an instance classification maps to.
func (s *Snapshot) ObjectByIdentValue(v string) (*ObjectSpec, bool) {
	o, ok := s.byIdent[v]
	return o, ok
}

// IsParentAllowed reports whether an instance of child may be grouped under an instance of parent.
func (s *Snapshot) IsParentAllowed(child, parent *ObjectSpec) bool {
	if child == nil || parent == nil {
		return false
	}
	return child.allowed[parent.id]
}

// Warnings lists cycles found while resolving allowed parents.
func (s *Snapshot) Warnings() []Warning {
	return append([]Warning(nil), s.warnings...)
}
