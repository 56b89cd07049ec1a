package schema

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Model is the schema hierarchy. All entities are created and mutated
// through it so that inheritance links stay consistent. A Model is not safe
// for concurrent mutation; checks run against a Snapshot instead.
type Model struct {
	name     string
	version  string
	registry *Registry
	logger   logrus.FieldLogger
	newID    func() string
	warnings []Warning
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger used for integrity warnings.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithIDGenerator replaces the uuid based identifier source.
func WithIDGenerator(fn func() string) Option {
	return func(m *Model) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewModel creates an empty schema.
func NewModel(opts ...Option) *Model {
	m := &Model{
		registry: NewRegistry(),
		logger:   logrus.StandardLogger(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes read access to the entities of the model.
func (m *Model) Registry() *Registry {
	return m.registry
}

// Name is the project name of the schema.
func (m *Model) Name() string { return m.name }

// Version is the project version of the schema.
func (m *Model) Version() string { return m.version }

// SetInfo sets the project name and version.
func (m *Model) SetInfo(name, version string) {
	m.name = name
	m.version = version
}

// Warnings returns the integrity warnings recorded while the model was built.
func (m *Model) Warnings() []Warning {
	return append([]Warning(nil), m.warnings...)
}

func (m *Model) warn(kind WarningKind, subject, format string, args ...any) {
	w := Warning{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)}
	m.warnings = append(m.warnings, w)
	m.logger.WithFields(logrus.Fields{
		"kind":    kind.String(),
		"subject": subject,
	}).Warn(w.Message)
}

// NewObject registers a concept object. Use SetIdentAttribute to make it identifiable.
func (m *Model) NewObject(name, abbreviation string) *Object {
	o := &Object{id: m.newID(), name: name, abbreviation: abbreviation}
	m.registry.addObject(o)
	return o
}

// NewPropertySet registers a property set owned by owner, or a predefined set when owner is nil.
func (m *Model) NewPropertySet(name string, owner *Object) *PropertySet {
	p := &PropertySet{id: m.newID(), name: name, owner: owner}
	if owner != nil {
		owner.propertySets = append(owner.propertySets, p)
	}
	m.registry.addPropertySet(p)
	return p
}

// NewAttribute registers a detached attribute. Pipe delimited strings in
// values are expanded into separate values.
func (m *Model) NewAttribute(name string, values []any, kind ValueKind, dataType DataType) *Attribute {
	a := &Attribute{
		id:       m.newID(),
		name:     name,
		values:   expandValues(values),
		kind:     kind,
		dataType: dataType,
	}
	m.registry.addAttribute(a)
	return a
}

// CreateAttribute is NewAttribute followed by AddAttribute.
func (m *Model) CreateAttribute(pset *PropertySet, name string, values []any, kind ValueKind, dataType DataType) (*Attribute, error) {
	a := m.NewAttribute(name, values, kind, dataType)
	if err := m.AddAttribute(pset, a); err != nil {
		m.registry.removeAttribute(a)
		return nil, err
	}
	return a, nil
}

// SetDescription sets the free text description of an attribute.
func (m *Model) SetDescription(a *Attribute, description string) {
	a.description = description
}

// SetObjectDescription sets the free text description of an object.
func (m *Model) SetObjectDescription(o *Object, description string) {
	o.description = description
}

// AddAttribute attaches attr to pset and creates one linked copy in every
// descendant property set. A descendant that already holds an uninherited
// attribute of the same name (case-insensitive) links that one instead.
func (m *Model) AddAttribute(pset *PropertySet, attr *Attribute) error {
	if pset == nil || attr == nil {
		return ErrNotFound
	}
	if attr.pset == pset {
		return nil
	}
	if attr.pset != nil {
		return fmt.Errorf("attribute %s already belongs to %s", attr.name, attr.pset)
	}
	attr.pset = pset
	pset.attributes = append(pset.attributes, attr)
	m.propagate(attr, map[string]bool{pset.id: true})
	return nil
}

// propagate makes sure every child property set of attr's set holds a copy.
func (m *Model) propagate(attr *Attribute, visited map[string]bool) {
	for _, child := range attr.pset.children {
		if visited[child.id] {
			m.warn(WarnCycle, child.id, "property set %s visited twice while propagating %s", child, attr)
			continue
		}
		visited[child.id] = true
		if c := m.inheritInto(attr, child); c != nil {
			m.propagate(c, visited)
		}
	}
}

// inheritInto returns the attribute of child linked to parent, creating it when needed.
func (m *Model) inheritInto(parent *Attribute, child *PropertySet) *Attribute {
	if c := child.childOf(parent); c != nil {
		return c
	}
	if c := child.attributeFold(parent.name); c != nil {
		if c.parent != nil {
			m.logger.WithFields(logrus.Fields{
				"attribute":    c.String(),
				"parent":       parent.String(),
				"other_parent": c.parent.String(),
			}).Warn("attribute already inherits from another parent; not relinked")
			return nil
		}
		m.link(parent, c)
		return c
	}
	c := &Attribute{
		id:                  m.newID(),
		name:                parent.name,
		description:         parent.description,
		values:              cloneValues(parent.values),
		kind:                parent.kind,
		dataType:            parent.dataType,
		childInheritsValues: parent.childInheritsValues,
		pset:                child,
	}
	m.registry.addAttribute(c)
	child.attributes = append(child.attributes, c)
	m.link(parent, c)
	return c
}

func (m *Model) link(parent, child *Attribute) {
	child.parent = parent
	parent.children = append(parent.children, child)
	walkAttribute(child, func(x *Attribute) {
		x.name = parent.name
		x.kind = parent.kind
		x.dataType = parent.dataType
	})
	if parent.childInheritsValues {
		child.values = cloneValues(parent.values)
		m.mirror(child, map[string]bool{})
	}
}

func (m *Model) unlink(a *Attribute) {
	if a.parent == nil {
		return
	}
	a.parent.children = removeAttr(a.parent.children, a)
	a.parent = nil
}

// RemoveAttribute removes attr from pset together with every propagated
// copy. A copy that identifies its own object is detached and kept.
func (m *Model) RemoveAttribute(pset *PropertySet, attr *Attribute) error {
	if pset == nil || attr == nil || attr.pset != pset {
		return ErrNotFound
	}
	if attr.IsIdentifier() {
		return fmt.Errorf("%s: %w", attr, ErrIdentifyingAttribute)
	}
	m.deleteAttribute(attr, map[string]bool{})
	return nil
}

func (m *Model) deleteAttribute(a *Attribute, visited map[string]bool) {
	if visited[a.id] {
		return
	}
	visited[a.id] = true
	for _, c := range a.children {
		if c.IsIdentifier() {
			c.parent = nil
			continue
		}
		c.parent = nil
		m.deleteAttribute(c, visited)
	}
	a.children = nil
	m.unlink(a)
	if a.pset != nil {
		a.pset.attributes = removeAttr(a.pset.attributes, a)
		a.pset = nil
	}
	m.registry.removeAttribute(a)
}

// DeletePropertySet removes pset from its object. When pset holds the
// object's identifying attribute only its siblings are removed.
func (m *Model) DeletePropertySet(pset *PropertySet) error {
	if pset == nil {
		return ErrNotFound
	}
	if _, ok := m.registry.PropertySet(pset.id); !ok {
		return ErrNotFound
	}
	owner := pset.owner
	if owner != nil && owner.identAttr != nil && owner.identAttr.pset == pset {
		for _, a := range pset.Attributes() {
			if a != owner.identAttr {
				m.deleteAttribute(a, map[string]bool{})
			}
		}
		return nil
	}
	m.dropPropertySet(pset)
	return nil
}

func (m *Model) dropPropertySet(pset *PropertySet) {
	visited := map[string]bool{}
	for _, a := range pset.Attributes() {
		m.deleteAttribute(a, visited)
	}
	for _, c := range pset.children {
		c.parent = nil
	}
	pset.children = nil
	if pset.parent != nil {
		pset.parent.children = removePset(pset.parent.children, pset)
		pset.parent = nil
	}
	if pset.owner != nil {
		pset.owner.propertySets = removePset(pset.owner.propertySets, pset)
	}
	m.registry.removePropertySet(pset)
}

// DeleteObject removes an object with its property sets and aggregation edges.
// Child objects are detached and become roots.
func (m *Model) DeleteObject(o *Object) error {
	if o == nil {
		return ErrNotFound
	}
	if _, ok := m.registry.Object(o.id); !ok {
		return ErrNotFound
	}
	o.identAttr = nil
	for _, p := range o.PropertySets() {
		m.dropPropertySet(p)
	}
	for _, e := range append(o.AggregatesTo(), o.AggregatesFrom()...) {
		m.RemoveAggregation(e)
	}
	for _, c := range o.children {
		c.parent = nil
	}
	o.children = nil
	if o.parent != nil {
		o.parent.children = removeObject(o.parent.children, o)
		o.parent = nil
	}
	m.registry.removeObject(o)
	return nil
}

// AddChildPropertySet makes child inherit from parent.
func (m *Model) AddChildPropertySet(parent, child *PropertySet) error {
	if parent == nil || child == nil {
		return ErrNotFound
	}
	return m.SetPropertySetParent(child, parent)
}

// SetPropertySetParent moves pset under newParent (nil removes the parent).
// Copies inherited from the old parent are deleted first; then every
// attribute of the new parent is linked to the same named local attribute or
// copied in. Local attributes without a counterpart stay uninherited.
func (m *Model) SetPropertySetParent(pset, newParent *PropertySet) error {
	if pset == nil {
		return ErrNotFound
	}
	if newParent == pset.parent {
		return nil
	}
	if newParent != nil {
		seen := map[string]bool{}
		for p := newParent; p != nil; p = p.parent {
			if p == pset || seen[p.id] {
				return fmt.Errorf("%s under %s: %w", pset, newParent, ErrCycle)
			}
			seen[p.id] = true
		}
	}

	if old := pset.parent; old != nil {
		visited := map[string]bool{}
		for _, a := range pset.Attributes() {
			if a.parent == nil || a.parent.pset != old {
				continue
			}
			if a.IsIdentifier() {
				m.unlink(a)
				continue
			}
			m.deleteAttribute(a, visited)
		}
		old.children = removePset(old.children, pset)
		pset.parent = nil
	}

	if newParent == nil {
		return nil
	}
	pset.parent = newParent
	newParent.children = append(newParent.children, pset)
	for _, pa := range newParent.attributes {
		if c := m.inheritInto(pa, pset); c != nil {
			m.propagate(c, map[string]bool{pset.id: true})
		}
	}
	return nil
}

// SetObjectParent moves o under parent (nil makes it a root). Property sets
// of o are relinked to the same named property set of the new parent.
func (m *Model) SetObjectParent(o, parent *Object) error {
	if o == nil {
		return ErrNotFound
	}
	if parent == o.parent {
		return nil
	}
	if parent != nil {
		seen := map[string]bool{}
		for p := parent; p != nil; p = p.parent {
			if p == o || seen[p.id] {
				return fmt.Errorf("%s under %s: %w", o, parent, ErrCycle)
			}
			seen[p.id] = true
		}
	}
	if o.parent != nil {
		o.parent.children = removeObject(o.parent.children, o)
	}
	o.parent = parent
	if parent != nil {
		parent.children = append(parent.children, o)
	}

	for _, p := range o.PropertySets() {
		if p.parent != nil && p.parent.owner == nil {
			// predefined parents are independent of the object tree
			continue
		}
		var target *PropertySet
		if parent != nil {
			target = parent.propertySetFold(p.name)
		}
		if err := m.SetPropertySetParent(p, target); err != nil {
			return err
		}
	}
	return nil
}

// SetAttributeValue assigns values, expanding pipe delimited strings. It is a
// no-op returning false when the values are frozen by the parent attribute.
func (m *Model) SetAttributeValue(a *Attribute, values []any) bool {
	if a.frozen() {
		return false
	}
	a.values = expandValues(values)
	m.mirror(a, map[string]bool{})
	return true
}

// SetChildInheritsValues toggles value inheritance and mirrors the values
// into the children when enabled.
func (m *Model) SetChildInheritsValues(a *Attribute, inherit bool) {
	a.childInheritsValues = inherit
	if inherit {
		m.mirror(a, map[string]bool{})
	}
}

func (m *Model) mirror(a *Attribute, visited map[string]bool) {
	if !a.childInheritsValues || visited[a.id] {
		return
	}
	visited[a.id] = true
	for _, c := range a.children {
		c.values = cloneValues(a.values)
		m.mirror(c, visited)
	}
}

// RenameAttribute renames a root attribute and all of its copies.
func (m *Model) RenameAttribute(a *Attribute, name string) error {
	if a.parent != nil {
		return fmt.Errorf("rename %s: %w", a, ErrInheritedAttribute)
	}
	walkAttribute(a, func(x *Attribute) { x.name = name })
	return nil
}

// SetValueKind changes the value kind of a root attribute and all of its copies.
func (m *Model) SetValueKind(a *Attribute, kind ValueKind) error {
	if a.parent != nil {
		return fmt.Errorf("value kind of %s: %w", a, ErrInheritedAttribute)
	}
	walkAttribute(a, func(x *Attribute) { x.kind = kind })
	return nil
}

// SetDataType changes the datatype of a root attribute and all of its copies.
func (m *Model) SetDataType(a *Attribute, dataType DataType) error {
	if a.parent != nil {
		return fmt.Errorf("data type of %s: %w", a, ErrInheritedAttribute)
	}
	walkAttribute(a, func(x *Attribute) { x.dataType = dataType })
	return nil
}

func walkAttribute(a *Attribute, fn func(*Attribute)) {
	visited := map[*Attribute]bool{}
	var walk func(*Attribute)
	walk = func(x *Attribute) {
		if visited[x] {
			return
		}
		visited[x] = true
		fn(x)
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(a)
}

// RenamePropertySet renames pset and every descendant property set.
func (m *Model) RenamePropertySet(pset *PropertySet, name string) {
	visited := map[*PropertySet]bool{}
	var walk func(*PropertySet)
	walk = func(p *PropertySet) {
		if visited[p] {
			return
		}
		visited[p] = true
		p.name = name
		for _, c := range p.children {
			walk(c)
		}
	}
	walk(pset)
}

// RenameObject renames o and every descendant object.
func (m *Model) RenameObject(o *Object, name string) {
	visited := map[*Object]bool{}
	var walk func(*Object)
	walk = func(x *Object) {
		if visited[x] {
			return
		}
		visited[x] = true
		x.name = name
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(o)
}

// SetAbbreviation changes the abbreviation of o.
func (m *Model) SetAbbreviation(o *Object, abbreviation string) {
	o.abbreviation = abbreviation
}

// SetIdentAttribute marks a as the identifying attribute of o. A nil
// attribute turns o into a concept.
func (m *Model) SetIdentAttribute(o *Object, a *Attribute) error {
	if o == nil {
		return ErrNotFound
	}
	if a != nil && (a.pset == nil || a.pset.owner != o) {
		return fmt.Errorf("%s is not an attribute of %s: %w", a, o, ErrNotFound)
	}
	o.identAttr = a
	return nil
}

// AddAggregation records that from is composed of to. Adding an existing
// edge returns it unchanged.
func (m *Model) AddAggregation(from, to *Object, kind ConnectionKind) (*AggregationEdge, error) {
	if from == nil || to == nil {
		return nil, ErrNotFound
	}
	if from == to {
		return nil, fmt.Errorf("%s aggregates itself: %w", from, ErrCycle)
	}
	for _, e := range from.aggregatesTo {
		if e.to == to && e.kind == kind {
			return e, nil
		}
	}
	e := &AggregationEdge{id: m.newID(), from: from, to: to, kind: kind}
	from.aggregatesTo = append(from.aggregatesTo, e)
	to.aggregatesFrom = append(to.aggregatesFrom, e)
	m.registry.addEdge(e)
	return e, nil
}

// RemoveAggregation deletes an aggregation edge.
func (m *Model) RemoveAggregation(e *AggregationEdge) {
	if e == nil {
		return
	}
	e.from.aggregatesTo = removeEdge(e.from.aggregatesTo, e)
	e.to.aggregatesFrom = removeEdge(e.to.aggregatesFrom, e)
	m.registry.removeEdge(e)
}

func expandValues(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && strings.Contains(s, "|") {
			for _, part := range strings.Split(s, "|") {
				out = append(out, part)
			}
			continue
		}
		out = append(out, cloneValue(v))
	}
	return out
}

func cloneValues(values []any) []any {
	if values == nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if list, ok := v.([]any); ok {
		return cloneValues(list)
	}
	return v
}
