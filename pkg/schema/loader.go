package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileSchema struct {
	Name                   string            `yaml:"name"`
	Version                string            `yaml:"version"`
	PredefinedPropertySets []filePropertySet `yaml:"predefined_property_sets"`
	Objects                []fileObject      `yaml:"objects"`
}

type fileObject struct {
	Name             string            `yaml:"name"`
	Abbreviation     string            `yaml:"abbreviation"`
	Description      string            `yaml:"description"`
	Parent           string            `yaml:"parent"`
	IdentPropertySet string            `yaml:"ident_property_set"`
	IdentAttribute   string            `yaml:"ident_attribute"`
	PropertySets     []filePropertySet `yaml:"property_sets"`
	ConsistsOf       *[]fileEdge       `yaml:"consists_of"`
}

type filePropertySet struct {
	Name       string          `yaml:"name"`
	Parent     string          `yaml:"parent"`
	Attributes []fileAttribute `yaml:"attributes"`
}

type fileAttribute struct {
	Name                string `yaml:"name"`
	Description         string `yaml:"description"`
	Kind                string `yaml:"kind"`
	DataType            string `yaml:"data_type"`
	Values              []any  `yaml:"values"`
	ChildInheritsValues bool   `yaml:"child_inherits_values"`
}

// fileEdge accepts either a bare abbreviation or a mapping with a kind.
type fileEdge struct {
	Abbreviation string `yaml:"abbreviation"`
	Kind         string `yaml:"kind"`
}

func (e *fileEdge) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Abbreviation = node.Value
		return nil
	}
	type plain fileEdge
	return node.Decode((*plain)(e))
}

// LoadFile reads a YAML schema file.
func LoadFile(path string, opts ...Option) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	m, err := Load(bytes.NewReader(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", path, err)
	}
	return m, nil
}

// Load builds a Model from YAML. Broken references do not fail the load;
// they are recorded as warnings and the affected link is left out.
func Load(r io.Reader, opts ...Option) (*Model, error) {
	var fs fileSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid schema document: %w", err)
	}

	m := NewModel(opts...)
	m.SetInfo(fs.Name, fs.Version)

	predefined := map[string]*PropertySet{}
	for _, fp := range fs.PredefinedPropertySets {
		p := m.NewPropertySet(fp.Name, nil)
		if err := m.loadAttributes(p, fp.Attributes); err != nil {
			return nil, err
		}
		predefined[fp.Name] = p
	}

	objects := make([]*Object, len(fs.Objects))
	byAbbreviation := map[string]*Object{}
	for i, fo := range fs.Objects {
		o := m.NewObject(fo.Name, fo.Abbreviation)
		o.description = fo.Description
		objects[i] = o
		if key := strings.ToLower(fo.Abbreviation); key != "" {
			if prev, dup := byAbbreviation[key]; dup {
				m.warn(WarnDuplicateAbbreviation, o.id, "abbreviation %q of %s already used by %s", fo.Abbreviation, o.name, prev.name)
			} else {
				byAbbreviation[key] = o
			}
		}
		for _, fp := range fo.PropertySets {
			p := m.NewPropertySet(fp.Name, o)
			if fp.Parent != "" {
				parent, ok := predefined[fp.Parent]
				if !ok {
					m.warn(WarnUnknownParent, p.id, "property set %s references unknown predefined set %q", p, fp.Parent)
				} else if err := m.AddChildPropertySet(parent, p); err != nil {
					return nil, err
				}
			}
			if err := m.loadAttributes(p, fp.Attributes); err != nil {
				return nil, err
			}
		}
	}

	// identifying attributes
	for i, fo := range fs.Objects {
		o := objects[i]
		if fo.IdentPropertySet == "" && fo.IdentAttribute == "" {
			continue
		}
		var ident *Attribute
		if p := o.PropertySet(fo.IdentPropertySet); p != nil {
			ident = p.Attribute(fo.IdentAttribute)
		}
		if ident == nil {
			m.warn(WarnMissingIdentAttribute, o.id, "identifying attribute %s:%s of %s not found",
				fo.IdentPropertySet, fo.IdentAttribute, o.name)
			continue
		}
		if err := m.SetIdentAttribute(o, ident); err != nil {
			return nil, err
		}
	}

	// object hierarchy
	for i, fo := range fs.Objects {
		if fo.Parent == "" {
			continue
		}
		o := objects[i]
		parent, ok := byAbbreviation[strings.ToLower(fo.Parent)]
		if !ok {
			m.warn(WarnUnknownParent, o.id, "%s references unknown parent abbreviation %q", o.name, fo.Parent)
			continue
		}
		if err := m.SetObjectParent(o, parent); err != nil {
			m.warn(WarnCycle, o.id, "parent %q of %s ignored: %v", fo.Parent, o.name, err)
		}
	}

	// composition
	for i, fo := range fs.Objects {
		o := objects[i]
		if fo.ConsistsOf == nil {
			if !o.IsConcept() {
				m.warn(WarnMissingComposition, o.id, "%s has no consists_of entry", o.name)
			}
			continue
		}
		for _, fe := range *fo.ConsistsOf {
			target, ok := byAbbreviation[strings.ToLower(fe.Abbreviation)]
			if !ok {
				m.warn(WarnUnknownAggregation, o.id, "%s aggregates unknown abbreviation %q", o.name, fe.Abbreviation)
				continue
			}
			kind, err := ParseConnectionKind(fe.Kind)
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", o.name, err)
			}
			if _, err := m.AddAggregation(o, target, kind); err != nil {
				m.warn(WarnCycle, o.id, "aggregation %s -> %s ignored: %v", o.name, target.name, err)
			}
		}
	}
	return m, nil
}

func (m *Model) loadAttributes(p *PropertySet, attrs []fileAttribute) error {
	for _, fa := range attrs {
		kind, err := ParseValueKind(fa.Kind)
		if err != nil {
			return fmt.Errorf("attribute %s:%s: %w", p.name, fa.Name, err)
		}
		dt, err := ParseDataType(fa.DataType)
		if err != nil {
			return fmt.Errorf("attribute %s:%s: %w", p.name, fa.Name, err)
		}
		// inherited copies already exist when the set has a predefined parent
		if existing := p.attributeFold(fa.Name); existing != nil && existing.parent != nil {
			if !existing.frozen() {
				m.SetAttributeValue(existing, fa.Values)
			}
			continue
		}
		a, err := m.CreateAttribute(p, fa.Name, fa.Values, kind, dt)
		if err != nil {
			return err
		}
		a.description = fa.Description
		if fa.ChildInheritsValues {
			m.SetChildInheritsValues(a, true)
		}
	}
	return nil
}
