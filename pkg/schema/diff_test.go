package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	oldModel := loadTestProject(t)
	newModel := loadTestProject(t)

	assert.Empty(t, Diff(oldModel, newModel))

	reg := newModel.Registry()
	wall, _ := reg.ObjectByAbbreviation("WA")
	dims := wall.PropertySet("Maße")
	width := dims.Attribute("Breite")
	require.NoError(t, newModel.SetDataType(width, DataInt))
	newModel.SetAttributeValue(dims.Attribute("Material"), []any{"Holz", "Beton"})
	require.NoError(t, newModel.RemoveAttribute(dims, width))
	_, err := newModel.CreateAttribute(dims, "Tiefe", nil, ValueList, DataDouble)
	require.NoError(t, err)

	inner, _ := reg.ObjectByAbbreviation("IW")
	require.NoError(t, newModel.DeleteObject(inner))

	extra := newModel.NewObject("Fenster", "FE")
	p := newModel.NewPropertySet("Allgemeine Eigenschaften", extra)
	ident, err := newModel.CreateAttribute(p, "bauteilKlassifikation", []any{"1.2"}, ValueList, DataString)
	require.NoError(t, err)
	require.NoError(t, newModel.SetIdentAttribute(extra, ident))
	newModel.RenameObject(wall, "Wände")

	changes := Diff(oldModel, newModel)

	assert.Contains(t, changes, Change{Kind: ChangeRemoved, Object: "1.1.1"})
	assert.Contains(t, changes, Change{Kind: ChangeAdded, Object: "1.2"})
	assert.Contains(t, changes, Change{Kind: ChangeModified, Object: "1.1", Field: "name", Old: "Wand", New: "Wände"})
	assert.Contains(t, changes, Change{Kind: ChangeRemoved, Object: "1.1", PropertySet: "Maße", Attribute: "Breite"})
	assert.Contains(t, changes, Change{Kind: ChangeAdded, Object: "1.1", PropertySet: "Maße", Attribute: "Tiefe"})
	// value order is ignored
	for _, c := range changes {
		assert.NotEqual(t, "Material", c.Attribute)
	}
	assert.Len(t, changes, 5)
}

func TestDiff_AttributeFields(t *testing.T) {
	build := func(kind ValueKind, dt DataType, values ...any) *Model {
		m := newTestModel(t)
		o := m.NewObject("Wand", "WA")
		p := m.NewPropertySet("Maße", o)
		_, err := m.CreateAttribute(p, "Breite", values, kind, dt)
		require.NoError(t, err)
		return m
	}

	changes := Diff(build(ValueList, DataString, "a"), build(ValueFormat, DataInt, "b"))
	require.Len(t, changes, 3)
	assert.Equal(t, "kind", changes[0].Field)
	assert.Equal(t, "data_type", changes[1].Field)
	assert.Equal(t, "values", changes[2].Field)
	assert.Equal(t, "Wand", changes[0].Object)
	assert.Contains(t, changes[0].String(), "LIST")
}
