package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_CheckIntegrity(t *testing.T) {
	m := newTestModel(t)
	a := m.NewObject("Wand", "WA")
	b := m.NewObject("Wand 2", "wa")
	for _, o := range []*Object{a, b} {
		p := m.NewPropertySet("Allgemeine Eigenschaften", o)
		ident, err := m.CreateAttribute(p, "bauteilKlassifikation", []any{"1.1"}, ValueList, DataString)
		require.NoError(t, err)
		require.NoError(t, m.SetIdentAttribute(o, ident))
	}
	empty := m.NewObject("Leer", "LE")
	p := m.NewPropertySet("Allgemeine Eigenschaften", empty)
	ident, err := m.CreateAttribute(p, "bauteilKlassifikation", nil, ValueList, DataString)
	require.NoError(t, err)
	require.NoError(t, m.SetIdentAttribute(empty, ident))

	_, err = m.AddAggregation(a, empty, Aggregation)
	require.NoError(t, err)
	_, err = m.AddAggregation(empty, a, Aggregation)
	require.NoError(t, err)

	warnings := m.CheckIntegrity()
	var kinds []WarningKind
	for _, w := range warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []WarningKind{
		WarnMissingIdentAttribute,
		WarnDuplicateAbbreviation,
		WarnDuplicateIdentValue,
		WarnCycle,
	}, kinds)
	assert.Contains(t, warnings[3].Message, "Wand -> Leer -> Wand")
	assert.Equal(t, "cycle", WarnCycle.String())
}

func TestModel_CheckIntegrityClean(t *testing.T) {
	m := loadTestProject(t)
	for _, w := range m.CheckIntegrity() {
		// the fixture only carries the duplicate abbreviation
		assert.Equal(t, WarnDuplicateAbbreviation, w.Kind, w.String())
	}
}
