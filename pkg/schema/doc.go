// Package schema holds the classification schema: objects (classes of
// building elements), their property sets and attributes, and the
// aggregation graph between objects.
//
// # Inheritance
//
// Property sets inherit from a parent property set. Every attribute of the
// parent has exactly one linked copy in each descendant set; copies are
// created by AddAttribute and SetPropertySetParent and removed again by
// RemoveAttribute. Name, value kind and datatype are changed on the root
// attribute only and flow down to every copy. Values flow down only while
// the parent has ChildInheritsValues set; the copies are frozen meanwhile.
//
//	m := schema.NewModel()
//	wall := m.NewObject("Wand", "WA")
//	common := m.NewPropertySet("Allgemeine Eigenschaften", wall)
//	ident, _ := m.CreateAttribute(common, "bauteilKlassifikation",
//		[]any{"1.2.3"}, schema.ValueList, schema.DataString)
//	_ = m.SetIdentAttribute(wall, ident)
//
// # Snapshots
//
// A check run never touches the Model. It works on a Snapshot, an immutable
// copy with the check selection applied and the allowed aggregation parents
// resolved:
//
//	snap := m.Snapshot(schema.WithExcluded(excludedIDs...))
//	obj, ok := snap.ObjectByIdentValue("1.2.3")
//
// # Loading
//
// LoadFile reads the YAML exchange format. Unknown parent abbreviations,
// duplicate abbreviations and unknown aggregation targets are recorded as
// Warnings instead of failing the load.
package schema
