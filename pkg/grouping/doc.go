// Package grouping rebuilds the group tree of a model file and checks it
// against the aggregation graph of the schema.
//
// Build starts at every root group (a group that is not itself assigned to
// a group) and sets a parent pointer on each member it reaches. Checker then
// reports empty groups, groups with repeated classifications, elements
// without any group, members whose class may not sit under their parent's
// class, suspicious nesting layers and assignment cycles.
package grouping
