package grouping

import (
	"sort"

	"github.com/platinummonkey/somcheck/pkg/instances"
)

// Cycle is a closed chain of group assignments, first group repeated last.
type Cycle []instances.Instance

// Tree is the group structure reconstructed from a File. Every instance
// reachable from a root group has a parent pointer; roots have none.
type Tree struct {
	file    *instances.File
	roots   []instances.Instance
	parent  map[instances.Instance]instances.Instance
	visited map[instances.Instance]bool
	cycles  []Cycle
	layers  map[instances.Instance][]int
}

// Build walks the group assignments of f starting at every root group.
// Assignment cycles are recorded instead of followed.
func Build(f *instances.File) *Tree {
	t := &Tree{
		file:    f,
		parent:  map[instances.Instance]instances.Instance{},
		visited: map[instances.Instance]bool{},
		layers:  map[instances.Instance][]int{},
	}
	for _, g := range f.Groups() {
		if t.isRoot(g) {
			t.roots = append(t.roots, g)
		}
	}
	for _, root := range t.roots {
		t.walk(root, []instances.Instance{root})
	}
	// groups that hang only off a cycle are never reached from a root
	for _, g := range f.Groups() {
		if !t.visited[g] {
			t.walk(g, []instances.Instance{g})
		}
	}
	return t
}

func (t *Tree) isRoot(g instances.Instance) bool {
	return len(t.file.AssignedTo(g)) == 0
}

func (t *Tree) walk(group instances.Instance, path []instances.Instance) {
	t.visited[group] = true
	for _, sub := range t.file.Members(group) {
		if i := indexOf(path, sub); i >= 0 {
			cycle := append(Cycle(nil), path[i:]...)
			t.cycles = append(t.cycles, append(cycle, sub))
			continue
		}
		if _, ok := t.parent[sub]; !ok {
			t.parent[sub] = group
		}
		if sub.IsGroup() && !t.visited[sub] {
			t.walk(sub, append(path, sub))
		}
	}
}

func indexOf(path []instances.Instance, inst instances.Instance) int {
	for i, p := range path {
		if p == inst {
			return i
		}
	}
	return -1
}

// File returns the instance set the tree was built from.
func (t *Tree) File() *instances.File { return t.file }

// Roots returns the groups without a parent group.
func (t *Tree) Roots() []instances.Instance {
	return append([]instances.Instance(nil), t.roots...)
}

// Parent returns the group inst was reached from.
func (t *Tree) Parent(inst instances.Instance) (instances.Instance, bool) {
	p, ok := t.parent[inst]
	return p, ok
}

// Members returns the direct members of group.
func (t *Tree) Members(group instances.Instance) []instances.Instance {
	return t.file.Members(group)
}

// Cycles returns the assignment cycles found while building.
func (t *Tree) Cycles() []Cycle {
	return append([]Cycle(nil), t.cycles...)
}

// Layers returns every nesting depth of inst over all assignment paths.
// An instance without a group assignment sits on layer 0.
func (t *Tree) Layers(inst instances.Instance) []int {
	set, _ := t.layerSet(inst, map[instances.Instance]bool{})
	out := make([]int, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// layerSet reports complete=false when a cycle cut the walk short; such
// results are not cached.
func (t *Tree) layerSet(inst instances.Instance, onPath map[instances.Instance]bool) (set map[int]bool, complete bool) {
	if cached, ok := t.layers[inst]; ok {
		set = make(map[int]bool, len(cached))
		for _, l := range cached {
			set[l] = true
		}
		return set, true
	}
	set = map[int]bool{}
	parents := t.file.AssignedTo(inst)
	if len(parents) == 0 {
		set[0] = true
	}
	onPath[inst] = true
	complete = true
	for _, p := range parents {
		if onPath[p] {
			complete = false
			continue
		}
		parentSet, ok := t.layerSet(p, onPath)
		complete = complete && ok
		for l := range parentSet {
			set[l+1] = true
		}
	}
	delete(onPath, inst)
	if complete {
		cached := make([]int, 0, len(set))
		for l := range set {
			cached = append(cached, l)
		}
		t.layers[inst] = cached
	}
	return set, complete
}
