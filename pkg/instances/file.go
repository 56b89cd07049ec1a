package instances

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotGroup is returned by Assign when the holder is not a group.
var ErrNotGroup = errors.New("not a group")

// Assignment links a holder to one of its listed members.
type Assignment struct {
	Holder Instance
	Member Instance
}

// File is the instance set of one model file together with its group
// assignments. A group assignment links a group to one of its members.
type File struct {
	path       string
	instances  []Instance
	byGUID     map[string]Instance
	members    map[Instance][]Instance
	assignedTo map[Instance][]Instance
	misplaced  []Assignment
}

// NewFile creates an empty instance set for path.
func NewFile(path string) *File {
	return &File{
		path:       path,
		byGUID:     map[string]Instance{},
		members:    map[Instance][]Instance{},
		assignedTo: map[Instance][]Instance{},
	}
}

// Path is the location the file was read from.
func (f *File) Path() string { return f.path }

// Name is the base name used to tag entities and issues.
func (f *File) Name() string { return filepath.Base(f.path) }

// Add appends an instance. A repeated GUID is kept as a separate instance;
// Lookup returns the first one.
func (f *File) Add(inst Instance) {
	f.instances = append(f.instances, inst)
	if _, ok := f.byGUID[inst.GUID()]; !ok {
		f.byGUID[inst.GUID()] = inst
	}
}

// Assign records that member belongs to group.
func (f *File) Assign(group, member Instance) error {
	if !group.IsGroup() {
		return fmt.Errorf("%s: %w", group.GUID(), ErrNotGroup)
	}
	for _, m := range f.members[group] {
		if m == member {
			return nil
		}
	}
	f.members[group] = append(f.members[group], member)
	f.assignedTo[member] = append(f.assignedTo[member], group)
	return nil
}

// Misplace records a membership listed on a holder that is not a group.
// Such links are kept out of the group tree.
func (f *File) Misplace(holder, member Instance) {
	f.misplaced = append(f.misplaced, Assignment{Holder: holder, Member: member})
}

// Misplaced returns the memberships recorded by Misplace in file order.
func (f *File) Misplaced() []Assignment {
	return append([]Assignment(nil), f.misplaced...)
}

// Lookup finds an instance by GUID.
func (f *File) Lookup(guid string) (Instance, bool) {
	inst, ok := f.byGUID[guid]
	return inst, ok
}

// Instances returns every instance in file order.
func (f *File) Instances() []Instance {
	return append([]Instance(nil), f.instances...)
}

// Groups returns the group instances in file order.
func (f *File) Groups() []Instance {
	var out []Instance
	for _, inst := range f.instances {
		if inst.IsGroup() {
			out = append(out, inst)
		}
	}
	return out
}

// Elements returns the non-group instances in file order.
func (f *File) Elements() []Instance {
	var out []Instance
	for _, inst := range f.instances {
		if !inst.IsGroup() {
			out = append(out, inst)
		}
	}
	return out
}

// Members returns the direct members of group.
func (f *File) Members(group Instance) []Instance {
	return append([]Instance(nil), f.members[group]...)
}

// AssignedTo returns the groups inst is a member of.
func (f *File) AssignedTo(inst Instance) []Instance {
	return append([]Instance(nil), f.assignedTo[inst]...)
}

// Len is the number of instances.
func (f *File) Len() int { return len(f.instances) }
