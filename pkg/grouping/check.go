package grouping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/somcheck/pkg/instances"
	"github.com/platinummonkey/somcheck/pkg/schema"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

// Checker validates a Tree against the aggregation graph of a snapshot.
type Checker struct {
	validator *validation.Validator
	snapshot  *schema.Snapshot
}

// NewChecker creates a Checker. The validator supplies the identifying
// attribute settings.
func NewChecker(v *validation.Validator, snap *schema.Snapshot) *Checker {
	return &Checker{validator: v, snapshot: snap}
}

// Resolve maps an instance onto its schema object.
func (c *Checker) Resolve(inst instances.Instance) (*schema.ObjectSpec, bool) {
	ident, ok := c.validator.IdentValue(inst)
	if !ok {
		return nil, false
	}
	return c.snapshot.ObjectByIdentValue(ident)
}

// IsParentAllowed reports whether parent's object is an allowed aggregation
// parent of inst's object. Unresolvable instances are never allowed.
func (c *Checker) IsParentAllowed(inst, parent instances.Instance) bool {
	obj, ok := c.Resolve(inst)
	if !ok {
		return false
	}
	parentObj, ok := c.Resolve(parent)
	if !ok {
		return false
	}
	return c.snapshot.IsParentAllowed(obj, parentObj)
}

// Check runs every structural check. abort is sampled once per instance; a
// nil abort never stops.
func (c *Checker) Check(t *Tree, abort func() bool) []validation.Issue {
	var issues []validation.Issue

	for _, cycle := range t.Cycles() {
		names := make([]string, len(cycle))
		for i, g := range cycle {
			names[i] = g.GUID()
		}
		issues = append(issues, validation.Issue{
			GUID:        cycle[0].GUID(),
			Type:        validation.IssueGroupCycle,
			Description: "Group assignment cycle: " + strings.Join(names, " -> "),
		})
	}

	for _, a := range t.File().Misplaced() {
		issues = append(issues, validation.Issue{
			GUID:        a.Member.GUID(),
			Type:        validation.IssueGroupParent,
			Description: fmt.Sprintf("Element is assigned to %s, which is not a group", a.Holder.GUID()),
			Value:       a.Holder.GUID(),
		})
	}

	for _, inst := range t.File().Instances() {
		if abort != nil && abort() {
			break
		}
		if inst.IsGroup() {
			issues = append(issues, c.checkGroup(t, inst)...)
		} else if len(t.File().AssignedTo(inst)) == 0 {
			issues = append(issues, validation.Issue{
				GUID:        inst.GUID(),
				Type:        validation.IssueGroupMissing,
				Description: "Element has no group assignment",
			})
		}
		if issue, ok := c.checkParent(t, inst); ok {
			issues = append(issues, issue)
		}
	}
	return issues
}

func (c *Checker) checkGroup(t *Tree, group instances.Instance) []validation.Issue {
	var issues []validation.Issue
	members := t.Members(group)
	if len(members) == 0 {
		issues = append(issues, validation.Issue{
			GUID:        group.GUID(),
			Type:        validation.IssueGroupEmpty,
			Description: "Group has no sub-elements",
		})
	}

	seen := map[string]bool{}
	var doubled []string
	for _, m := range members {
		ident, ok := c.validator.IdentValue(m)
		if !ok {
			continue
		}
		if seen[ident] {
			doubled = append(doubled, ident)
		}
		seen[ident] = true
	}
	if len(doubled) > 0 {
		sort.Strings(doubled)
		issues = append(issues, validation.Issue{
			GUID:        group.GUID(),
			Type:        validation.IssueGroupRepetitive,
			Description: fmt.Sprintf("Group has several sub-elements with the same classification (%s)", strings.Join(doubled, ", ")),
		})
	}

	layers := t.Layers(group)
	odd, even := 0, 0
	for _, l := range layers {
		if l%2 == 0 {
			even++
		} else {
			odd++
		}
	}
	switch {
	case odd > 0 && even > 0:
		issues = append(issues, validation.Issue{
			GUID:        group.GUID(),
			Type:        validation.IssueGroupLayer,
			Description: fmt.Sprintf("Group layers are mixed %v, check the group structure", layers),
			Value:       fmt.Sprint(layers),
		})
	case odd > 0:
		issues = append(issues, validation.Issue{
			GUID:        group.GUID(),
			Type:        validation.IssueGroupLayer,
			Description: fmt.Sprintf("Group sits on odd layer %v", layers),
			Value:       fmt.Sprint(layers),
		})
	}
	return issues
}

func (c *Checker) checkParent(t *Tree, inst instances.Instance) (validation.Issue, bool) {
	parent, ok := t.Parent(inst)
	if !ok {
		return validation.Issue{}, false
	}
	obj, ok := c.Resolve(inst)
	if !ok {
		return validation.Issue{}, false
	}
	parentObj, ok := c.Resolve(parent)
	if !ok || c.snapshot.IsParentAllowed(obj, parentObj) {
		return validation.Issue{}, false
	}
	subject := inst.Type()
	if subject == "" {
		subject = "Instance"
	}
	return validation.Issue{
		GUID:        inst.GUID(),
		Type:        validation.IssueGroupParent,
		Description: fmt.Sprintf("%s has a wrong parent class (%s not allowed)", subject, parentObj.IdentValue()),
		Value:       parentObj.IdentValue(),
	}, true
}
