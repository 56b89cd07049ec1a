package validation

import (
	"fmt"
	"strings"
)

// IssueType is the typed code of a validation finding. The numeric values
// are persisted and must not be reordered.
type IssueType int

const (
	IssueDatatype IssueType = iota + 1
	IssueList
	IssueRange
	IssueFormat
	IssuePropertySet
	IssueAttributeExist
	IssueEmptyValue
	IssueIdentPropertySet
	IssueIdentAttribute
	IssueUnknownIdent
	IssueGUIDCollision
	IssueGroupEmpty
	IssueGroupRepetitive
	IssueGroupMissing
	IssueGroupParent
	IssueGroupLayer
	IssueGroupCycle
)

var issueTypeNames = map[IssueType]string{
	IssueDatatype:         "DATATYPE",
	IssueList:             "LIST",
	IssueRange:            "RANGE",
	IssueFormat:           "FORMAT",
	IssuePropertySet:      "PROPERTY_SET",
	IssueAttributeExist:   "ATTRIBUTE_EXIST",
	IssueEmptyValue:       "EMPTY_VALUE",
	IssueIdentPropertySet: "IDENT_PROPERTY_SET",
	IssueIdentAttribute:   "IDENT_ATTRIBUTE",
	IssueUnknownIdent:     "UNKNOWN_IDENT",
	IssueGUIDCollision:    "GUID_COLLISION",
	IssueGroupEmpty:       "GROUP_EMPTY",
	IssueGroupRepetitive:  "GROUP_REPETITIVE",
	IssueGroupMissing:     "GROUP_MISSING",
	IssueGroupParent:      "GROUP_PARENT",
	IssueGroupLayer:       "GROUP_LAYER",
	IssueGroupCycle:       "GROUP_CYCLE",
}

func (t IssueType) String() string {
	if name, ok := issueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ISSUE(%d)", int(t))
}

// ParseIssueType accepts the name or the numeric code.
func ParseIssueType(s string) (IssueType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t, name := range issueTypeNames {
		if name == s || fmt.Sprint(int(t)) == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown issue type %q", s)
}

// IssueTypes lists every known code in numeric order.
func IssueTypes() []IssueType {
	out := make([]IssueType, 0, len(issueTypeNames))
	for t := IssueDatatype; t <= IssueGroupCycle; t++ {
		out = append(out, t)
	}
	return out
}

// Issue is one schema-vs-instance mismatch. Several issues may target the
// same instance.
type Issue struct {
	GUID        string    `json:"guid"`
	Type        IssueType `json:"issue_type"`
	Description string    `json:"description"`
	PropertySet string    `json:"property_set,omitempty"`
	Attribute   string    `json:"attribute,omitempty"`
	Value       string    `json:"value,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Type, i.GUID, i.Description)
}

// formatValue renders an offending value the way it is stored.
func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
