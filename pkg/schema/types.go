package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an entity is not part of the model or of the expected owner.
	ErrNotFound = errors.New("schema entity not found")
	// ErrInheritedAttribute is returned when a change that only a root attribute may make is attempted on a propagated copy.
	ErrInheritedAttribute = errors.New("attribute is inherited; change the root attribute instead")
	// ErrCycle is returned when a parent assignment would close a cycle.
	ErrCycle = errors.New("parent assignment would create a cycle")
	// ErrIdentifyingAttribute is returned when the identifying attribute of an object would be removed.
	ErrIdentifyingAttribute = errors.New("attribute identifies its object and cannot be removed")
)

// ValueKind determines how the declared values of an attribute are interpreted.
type ValueKind int

const (
	ValueList ValueKind = iota
	ValueRange
	ValueFormat
)

func (k ValueKind) String() string {
	switch k {
	case ValueList:
		return "LIST"
	case ValueRange:
		return "RANGE"
	case ValueFormat:
		return "FORMAT"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// ParseValueKind accepts the english and german spellings used in schema files.
func ParseValueKind(s string) (ValueKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "LIST", "LISTE", "WERTE", "VALUE":
		return ValueList, nil
	case "RANGE", "BEREICH":
		return ValueRange, nil
	case "FORMAT":
		return ValueFormat, nil
	}
	return ValueList, fmt.Errorf("unknown value kind %q", s)
}

// DataType is the declared primitive type of an attribute's values.
type DataType int

const (
	DataString DataType = iota
	DataDouble
	DataBool
	DataInt
)

func (d DataType) String() string {
	switch d {
	case DataString:
		return "string"
	case DataDouble:
		return "double"
	case DataBool:
		return "bool"
	case DataInt:
		return "int"
	default:
		return fmt.Sprintf("DataType(%d)", int(d))
	}
}

// ParseDataType maps both plain and IFC type names onto a DataType.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string", "str", "ifclabel", "ifctext", "ifcidentifier":
		return DataString, nil
	case "double", "float", "real", "ifcreal":
		return DataDouble, nil
	case "bool", "boolean", "ifcboolean":
		return DataBool, nil
	case "int", "integer", "ifcinteger":
		return DataInt, nil
	}
	return DataString, fmt.Errorf("unknown data type %q", s)
}

// ConnectionKind classifies an aggregation edge.
type ConnectionKind int

const (
	// Aggregation means the target is a part of the source.
	Aggregation ConnectionKind = iota
	// Inheritance means the target takes the source's place in the composition tree.
	Inheritance
)

func (c ConnectionKind) String() string {
	if c == Inheritance {
		return "INHERITANCE"
	}
	return "AGGREGATION"
}

// ParseConnectionKind parses the connection kind of an aggregation edge.
func ParseConnectionKind(s string) (ConnectionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AGGREGATION", "AGGREGATE":
		return Aggregation, nil
	case "INHERITANCE", "INHERIT":
		return Inheritance, nil
	}
	return Aggregation, fmt.Errorf("unknown connection kind %q", s)
}
