// Package validation checks model instances against a schema snapshot.
//
// # Overview
//
// A Validator resolves which schema object an instance belongs to (via the
// identifying property set and attribute) and then checks every selected
// attribute of that object. Findings are returned as Issue values; they are
// data, never errors.
//
// # Checks
//
// Presence:
//   - PROPERTY_SET: the instance lacks a property set, its attributes are skipped
//   - ATTRIBUTE_EXIST: the attribute key is missing
//   - EMPTY_VALUE: the key exists without a value
//
// Values, by value kind, followed by the datatype check:
//   - LIST: the string form must equal one declared value (empty list allows all)
//   - RANGE: the number must lie in one [low, high] pair, [low] is open-ended
//   - FORMAT: one pattern must match at the start of the value
//   - DATATYPE: the runtime type must fit string, double, int or bool
//
// Identification:
//   - IDENT_PROPERTY_SET, IDENT_ATTRIBUTE, UNKNOWN_IDENT
//
// # Usage Example
//
//	v, err := validation.NewValidator(validation.DefaultConfig(), logger)
//	obj, issue := v.Identify(inst, snapshot)
//	if issue != nil {
//		store(issue)
//		return
//	}
//	for _, issue := range v.CheckInstance(inst, obj) {
//		store(issue)
//	}
//
// # Related Packages
//
//   - pkg/grouping: structural checks of the group tree
//   - pkg/storage: persists issues
package validation
