package validation

import (
	"fmt"
	"math"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/somcheck/pkg/instances"
	"github.com/platinummonkey/somcheck/pkg/schema"
)

// Config controls instance identification.
type Config struct {
	// IdentPropertySet and IdentAttribute locate the classification value
	// that maps an instance onto a schema object.
	IdentPropertySet string
	IdentAttribute   string
	// PatternCacheSize bounds the compiled FORMAT pattern cache.
	PatternCacheSize int
}

// DefaultConfig returns the default identification settings.
func DefaultConfig() *Config {
	return &Config{
		IdentPropertySet: "Allgemeine Eigenschaften",
		IdentAttribute:   "bauteilKlassifikation",
		PatternCacheSize: 512,
	}
}

// Validator checks instance values against schema attributes. It holds no
// per-run state and is safe for concurrent use.
type Validator struct {
	config   *Config
	patterns *lru.Cache[string, *regexp.Regexp]
	logger   logrus.FieldLogger
}

// NewValidator creates a validator. A nil config uses DefaultConfig.
func NewValidator(config *Config, logger logrus.FieldLogger) (*Validator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	size := config.PatternCacheSize
	if size <= 0 {
		size = DefaultConfig().PatternCacheSize
	}
	patterns, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}
	return &Validator{config: config, patterns: patterns, logger: logger}, nil
}

// Config returns the identification settings.
func (v *Validator) Config() Config { return *v.config }

// CheckValue validates a raw value against attr. The value-kind check runs
// first, the datatype check second. The result depends only on the arguments.
func (v *Validator) CheckValue(value any, attr *schema.AttributeSpec) []Issue {
	return v.checkValue("Value", value, attr)
}

func (v *Validator) checkValue(subject string, value any, attr *schema.AttributeSpec) []Issue {
	var issues []Issue
	newIssue := func(t IssueType, format string, args ...any) Issue {
		return Issue{
			Type:        t,
			Description: subject + " " + fmt.Sprintf(format, args...),
			PropertySet: attr.PropertySet(),
			Attribute:   attr.Name(),
			Value:       formatValue(value),
		}
	}

	switch attr.Kind() {
	case schema.ValueList:
		if !inList(value, attr.Values()) {
			issues = append(issues, newIssue(IssueList, "has a value not allowed for %s", attr))
		}
	case schema.ValueRange:
		if !inRanges(value, attr.Values()) {
			issues = append(issues, newIssue(IssueRange, "%s is outside the allowed ranges", attr))
		}
	case schema.ValueFormat:
		if !v.matchesFormat(value, attr.Values()) {
			issues = append(issues, newIssue(IssueFormat, "does not have the required format for %s", attr))
		}
	}

	if !matchesDataType(value, attr.DataType()) {
		issues = append(issues, newIssue(IssueDatatype, "has wrong datatype (%s not allowed) %s", valueTypeName(value), attr))
	}
	return issues
}

// CheckInstance runs the presence checks and the value checks of every
// selected attribute of obj. A missing property set skips its attributes;
// a missing or empty attribute skips its value checks.
func (v *Validator) CheckInstance(inst instances.Instance, obj *schema.ObjectSpec) []Issue {
	if obj == nil || !obj.Tested() {
		return nil
	}
	subject := inst.Type()
	if subject == "" {
		subject = "Instance"
	}

	var issues []Issue
	for _, ps := range obj.PropertySets() {
		values, ok := inst.PropertySet(ps.Name())
		if !ok {
			issues = append(issues, Issue{
				GUID:        inst.GUID(),
				Type:        IssuePropertySet,
				Description: fmt.Sprintf("%s is missing the property set %s", subject, ps.Name()),
				PropertySet: ps.Name(),
			})
			continue
		}
		for _, attr := range ps.Attributes() {
			value, present := values[attr.Name()]
			switch {
			case !present:
				issues = append(issues, Issue{
					GUID:        inst.GUID(),
					Type:        IssueAttributeExist,
					Description: fmt.Sprintf("%s is missing the attribute %s", subject, attr),
					PropertySet: ps.Name(),
					Attribute:   attr.Name(),
				})
			case isEmpty(value):
				issues = append(issues, Issue{
					GUID:        inst.GUID(),
					Type:        IssueEmptyValue,
					Description: fmt.Sprintf("%s has an empty attribute %s", subject, attr),
					PropertySet: ps.Name(),
					Attribute:   attr.Name(),
				})
			default:
				for _, issue := range v.checkValue(subject, value, attr) {
					issue.GUID = inst.GUID()
					issues = append(issues, issue)
				}
			}
		}
	}
	return issues
}

// IdentValue returns the classification value of inst. ok is false when the
// identifying property set or attribute is absent or empty.
func (v *Validator) IdentValue(inst instances.Instance) (string, bool) {
	value, present := instances.Value(inst, v.config.IdentPropertySet, v.config.IdentAttribute)
	if !present || isEmpty(value) {
		return "", false
	}
	return formatValue(value), true
}

// Identify resolves the schema object inst maps to. When it cannot be
// resolved the returned issue explains why and the object is nil.
func (v *Validator) Identify(inst instances.Instance, snap *schema.Snapshot) (*schema.ObjectSpec, *Issue) {
	pset, attr := v.config.IdentPropertySet, v.config.IdentAttribute
	subject := inst.Type()
	if subject == "" {
		subject = "Instance"
	}

	values, ok := inst.PropertySet(pset)
	if !ok {
		return nil, &Issue{
			GUID:        inst.GUID(),
			Type:        IssueIdentPropertySet,
			Description: fmt.Sprintf("%s is missing the identifying property set %s", subject, pset),
			PropertySet: pset,
		}
	}
	value, present := values[attr]
	if !present || isEmpty(value) {
		return nil, &Issue{
			GUID:        inst.GUID(),
			Type:        IssueIdentAttribute,
			Description: fmt.Sprintf("%s is missing the identifying attribute %s:%s", subject, pset, attr),
			PropertySet: pset,
			Attribute:   attr,
		}
	}
	ident := formatValue(value)
	obj, ok := snap.ObjectByIdentValue(ident)
	if !ok {
		return nil, &Issue{
			GUID:        inst.GUID(),
			Type:        IssueUnknownIdent,
			Description: fmt.Sprintf("%s value of %s:%s matches no known object", subject, pset, attr),
			PropertySet: pset,
			Attribute:   attr,
			Value:       ident,
		}
	}
	return obj, nil
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

// inList compares the string forms. An empty declaration allows anything.
func inList(value any, allowed []any) bool {
	if len(allowed) == 0 {
		return true
	}
	s := formatValue(value)
	for _, a := range allowed {
		if formatValue(a) == s {
			return true
		}
	}
	return false
}

// inRanges reports whether value lies within any [low, high] entry. A single
// bound is open-ended upwards.
func inRanges(value any, ranges []any) bool {
	x, ok := toFloat(value)
	if !ok {
		return false
	}
	for _, r := range ranges {
		bounds, ok := r.([]any)
		if !ok {
			bounds = []any{r}
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		n := 0
		for _, b := range bounds {
			f, ok := toFloat(b)
			if !ok {
				continue
			}
			lo, hi = math.Min(lo, f), math.Max(hi, f)
			n++
		}
		switch {
		case n == 0:
			continue
		case n == 1 && x >= lo:
			return true
		case n > 1 && lo <= x && x <= hi:
			return true
		}
	}
	return false
}

// matchesFormat anchors each pattern at the start of the value.
func (v *Validator) matchesFormat(value any, patterns []any) bool {
	s := formatValue(value)
	for _, p := range patterns {
		re := v.pattern(formatValue(p))
		if re != nil && re.MatchString(s) {
			return true
		}
	}
	return false
}

func (v *Validator) pattern(p string) *regexp.Regexp {
	if re, ok := v.patterns.Get(p); ok {
		return re
	}
	re, err := regexp.Compile("^(?:" + p + ")")
	if err != nil {
		v.logger.WithError(err).WithField("pattern", p).Warn("invalid format pattern")
		re = nil
	}
	v.patterns.Add(p, re)
	return re
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func matchesDataType(value any, dt schema.DataType) bool {
	switch value.(type) {
	case string:
		return dt == schema.DataString
	case bool:
		return dt == schema.DataBool
	case float32, float64:
		return dt == schema.DataDouble
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return dt == schema.DataInt
	default:
		return false
	}
}

// valueTypeName names the runtime type with its IFC measure type.
func valueTypeName(value any) string {
	switch value.(type) {
	case string:
		return "IfcText/IfcLabel"
	case bool:
		return "IfcBoolean"
	case float32, float64:
		return "IfcReal"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "IfcInteger"
	default:
		return fmt.Sprintf("%T", value)
	}
}
