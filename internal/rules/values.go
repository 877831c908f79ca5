// internal/rules/values.go
package rules

import (
	"regexp"
	"strconv"
	"strings"
)

/*
 * Value sub-languages for date expressions.
 *
 * Both date-spec and duration values are whitespace separated field=value
 * clusters over the same nine field names. They differ in what a value may be:
 *   - date-spec: a non-negative integer or an inclusive low-high range, with
 *     per-field bounds (hours 0-23, monthdays 1-31, ...)
 *   - duration: a non-negative integer only
 *
 * A repeated field keeps the last value. Serialization always walks fields in
 * canonical order, so two values with equal fields render identically no
 * matter how they were written.
 *
 * years and weekyears are unbounded; their digits are compared as decimal
 * strings so arbitrarily long values validate without overflow.
 */

// DateField identifies one of the nine date-spec/duration fields.
type DateField int

const (
	FieldHours DateField = iota
	FieldMonthdays
	FieldWeekdays
	FieldYeardays
	FieldMonths
	FieldWeeks
	FieldYears
	FieldWeekyears
	FieldMoon
	numDateFields
)

var dateFieldNames = [numDateFields]string{
	"hours",
	"monthdays",
	"weekdays",
	"yeardays",
	"months",
	"weeks",
	"years",
	"weekyears",
	"moon",
}

func (f DateField) String() string {
	if f < 0 || f >= numDateFields {
		return "DateField(" + strconv.Itoa(int(f)) + ")"
	}
	return dateFieldNames[f]
}

// DateFields returns all fields in canonical order.
func DateFields() []DateField {
	fields := make([]DateField, numDateFields)
	for i := range fields {
		fields[i] = DateField(i)
	}
	return fields
}

// LookupDateField maps a field name to its DateField.
func LookupDateField(name string) (DateField, bool) {
	for i, n := range dateFieldNames {
		if n == name {
			return DateField(i), true
		}
	}
	return 0, false
}

// fieldLimit bounds a date-spec field; unbounded fields accept any digits.
type fieldLimit struct {
	min, max  int64
	unbounded bool
}

var dateSpecLimits = [numDateFields]fieldLimit{
	FieldHours:     {min: 0, max: 23},
	FieldMonthdays: {min: 1, max: 31},
	FieldWeekdays:  {min: 1, max: 7},
	FieldYeardays:  {min: 1, max: 366},
	FieldMonths:    {min: 1, max: 12},
	FieldWeeks:     {min: 1, max: 53},
	FieldYears:     {unbounded: true},
	FieldWeekyears: {unbounded: true},
	FieldMoon:      {min: 0, max: 7},
}

var (
	dateSpecPartRe = regexp.MustCompile(`^([0-9]+)(?:-([0-9]+))?$`)
	durationPartRe = regexp.MustCompile(`^[0-9]+$`)
)

// dateParts holds the fields shared by DateSpecValue and DurationValue.
type dateParts struct {
	values [numDateFields]string
	set    [numDateFields]bool
}

func (p *dateParts) put(f DateField, value string) {
	p.values[f] = value
	p.set[f] = true
}

// Get returns the raw value of field f and whether it is present.
func (p *dateParts) Get(f DateField) (string, bool) {
	if f < 0 || f >= numDateFields {
		return "", false
	}
	return p.values[f], p.set[f]
}

// Fields returns the present fields in canonical order.
func (p *dateParts) Fields() []DateField {
	var fields []DateField
	for i := range p.set {
		if p.set[i] {
			fields = append(fields, DateField(i))
		}
	}
	return fields
}

// Len returns the number of present fields.
func (p *dateParts) Len() int {
	n := 0
	for _, ok := range p.set {
		if ok {
			n++
		}
	}
	return n
}

// String renders present fields as canonical field=value pairs.
func (p *dateParts) String() string {
	parts := make([]string, 0, numDateFields)
	for _, f := range p.Fields() {
		parts = append(parts, dateFieldNames[f]+"="+p.values[f])
	}
	return strings.Join(parts, " ")
}

// parse splits s into field=value parts without checking values.
func (p *dateParts) parse(s, language string) error {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return &ValueSyntaxError{Language: language, Reason: ReasonEmpty}
	}
	for _, part := range parts {
		name, value, hasValue := strings.Cut(part, "=")
		f, ok := LookupDateField(name)
		if !ok {
			return &ValueSyntaxError{Language: language, Part: part, Reason: ReasonUnexpectedPart}
		}
		if !hasValue {
			return &ValueSyntaxError{Language: language, Part: part, Field: name, Reason: ReasonMissingAssign}
		}
		if value == "" {
			return &ValueSyntaxError{Language: language, Part: part, Field: name, Reason: ReasonMissingValue}
		}
		p.put(f, value)
	}
	return nil
}

// DateSpecValue is a recurring calendar pattern such as "weekdays=1-5 hours=9-17".
type DateSpecValue struct {
	dateParts
}

// ParseDateSpec parses a date-spec field cluster.
func ParseDateSpec(s string) (*DateSpecValue, error) {
	v := &DateSpecValue{}
	if err := v.parse(s, LanguageDateSpec); err != nil {
		return nil, err
	}
	for _, f := range v.Fields() {
		if !validDateSpecPart(f, v.values[f]) {
			return nil, &ValueSyntaxError{
				Language: LanguageDateSpec,
				Part:     dateFieldNames[f] + "=" + v.values[f],
				Field:    dateFieldNames[f],
				Value:    v.values[f],
				Reason:   ReasonInvalidValue,
			}
		}
	}
	return v, nil
}

// validDateSpecPart checks a single value or low-high range against the field limits.
func validDateSpecPart(f DateField, value string) bool {
	m := dateSpecPartRe.FindStringSubmatch(value)
	if m == nil {
		return false
	}
	low, high := m[1], m[2]
	if !withinLimit(f, low) {
		return false
	}
	if high == "" {
		return true
	}
	if !withinLimit(f, high) {
		return false
	}
	return compareDecimal(low, high) <= 0
}

func withinLimit(f DateField, digits string) bool {
	limit := dateSpecLimits[f]
	if limit.unbounded {
		return true
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return false
	}
	return n >= limit.min && n <= limit.max
}

// compareDecimal compares two unsigned decimal digit strings of any length.
func compareDecimal(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// DurationValue is a relative time span such as "months=1 weeks=2".
type DurationValue struct {
	dateParts
}

// ParseDuration parses a duration field cluster.
func ParseDuration(s string) (*DurationValue, error) {
	v := &DurationValue{}
	if err := v.parse(s, LanguageDuration); err != nil {
		return nil, err
	}
	for _, f := range v.Fields() {
		if !durationPartRe.MatchString(v.values[f]) {
			return nil, &ValueSyntaxError{
				Language: LanguageDuration,
				Part:     dateFieldNames[f] + "=" + v.values[f],
				Field:    dateFieldNames[f],
				Value:    v.values[f],
				Reason:   ReasonInvalidValue,
			}
		}
	}
	return v, nil
}
