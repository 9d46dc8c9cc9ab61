// Package predicate is a small boolean filter tree over directory record
// fields. The same tree is evaluated in memory by Match and rendered to a
// parameterised Postgres WHERE clause by ToSQL.
package predicate

import (
	"fmt"
	"strings"

	"trustdir/internal/identity/canonical"
)

// Field names a searchable record field.
type Field string

const (
	FieldName        Field = "name"
	FieldType        Field = "type"
	FieldSlug        Field = "slug"
	FieldHandle      Field = "handle"
	FieldProfileURL  Field = "profile_url"
	FieldWebsite     Field = "website"
	FieldPhone       Field = "phone"
	FieldAddress     Field = "address"
	FieldCity        Field = "city"
	FieldDistrict    Field = "district"
	FieldDescription Field = "description"
	FieldSummary     Field = "summary"
	FieldFeatures    Field = "features"
)

// SearchFields is the fixed field list free-text search runs over.
var SearchFields = []Field{
	FieldName,
	FieldType,
	FieldSlug,
	FieldHandle,
	FieldProfileURL,
	FieldWebsite,
	FieldAddress,
	FieldCity,
	FieldDistrict,
	FieldDescription,
	FieldSummary,
	FieldFeatures,
}

// Record is anything a predicate can be evaluated against. Fields a record
// does not have return "".
type Record interface {
	Value(f Field) string
}

// Op is a predicate node kind.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpContains
	OpEquals
	OpDigitsContains
	OpDigitsSuffix
)

// MinDigits is the shortest digit string a digit condition will match on.
const MinDigits = 6

// Predicate is an immutable filter node. Leaves carry Field and Value,
// And/Or nodes carry Children.
type Predicate struct {
	Op       Op
	Field    Field
	Value    string
	Children []Predicate
}

// And matches when every child matches. An empty And matches everything.
func And(children ...Predicate) Predicate {
	return Predicate{Op: OpAnd, Children: children}
}

// Or matches when any child matches. An empty Or matches nothing.
func Or(children ...Predicate) Predicate {
	return Predicate{Op: OpOr, Children: children}
}

// Contains is a case-insensitive substring match.
func Contains(f Field, v string) Predicate {
	return Predicate{Op: OpContains, Field: f, Value: v}
}

// Equals is a case-insensitive equality match.
func Equals(f Field, v string) Predicate {
	return Predicate{Op: OpEquals, Field: f, Value: v}
}

// DigitsContains matches when the digits of the field contain digits.
func DigitsContains(f Field, digits string) Predicate {
	return Predicate{Op: OpDigitsContains, Field: f, Value: canonical.Digits(digits)}
}

// DigitsSuffix matches when the digits of the field end with digits.
func DigitsSuffix(f Field, digits string) Predicate {
	return Predicate{Op: OpDigitsSuffix, Field: f, Value: canonical.Digits(digits)}
}

// AnyContains is Or(Contains(f, v)) over fields.
func AnyContains(fields []Field, v string) Predicate {
	children := make([]Predicate, 0, len(fields))
	for _, f := range fields {
		children = append(children, Contains(f, v))
	}
	return Or(children...)
}

// IsLeaf reports whether p is a field condition.
func (p Predicate) IsLeaf() bool {
	return p.Op != OpAnd && p.Op != OpOr
}

// Match evaluates p against r.
func (p Predicate) Match(r Record) bool {
	switch p.Op {
	case OpAnd:
		for _, c := range p.Children {
			if !c.Match(r) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range p.Children {
			if c.Match(r) {
				return true
			}
		}
		return false
	}

	if p.Value == "" {
		return false
	}
	got := r.Value(p.Field)
	if got == "" {
		return false
	}
	switch p.Op {
	case OpContains:
		return strings.Contains(strings.ToLower(got), strings.ToLower(p.Value))
	case OpEquals:
		return strings.EqualFold(got, p.Value)
	case OpDigitsContains:
		return len(p.Value) >= MinDigits && strings.Contains(canonical.Digits(got), p.Value)
	case OpDigitsSuffix:
		return len(p.Value) >= MinDigits && strings.HasSuffix(canonical.Digits(got), p.Value)
	default:
		return false
	}
}

// String renders p in a compact, stable form usable as a cache key.
func (p Predicate) String() string {
	var b strings.Builder
	p.write(&b)
	return b.String()
}

func (p Predicate) write(b *strings.Builder) {
	switch p.Op {
	case OpAnd, OpOr:
		if p.Op == OpAnd {
			b.WriteString("and(")
		} else {
			b.WriteString("or(")
		}
		for i, c := range p.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			c.write(b)
		}
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "%s(%s,%q)", opName(p.Op), p.Field, p.Value)
	}
}

func opName(op Op) string {
	switch op {
	case OpContains:
		return "contains"
	case OpEquals:
		return "eq"
	case OpDigitsContains:
		return "digits_contains"
	case OpDigitsSuffix:
		return "digits_suffix"
	default:
		return "unknown"
	}
}
