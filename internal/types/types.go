// Package types holds the semantic type model of the compiler. Types are
// plain values interned by name in a Registry; the IR layouts they imply
// live in the codegen package, which dispatches over the kinds here.
package types

import (
	"fmt"
	"math/bits"
	"strings"
)

// Type is the interface implemented by every semantic type.
type Type interface {
	// TypeName is the canonical (lower-case) name used for interning and
	// for building function signatures.
	TypeName() string
	// Equal reports semantic type equality.
	Equal(other Type) bool
}

// Integer is a signed integer of 8, 16, 32 or 64 bits.
type Integer struct {
	Bits int
}

func (t *Integer) TypeName() string { return fmt.Sprintf("integer%d", t.Bits) }
func (t *Integer) Equal(other Type) bool {
	o, ok := other.(*Integer)
	return ok && o.Bits == t.Bits
}

// Character is a single byte.
type Character struct{}

func (t *Character) TypeName() string { return "char" }
func (t *Character) Equal(other Type) bool {
	_, ok := other.(*Character)
	return ok
}

// Real is a floating-point type; Bits is 32 (single) or 64 (double).
type Real struct {
	Bits int
}

func (t *Real) TypeName() string {
	if t.Bits == 32 {
		return "single"
	}
	return "double"
}
func (t *Real) Equal(other Type) bool {
	o, ok := other.(*Real)
	return ok && o.Bits == t.Bits
}

// Boolean is the two-valued truth type.
type Boolean struct{}

func (t *Boolean) TypeName() string { return "boolean" }
func (t *Boolean) Equal(other Type) bool {
	_, ok := other.(*Boolean)
	return ok
}

// String is the heap-backed byte string. It is a primitive of its own, not
// an alias for an array of char.
type String struct{}

func (t *String) TypeName() string { return "string" }
func (t *String) Equal(other Type) bool {
	_, ok := other.(*String)
	return ok
}

// Pointer points to Base; a nil Base is the untyped pointer.
type Pointer struct {
	Base Type
}

func (t *Pointer) TypeName() string {
	if t.Base == nil {
		return "pointer"
	}
	return "^" + t.Base.TypeName()
}
func (t *Pointer) Equal(other Type) bool {
	o, ok := other.(*Pointer)
	if !ok {
		return false
	}
	if t.Base == nil || o.Base == nil {
		return t.Base == o.Base
	}
	return t.Base.Equal(o.Base)
}

// FixedArray is array[Low..High] of Element. Indexing subtracts Low.
type FixedArray struct {
	Low, High int64
	Element   Type
}

func (t *FixedArray) TypeName() string {
	return fmt.Sprintf("array[%d..%d] of %s", t.Low, t.High, t.Element.TypeName())
}
func (t *FixedArray) Equal(other Type) bool {
	o, ok := other.(*FixedArray)
	return ok && o.Low == t.Low && o.High == t.High && o.Element.Equal(t.Element)
}

// Len returns the element count.
func (t *FixedArray) Len() int64 { return t.High - t.Low + 1 }

// DynArray is a resizeable array of Element, indexed from 0.
type DynArray struct {
	Element Type
}

func (t *DynArray) TypeName() string { return "array of " + t.Element.TypeName() }
func (t *DynArray) Equal(other Type) bool {
	o, ok := other.(*DynArray)
	return ok && o.Element.Equal(t.Element)
}

// Field is one record field.
type Field struct {
	Name string
	Type Type
}

// Record is a struct with fields laid out in declaration order.
type Record struct {
	Name   string
	Fields []Field
}

func (t *Record) TypeName() string {
	if t.Name != "" {
		return t.Name
	}
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name + ":" + f.Type.TypeName()
	}
	return "record " + strings.Join(names, ";") + " end"
}

func (t *Record) Equal(other Type) bool {
	o, ok := other.(*Record)
	if !ok || len(o.Fields) != len(t.Fields) {
		return false
	}
	for i, f := range t.Fields {
		if !strings.EqualFold(f.Name, o.Fields[i].Name) || !f.Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

// FieldIndex returns the zero-based position of the named field, or -1.
// Field names compare case-insensitively.
func (t *Record) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// EnumValue is one enum tag with its (possibly user-assigned) value.
type EnumValue struct {
	Name  string
	Value int64
}

// Enum is an enumerated type; the IR representation is a 32-bit integer.
type Enum struct {
	Name   string
	Values []EnumValue
}

func (t *Enum) TypeName() string { return t.Name }
func (t *Enum) Equal(other Type) bool {
	o, ok := other.(*Enum)
	if !ok || len(o.Values) != len(t.Values) {
		return false
	}
	for i, v := range t.Values {
		if !strings.EqualFold(v.Name, o.Values[i].Name) || v.Value != o.Values[i].Value {
			return false
		}
	}
	return true
}

// HasKey reports whether the enum defines the named tag.
func (t *Enum) HasKey(name string) bool {
	for _, v := range t.Values {
		if strings.EqualFold(v.Name, name) {
			return true
		}
	}
	return false
}

// ValueOf returns the integer value of the named tag.
func (t *Enum) ValueOf(name string) (int64, bool) {
	for _, v := range t.Values {
		if strings.EqualFold(v.Name, name) {
			return v.Value, true
		}
	}
	return 0, false
}

// ValueRange is the closed integer interval [Low..High].
type ValueRange struct {
	Name      string
	Low, High int64
}

func (t *ValueRange) TypeName() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%d..%d", t.Low, t.High)
}
func (t *ValueRange) Equal(other Type) bool {
	o, ok := other.(*ValueRange)
	return ok && o.Low == t.Low && o.High == t.High
}

// Bits returns the IR integer width backing the range: 32 unless the upper
// bound needs more.
func (t *ValueRange) Bits() int {
	if bits.Len64(uint64(t.High)) <= 32 {
		return 32
	}
	return 64
}

// File is a file variable; Element is the record type for typed files and
// nil for text files.
type File struct {
	Element Type
}

func (t *File) TypeName() string {
	if t.Element == nil {
		return "file"
	}
	return "file of " + t.Element.TypeName()
}
func (t *File) Equal(other Type) bool {
	o, ok := other.(*File)
	if !ok {
		return false
	}
	if t.Element == nil || o.Element == nil {
		return t.Element == o.Element
	}
	return t.Element.Equal(o.Element)
}

// Unknown stands in where resolution failed; it never equals anything.
type Unknown struct{}

func (t *Unknown) TypeName() string      { return "unknown" }
func (t *Unknown) Equal(other Type) bool { return false }

// IsNumeric reports whether t takes part in arithmetic.
func IsNumeric(t Type) bool {
	switch t.(type) {
	case *Integer, *Real, *Character, *ValueRange, *Enum:
		return true
	}
	return false
}

// IsInteger reports whether t lowers to an integer register.
func IsInteger(t Type) bool {
	switch t.(type) {
	case *Integer, *Character, *Boolean, *ValueRange, *Enum:
		return true
	}
	return false
}

// IntegerBits returns the IR width of an integer-like type.
func IntegerBits(t Type) int {
	switch tt := t.(type) {
	case *Integer:
		return tt.Bits
	case *Character:
		return 8
	case *Boolean:
		return 1
	case *ValueRange:
		return tt.Bits()
	case *Enum:
		return 32
	}
	return 0
}

// IsSimple reports whether values of t are passed by value in registers.
// Strings, arrays, records and files travel behind a pointer.
func IsSimple(t Type) bool {
	switch t.(type) {
	case *Integer, *Character, *Real, *Boolean, *Pointer, *ValueRange, *Enum:
		return true
	}
	return false
}
