package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySeedsBuiltins(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		want Type
	}{
		{"shortint", &Integer{Bits: 8}},
		{"byte", &Integer{Bits: 8}},
		{"smallint", &Integer{Bits: 16}},
		{"word", &Integer{Bits: 16}},
		{"integer", &Integer{Bits: 32}},
		{"longint", &Integer{Bits: 32}},
		{"int64", &Integer{Bits: 64}},
		{"char", &Character{}},
		{"single", &Real{Bits: 32}},
		{"real", &Real{Bits: 64}},
		{"double", &Real{Bits: 64}},
		{"boolean", &Boolean{}},
		{"string", &String{}},
		{"pointer", &Pointer{}},
		{"pinteger", &Pointer{Base: &Integer{Bits: 32}}},
	}
	for _, tt := range tests {
		got, ok := r.Lookup(tt.name)
		require.True(t, ok, tt.name)
		assert.True(t, got.Equal(tt.want), tt.name)
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	got, ok := r.Lookup("Integer")
	require.True(t, ok)
	assert.True(t, got.Equal(&Integer{Bits: 32}))
}

func TestEqualityReflexiveAndSymmetric(t *testing.T) {
	all := []Type{
		&Integer{Bits: 32},
		&Character{},
		&Real{Bits: 64},
		&Boolean{},
		&String{},
		&Pointer{Base: &Integer{Bits: 32}},
		&FixedArray{Low: 1, High: 3, Element: &Integer{Bits: 32}},
		&DynArray{Element: &Integer{Bits: 32}},
		&Record{Fields: []Field{{Name: "x", Type: &Integer{Bits: 32}}}},
		&Enum{Name: "color", Values: []EnumValue{{Name: "red", Value: 0}}},
		&ValueRange{Low: 1, High: 5},
		&File{},
	}
	for i, a := range all {
		assert.True(t, a.Equal(a), a.TypeName())
		for j, b := range all {
			if i == j {
				continue
			}
			assert.Equal(t, a.Equal(b), b.Equal(a), "%s vs %s", a.TypeName(), b.TypeName())
			assert.False(t, a.Equal(b), "%s vs %s", a.TypeName(), b.TypeName())
		}
	}
}

func TestValueRangeBits(t *testing.T) {
	assert.Equal(t, 32, (&ValueRange{Low: 0, High: 100}).Bits())
	assert.Equal(t, 32, (&ValueRange{Low: 0, High: 1<<32 - 1}).Bits())
	assert.Equal(t, 64, (&ValueRange{Low: 0, High: 1 << 33}).Bits())
}

func TestFixedArrayLen(t *testing.T) {
	a := &FixedArray{Low: 1, High: 3, Element: &Integer{Bits: 32}}
	assert.Equal(t, int64(3), a.Len())
}

func TestRecordFieldIndex(t *testing.T) {
	r := &Record{Fields: []Field{
		{Name: "Name", Type: &String{}},
		{Name: "Age", Type: &Integer{Bits: 32}},
	}}
	assert.Equal(t, 0, r.FieldIndex("name"))
	assert.Equal(t, 1, r.FieldIndex("AGE"))
	assert.Equal(t, -1, r.FieldIndex("missing"))
}

func TestEnumLookup(t *testing.T) {
	e := &Enum{Name: "color", Values: []EnumValue{
		{Name: "red", Value: 0},
		{Name: "green", Value: 5},
	}}
	assert.True(t, e.HasKey("Green"))
	value, ok := e.ValueOf("green")
	require.True(t, ok)
	assert.Equal(t, int64(5), value)
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNumeric(&Integer{Bits: 32}))
	assert.True(t, IsNumeric(&Real{Bits: 64}))
	assert.False(t, IsNumeric(&String{}))
	assert.False(t, IsNumeric(&Boolean{}))

	assert.True(t, IsSimple(&Pointer{}))
	assert.False(t, IsSimple(&String{}))
	assert.False(t, IsSimple(&Record{}))

	assert.Equal(t, 8, IntegerBits(&Character{}))
	assert.Equal(t, 1, IntegerBits(&Boolean{}))
	assert.Equal(t, 32, IntegerBits(&Enum{}))
}

func TestRegistryMergeDoesNotOverwrite(t *testing.T) {
	a := NewRegistry()
	a.Define("t", &Integer{Bits: 8})
	b := NewRegistry()
	b.Define("t", &Integer{Bits: 64})
	b.Define("other", &String{})

	a.Merge(b)
	got, _ := a.Lookup("t")
	assert.True(t, got.Equal(&Integer{Bits: 8}))
	_, ok := a.Lookup("other")
	assert.True(t, ok)
}

func TestEnumWithKey(t *testing.T) {
	r := NewRegistry()
	r.Define("color", &Enum{Name: "color", Values: []EnumValue{{Name: "red", Value: 0}}})
	e, ok := r.EnumWithKey("red")
	require.True(t, ok)
	assert.Equal(t, "color", e.Name)
	_, ok = r.EnumWithKey("blue")
	assert.False(t, ok)
}
