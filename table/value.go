// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package table

import (
	"math"
	"strconv"

	"github.com/suprsokr/go-packfile/schema"
)

// Kind tags the contents of a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindRef
)

var kindNames = [...]string{"Null", "Bool", "Int", "Uint", "Float", "String", "Ref"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one decoded cell. The zero Value is Null.
//
// Floats keep the exact bit pattern read from the wire, so single precision
// values are stored as float32 bits and never widened.
type Value struct {
	kind   Kind
	single bool
	num    uint64
	str    string
	ref    *schema.Reference
}

// Null returns the absent value of an optional string.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Int returns a signed integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: uint64(i)} }

// Uint returns an unsigned integer value.
func Uint(u uint64) Value { return Value{kind: KindUint, num: u} }

// Float returns a double precision value.
func Float(f float64) Value { return Value{kind: KindFloat, num: math.Float64bits(f)} }

// Float32 returns a single precision value.
func Float32(f float32) Value {
	return Value{kind: KindFloat, single: true, num: uint64(math.Float32bits(f))}
}

// String returns a text value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Ref returns a text value that names a row of another table.
func Ref(s string, target schema.Reference) Value {
	return Value{kind: KindRef, str: s, ref: &target}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() bool { return v.kind == KindBool && v.num != 0 }

// AsInt returns the signed integer held by v.
func (v Value) AsInt() int64 { return int64(v.num) }

// AsUint returns the unsigned integer held by v.
func (v Value) AsUint() uint64 { return v.num }

// AsFloat returns the float held by v, widened to float64.
func (v Value) AsFloat() float64 {
	if v.single {
		return float64(math.Float32frombits(uint32(v.num)))
	}
	return math.Float64frombits(v.num)
}

// Float32Bits returns the single precision bits of v, narrowing doubles.
func (v Value) Float32Bits() uint32 {
	if v.single {
		return uint32(v.num)
	}
	return math.Float32bits(float32(math.Float64frombits(v.num)))
}

// Float64Bits returns the double precision bits of v, widening singles.
func (v Value) Float64Bits() uint64 {
	if v.single {
		return math.Float64bits(float64(math.Float32frombits(uint32(v.num))))
	}
	return v.num
}

// AsString returns the text held by a String or Ref value.
func (v Value) AsString() string { return v.str }

// Target returns the reference target of a Ref value.
func (v Value) Target() (schema.Reference, bool) {
	if v.ref == nil {
		return schema.Reference{}, false
	}
	return *v.ref, true
}

// Equal reports whether v and o hold the same wire value. Ref and String
// values with the same text are equal.
func (v Value) Equal(o Value) bool {
	vk, ok := v.kind, o.kind
	if vk == KindRef {
		vk = KindString
	}
	if ok == KindRef {
		ok = KindString
	}
	if vk != ok {
		return false
	}
	switch vk {
	case KindString:
		return v.str == o.str
	case KindFloat:
		return v.single == o.single && v.num == o.num
	}
	return v.num == o.num
}

// String formats v for display and for building keys.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case KindUint:
		return strconv.FormatUint(v.num, 10)
	case KindFloat:
		if v.single {
			return strconv.FormatFloat(v.AsFloat(), 'g', -1, 32)
		}
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case KindString, KindRef:
		return v.str
	}
	return ""
}

// Default returns the value a new row gets for f.
func Default(f schema.FieldDef) Value {
	d := f.Default
	switch {
	case f.Type == schema.Bool:
		b, _ := strconv.ParseBool(d)
		return Bool(b)
	case f.Type.IsInteger():
		i, _ := strconv.ParseInt(d, 10, f.Type.Bits())
		return Int(i)
	case f.Type.IsUnsigned():
		u, _ := strconv.ParseUint(d, 10, f.Type.Bits())
		return Uint(u)
	case f.Type == schema.F32:
		x, _ := strconv.ParseFloat(d, 32)
		return Float32(float32(x))
	case f.Type == schema.F64:
		x, _ := strconv.ParseFloat(d, 64)
		return Float(x)
	case f.Type.IsOptional() && d == "":
		return Null()
	}
	if f.Ref != nil {
		return Ref(d, *f.Ref)
	}
	return String(d)
}
